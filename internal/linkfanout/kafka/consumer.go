package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"bank-api/internal/domain"
	"bank-api/internal/pkg/logging"
	"bank-api/internal/pkg/telemetry"
	"bank-api/internal/store/postgres"
)

const consumerGroupName = "ledger-link-fanout"

// Consumer reads journal-event messages and idempotently inserts the
// journal_event_links rows they describe. Offsets are committed manually
// after a successful insert so a crash between receipt and commit causes a
// safe redelivery: the store's ON CONFLICT DO NOTHING makes a repeated
// insert a no-op.
type Consumer struct {
	group  sarama.ConsumerGroup
	store  *postgres.Store
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewConsumer(cfg *Config, store *postgres.Store) (*Consumer, error) {
	saramaCfg, err := cfg.ToSaramaConfig()
	if err != nil {
		return nil, err
	}
	group, err := sarama.NewConsumerGroup(cfg.Brokers, consumerGroupName, saramaCfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{group: group, store: store, ctx: ctx, cancel: cancel}, nil
}

func (c *Consumer) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		handler := &linkHandler{store: c.store}
		for {
			if err := c.group.Consume(c.ctx, []string{TopicJournalEvents}, handler); err != nil {
				logging.Error("link fan-out consume failed", err, nil)
			}
			if c.ctx.Err() != nil {
				return
			}
		}
	}()
}

func (c *Consumer) Stop() error {
	c.cancel()
	c.wg.Wait()
	return c.group.Close()
}

type linkHandler struct {
	store *postgres.Store
}

func (h *linkHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *linkHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *linkHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg := <-claim.Messages():
			if msg == nil {
				return nil
			}
			if err := h.process(session.Context(), msg); err != nil {
				logging.Error("link fan-out processing failed", err, map[string]interface{}{"offset": msg.Offset})
				continue // at-least-once: leave uncommitted, will redeliver
			}
			session.MarkMessage(msg, "")
			session.Commit()
		case <-session.Context().Done():
			return nil
		}
	}
}

func (h *linkHandler) process(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var m Message
	if err := json.Unmarshal(msg.Value, &m); err != nil {
		return err
	}
	eventID, err := uuid.Parse(m.JournalEventID)
	if err != nil {
		return err
	}
	for _, link := range m.Links {
		entityID, err := uuid.Parse(link.EntityID)
		if err != nil {
			return err
		}
		if err := h.store.InsertJournalLink(ctx, domain.JournalLink{
			JournalEventID: eventID,
			Kind:           link.Kind,
			EntityID:       entityID,
		}); err != nil {
			return err
		}
	}
	telemetry.LinkFanoutLagGauge.Set(time.Since(msg.Timestamp).Seconds())
	return nil
}

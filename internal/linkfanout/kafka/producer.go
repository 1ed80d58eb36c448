package kafka

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/IBM/sarama"

	"bank-api/internal/domain"
)

// Message is the wire shape published for each successfully committed
// journal event. The consumer fans it out into journal_event_links rows,
// one per (transaction|account|command) the event touched.
type Message struct {
	JournalEventID string                 `json:"journal_event_id"`
	CommandID      string                 `json:"command_id"`
	InstanceID     string                 `json:"instance_id"`
	Kind           domain.CommandAction   `json:"kind"`
	Links          []Link                 `json:"links"`
}

type Link struct {
	Kind     domain.JournalLinkKind `json:"kind"`
	EntityID string                 `json:"entity_id"`
}

// Producer publishes journal events for best-effort, at-least-once link
// fan-out. Publish failures are logged by the caller and never block the
// command pipeline: link rows are a convenience index, not part of the
// ledger's consistency boundary.
type Producer struct {
	producer sarama.SyncProducer
	mu       sync.RWMutex
	closed   bool
}

func NewProducer(cfg *Config) (*Producer, error) {
	saramaCfg, err := cfg.ToSaramaConfig()
	if err != nil {
		return nil, fmt.Errorf("sarama config: %w", err)
	}
	p, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("new producer: %w", err)
	}
	return &Producer{producer: p}, nil
}

func (p *Producer) Publish(msg Message) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("producer closed")
	}
	p.mu.RUnlock()

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: TopicJournalEvents,
		Key:   sarama.StringEncoder(msg.JournalEventID),
		Value: sarama.ByteEncoder(body),
	})
	return err
}

func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.producer.Close()
}

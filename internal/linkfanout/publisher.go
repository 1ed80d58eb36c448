package linkfanout

import (
	"context"

	"bank-api/internal/domain"
	"bank-api/internal/pkg/logging"
	"bank-api/internal/store/postgres"
	fanoutkafka "bank-api/internal/linkfanout/kafka"
)

// Publisher fans a committed journal event out to its link rows. It is
// best-effort and asynchronous with respect to the command pipeline: a
// Publish failure is logged and never rolls back or retries the command
// that produced the event, since journal_event_links is a convenience
// index over data that is already durably committed.
type Publisher interface {
	Publish(ctx context.Context, event domain.JournalEvent, links []domain.JournalLink)
}

// KafkaPublisher hands the event off to a Kafka topic for out-of-process,
// at-least-once fan-out by the link consumer.
type KafkaPublisher struct {
	Producer *fanoutkafka.Producer
}

func (k *KafkaPublisher) Publish(ctx context.Context, event domain.JournalEvent, links []domain.JournalLink) {
	msg := fanoutkafka.Message{
		JournalEventID: event.ID.String(),
		CommandID:      event.CommandID.String(),
		InstanceID:     event.InstanceID.String(),
		Kind:           event.Kind,
	}
	for _, l := range links {
		msg.Links = append(msg.Links, fanoutkafka.Link{Kind: l.Kind, EntityID: l.EntityID.String()})
	}
	if err := k.Producer.Publish(msg); err != nil {
		logging.Error("link fan-out publish failed", err, map[string]interface{}{"journal_event_id": event.ID.String()})
	}
}

// NoopPublisher writes link rows synchronously and in-process. Used when
// LEDGER_KAFKA_ENABLED is false, mirroring the teacher's KAFKA_ENABLED=false
// switch, so tests and single-node deployments don't need a broker.
type NoopPublisher struct {
	Store *postgres.Store
}

func (n *NoopPublisher) Publish(ctx context.Context, event domain.JournalEvent, links []domain.JournalLink) {
	for _, l := range links {
		if err := n.Store.InsertJournalLink(ctx, l); err != nil {
			logging.Error("link fan-out insert failed", err, map[string]interface{}{"journal_event_id": event.ID.String()})
		}
	}
}

var _ Publisher = (*KafkaPublisher)(nil)
var _ Publisher = (*NoopPublisher)(nil)

package kafka

import (
	"time"

	"github.com/IBM/sarama"

	"bank-api/internal/config"
)

// Config is the sarama-facing subset of config.KafkaConfig, split out the
// way the teacher's kafka.Config is so producer and consumer can share one
// ToSaramaConfig without importing the top-level config package.
type Config struct {
	Brokers  []string
	ClientID string
}

func FromLedgerConfig(cfg config.KafkaConfig) *Config {
	return &Config{Brokers: cfg.Brokers, ClientID: "ledger-link-fanout"}
}

// ToSaramaConfig mirrors the teacher's producer tuning: idempotence off
// (the consumer's ON CONFLICT DO NOTHING insert is the idempotency layer),
// all-replica acks, bounded producer retries, snappy compression.
func (c *Config) ToSaramaConfig() (*sarama.Config, error) {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 5
	sc.Producer.Retry.Backoff = 100 * time.Millisecond
	sc.Producer.Compression = sarama.CompressionSnappy
	sc.Net.MaxOpenRequests = 10
	sc.ClientID = c.ClientID
	sc.Version = sarama.V3_0_0_0

	sc.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.AutoCommit.Enable = false

	return sc, nil
}

const TopicJournalEvents = "ledger.journal-events"

package main

import (
	"context"
	"log"

	"bank-api/internal/pkg/components"
	"bank-api/internal/pkg/logging"
)

func main() {
	ctx := context.Background()

	container, err := components.GetInstance(ctx)
	if err != nil {
		log.Fatalf("failed to initialize ledger: %v", err)
	}

	logging.Info("ledger server starting", map[string]interface{}{
		"http_addr":      container.Config.HTTP.Addr,
		"schema_prefix":  container.Config.Ledger.SchemaPrefix,
		"kafka_enabled":  container.Config.Kafka.Enabled,
		"processor_name": container.Config.Ledger.ProcessorName,
	})

	if err := container.Start(ctx); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

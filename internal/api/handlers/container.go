package handlers

import (
	"bank-api/internal/config"
	"bank-api/internal/linkfanout"
	"bank-api/internal/store/postgres"
	"bank-api/internal/worker"
)

// HandlerDependencies is an interface that defines the dependencies needed by
// handlers. This interface breaks the circular dependency between handlers
// and the components package, the same role it plays in the teacher's
// container.go.
type HandlerDependencies interface {
	GetStore() *postgres.Store
	GetDispatcher() *worker.Dispatcher
	GetPublisher() linkfanout.Publisher
	GetLedgerConfig() config.LedgerConfig
}

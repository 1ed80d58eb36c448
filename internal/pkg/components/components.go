package components

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"bank-api/internal/api/handlers"
	"bank-api/internal/api/routes"
	"bank-api/internal/config"
	"bank-api/internal/linkfanout"
	fanoutkafka "bank-api/internal/linkfanout/kafka"
	"bank-api/internal/pkg/logging"
	"bank-api/internal/scheduler"
	"bank-api/internal/store/postgres"
	"bank-api/internal/worker"
)

// Container holds every long-lived component and their wiring: config,
// logger, database pool, link fan-out publisher, the scheduler (monitor +
// registry), and the HTTP server. One Container per process, built once via
// GetInstance.
type Container struct {
	Config     *config.Config
	Store      *postgres.Store
	Dispatcher *worker.Dispatcher
	Publisher  linkfanout.Publisher
	Registry   *scheduler.Registry
	Monitor    *scheduler.Monitor
	Router     *gin.Engine
	Server     *http.Server

	kafkaProducer *fanoutkafka.Producer
	kafkaConsumer *fanoutkafka.Consumer

	monitorCancel context.CancelFunc
}

var (
	instance     *Container
	instanceOnce sync.Once
	instanceErr  error
)

// GetInstance returns the process-wide singleton container, building it on
// first call.
func GetInstance(ctx context.Context) (*Container, error) {
	instanceOnce.Do(func() {
		instance, instanceErr = newContainer(ctx)
	})
	return instance, instanceErr
}

func newContainer(ctx context.Context) (*Container, error) {
	c := &Container{}

	if err := c.initConfig(); err != nil {
		return nil, fmt.Errorf("init config: %w", err)
	}
	if err := c.initLogger(); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if err := c.initStore(ctx); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	if err := c.initPublisher(ctx); err != nil {
		return nil, fmt.Errorf("init publisher: %w", err)
	}
	c.initScheduler()
	if err := c.initServer(); err != nil {
		return nil, fmt.Errorf("init server: %w", err)
	}

	logging.Info("container initialized", nil)
	return c, nil
}

func (c *Container) initConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	c.Config = cfg
	return nil
}

func (c *Container) initLogger() error {
	logging.Init(c.Config)
	logging.Info("logger initialized", map[string]interface{}{"level": c.Config.Logging.Level})
	return nil
}

func (c *Container) initStore(ctx context.Context) error {
	store, err := postgres.Open(ctx, c.Config)
	if err != nil {
		return err
	}
	c.Store = store
	logging.Info("database pool initialized", map[string]interface{}{"max_conns": c.Config.DB.MaxConns})
	return nil
}

// initPublisher wires Kafka-backed fan-out when enabled, falling back to a
// synchronous no-op publisher otherwise. A Kafka dial failure degrades to
// the no-op publisher rather than failing boot, the same graceful-
// degradation the teacher's event publisher initialization follows.
func (c *Container) initPublisher(ctx context.Context) error {
	if !c.Config.Kafka.Enabled {
		logging.Info("kafka disabled, using synchronous link publisher", nil)
		c.Publisher = &linkfanout.NoopPublisher{Store: c.Store}
		return nil
	}

	kafkaCfg := fanoutkafka.FromLedgerConfig(c.Config.Kafka)
	producer, err := fanoutkafka.NewProducer(kafkaCfg)
	if err != nil {
		logging.Warn("kafka producer init failed, falling back to synchronous link publisher", map[string]interface{}{
			"error": err.Error(),
		})
		c.Publisher = &linkfanout.NoopPublisher{Store: c.Store}
		return nil
	}
	c.kafkaProducer = producer
	c.Publisher = &linkfanout.KafkaPublisher{Producer: producer}

	consumer, err := fanoutkafka.NewConsumer(kafkaCfg, c.Store)
	if err != nil {
		logging.Warn("kafka consumer init failed, link fan-out will not be consumed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	c.kafkaConsumer = consumer
	c.kafkaConsumer.Start()

	logging.Info("kafka link fan-out initialized", map[string]interface{}{"brokers": c.Config.Kafka.Brokers})
	return nil
}

func (c *Container) initScheduler() {
	c.Dispatcher = worker.NewDispatcher(c.Store, c.Config.Ledger, c.Publisher)
	c.Registry = scheduler.NewRegistry()
	c.Monitor = scheduler.NewMonitor(c.Store, c.Dispatcher, c.Registry, c.Config.Ledger)
}

func (c *Container) initServer() error {
	if os.Getenv("ENVIRONMENT") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	c.Router = gin.New()
	c.Router.Use(gin.Recovery())

	routes.RegisterRoutes(c.Router, c.Config, c)

	c.Server = &http.Server{
		Addr:           c.Config.HTTP.Addr,
		Handler:        c.Router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	logging.Info("http server configured", map[string]interface{}{"addr": c.Config.HTTP.Addr})
	return nil
}

// Start runs the instance monitor and the HTTP server until an interrupt or
// termination signal arrives, then shuts both down gracefully.
func (c *Container) Start(ctx context.Context) error {
	monitorCtx, cancel := context.WithCancel(ctx)
	c.monitorCancel = cancel
	go c.Monitor.Run(monitorCtx)

	go func() {
		if err := c.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("http server failed", err, nil)
			os.Exit(1)
		}
	}()

	c.waitForShutdown()
	return nil
}

func (c *Container) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info("shutting down", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.Shutdown(ctx); err != nil {
		logging.Error("shutdown failed", err, nil)
	}
	logging.Info("shutdown complete", nil)
}

// Shutdown stops the monitor, every running per-tenant processor, the HTTP
// server, the Kafka consumer and producer (if any), and closes the store,
// in that order.
func (c *Container) Shutdown(ctx context.Context) error {
	if c.monitorCancel != nil {
		c.monitorCancel()
	}
	c.Registry.StopAll()

	if err := c.Server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if c.kafkaConsumer != nil {
		if err := c.kafkaConsumer.Stop(); err != nil {
			logging.Error("kafka consumer shutdown failed", err, nil)
		}
	}
	if c.kafkaProducer != nil {
		if err := c.kafkaProducer.Close(); err != nil {
			logging.Error("kafka producer shutdown failed", err, nil)
		}
	}
	c.Store.Close()
	return nil
}

// handlers.HandlerDependencies implementation.
func (c *Container) GetStore() *postgres.Store             { return c.Store }
func (c *Container) GetDispatcher() *worker.Dispatcher      { return c.Dispatcher }
func (c *Container) GetPublisher() linkfanout.Publisher     { return c.Publisher }
func (c *Container) GetLedgerConfig() config.LedgerConfig   { return c.Config.Ledger }

var _ handlers.HandlerDependencies = (*Container)(nil)

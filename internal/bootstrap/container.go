package bootstrap

import (
	"context"
	"sync"

	"kitakita/internal/adapters/ai"
	"kitakita/internal/adapters/config"
	"kitakita/internal/adapters/kafka"
	pgclient "kitakita/internal/adapters/postgres"
	redisclient "kitakita/internal/adapters/redis"
	"kitakita/internal/agents"
	"kitakita/internal/api"
	"kitakita/internal/api/advice"
	"kitakita/internal/api/health"
	"kitakita/internal/api/insights"
	"kitakita/internal/events"
	"kitakita/internal/repository/postgres"
	"kitakita/internal/services/advisor"
	"kitakita/internal/services/orchestrator"
	"kitakita/internal/workers"
	"kitakita/pkg/errors"
	"kitakita/pkg/logger"
)

// Container holds all application dependencies and their lifecycle
// Components are organized in initialization order
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure Layer (Data stores)
	PG    *pgclient.Client
	Redis *redisclient.Client

	// Domain Layer - Repositories
	Repos *Repositories

	// External Adapters
	Adapters *Adapters

	// Business Logic
	Business *Business

	// Application Layer
	Application *Application

	// Background Processing
	Background *Background

	// Lifecycle management
	WG      *sync.WaitGroup
	Context context.Context
	Cancel  context.CancelFunc
}

// Repositories groups all data repositories
type Repositories struct {
	UserData  *postgres.UserDataRepository
	Decisions *postgres.DecisionRepository
}

// Adapters groups all external adapters
type Adapters struct {
	Gateway       ai.Gateway
	KafkaProducer *kafka.Producer
	Publisher     *events.Publisher
	SnapshotCache *redisclient.SnapshotCache
}

// Business groups business logic components
type Business struct {
	AgentRegistry *agents.Registry
	AgentDeps     agents.Deps
	Orchestrator  *orchestrator.Service
	Advisor       *advisor.Service
}

// Application groups application layer components
type Application struct {
	HTTPServer      *api.Server
	HealthHandler   *health.Handler
	InsightsHandler *insights.Handler
	AdviceHandler   *advice.Handler
}

// Background groups all background processing components
type Background struct {
	WorkerScheduler *workers.Scheduler
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Repos:       &Repositories{},
		Adapters:    &Adapters{},
		Business:    &Business{},
		Application: &Application{},
		Background:  &Background{},
		WG:          &sync.WaitGroup{},
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInit initializes all components in the correct order
// Panics on any initialization error (fail-fast at startup)
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitRepositories()
	c.MustInitAdapters()
	c.MustInitBusiness()
	c.MustInitApplication()
	c.MustInitBackground()
}

// Start starts all background components
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	// Start HTTP server
	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorf("HTTP server failed: %v", err)
			c.Cancel() // Trigger shutdown on fatal HTTP error
		}
	}()

	// Start workers
	if err := c.Background.WorkerScheduler.Start(c.Context); err != nil {
		return errors.Wrap(err, "failed to start workers")
	}

	c.Log.Info("✓ All systems operational")
	return nil
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	// Signal all components to stop
	c.Cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if c.Application.HTTPServer != nil {
		if err := c.Application.HTTPServer.Shutdown(shutdownCtx); err != nil {
			c.Log.Error("Error stopping HTTP server", "error", err)
		}
	}

	if c.Background.WorkerScheduler != nil && c.Background.WorkerScheduler.IsRunning() {
		if err := c.Background.WorkerScheduler.Stop(); err != nil {
			c.Log.Error("Error stopping workers", "error", err)
		}
	}

	if c.Adapters.KafkaProducer != nil {
		if err := c.Adapters.KafkaProducer.Close(); err != nil {
			c.Log.Error("Error closing Kafka producer", "error", err)
		}
	}

	c.WG.Wait()

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Log.Error("Error closing Redis", "error", err)
		}
	}
	if c.PG != nil {
		if err := c.PG.Close(); err != nil {
			c.Log.Error("Error closing PostgreSQL", "error", err)
		}
	}

	if c.ErrorTracker != nil {
		if err := c.ErrorTracker.Flush(shutdownCtx); err != nil {
			c.Log.Warnf("Failed to flush error tracker: %v", err)
		}
	}

	c.Log.Info("Shutdown complete")
}

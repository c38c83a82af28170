package bootstrap

import (
	"time"

	"kitakita/internal/adapters/ai"
	"kitakita/internal/adapters/config"
	"kitakita/internal/adapters/errors/noop"
	"kitakita/internal/adapters/errors/sentry"
	"kitakita/internal/adapters/kafka"
	pgclient "kitakita/internal/adapters/postgres"
	redisclient "kitakita/internal/adapters/redis"
	"kitakita/internal/agents"
	"kitakita/internal/api"
	"kitakita/internal/api/advice"
	"kitakita/internal/api/health"
	"kitakita/internal/api/insights"
	"kitakita/internal/events"
	"kitakita/internal/metrics"
	"kitakita/internal/repository/postgres"
	"kitakita/internal/services/advisor"
	"kitakita/internal/services/orchestrator"
	"kitakita/internal/workers"
	"kitakita/pkg/logger"
)

const (
	version         = "1.0.0"
	shutdownTimeout = 30 * time.Second
)

// MustInitConfig loads configuration and sets up logging and error tracking.
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	c.Log = logger.Get()
	c.Log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	if cfg.ErrorTracking.Enabled && cfg.ErrorTracking.SentryDSN != "" {
		tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
		if err != nil {
			c.Log.Warnf("Failed to initialize Sentry: %v", err)
			c.ErrorTracker = noop.New()
		} else {
			c.Log.Info("Error tracking initialized (Sentry)")
			c.ErrorTracker = tracker
		}
	} else {
		c.Log.Info("Error tracking disabled")
		c.ErrorTracker = noop.New()
	}
	logger.SetErrorTracker(c.ErrorTracker)

	metrics.Register()
}

// MustInitInfrastructure connects to the data stores.
func (c *Container) MustInitInfrastructure() {
	c.Log.Info("Initializing databases...")

	pg, err := pgclient.NewClient(c.Config.Postgres)
	if err != nil {
		c.Log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	c.PG = pg

	redis, err := redisclient.NewClient(c.Config.Redis)
	if err != nil {
		c.Log.Fatalf("Failed to connect to Redis: %v", err)
	}
	c.Redis = redis

	c.Log.Info("Databases initialized")
}

// MustInitRepositories wires the data repositories.
func (c *Container) MustInitRepositories() {
	c.Repos.UserData = postgres.NewUserDataRepository(c.PG.DB())
	c.Repos.Decisions = postgres.NewDecisionRepository(c.PG.DB())
}

// MustInitAdapters builds the AI gateway, cache and event publisher.
func (c *Container) MustInitAdapters() {
	aiCfg := c.Config.AI

	var limiter ai.Limiter
	if aiCfg.UseRedisLimiter {
		limiter = ai.NewRedisSlidingWindowLimiter(c.Redis.Client(), aiCfg.RequestsPerMinute)
		c.Log.Info("Using Redis-backed gateway rate limiter")
	} else {
		limiter = ai.NewSlidingWindowLimiter(aiCfg.RequestsPerMinute, ai.SystemClock())
	}

	gateway, err := ai.NewGeminiClient(ai.GeminiOptions{
		APIKey:  aiCfg.GeminiKey,
		Model:   aiCfg.Model,
		Timeout: aiCfg.Timeout,
		GenConfig: ai.GenerationConfig{
			Temperature:     aiCfg.Temperature,
			TopK:            aiCfg.TopK,
			TopP:            aiCfg.TopP,
			MaxOutputTokens: aiCfg.MaxOutputTokens,
		},
		Limiter: limiter,
		Retry: ai.RetryConfig{
			MaxAttempts:  aiCfg.RetryMaxAttempts,
			InitialDelay: aiCfg.RetryInitialDelay,
			MaxDelay:     aiCfg.RetryMaxDelay,
			Multiplier:   aiCfg.RetryMultiplier,
			MaxJitter:    aiCfg.RetryMaxJitter,
		},
	})
	if err != nil {
		c.Log.Fatalf("Failed to create AI gateway: %v", err)
	}
	c.Adapters.Gateway = gateway

	c.Adapters.SnapshotCache = redisclient.NewSnapshotCache(c.Redis, c.Config.Redis.SnapshotTTL)

	if c.Config.Kafka.Enabled {
		c.Adapters.KafkaProducer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers: c.Config.Kafka.Brokers,
		})
		c.Adapters.Publisher = events.NewPublisher(c.Adapters.KafkaProducer)
		c.Log.Info("Kafka event publishing enabled")
	}
}

// MustInitBusiness wires agent dependencies and the advisor service.
func (c *Container) MustInitBusiness() {
	c.Business.AgentRegistry = agents.NewRegistry()

	deps := agents.Deps{
		Gateway:   c.Adapters.Gateway,
		Store:     c.Repos.UserData,
		Decisions: c.Repos.Decisions,
		Publisher: events.NoopPublisher{},
	}
	if c.Adapters.Publisher != nil {
		deps.Publisher = c.Adapters.Publisher
	}
	c.Business.AgentDeps = deps

	orch, err := orchestrator.NewService(deps, c.Business.AgentRegistry, c.Config.Agents.IdleTTL)
	if err != nil {
		c.Log.Fatalf("Failed to create orchestrator service: %v", err)
	}
	c.Business.Orchestrator = orch

	var refreshPublisher advisor.RefreshPublisher = events.NoopPublisher{}
	if c.Adapters.Publisher != nil {
		refreshPublisher = c.Adapters.Publisher
	}

	svc, err := advisor.NewService(
		c.Adapters.Gateway,
		c.Repos.UserData,
		c.Adapters.SnapshotCache,
		refreshPublisher,
		advisor.Config{
			RefreshPerMinute: c.Config.Advisor.RefreshPerMinute,
			RefreshBurst:     c.Config.Advisor.RefreshBurst,
		},
	)
	if err != nil {
		c.Log.Fatalf("Failed to create advisor service: %v", err)
	}
	c.Business.Advisor = svc
}

// MustInitApplication wires the HTTP layer.
func (c *Container) MustInitApplication() {
	c.Application.HealthHandler = health.New(
		c.Log, c.PG.DB(), c.Redis.Client(), c.Config.App.Name, version,
	)
	c.Application.InsightsHandler = insights.New(c.Business.Advisor, c.Log)
	c.Application.AdviceHandler = advice.New(c.Business.Orchestrator, c.Log)

	c.Application.HTTPServer = api.NewServer(api.ServerConfig{
		Addr:        c.Config.HTTP.Addr,
		ServiceName: c.Config.App.Name,
		Version:     version,
	}, c.Application.HealthHandler, c.Application.InsightsHandler, c.Application.AdviceHandler, c.Log)
}

// MustInitBackground registers the background workers.
func (c *Container) MustInitBackground() {
	scheduler := workers.NewScheduler()

	wcfg := c.Config.Workers
	scheduler.RegisterWorker(workers.NewInsightRefresherWorker(
		c.Business.Advisor,
		c.Repos.UserData,
		wcfg.InsightRefreshInterval,
		wcfg.InsightRefreshMaxConcurrency,
		wcfg.InsightRefreshEnabled,
	))
	scheduler.RegisterWorker(workers.NewRecoveryProbeWorker(
		c.Business.AgentRegistry,
		wcfg.RecoveryProbeInterval,
		wcfg.RecoveryProbeEnabled,
	))

	c.Background.WorkerScheduler = scheduler
}

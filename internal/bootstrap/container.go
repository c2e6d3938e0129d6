package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docchat-be/internal/config"
	"docchat-be/internal/controller"
	"docchat-be/internal/pkg/logger"
	"docchat-be/internal/repository/implementation"
	"docchat-be/internal/repository/memory"
	"docchat-be/internal/repository/unitofwork"
	"docchat-be/internal/service"
	"docchat-be/pkg/breaker"
	"docchat-be/pkg/embedding"
	"docchat-be/pkg/events"
	"docchat-be/pkg/lifecycle"
	"docchat-be/pkg/llm/factory"
	"docchat-be/pkg/llm/resilient"
	pktNats "docchat-be/pkg/nats"
	"docchat-be/pkg/rag/cache"
	"docchat-be/pkg/rag/governor"
	"docchat-be/pkg/rag/orchestrator"
	"docchat-be/pkg/rag/retrieval"
	"docchat-be/pkg/rag/validation"
	"docchat-be/pkg/ratelimit"
	"docchat-be/pkg/tokens"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/nats-io/nats.go"
	"gorm.io/gorm"
)

const taskSetLimit = 256

type Container struct {
	// Controllers
	SessionController controller.ISessionController
	ChatController    controller.IChatController
	AdminController   controller.IAdminController

	Logger       logger.ILogger
	Orchestrator *orchestrator.Orchestrator
	Cache        *cache.Cache
	Breaker      *breaker.Breaker
	Limiter      *ratelimit.Limiter
	Governor     *governor.Governor

	cfg        *config.Config
	supervisor *lifecycle.Supervisor
	tasks      *lifecycle.TaskSet
	pubSub     *gochannel.GoChannel
	natsConn   *nats.Conn
}

func NewContainer(ctx context.Context, db *gorm.DB, cfg *config.Config, sysLogger logger.ILogger) (*Container, error) {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermillLogger)
	bus := events.NewBus(pubSub)
	tasks := lifecycle.NewTaskSet(taskSetLimit, sysLogger)

	// 3. Resilience components
	br := breaker.New(breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		RecoveryTimeout:  cfg.Breaker.RecoveryTimeout,
		OnStateChange: func(from, to breaker.State) {
			sysLogger.Warn("BREAKER", "Circuit state changed", map[string]interface{}{
				"from": from.String(),
				"to":   to.String(),
			})
		},
	})
	limiter := ratelimit.New(ratelimit.Config{
		QueryCap:      cfg.Rate.QueryCap,
		Window:        cfg.Rate.Window,
		MaxConcurrent: cfg.Rate.MaxConcurrent,
	})
	gov := governor.New(governor.Config{
		SpendCeiling: cfg.Session.SpendCeiling,
		TTL:          cfg.Session.TTL,
	})
	responseCache, err := cache.New(cache.Config{
		Capacity: cfg.Cache.Capacity,
		TTL:      cfg.Cache.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create response cache: %w", err)
	}

	// 4. Providers
	llmProvider, err := factory.NewLLMProvider(ctx, cfg.Ai.LLMProvider, cfg.Ai.LLMModel, cfg.Ai.LLMBaseURL, cfg.Ai.LLMAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm provider: %w", err)
	}
	generator := resilient.NewClient(llmProvider, br, resilient.Config{MaxRetries: cfg.Ai.ProviderMaxRetries}, sysLogger)

	embedder, err := embedding.NewEmbeddingProvider(cfg.Ai.EmbeddingProvider, cfg.Ai.EmbeddingModel, cfg.Ai.EmbeddingBaseURL, cfg.Ai.EmbeddingAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}
	embeddingRepo := memory.NewEmbeddingRepository(cfg.Ai.EmbeddingCacheTTL)
	cachedEmbedder := embedding.NewCachedProvider(embedder, embeddingRepo)

	var counter tokens.Counter = tokens.EstimateCounter{}
	if tk, err := tokens.NewTiktokenCounter(); err == nil {
		counter = tk
	} else {
		sysLogger.Warn("BOOTSTRAP", "Tokenizer unavailable, using estimates", map[string]interface{}{"error": err.Error()})
	}

	// 5. Retrieval and orchestration
	documents := implementation.NewDocumentRepository(db)
	engine := retrieval.NewEngine(cachedEmbedder, documents, documents, counter, retrieval.Config{
		SimilarityFloor: cfg.Retrieval.SimilarityFloor,
		FocusBoost:      cfg.Retrieval.FocusBoost,
		TokenBudget:     cfg.Retrieval.TokenBudget,
		TopK:            cfg.Retrieval.TopK,
		MaxDocuments:    cfg.Retrieval.MaxDocuments,
	}, sysLogger)

	orch := orchestrator.New(orchestrator.Deps{
		Validator: validation.NewQueryValidator(cfg.Stream.MaxQueryLength),
		Store:     service.NewConversationStore(uowFactory),
		Governor:  gov,
		Limiter:   limiter,
		Cache:     responseCache,
		Retriever: engine,
		Generator: generator,
		Counter:   counter,
		Publisher: bus,
		Tasks:     tasks,
		Logger:    sysLogger,
	}, orchestrator.Config{
		StreamTimeout:   cfg.Stream.Timeout,
		FinalizeTimeout: cfg.Stream.FinalizeTimeout,
		HistoryLimit:    cfg.Session.HistoryLimit,
		Pricing: orchestrator.Pricing{
			Input:       cfg.Pricing.Input,
			CachedInput: cfg.Pricing.CachedInput,
			Output:      cfg.Pricing.Output,
		},
	})

	// 6. Services
	sessionService := service.NewSessionService(uowFactory, gov, limiter, sysLogger)
	adminService := service.NewAdminService(responseCache, br, sysLogger)
	documentEvents := service.NewDocumentEventService(responseCache, sysLogger)

	// 7. Background services
	supervisor := lifecycle.NewSupervisor("docchat", cfg.App.ShutdownTimeout, sysLogger)
	supervisor.Add(lifecycle.NewPeriodic("rate-window-sweep", cfg.Rate.SweepInterval, func(ctx context.Context) error {
		limiter.Sweep()
		return nil
	}, sysLogger))
	supervisor.Add(lifecycle.NewPeriodic("session-sweep", cfg.Session.SweepInterval, func(ctx context.Context) error {
		for _, id := range gov.Sweep() {
			limiter.Forget(id)
		}
		_, err := sessionService.ReapIdle(ctx, gov.IdleCutoff())
		return err
	}, sysLogger))
	supervisor.Add(lifecycle.NewPeriodic("cache-sweep", cfg.Cache.SweepInterval, func(ctx context.Context) error {
		responseCache.Sweep()
		embeddingRepo.DeleteExpired()
		return nil
	}, sysLogger))

	var natsConn *nats.Conn
	var forwarder service.Forwarder
	if cfg.App.NatsURL != "" {
		nc, js, err := pktNats.Connect(ctx, cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Error("BOOTSTRAP", "NATS unavailable, external events disabled", map[string]interface{}{"error": err.Error()})
		} else {
			natsConn = nc
			forwarder = pktNats.NewPublisher(js)
			supervisor.Add(pktNats.NewSubscription(js,
				pktNats.Subject(events.TypeDocumentUpdated),
				"docchat-cache-invalidation",
				documentEvents.HandleDocumentUpdated,
				sysLogger,
			))
		}
	}
	supervisor.Add(service.NewConsumerService(pubSub, events.TypeChatCompleted, forwarder, sysLogger))

	return &Container{
		SessionController: controller.NewSessionController(sessionService),
		ChatController:    controller.NewChatController(orch),
		AdminController:   controller.NewAdminController(adminService),

		Logger:       sysLogger,
		Orchestrator: orch,
		Cache:        responseCache,
		Breaker:      br,
		Limiter:      limiter,
		Governor:     gov,

		cfg:        cfg,
		supervisor: supervisor,
		tasks:      tasks,
		pubSub:     pubSub,
		natsConn:   natsConn,
	}, nil
}

// Start launches the supervised background services.
func (c *Container) Start(ctx context.Context) {
	c.supervisor.Start(ctx)
}

// Shutdown stops background work in order: supervised services first, then
// the pending side-effect tasks, then the event transports. The HTTP server
// must already be stopped.
func (c *Container) Shutdown(timeout time.Duration) error {
	var errs []error
	if err := c.supervisor.Stop(timeout); err != nil {
		errs = append(errs, fmt.Errorf("supervisor: %w", err))
	}
	if err := c.tasks.Drain(timeout); err != nil {
		errs = append(errs, fmt.Errorf("tasks: %w", err))
	}
	if err := c.pubSub.Close(); err != nil {
		errs = append(errs, fmt.Errorf("event bus: %w", err))
	}
	if c.natsConn != nil {
		if err := c.natsConn.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("nats: %w", err))
		}
	}
	return errors.Join(errs...)
}

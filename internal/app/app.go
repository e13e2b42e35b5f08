package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vektor/apps/embedder/internal/adapter/gemini"
	"vektor/apps/embedder/internal/adapter/openai"
	"vektor/apps/embedder/internal/batch"
	"vektor/apps/embedder/internal/config"
	"vektor/apps/embedder/internal/deadletter"
	"vektor/apps/embedder/internal/embedding"
	"vektor/apps/embedder/internal/middleware"
	"vektor/apps/embedder/internal/resilience"
	"vektor/apps/embedder/internal/worker"
)

// Gemini model names served by one shared client.
var geminiModels = []string{"gemini-embedding-001", "text-embedding-004"}

// OpenAI model names, each a distinct client config.
var openaiModels = []string{"text-embedding-3-small", "text-embedding-3-large"}

// App wires configured dependencies into the request paths: the HTTP surface,
// the NSQ consumer handler, and the batch coordinator.
type App struct {
	Handler     http.Handler
	Coordinator *batch.Coordinator
	Consumer    *worker.RequestConsumer

	closers []func() error
}

func New(ctx context.Context, cfg *config.Config, deps *Dependencies) (*App, error) {
	app := &App{}

	registry := embedding.NewRegistry(cfg.DefaultModel)
	modelEnvCfg := resilience.Config{
		MaxRetries:       cfg.RetryMaxAttempts,
		InitialWait:      cfg.RetryInitialWait,
		MaxWait:          cfg.RetryMaxWait,
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerCooldown:  cfg.BreakerCooldown,
	}

	registered := 0
	if cfg.GeminiAPIKey != "" {
		for _, model := range geminiModels {
			emb, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, model)
			if err != nil {
				return nil, fmt.Errorf("gemini embedder error: %w", err)
			}
			app.closers = append(app.closers, emb.Close)

			envCfg := modelEnvCfg
			envCfg.Name = "gemini:" + model
			registry.Register(model, resilience.GuardEmbedder(emb, resilience.New[[][]float32](envCfg)))
			registered++
		}
	}
	if cfg.OpenAIAPIKey != "" {
		for _, model := range openaiModels {
			envCfg := modelEnvCfg
			envCfg.Name = "openai:" + model
			registry.Register(model, resilience.GuardEmbedder(openai.NewEmbedder(cfg.OpenAIAPIKey, model), resilience.New[[][]float32](envCfg)))
			registered++
		}
	}
	if registered == 0 {
		return nil, fmt.Errorf("no embedding provider configured: set GEMINI_API_KEY or OPENAI_API_KEY")
	}

	dlqRepo := deadletter.NewPostgresRepo(deps.DB)
	dlqPublisher := deadletter.NewPublisher(deps.NSQProducer, dlqRepo)
	dlqService := deadletter.NewService(dlqRepo, deps.NSQProducer)
	dlqHandler := deadletter.NewHandler(dlqService)

	orchestrator := embedding.NewOrchestrator(registry, deps.Cache, deps.VectorStore, cfg.StoragePolicy)

	publishEnvCfg := modelEnvCfg
	publishEnvCfg.Name = "publish-completion"
	completions := worker.NewCompletionPublisher(deps.NSQProducer, resilience.New[struct{}](publishEnvCfg), dlqPublisher)

	// A provider call makes MaxRetries+1 attempts before the consumer
	// dead-letters the message.
	app.Consumer = worker.NewRequestConsumer(orchestrator, completions, dlqPublisher, cfg.RetryMaxAttempts+1)

	sink := func(ctx context.Context, req embedding.Request, failure error, attempts int) {
		body, err := json.Marshal(req)
		if err != nil {
			body = nil
		}
		dlqPublisher.OnFinalFailure(ctx, body, deadletter.Origin{
			ChunkID:    req.ChunkID(0),
			TenantID:   req.TenantID,
			DocumentID: req.DocumentID,
		}, failure, attempts, deadletter.ReasonMaxRetriesExceeded)
	}

	coordinator, err := batch.NewCoordinator(batch.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.BatchInterval,
		ItemTimeout:   cfg.ItemTimeout,
		SweepInterval: cfg.SweepInterval,
		MaxRetries:    cfg.BatchMaxRetries,
		PoolSize:      cfg.WorkerPoolSize,
		Parallel:      cfg.ParallelBatches,
	}, orchestrator, sink)
	if err != nil {
		return nil, fmt.Errorf("batch coordinator error: %w", err)
	}
	app.Coordinator = coordinator

	mux := http.NewServeMux()
	mux.HandleFunc("POST /embeddings", app.submitEmbedding)
	mux.HandleFunc("GET /dlq", dlqHandler.List)
	mux.HandleFunc("POST /dlq/{id}/retry", dlqHandler.Retry)
	mux.HandleFunc("GET /stats", app.statsHandler(dlqService))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ok"}`)
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	app.Handler = middleware.CorrelationID(mux)

	return app, nil
}

// Close releases provider clients. The coordinator and consumer are stopped
// by the caller before this runs.
func (a *App) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			slog.Warn("failed to close provider client", "error", err)
		}
	}
}

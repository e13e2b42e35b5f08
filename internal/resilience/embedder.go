package resilience

import (
	"context"

	"vektor/apps/embedder/internal/embedding"
)

// GuardedEmbedder decorates a provider client with an envelope so every model
// invocation gets the retry and circuit-breaker treatment. The error of the
// final attempt (or ErrCircuitOpen) surfaces to the orchestrator, which
// records it on the affected results.
type GuardedEmbedder struct {
	inner embedding.Embedder
	env   *Envelope[[][]float32]
}

func GuardEmbedder(inner embedding.Embedder, env *Envelope[[][]float32]) *GuardedEmbedder {
	return &GuardedEmbedder{inner: inner, env: env}
}

func (g *GuardedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return g.env.Execute(ctx, func(ctx context.Context) ([][]float32, error) {
		return g.inner.EmbedBatch(ctx, texts)
	})
}

// Attempts reports the envelope's per-call attempt budget.
func (g *GuardedEmbedder) Attempts() int {
	return g.env.Attempts()
}

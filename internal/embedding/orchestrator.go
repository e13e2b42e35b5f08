package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vektor/apps/embedder/internal/config"
	"vektor/apps/embedder/internal/metrics"
)

// Orchestrator runs one request end to end: cache lookups, a single provider
// call for the misses, cache backfill, one vector-store write. It holds no
// per-request state, so it is safe to call concurrently from the event
// consumer and the batch coordinator.
type Orchestrator struct {
	registry *Registry
	cache    Cache
	store    VectorStore
	policy   config.StoragePolicy
}

func NewOrchestrator(registry *Registry, cache Cache, store VectorStore, policy config.StoragePolicy) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		cache:    cache,
		store:    store,
		policy:   policy,
	}
}

// Generate never returns an error for per-text failures; those are encoded in
// the result statuses. It errors only on structural problems (bad request,
// no usable model).
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid embedding request: %w", err)
	}

	model, provider, err := o.registry.Resolve(req.ModelName)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(req.Texts))

	// Cache pass. Duplicate texts within one request each get their own
	// lookup; known inefficiency, kept so result slots stay independent.
	var missIdx []int
	for i, text := range req.Texts {
		results[i] = Result{ChunkID: req.ChunkID(i), Text: text}

		vec, ok, cacheErr := o.cache.Get(ctx, req.TenantID, text, model)
		if cacheErr != nil {
			slog.WarnContext(ctx, "cache lookup failed, treating as miss", "error", cacheErr, "chunk_id", results[i].ChunkID)
		}
		if ok {
			metrics.CacheTotal.WithLabelValues("hit").Inc()
			results[i].Status = ResultSuccess
			results[i].Embedding = vec
			continue
		}
		metrics.CacheTotal.WithLabelValues("miss").Inc()
		missIdx = append(missIdx, i)
	}

	// One provider call for all misses. The call is atomic from our view: on
	// failure every miss in it is marked FAILED.
	if len(missIdx) > 0 {
		texts := make([]string, len(missIdx))
		for j, i := range missIdx {
			texts[j] = req.Texts[i]
		}

		vectors, embErr := provider.EmbedBatch(ctx, texts)
		if embErr != nil {
			metrics.ProviderCallsTotal.WithLabelValues(model, "error").Inc()
			slog.ErrorContext(ctx, "provider call failed", "model", model, "texts", len(texts), "error", embErr)
			for _, i := range missIdx {
				results[i].Status = ResultFailed
				results[i].Error = embErr.Error()
			}
		} else if len(vectors) != len(texts) {
			metrics.ProviderCallsTotal.WithLabelValues(model, "error").Inc()
			msg := fmt.Sprintf("provider returned %d vectors for %d texts", len(vectors), len(texts))
			slog.ErrorContext(ctx, "provider result mismatch", "model", model, "detail", msg)
			for _, i := range missIdx {
				results[i].Status = ResultFailed
				results[i].Error = msg
			}
		} else {
			metrics.ProviderCallsTotal.WithLabelValues(model, "ok").Inc()
			for j, i := range missIdx {
				results[i].Status = ResultSuccess
				results[i].Embedding = vectors[j]
				if putErr := o.cache.Put(ctx, req.TenantID, req.Texts[i], model, vectors[j]); putErr != nil {
					slog.WarnContext(ctx, "cache put failed", "error", putErr, "chunk_id", results[i].ChunkID)
				}
			}
		}
	}

	o.persist(ctx, req, model, results)

	resp := &Response{
		TenantID:         req.TenantID,
		DocumentID:       req.DocumentID,
		ModelName:        model,
		Results:          results,
		Dimension:        dimension(results),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		Status:           DeriveStatus(results),
	}
	metrics.RequestDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
	return resp, nil
}

// persist writes all successful results in one call. Under fail-open a storage
// error is logged and swallowed; under fail-closed the stored results are
// downgraded to FAILED so the failure surfaces to the caller.
func (o *Orchestrator) persist(ctx context.Context, req Request, model string, results []Result) {
	var succeeded []Result
	for _, r := range results {
		if r.Status == ResultSuccess {
			succeeded = append(succeeded, r)
		}
	}
	if len(succeeded) == 0 {
		return
	}

	err := o.store.StoreMany(ctx, req.TenantID, req.DocumentID, model, succeeded)
	if err == nil {
		return
	}

	slog.ErrorContext(ctx, "vector store write failed", "error", err, "tenant_id", req.TenantID, "document_id", req.DocumentID, "policy", o.policy)
	if o.policy == config.StorageFailClosed {
		for i := range results {
			if results[i].Status == ResultSuccess {
				results[i].Status = ResultFailed
				results[i].Embedding = nil
				results[i].Error = fmt.Sprintf("vector store write failed: %v", err)
			}
		}
	}
}

func dimension(results []Result) int {
	for _, r := range results {
		if r.Status == ResultSuccess {
			return len(r.Embedding)
		}
	}
	return 0
}

package embedding

import (
	"context"
	"fmt"
)

// Status aggregates the outcome of a whole request.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusPartial Status = "PARTIAL"
	StatusFailure Status = "FAILURE"
)

// ResultStatus is the outcome of a single text.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "SUCCESS"
	ResultFailed  ResultStatus = "FAILED"
)

// Request is an immutable unit of embedding work. ChunkIDs is optional; when
// supplied it must be the same length as Texts.
type Request struct {
	TenantID   string   `json:"tenant_id"`
	DocumentID string   `json:"document_id"`
	ChunkIDs   []string `json:"chunk_ids,omitempty"`
	Texts      []string `json:"texts"`
	ModelName  string   `json:"model_name,omitempty"`
}

func (r *Request) Validate() error {
	if r.TenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if len(r.ChunkIDs) > 0 && len(r.ChunkIDs) != len(r.Texts) {
		return fmt.Errorf("chunk_ids length %d does not match texts length %d", len(r.ChunkIDs), len(r.Texts))
	}
	return nil
}

// ChunkID returns the chunk identifier for text index i, falling back to the
// positional index when the caller supplied no chunk ids.
func (r *Request) ChunkID(i int) string {
	if len(r.ChunkIDs) > 0 {
		return r.ChunkIDs[i]
	}
	return fmt.Sprintf("%d", i)
}

// Result carries the outcome for one text. Exactly one of Embedding/Error is
// populated, matching Status.
type Result struct {
	ChunkID   string       `json:"chunk_id"`
	Text      string       `json:"text"`
	Status    ResultStatus `json:"status"`
	Embedding []float32    `json:"embedding,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// Response is constructed once per Request and immutable afterwards.
type Response struct {
	TenantID         string   `json:"tenant_id"`
	DocumentID       string   `json:"document_id"`
	ModelName        string   `json:"model_name"`
	Results          []Result `json:"results"`
	Dimension        int      `json:"dimension"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
	Status           Status   `json:"status"`
}

// DeriveStatus computes the aggregate status: SUCCESS iff all results
// succeeded (vacuously for zero results), FAILURE iff all failed.
func DeriveStatus(results []Result) Status {
	succeeded := 0
	for _, r := range results {
		if r.Status == ResultSuccess {
			succeeded++
		}
	}
	switch {
	case succeeded == len(results):
		return StatusSuccess
	case succeeded == 0:
		return StatusFailure
	default:
		return StatusPartial
	}
}

// Embedder converts a batch of texts into vectors for one model.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Cache is a content-addressed vector lookup keyed by (tenant, text, model).
type Cache interface {
	Get(ctx context.Context, tenantID, text, model string) ([]float32, bool, error)
	Put(ctx context.Context, tenantID, text, model string, vector []float32) error
}

// VectorStore persists successful results; writes must be upserts keyed by
// chunk id so redelivered messages are idempotent.
type VectorStore interface {
	StoreMany(ctx context.Context, tenantID, documentID, model string, results []Result) error
}

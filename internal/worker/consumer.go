package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nsqio/go-nsq"

	"vektor/apps/embedder/internal/deadletter"
	"vektor/apps/embedder/internal/embedding"
	"vektor/apps/embedder/internal/metrics"
	"vektor/apps/embedder/internal/middleware"
	"vektor/apps/embedder/internal/resilience"
)

// Completions publishes the outcome of one chunk.
type Completions interface {
	PublishCompletion(ctx context.Context, ev CompletionEvent, original json.RawMessage)
}

// RequestConsumer is the NSQ handler for the generation-request topic. It
// never returns an error for terminal failures: those become dead-letter and
// alert records, so one bad message cannot stall the consumption loop.
type RequestConsumer struct {
	gen           Generator
	completions   Completions
	dlq           FinalFailureSink
	modelAttempts int
}

func NewRequestConsumer(gen Generator, completions Completions, dlq FinalFailureSink, modelAttempts int) *RequestConsumer {
	if modelAttempts < 1 {
		modelAttempts = 1
	}
	return &RequestConsumer{
		gen:           gen,
		completions:   completions,
		dlq:           dlq,
		modelAttempts: modelAttempts,
	}
}

func (h *RequestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var ev GenerationRequestEvent
	if err := json.Unmarshal(m.Body, &ev); err != nil {
		// Poison pill: route to dead-letter without a chunk id, don't requeue.
		slog.Error("poison pill: invalid json", "error", err)
		h.dlq.OnFinalFailure(context.Background(), json.RawMessage(m.Body), deadletter.Origin{},
			err, 1, deadletter.ReasonMalformedMessage)
		return nil
	}

	ctx := middleware.EnsureCorrelationID(context.Background(), ev.CorrelationID)
	origin := deadletter.Origin{ChunkID: ev.ChunkID, TenantID: ev.TenantID, DocumentID: ev.DocumentID}

	req := embedding.Request{
		TenantID:   ev.TenantID,
		DocumentID: ev.DocumentID,
		ChunkIDs:   []string{ev.ChunkID},
		Texts:      []string{ev.Content},
		ModelName:  ev.ModelName,
	}

	resp, err := h.gen.Generate(ctx, req)
	if err != nil {
		// Structural: retrying the same payload cannot help.
		slog.ErrorContext(ctx, "unprocessable request", "chunk_id", ev.ChunkID, "error", err)
		h.dlq.OnFinalFailure(ctx, json.RawMessage(m.Body), origin, err, 1, deadletter.ReasonMalformedMessage)
		return nil
	}

	metrics.RequestsTotal.WithLabelValues("event", string(resp.Status)).Inc()

	if resp.Status == embedding.StatusFailure {
		// The guarded model client already spent its retry budget (or the
		// circuit is open); this is the terminal failure for the message.
		failure := errors.New(firstResultError(resp))
		reason := deadletter.ReasonMaxRetriesExceeded
		if strings.Contains(failure.Error(), resilience.ErrCircuitOpen.Error()) {
			reason = deadletter.ReasonCircuitOpen
		}
		h.dlq.OnFinalFailure(ctx, json.RawMessage(m.Body), origin, failure, h.modelAttempts, reason)
		return nil
	}

	now := time.Now().UnixMilli()
	for _, r := range resp.Results {
		completion := CompletionEvent{
			ChunkID:     r.ChunkID,
			TenantID:    resp.TenantID,
			DocumentID:  resp.DocumentID,
			Status:      string(r.Status),
			Embedding:   r.Embedding,
			ModelName:   resp.ModelName,
			CompletedAt: now,
		}
		h.completions.PublishCompletion(ctx, completion, json.RawMessage(m.Body))
	}

	slog.InfoContext(ctx, "chunk processed", "chunk_id", ev.ChunkID, "status", resp.Status, "duration_ms", resp.ProcessingTimeMs)
	return nil
}

func firstResultError(resp *embedding.Response) string {
	for _, r := range resp.Results {
		if r.Status == embedding.ResultFailed && r.Error != "" {
			return r.Error
		}
	}
	return "all results failed"
}

package deadletter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"vektor/apps/embedder/internal/config"
	"vektor/apps/embedder/internal/metrics"
	"vektor/apps/embedder/internal/resilience"
)

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Store interface {
	Save(ctx context.Context, msg *Message) error
}

// Publisher performs final-failure handling: one dead-letter record plus one
// paired alert, both best-effort. It never retries its own publishes; a DLQ
// publish failure is logged as critical and dropped to avoid recursion.
type Publisher struct {
	pub   EventPublisher
	store Store
}

func NewPublisher(pub EventPublisher, store Store) *Publisher {
	return &Publisher{pub: pub, store: store}
}

// OnFinalFailure is called exactly once per message that exhausted all
// resilience paths.
func (p *Publisher) OnFinalFailure(ctx context.Context, original json.RawMessage, origin Origin, failure error, attempts int, reason string) {
	now := time.Now().UTC()
	errType := classify(failure)

	msg := &Message{
		DLQID:           uuid.New().String(),
		OriginalMessage: original,
		ErrorType:       errType,
		ErrorMessage:    failure.Error(),
		AttemptCount:    attempts,
		FailedAt:        now,
		FailureReason:   reason,
		ChunkID:         origin.ChunkID,
		TenantID:        origin.TenantID,
		DocumentID:      origin.DocumentID,
	}

	metrics.DeadLettersTotal.WithLabelValues(errType).Inc()
	slog.ErrorContext(ctx, "message dead-lettered",
		"dlq_id", msg.DLQID, "chunk_id", origin.ChunkID, "error_type", errType,
		"attempts", attempts, "reason", reason, "error", failure)

	if body, err := json.Marshal(msg); err != nil {
		slog.ErrorContext(ctx, "CRITICAL: failed to marshal dead-letter message", "dlq_id", msg.DLQID, "error", err)
	} else if err := p.pub.Publish(config.TopicEmbedDLQ, body); err != nil {
		slog.ErrorContext(ctx, "CRITICAL: failed to publish dead-letter message", "dlq_id", msg.DLQID, "error", err)
	}

	if p.store != nil {
		if err := p.store.Save(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "CRITICAL: failed to persist dead-letter record", "dlq_id", msg.DLQID, "error", err)
		}
	}

	alert := Alert{
		AlertID:    uuid.New().String(),
		AlertType:  "EMBEDDING_FAILURE",
		Message:    reason + ": " + failure.Error(),
		Severity:   severity(errType),
		TenantID:   origin.TenantID,
		DocumentID: origin.DocumentID,
		ChunkID:    origin.ChunkID,
		ErrorType:  errType,
		Timestamp:  now,
	}
	if body, err := json.Marshal(alert); err != nil {
		slog.ErrorContext(ctx, "failed to marshal alert", "alert_id", alert.AlertID, "error", err)
	} else if err := p.pub.Publish(config.TopicEmbedAlert, body); err != nil {
		slog.ErrorContext(ctx, "failed to publish alert", "alert_id", alert.AlertID, "error", err)
	}
}

func classify(err error) string {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "processing_error"
	}
}

func severity(errType string) string {
	if errType == "circuit_open" {
		return "critical"
	}
	return "error"
}

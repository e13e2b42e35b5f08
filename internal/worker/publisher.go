package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"vektor/apps/embedder/internal/config"
	"vektor/apps/embedder/internal/deadletter"
	"vektor/apps/embedder/internal/resilience"
)

// CompletionPublisher publishes completion events through its own resilience
// envelope. A publish that exhausts its budget is absorbed into the
// dead-letter path; the caller never sees the failure.
type CompletionPublisher struct {
	pub EventPublisher
	env *resilience.Envelope[struct{}]
	dlq FinalFailureSink
}

func NewCompletionPublisher(pub EventPublisher, env *resilience.Envelope[struct{}], dlq FinalFailureSink) *CompletionPublisher {
	return &CompletionPublisher{pub: pub, env: env, dlq: dlq}
}

func (p *CompletionPublisher) PublishCompletion(ctx context.Context, ev CompletionEvent, original json.RawMessage) {
	body, err := json.Marshal(ev)
	if err != nil {
		p.dlq.OnFinalFailure(ctx, original, originOf(ev), fmt.Errorf("marshal completion event: %w", err), 1, deadletter.ReasonPublishFailed)
		return
	}

	p.env.ExecuteWithFallback(ctx,
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, p.pub.Publish(config.TopicEmbedResult, body)
		},
		func(ctx context.Context, err error) {
			p.dlq.OnFinalFailure(ctx, original, originOf(ev), err, p.env.Attempts(), deadletter.ReasonPublishFailed)
		},
	)
}

func originOf(ev CompletionEvent) deadletter.Origin {
	return deadletter.Origin{
		ChunkID:    ev.ChunkID,
		TenantID:   ev.TenantID,
		DocumentID: ev.DocumentID,
	}
}

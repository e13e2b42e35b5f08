package worker

import (
	"context"
	"encoding/json"

	"vektor/apps/embedder/internal/deadletter"
	"vektor/apps/embedder/internal/embedding"
)

// Generator runs one embedding request. Satisfied by *embedding.Orchestrator.
type Generator interface {
	Generate(ctx context.Context, req embedding.Request) (*embedding.Response, error)
}

// EventPublisher publishes raw message bodies to a topic. Satisfied by
// *nsq.Producer.
type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// FinalFailureSink receives messages that exhausted every resilience path.
// Satisfied by *deadletter.Publisher.
type FinalFailureSink interface {
	OnFinalFailure(ctx context.Context, original json.RawMessage, origin deadletter.Origin, failure error, attempts int, reason string)
}

package worker_test

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"
	"vektor/apps/embedder/internal/deadletter"
	"vektor/apps/embedder/internal/embedding"
	"vektor/apps/embedder/internal/worker"
)

// Mocks

type MockGenerator struct{ mock.Mock }

func (m *MockGenerator) Generate(ctx context.Context, req embedding.Request) (*embedding.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*embedding.Response), args.Error(1)
}

type MockCompletions struct{ mock.Mock }

func (m *MockCompletions) PublishCompletion(ctx context.Context, ev worker.CompletionEvent, original json.RawMessage) {
	m.Called(ctx, ev, original)
}

type MockSink struct{ mock.Mock }

func (m *MockSink) OnFinalFailure(ctx context.Context, original json.RawMessage, origin deadletter.Origin, failure error, attempts int, reason string) {
	m.Called(ctx, original, origin, failure, attempts, reason)
}

type MockEventPublisher struct{ mock.Mock }

func (m *MockEventPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

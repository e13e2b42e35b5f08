package deadletter_test

import (
	"context"

	"github.com/stretchr/testify/mock"
	"vektor/apps/embedder/internal/deadletter"
)

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

type MockStore struct{ mock.Mock }

func (m *MockStore) Save(ctx context.Context, msg *deadletter.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type MockRepo struct{ mock.Mock }

func (m *MockRepo) Save(ctx context.Context, msg *deadletter.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockRepo) List(ctx context.Context, limit int) ([]deadletter.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]deadletter.Message), args.Error(1)
}

func (m *MockRepo) Get(ctx context.Context, dlqID string) (*deadletter.Message, error) {
	args := m.Called(ctx, dlqID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*deadletter.Message), args.Error(1)
}

func (m *MockRepo) MarkRequeued(ctx context.Context, dlqID string) error {
	args := m.Called(ctx, dlqID)
	return args.Error(0)
}

func (m *MockRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

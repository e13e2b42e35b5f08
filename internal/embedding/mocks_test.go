package embedding_test

import (
	"context"

	"github.com/stretchr/testify/mock"
	"vektor/apps/embedder/internal/embedding"
)

// Mocks

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

type MockCache struct{ mock.Mock }

func (m *MockCache) Get(ctx context.Context, tenantID, text, model string) ([]float32, bool, error) {
	args := m.Called(ctx, tenantID, text, model)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]float32), args.Bool(1), args.Error(2)
}

func (m *MockCache) Put(ctx context.Context, tenantID, text, model string, vector []float32) error {
	args := m.Called(ctx, tenantID, text, model, vector)
	return args.Error(0)
}

type MockVectorStore struct{ mock.Mock }

func (m *MockVectorStore) StoreMany(ctx context.Context, tenantID, documentID, model string, results []embedding.Result) error {
	args := m.Called(ctx, tenantID, documentID, model, results)
	return args.Error(0)
}

package embedding_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"vektor/apps/embedder/internal/config"
	"vektor/apps/embedder/internal/embedding"
)

const testModel = "gemini-embedding-001"

func newOrchestrator(e *MockEmbedder, c *MockCache, s *MockVectorStore, policy config.StoragePolicy) *embedding.Orchestrator {
	reg := embedding.NewRegistry(testModel)
	reg.Register(testModel, e)
	return embedding.NewOrchestrator(reg, c, s, policy)
}

func TestGenerate_CacheHitSkipsProvider(t *testing.T) {
	e := new(MockEmbedder)
	c := new(MockCache)
	s := new(MockVectorStore)
	o := newOrchestrator(e, c, s, config.StorageFailOpen)

	// "a" cached, "b" miss. Provider must be invoked exactly once with ["b"].
	c.On("Get", mock.Anything, "t1", "a", testModel).Return([]float32{0.1, 0.2}, true, nil)
	c.On("Get", mock.Anything, "t1", "b", testModel).Return(nil, false, nil)
	e.On("EmbedBatch", mock.Anything, []string{"b"}).Return([][]float32{{0.3, 0.4}}, nil).Once()
	c.On("Put", mock.Anything, "t1", "b", testModel, []float32{0.3, 0.4}).Return(nil)
	s.On("StoreMany", mock.Anything, "t1", "d1", testModel, mock.Anything).Return(nil)

	resp, err := o.Generate(context.Background(), embedding.Request{
		TenantID:   "t1",
		DocumentID: "d1",
		ChunkIDs:   []string{"c1", "c2"},
		Texts:      []string{"a", "b"},
	})
	require.NoError(t, err)

	assert.Equal(t, embedding.StatusSuccess, resp.Status)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "c1", resp.Results[0].ChunkID)
	assert.Equal(t, []float32{0.1, 0.2}, resp.Results[0].Embedding)
	assert.Equal(t, "c2", resp.Results[1].ChunkID)
	assert.Equal(t, []float32{0.3, 0.4}, resp.Results[1].Embedding)
	assert.Equal(t, 2, resp.Dimension)
	e.AssertExpectations(t)
}

func TestGenerate_AllCachedNeverInvokesProvider(t *testing.T) {
	e := new(MockEmbedder)
	c := new(MockCache)
	s := new(MockVectorStore)
	o := newOrchestrator(e, c, s, config.StorageFailOpen)

	c.On("Get", mock.Anything, "t1", "a", testModel).Return([]float32{1}, true, nil)
	s.On("StoreMany", mock.Anything, "t1", "d1", testModel, mock.Anything).Return(nil)

	resp, err := o.Generate(context.Background(), embedding.Request{
		TenantID: "t1", DocumentID: "d1", Texts: []string{"a"},
	})
	require.NoError(t, err)
	assert.Equal(t, embedding.StatusSuccess, resp.Status)
	e.AssertNotCalled(t, "EmbedBatch", mock.Anything, mock.Anything)
}

func TestGenerate_ProviderFailureMarksAllMisses(t *testing.T) {
	e := new(MockEmbedder)
	c := new(MockCache)
	s := new(MockVectorStore)
	o := newOrchestrator(e, c, s, config.StorageFailOpen)

	c.On("Get", mock.Anything, "t1", "a", testModel).Return([]float32{1}, true, nil)
	c.On("Get", mock.Anything, "t1", "b", testModel).Return(nil, false, nil)
	c.On("Get", mock.Anything, "t1", "c", testModel).Return(nil, false, nil)
	e.On("EmbedBatch", mock.Anything, []string{"b", "c"}).Return(nil, errors.New("provider down"))
	s.On("StoreMany", mock.Anything, "t1", "d1", testModel, mock.Anything).Return(nil)

	resp, err := o.Generate(context.Background(), embedding.Request{
		TenantID: "t1", DocumentID: "d1", Texts: []string{"a", "b", "c"},
	})
	require.NoError(t, err)

	assert.Equal(t, embedding.StatusPartial, resp.Status)
	assert.Equal(t, embedding.ResultSuccess, resp.Results[0].Status)
	assert.Equal(t, embedding.ResultFailed, resp.Results[1].Status)
	assert.Equal(t, "provider down", resp.Results[1].Error)
	assert.Equal(t, embedding.ResultFailed, resp.Results[2].Status)
	assert.Nil(t, resp.Results[1].Embedding)
}

func TestGenerate_AllFailedIsFailure(t *testing.T) {
	e := new(MockEmbedder)
	c := new(MockCache)
	s := new(MockVectorStore)
	o := newOrchestrator(e, c, s, config.StorageFailOpen)

	c.On("Get", mock.Anything, "t1", "a", testModel).Return(nil, false, nil)
	e.On("EmbedBatch", mock.Anything, []string{"a"}).Return(nil, errors.New("boom"))

	resp, err := o.Generate(context.Background(), embedding.Request{TenantID: "t1", Texts: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, embedding.StatusFailure, resp.Status)
	// Nothing succeeded, so nothing must be written.
	s.AssertNotCalled(t, "StoreMany", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerate_EmptyTextsVacuousSuccess(t *testing.T) {
	e := new(MockEmbedder)
	c := new(MockCache)
	s := new(MockVectorStore)
	o := newOrchestrator(e, c, s, config.StorageFailOpen)

	resp, err := o.Generate(context.Background(), embedding.Request{TenantID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, embedding.StatusSuccess, resp.Status)
	assert.Empty(t, resp.Results)
	assert.Equal(t, 0, resp.Dimension)
}

func TestGenerate_ChunkIDMismatchRejected(t *testing.T) {
	e := new(MockEmbedder)
	c := new(MockCache)
	s := new(MockVectorStore)
	o := newOrchestrator(e, c, s, config.StorageFailOpen)

	_, err := o.Generate(context.Background(), embedding.Request{
		TenantID: "t1", ChunkIDs: []string{"c1"}, Texts: []string{"a", "b"},
	})
	assert.Error(t, err)
}

func TestGenerate_UnknownModelFallsBackToDefault(t *testing.T) {
	e := new(MockEmbedder)
	c := new(MockCache)
	s := new(MockVectorStore)
	o := newOrchestrator(e, c, s, config.StorageFailOpen)

	c.On("Get", mock.Anything, "t1", "a", testModel).Return(nil, false, nil)
	e.On("EmbedBatch", mock.Anything, []string{"a"}).Return([][]float32{{1}}, nil)
	c.On("Put", mock.Anything, "t1", "a", testModel, []float32{1}).Return(nil)
	s.On("StoreMany", mock.Anything, "t1", "", testModel, mock.Anything).Return(nil)

	resp, err := o.Generate(context.Background(), embedding.Request{
		TenantID: "t1", Texts: []string{"a"}, ModelName: "no-such-model",
	})
	require.NoError(t, err)
	assert.Equal(t, testModel, resp.ModelName)
}

func TestGenerate_DuplicateTextsLookedUpIndependently(t *testing.T) {
	e := new(MockEmbedder)
	c := new(MockCache)
	s := new(MockVectorStore)
	o := newOrchestrator(e, c, s, config.StorageFailOpen)

	c.On("Get", mock.Anything, "t1", "a", testModel).Return([]float32{1}, true, nil).Twice()
	s.On("StoreMany", mock.Anything, "t1", "", testModel, mock.Anything).Return(nil)

	resp, err := o.Generate(context.Background(), embedding.Request{
		TenantID: "t1", Texts: []string{"a", "a"},
	})
	require.NoError(t, err)
	assert.Equal(t, embedding.StatusSuccess, resp.Status)
	c.AssertNumberOfCalls(t, "Get", 2)
}

func TestGenerate_StorageFailOpenKeepsStatus(t *testing.T) {
	e := new(MockEmbedder)
	c := new(MockCache)
	s := new(MockVectorStore)
	o := newOrchestrator(e, c, s, config.StorageFailOpen)

	c.On("Get", mock.Anything, "t1", "a", testModel).Return([]float32{1}, true, nil)
	s.On("StoreMany", mock.Anything, "t1", "", testModel, mock.Anything).Return(errors.New("weaviate down"))

	resp, err := o.Generate(context.Background(), embedding.Request{TenantID: "t1", Texts: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, embedding.StatusSuccess, resp.Status)
}

func TestGenerate_StorageFailClosedDowngrades(t *testing.T) {
	e := new(MockEmbedder)
	c := new(MockCache)
	s := new(MockVectorStore)
	o := newOrchestrator(e, c, s, config.StorageFailClosed)

	c.On("Get", mock.Anything, "t1", "a", testModel).Return([]float32{1}, true, nil)
	s.On("StoreMany", mock.Anything, "t1", "", testModel, mock.Anything).Return(errors.New("weaviate down"))

	resp, err := o.Generate(context.Background(), embedding.Request{TenantID: "t1", Texts: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, embedding.StatusFailure, resp.Status)
	assert.Contains(t, resp.Results[0].Error, "vector store write failed")
	assert.Nil(t, resp.Results[0].Embedding)
}

func TestGenerate_CacheErrorTreatedAsMiss(t *testing.T) {
	e := new(MockEmbedder)
	c := new(MockCache)
	s := new(MockVectorStore)
	o := newOrchestrator(e, c, s, config.StorageFailOpen)

	c.On("Get", mock.Anything, "t1", "a", testModel).Return(nil, false, errors.New("redis timeout"))
	e.On("EmbedBatch", mock.Anything, []string{"a"}).Return([][]float32{{1, 2}}, nil)
	c.On("Put", mock.Anything, "t1", "a", testModel, []float32{1, 2}).Return(nil)
	s.On("StoreMany", mock.Anything, "t1", "", testModel, mock.Anything).Return(nil)

	resp, err := o.Generate(context.Background(), embedding.Request{TenantID: "t1", Texts: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, embedding.StatusSuccess, resp.Status)
}

func TestDeriveStatus(t *testing.T) {
	ok := embedding.Result{Status: embedding.ResultSuccess}
	bad := embedding.Result{Status: embedding.ResultFailed}

	assert.Equal(t, embedding.StatusSuccess, embedding.DeriveStatus(nil))
	assert.Equal(t, embedding.StatusSuccess, embedding.DeriveStatus([]embedding.Result{ok, ok}))
	assert.Equal(t, embedding.StatusFailure, embedding.DeriveStatus([]embedding.Result{bad}))
	assert.Equal(t, embedding.StatusPartial, embedding.DeriveStatus([]embedding.Result{ok, bad}))
}

package weaviate

import (
	"context"
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"

	"vektor/apps/embedder/internal/embedding"
)

const ClassName = "ChunkEmbedding"

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

// StoreMany writes all results in one batch. Object ids are derived from
// (tenant, chunk, model), so writing the same chunk twice overwrites in place
// rather than appending, and redelivered messages leave the store unchanged.
func (s *Store) StoreMany(ctx context.Context, tenantID, documentID, model string, results []embedding.Result) error {
	if len(results) == 0 {
		return nil
	}

	objects := make([]*models.Object, 0, len(results))
	for _, r := range results {
		objects = append(objects, &models.Object{
			Class: ClassName,
			ID:    strfmt.UUID(ObjectID(tenantID, r.ChunkID, model).String()),
			Properties: map[string]interface{}{
				"content":    r.Text,
				"tenantId":   tenantID,
				"documentId": documentID,
				"chunkId":    r.ChunkID,
				"modelName":  model,
			},
			Vector: models.C11yVector(r.Embedding),
		})
	}

	resp, err := s.client.Batch().ObjectsBatcher().
		WithObjects(objects...).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("batch store: %w", err)
	}

	for _, obj := range resp {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch store object %s: %s", obj.ID, obj.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// DeleteByDocument removes every stored vector for one document, used when a
// document is re-chunked upstream.
func (s *Store) DeleteByDocument(ctx context.Context, tenantID, documentID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(ClassName).
		WithOutput("minimal").
		WithWhere(whereTenantDocument(tenantID, documentID)).
		Do(ctx)
	return err
}

// ObjectID derives the deterministic UUID used as the upsert key.
func ObjectID(tenantID, chunkID, model string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(tenantID+"|"+chunkID+"|"+model))
}

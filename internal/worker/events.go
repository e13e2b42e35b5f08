package worker

// GenerationRequestEvent is the inbound per-chunk embedding request.
type GenerationRequestEvent struct {
	ChunkID    string `json:"chunkId"`
	Content    string `json:"content"`
	TenantID   string `json:"tenantId"`
	DocumentID string `json:"documentId"`

	ModelName     string `json:"modelName,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// CompletionEvent is published to downstream consumers once a chunk has been
// processed. Embedding is null when the chunk failed.
type CompletionEvent struct {
	ChunkID     string    `json:"chunkId"`
	TenantID    string    `json:"tenantId"`
	DocumentID  string    `json:"documentId"`
	Status      string    `json:"status"` // SUCCESS | FAILED
	Embedding   []float32 `json:"embedding"`
	ModelName   string    `json:"modelName"`
	CompletedAt int64     `json:"completedAt"` // epoch millis
}

package deadletter

import (
	"encoding/json"
	"time"
)

// Failure reasons recorded on dead-letter messages.
const (
	ReasonMaxRetriesExceeded = "max retries exceeded"
	ReasonCircuitOpen        = "circuit breaker open"
	ReasonMalformedMessage   = "malformed message"
	ReasonPublishFailed      = "result publish failed"
)

// Message is the write-once dead-letter record for a message that exhausted
// all resilience paths.
type Message struct {
	DLQID           string          `json:"dlq_id"`
	OriginalMessage json.RawMessage `json:"original_message"`
	ErrorType       string          `json:"error_type"`
	ErrorMessage    string          `json:"error_message"`
	AttemptCount    int             `json:"attempt_count"`
	FailedAt        time.Time       `json:"failed_at"`
	FailureReason   string          `json:"failure_reason"`

	// Identifiers recovered from the original message; empty when the
	// message could not be parsed.
	ChunkID    string `json:"chunk_id,omitempty"`
	TenantID   string `json:"tenant_id,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
}

// Alert is the operator-facing record paired 1:1 with each dead-letter message.
type Alert struct {
	AlertID    string    `json:"alert_id"`
	AlertType  string    `json:"alert_type"`
	Message    string    `json:"message"`
	Severity   string    `json:"severity"`
	TenantID   string    `json:"tenant_id,omitempty"`
	DocumentID string    `json:"document_id,omitempty"`
	ChunkID    string    `json:"chunk_id,omitempty"`
	ErrorType  string    `json:"error_type"`
	Timestamp  time.Time `json:"timestamp"`
}

// Origin identifies where a failed message came from, as far as it could be
// recovered.
type Origin struct {
	ChunkID    string
	TenantID   string
	DocumentID string
}

package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"vektor/apps/embedder/internal/deadletter"
	"vektor/apps/embedder/internal/embedding"
	"vektor/apps/embedder/internal/metrics"
	"vektor/apps/embedder/internal/middleware"
)

// submitEmbedding accepts a direct request, hands it to the batch
// coordinator, and waits for the batch containing it to complete.
func (a *App) submitEmbedding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	var req embedding.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ctx, "INVALID_REQUEST", "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, ctx, "INVALID_REQUEST", err.Error(), http.StatusBadRequest)
		return
	}

	handle, err := a.Coordinator.Submit(ctx, req)
	if err != nil {
		writeError(w, ctx, "UNAVAILABLE", "Service is shutting down", http.StatusServiceUnavailable)
		return
	}

	resp, err := handle.Await(ctx)
	if err != nil {
		// The item stays queued and will be swept; the caller just stopped
		// waiting for it.
		writeError(w, ctx, "TIMEOUT", "Request canceled while awaiting batch", http.StatusGatewayTimeout)
		return
	}

	metrics.RequestsTotal.WithLabelValues("http", string(resp.Status)).Inc()
	slog.InfoContext(ctx, "embedding request served",
		"tenant_id", req.TenantID,
		"status", resp.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	status := http.StatusOK
	if resp.Status == embedding.StatusFailure {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, resp)
}

func (a *App) statsHandler(dlq *deadletter.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		processed, failed, pending := a.Coordinator.Stats()

		deadLetters, err := dlq.Count(r.Context())
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to count dead letters", "error", err)
			deadLetters = -1
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"processed_count": processed,
			"failed_count":    failed,
			"pending_count":   pending,
			"dead_letters":    deadLetters,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, ctx context.Context, code, message string, status int) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	})
}

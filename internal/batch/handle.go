package batch

import (
	"context"
	"sync"

	"vektor/apps/embedder/internal/embedding"
)

// Handle resolves asynchronously to the response for one submitted request.
// It is resolved exactly once; the coordinator never leaves a handle pending.
type Handle struct {
	once sync.Once
	ch   chan *embedding.Response
}

func newHandle() *Handle {
	return &Handle{ch: make(chan *embedding.Response, 1)}
}

func (h *Handle) resolve(resp *embedding.Response) {
	h.once.Do(func() {
		h.ch <- resp
		close(h.ch)
	})
}

// Await blocks until the request resolves or ctx is done.
func (h *Handle) Await(ctx context.Context) (*embedding.Response, error) {
	select {
	case resp := <-h.ch:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done exposes the resolution channel for select-based callers.
func (h *Handle) Done() <-chan *embedding.Response {
	return h.ch
}

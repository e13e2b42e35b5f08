package embedding

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var ErrUnknownModel = errors.New("unknown embedding model")

// Registry maps model names to provider clients. An unavailable model name
// resolves to the configured default instead of failing the request.
type Registry struct {
	mu           sync.RWMutex
	providers    map[string]Embedder
	defaultModel string
}

func NewRegistry(defaultModel string) *Registry {
	return &Registry{
		providers:    make(map[string]Embedder),
		defaultModel: defaultModel,
	}
}

func (r *Registry) Register(model string, e Embedder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[model] = e
}

func (r *Registry) DefaultModel() string {
	return r.defaultModel
}

// Resolve returns the concrete model name and its provider. An empty or
// unregistered name falls back to the default model; if the default itself is
// unregistered, the request cannot proceed.
func (r *Registry) Resolve(model string) (string, Embedder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if model != "" {
		if e, ok := r.providers[model]; ok {
			return model, e, nil
		}
		slog.Warn("requested model unavailable, falling back to default", "requested", model, "default", r.defaultModel)
	}

	if e, ok := r.providers[r.defaultModel]; ok {
		return r.defaultModel, e, nil
	}
	return "", nil, fmt.Errorf("%w: %q (default %q not registered)", ErrUnknownModel, model, r.defaultModel)
}

package registry

import (
	"context"
	"fmt"
	"sync"

	"pvqc/domain/core"
	"pvqc/domain/protocol"
	"pvqc/internal"
	"pvqc/internal/errors"
	"pvqc/ports"
)

// Registry loads, validates and caches protocol definitions. It is the sole
// source of per-protocol rules for the pipeline. Cached definitions are
// shared and must never be mutated by callers.
type Registry struct {
	source ports.ProtocolSource
	logger *internal.Logger

	mu    sync.RWMutex
	cache map[string]*protocol.Definition
}

// New creates a registry over a definition source
func New(source ports.ProtocolSource) *Registry {
	return &Registry{
		source: source,
		logger: internal.DefaultLogger.Prefixed("registry"),
		cache:  make(map[string]*protocol.Definition),
	}
}

// Load fetches and validates a definition, then caches it. Loading an
// already-cached key returns the cached value unchanged. A structurally
// invalid document is a fatal configuration error naming the offending
// element; nothing is cached for it.
func (r *Registry) Load(ctx context.Context, id core.ProtocolID, version string) (*protocol.Definition, error) {
	key := cacheKey(id, version)

	r.mu.RLock()
	if def, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return def, nil
	}
	r.mu.RUnlock()

	def, err := r.source.Fetch(ctx, id, version)
	if err != nil {
		if core.IsNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", core.ErrProtocolNotFound, key)
		}
		return nil, errors.Wrapf(err, "fetching protocol definition %s", key)
	}

	if err := def.Validate(); err != nil {
		return nil, errors.ConfigurationError(key, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another loader may have won the race; keep the first cached value so
	// repeated calls return the same logical definition.
	if cached, ok := r.cache[key]; ok {
		return cached, nil
	}
	r.cache[key] = def
	r.logger.Info("Loaded protocol %s (category=%s, criteria=%d)", key, def.Category, len(def.Criteria))
	return def, nil
}

// Get returns a cached definition, loading it on first use
func (r *Registry) Get(ctx context.Context, id core.ProtocolID, version string) (*protocol.Definition, error) {
	r.mu.RLock()
	if def, ok := r.cache[cacheKey(id, version)]; ok {
		r.mu.RUnlock()
		return def, nil
	}
	r.mu.RUnlock()
	return r.Load(ctx, id, version)
}

// Preload validates and caches every definition the source offers. Used at
// startup so configuration faults surface before any run is touched.
func (r *Registry) Preload(ctx context.Context) error {
	defs, err := r.source.List(ctx)
	if err != nil {
		return errors.Wrap(err, "listing protocol definitions")
	}
	for _, def := range defs {
		key := cacheKey(def.ProtocolID, def.Version)
		if err := def.Validate(); err != nil {
			return errors.ConfigurationError(key, err)
		}
		r.mu.Lock()
		if _, ok := r.cache[key]; !ok {
			r.cache[key] = def
		}
		r.mu.Unlock()
	}
	r.logger.Info("Preloaded %d protocol definitions", len(defs))
	return nil
}

// Loaded reports whether a definition is cached
func (r *Registry) Loaded(id core.ProtocolID, version string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.cache[cacheKey(id, version)]
	return ok
}

func cacheKey(id core.ProtocolID, version string) string {
	return id.String() + "@" + version
}

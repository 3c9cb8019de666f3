// Package warehouse resolves and validates warehouse identifiers against
// the upstream warehouse listing, cached with its own TTL.
package warehouse

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"catalogbridge/pkg/cache"
	"catalogbridge/pkg/upstream"
)

const cacheKey = "almacenes_all"

// Gateway is the slice of the upstream client this service needs.
type Gateway interface {
	FetchWarehouses(ctx context.Context) ([]upstream.Warehouse, error)
}

// Service lists warehouses and validates ids supplied by callers.
type Service struct {
	gw    Gateway
	cache *cache.Cache
	log   zerolog.Logger
}

// New creates a Service caching the warehouse list in store.
func New(gw Gateway, store *cache.Cache, log zerolog.Logger) *Service {
	return &Service{gw: gw, cache: store, log: log}
}

// List returns the warehouse listing, served from cache when fresh.
func (s *Service) List(ctx context.Context) ([]upstream.Warehouse, error) {
	if v, ok := s.cache.Get(cacheKey); ok {
		return v.([]upstream.Warehouse), nil
	}

	warehouses, err := s.gw.FetchWarehouses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list warehouses: %w", err)
	}
	if len(warehouses) > 0 {
		s.cache.Set(cacheKey, warehouses)
	}
	return warehouses, nil
}

// Validate reports whether id names a known warehouse, returning its name
// when it does. Lookup failures count as unknown rather than letting an
// unverified id through.
func (s *Service) Validate(ctx context.Context, id int) (string, bool) {
	if id <= 0 {
		return "", false
	}

	warehouses, err := s.List(ctx)
	if err != nil {
		s.log.Warn().Err(err).Int("almacenesid", id).Msg("warehouse validation failed, treating as unknown")
		return "", false
	}

	for _, w := range warehouses {
		if w.ID == id {
			name := w.Description
			if name == "" {
				name = fmt.Sprintf("warehouse %d", id)
			}
			return name, true
		}
	}
	return "", false
}

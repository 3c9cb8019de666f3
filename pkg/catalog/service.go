// Package catalog implements the aggregation service: the façade driving
// category resolution, warehouse validation, the hydration pipeline and the
// grouping engine, with TTL caches short-circuiting repeat queries.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"catalogbridge/pkg/cache"
	"catalogbridge/pkg/grouping"
	"catalogbridge/pkg/product"
	"catalogbridge/pkg/upstream"
)

// Cache keys. The full category list is shared between the listing endpoint
// and category-by-name resolution; it is deliberately a single key.
const (
	keyCategoriesAll    = "categorias_all"
	keyCategoriesSimple = "categorias_list_simple"
	productKeyPrefix    = "productos_categoria_"
)

// Gateway is the slice of the upstream client the façade drives directly.
type Gateway interface {
	FetchCategories(ctx context.Context) ([]upstream.Category, error)
	FetchProductsByCategory(ctx context.Context, categoryID int) ([]product.Raw, error)
}

// Hydrator enriches raw products with images and stock.
type Hydrator interface {
	Hydrate(ctx context.Context, products []product.Raw, warehouseID int) []product.Hydrated
}

// WarehouseValidator checks a warehouse id against the live warehouse list.
type WarehouseValidator interface {
	Validate(ctx context.Context, id int) (string, bool)
}

// CategorySummary is the simplified category projection.
type CategorySummary struct {
	ID   int    `json:"id"`
	Name string `json:"nombre"`
}

// CategoriesListResult is the simplified category listing payload.
type CategoriesListResult struct {
	Success    bool              `json:"success"`
	Total      int               `json:"total"`
	Categories []CategorySummary `json:"categorias"`

	Fingerprint uint64 `json:"-"`
}

// CategoriesFullResult is the complete category listing payload.
type CategoriesFullResult struct {
	Success bool                `json:"success"`
	Data    []upstream.Category `json:"data"`

	Fingerprint uint64 `json:"-"`
}

// AggregationResult is the consolidated payload for one category query.
type AggregationResult struct {
	Success         bool             `json:"success"`
	CategoryQueried int              `json:"categoria_consultada"`
	TotalGroups     int              `json:"total_grupos"`
	Items           []*product.Group `json:"items"`

	Fingerprint uint64 `json:"-"`
}

// CacheStats mirrors the stats of both caches for introspection.
type CacheStats struct {
	Categories CacheBucketStats `json:"categorias"`
	Products   CacheBucketStats `json:"productos"`
}

// CacheBucketStats is the stats of one cache, TTL in seconds.
type CacheBucketStats struct {
	Keys   int    `json:"keys"`
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	TTL    int    `json:"ttl"`
}

// Service is the aggregation façade. Both caches are injected; their
// lifecycle belongs to the process entry point.
type Service struct {
	gw               Gateway
	hydrator         Hydrator
	warehouses       WarehouseValidator
	categories       *cache.Cache
	products         *cache.Cache
	defaultWarehouse int
	log              zerolog.Logger
}

// New creates the aggregation service.
func New(gw Gateway, hydrator Hydrator, warehouses WarehouseValidator, categories, products *cache.Cache, defaultWarehouse int, log zerolog.Logger) *Service {
	return &Service{
		gw:               gw,
		hydrator:         hydrator,
		warehouses:       warehouses,
		categories:       categories,
		products:         products,
		defaultWarehouse: defaultWarehouse,
		log:              log,
	}
}

// CategoriesFull returns the complete upstream category listing, cached.
func (s *Service) CategoriesFull(ctx context.Context) (*CategoriesFullResult, error) {
	if e, ok := s.categories.GetEntry(keyCategoriesAll); ok {
		return e.Value.(*CategoriesFullResult), nil
	}

	cats, err := s.gw.FetchCategories(ctx)
	if err != nil {
		return nil, s.mapUpstreamErr(err, "fetch categories")
	}
	if len(cats) == 0 {
		return nil, fmt.Errorf("%w: no categories in upstream", ErrNotFound)
	}

	res := &CategoriesFullResult{Success: true, Data: cats}
	res.Fingerprint = s.categories.Set(keyCategoriesAll, res)
	return res, nil
}

// CategoriesSimple returns the id/name projection of the category listing,
// cached under its own key.
func (s *Service) CategoriesSimple(ctx context.Context) (*CategoriesListResult, error) {
	if e, ok := s.categories.GetEntry(keyCategoriesSimple); ok {
		return e.Value.(*CategoriesListResult), nil
	}

	full, err := s.CategoriesFull(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]CategorySummary, 0, len(full.Data))
	for _, cat := range full.Data {
		summaries = append(summaries, CategorySummary{ID: cat.ID, Name: cat.Description})
	}

	res := &CategoriesListResult{Success: true, Total: len(summaries), Categories: summaries}
	res.Fingerprint = s.categories.Set(keyCategoriesSimple, res)
	return res, nil
}

// ResolveCategory accepts either a positive numeric id or a category name.
// Names resolve by trimmed, case-insensitive exact match against the cached
// category list.
func (s *Service) ResolveCategory(ctx context.Context, param string) (int, error) {
	param = strings.TrimSpace(param)
	if param == "" {
		return 0, fmt.Errorf("%w: category identifier is required", ErrInvalidInput)
	}

	if id, err := strconv.Atoi(param); err == nil {
		if id <= 0 {
			return 0, fmt.Errorf("%w: category id must be positive", ErrInvalidInput)
		}
		return id, nil
	}

	full, err := s.CategoriesFull(ctx)
	if err != nil {
		return 0, err
	}

	wanted := strings.ToLower(param)
	for _, cat := range full.Data {
		if strings.ToLower(strings.TrimSpace(cat.Description)) == wanted {
			s.log.Info().Str("categoria", param).Int("categoriasid", cat.ID).Msg("category resolved by name")
			return cat.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: category %q", ErrNotFound, param)
}

// ProductsByCategory runs the full aggregation for one category: resolve,
// validate the warehouse before any product fetch, consult the cache, then
// fetch, hydrate, group and cache the result. warehouseID zero selects the
// configured default.
func (s *Service) ProductsByCategory(ctx context.Context, categoryParam string, warehouseID int) (*AggregationResult, error) {
	categoryID, err := s.ResolveCategory(ctx, categoryParam)
	if err != nil {
		return nil, err
	}

	if warehouseID == 0 {
		warehouseID = s.defaultWarehouse
	}
	if warehouseID <= 0 {
		return nil, fmt.Errorf("%w: warehouse id must be a positive integer", ErrInvalidInput)
	}
	name, ok := s.warehouses.Validate(ctx, warehouseID)
	if !ok {
		return nil, fmt.Errorf("%w: warehouse %d is not known", ErrNotFound, warehouseID)
	}

	key := productKeyPrefix + strconv.Itoa(categoryID)
	if e, ok := s.products.GetEntry(key); ok {
		s.log.Info().Int("categoriasid", categoryID).Msg("aggregation served from cache")
		return e.Value.(*AggregationResult), nil
	}

	start := time.Now()
	s.log.Info().
		Int("categoriasid", categoryID).
		Int("almacenesid", warehouseID).
		Str("almacen", name).
		Msg("building aggregation")

	raw, err := s.gw.FetchProductsByCategory(ctx, categoryID)
	if err != nil {
		return nil, s.mapUpstreamErr(err, "fetch products")
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no products in category %d", ErrNotFound, categoryID)
	}

	hydrated := s.hydrator.Hydrate(ctx, raw, warehouseID)
	groups := grouping.Group(hydrated)

	res := &AggregationResult{
		Success:         true,
		CategoryQueried: categoryID,
		TotalGroups:     len(groups),
		Items:           groups,
	}
	res.Fingerprint = s.products.Set(key, res)

	s.log.Info().
		Int("categoriasid", categoryID).
		Int("products", len(raw)).
		Int("groups", len(groups)).
		Dur("elapsed", time.Since(start)).
		Msg("aggregation built and cached")

	return res, nil
}

// Stats reports both caches for the introspection endpoint.
func (s *Service) Stats() CacheStats {
	cs := s.categories.Stats()
	ps := s.products.Stats()
	return CacheStats{
		Categories: CacheBucketStats{
			Keys:   cs.Keys,
			Hits:   cs.Hits,
			Misses: cs.Misses,
			TTL:    int(s.categories.TTL().Seconds()),
		},
		Products: CacheBucketStats{
			Keys:   ps.Keys,
			Hits:   ps.Hits,
			Misses: ps.Misses,
			TTL:    int(s.products.TTL().Seconds()),
		},
	}
}

// FlushCaches empties both caches.
func (s *Service) FlushCaches() {
	s.categories.FlushAll()
	s.products.FlushAll()
}

// mapUpstreamErr folds gateway errors into the service taxonomy.
func (s *Service) mapUpstreamErr(err error, op string) error {
	var se *upstream.StatusError
	if errors.As(err, &se) {
		return &UpstreamRejectedError{Status: se.Status, Body: se.Body}
	}
	if errors.Is(err, upstream.ErrUnavailable) {
		return fmt.Errorf("%w: %s", ErrUpstreamUnavailable, op)
	}
	return fmt.Errorf("%s: %w", op, err)
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"catalogbridge/pkg/catalog"
	"catalogbridge/pkg/config"
	"catalogbridge/pkg/httpx"
	"catalogbridge/pkg/warehouse"
)

var startTime = time.Now()

// etag formats a cache fingerprint as a strong ETag value.
func etag(fp uint64) string {
	return fmt.Sprintf("%q", "xx-"+strconv.FormatUint(fp, 16))
}

// writeWithETag sets the ETag from the payload fingerprint and honors
// If-None-Match revalidation before writing the full payload.
func writeWithETag(w http.ResponseWriter, r *http.Request, fp uint64, payload any) {
	if fp != 0 {
		tag := etag(fp)
		w.Header().Set("ETag", tag)
		if r.Header.Get("If-None-Match") == tag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	httpx.RespondJSON(w, http.StatusOK, payload)
}

// respondServiceError maps the service error taxonomy to HTTP statuses and
// stable machine codes. Internal detail leaks only in dev mode.
func respondServiceError(w http.ResponseWriter, log zerolog.Logger, devMode bool, err error) {
	var rejected *catalog.UpstreamRejectedError

	switch {
	case errors.Is(err, catalog.ErrInvalidInput):
		httpx.RespondError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		httpx.RespondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, catalog.ErrUpstreamUnavailable):
		httpx.RespondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE",
			"could not reach the upstream catalog service")
	case errors.As(err, &rejected):
		status := rejected.Status
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		var details any
		if len(rejected.Body) > 0 {
			details = json.RawMessage(rejected.Body)
		}
		httpx.RespondErrorDetails(w, status, "UPSTREAM_REJECTED",
			"the upstream catalog service rejected the request", details)
	default:
		log.Error().Err(err).Msg("request failed with internal error")
		message := "internal server error"
		if devMode {
			message = err.Error()
		}
		httpx.RespondError(w, http.StatusInternalServerError, "INTERNAL", message)
	}
}

// handleProducts serves GET /api/productos/{id}: the aggregation endpoint.
// {id} is a category id or name; ?almacen= overrides the default warehouse.
func handleProducts(svc *catalog.Service, devMode bool, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categoryParam := mux.Vars(r)["id"]

		warehouseID := 0
		if v := r.URL.Query().Get("almacen"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				httpx.RespondError(w, http.StatusBadRequest, "INVALID_INPUT",
					"almacen must be a positive integer")
				return
			}
			warehouseID = n
		}

		res, err := svc.ProductsByCategory(r.Context(), categoryParam, warehouseID)
		if err != nil {
			respondServiceError(w, log, devMode, err)
			return
		}
		writeWithETag(w, r, res.Fingerprint, res)
	}
}

// handleCategoriesList serves POST /api/categorias/list: the simplified
// id/name projection.
func handleCategoriesList(svc *catalog.Service, devMode bool, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.CategoriesSimple(r.Context())
		if err != nil {
			respondServiceError(w, log, devMode, err)
			return
		}
		writeWithETag(w, r, res.Fingerprint, res)
	}
}

// handleCategories serves POST /api/categorias: the full upstream listing.
func handleCategories(svc *catalog.Service, devMode bool, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.CategoriesFull(r.Context())
		if err != nil {
			respondServiceError(w, log, devMode, err)
			return
		}
		writeWithETag(w, r, res.Fingerprint, res)
	}
}

// warehouseEntry is one row of the warehouse listing response.
type warehouseEntry struct {
	ID   int    `json:"id"`
	Name string `json:"nombre"`
}

// warehousesResponse is the POST /api/almacenes payload.
type warehousesResponse struct {
	Success    bool             `json:"success"`
	Total      int              `json:"total"`
	Warehouses []warehouseEntry `json:"almacenes"`
}

// handleWarehouses serves POST /api/almacenes.
func handleWarehouses(svc *warehouse.Service, devMode bool, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		warehouses, err := svc.List(r.Context())
		if err != nil {
			httpx.RespondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE",
				"could not reach the upstream catalog service")
			if devMode {
				log.Error().Err(err).Msg("warehouse listing failed")
			}
			return
		}
		if len(warehouses) == 0 {
			httpx.RespondError(w, http.StatusNotFound, "NOT_FOUND", "no warehouses found")
			return
		}

		entries := make([]warehouseEntry, 0, len(warehouses))
		for _, wh := range warehouses {
			entries = append(entries, warehouseEntry{ID: wh.ID, Name: wh.Description})
		}
		httpx.RespondJSON(w, http.StatusOK, warehousesResponse{
			Success:    true,
			Total:      len(entries),
			Warehouses: entries,
		})
	}
}

// cacheStatsResponse is the GET /api/cache/stats payload.
type cacheStatsResponse struct {
	Success    bool                     `json:"success"`
	Categories catalog.CacheBucketStats `json:"categorias"`
	Products   catalog.CacheBucketStats `json:"productos"`
}

// handleCacheStats serves GET /api/cache/stats.
func handleCacheStats(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := svc.Stats()
		httpx.RespondJSON(w, http.StatusOK, cacheStatsResponse{
			Success:    true,
			Categories: stats.Categories,
			Products:   stats.Products,
		})
	}
}

// handleCacheClear serves DELETE /api/cache/clear.
func handleCacheClear(svc *catalog.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc.FlushCaches()
		log.Info().Msg("caches flushed by request")
		httpx.RespondJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "cache cleared",
		})
	}
}

// healthConfig is the configuration echo in the health payload. Secrets are
// reported as booleans only.
type healthConfig struct {
	APIKeyConfigured         bool   `json:"apiKeyConfigured"`
	APIBaseURLConfigured     bool   `json:"apiBaseUrlConfigured"`
	APIBaseURL               string `json:"apiBaseUrl"`
	MaxConcurrentRequests    int    `json:"maxConcurrentRequests"`
	MaxConcurrentCompression int    `json:"maxConcurrentCompression"`
	CacheEnabled             bool   `json:"cacheEnabled"`
	CacheTTLCategories       int    `json:"cacheTTLCategorias"`
	CacheTTLProducts         int    `json:"cacheTTLProductos"`
}

// handleHealth serves GET /api/health.
func handleHealth(cfg config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    time.Since(startTime).String(),
			"config": healthConfig{
				APIKeyConfigured:         cfg.UpstreamAPIKey != "",
				APIBaseURLConfigured:     cfg.UpstreamBaseURL != "",
				APIBaseURL:               cfg.UpstreamBaseURL,
				MaxConcurrentRequests:    cfg.MaxConcurrentRequests,
				MaxConcurrentCompression: cfg.MaxConcurrentCompression,
				CacheEnabled:             true,
				CacheTTLCategories:       int(cfg.CacheTTLCategories.Seconds()),
				CacheTTLProducts:         int(cfg.CacheTTLProducts.Seconds()),
			},
		})
	}
}

// Package server wires the aggregation service behind its HTTP API.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"catalogbridge/pkg/catalog"
	"catalogbridge/pkg/config"
	"catalogbridge/pkg/warehouse"
)

// NewRouter builds the full route table. The category and warehouse listing
// routes require the caller API key in the request body; the aggregation,
// cache and health routes are open, mirroring the service this fronts.
func NewRouter(cfg config.Config, svc *catalog.Service, warehouses *warehouse.Service, log zerolog.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(RequestID, AccessLog(log))

	auth := APIKeyAuth(cfg.APIKey)

	router.HandleFunc("/api/productos/{id}", handleProducts(svc, cfg.DevMode, log)).Methods(http.MethodGet)

	router.Handle("/api/categorias/list", auth(handleCategoriesList(svc, cfg.DevMode, log))).Methods(http.MethodPost)
	router.Handle("/api/categorias", auth(handleCategories(svc, cfg.DevMode, log))).Methods(http.MethodPost)
	router.Handle("/api/almacenes", auth(handleWarehouses(warehouses, cfg.DevMode, log))).Methods(http.MethodPost)

	router.HandleFunc("/api/cache/stats", handleCacheStats(svc)).Methods(http.MethodGet)
	router.HandleFunc("/api/cache/clear", handleCacheClear(svc, log)).Methods(http.MethodDelete)
	router.HandleFunc("/api/health", handleHealth(cfg)).Methods(http.MethodGet)

	return router
}

// Package config holds runtime configuration for the catalog aggregation
// service. Values are read from environment variables with defaults tuned
// for the upstream Perseo API.
package config

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds every tunable knob of the service.
type Config struct {
	// HTTP server
	Port    string `envconfig:"PORT" default:"3001"`
	DevMode bool   `envconfig:"DEV_MODE" default:"false"`

	// API key expected from callers on authenticated routes.
	APIKey string `envconfig:"API_SECRET_KEY"`

	// Upstream catalog service
	UpstreamBaseURL string `envconfig:"API_BASE_URL"`
	UpstreamAPIKey  string `envconfig:"PERSEO_API_KEY"`

	// Per-call timeouts. The bulk product listing is allowed to be slow;
	// per-product image and stock lookups are not.
	ProductListTimeout  time.Duration `envconfig:"PRODUCT_LIST_TIMEOUT" default:"30s"`
	ImageRequestTimeout time.Duration `envconfig:"IMAGE_REQUEST_TIMEOUT" default:"10s"`

	// Image compression
	MaxImageSize           int  `envconfig:"MAX_IMAGE_SIZE" default:"250"`
	ImageQuality           int  `envconfig:"IMAGE_QUALITY" default:"65"`
	SkipCompressionIfSmall bool `envconfig:"SKIP_COMPRESSION_IF_SMALL" default:"true"`
	MinImageSizeToCompress int  `envconfig:"MIN_IMAGE_SIZE_TO_COMPRESS" default:"50000"`

	// Concurrency ceilings. Downloads are network-bound, compression is
	// CPU-bound; the two limits are deliberately independent.
	MaxConcurrentRequests    int `envconfig:"MAX_CONCURRENT_REQUESTS" default:"100"`
	MaxConcurrentCompression int `envconfig:"MAX_CONCURRENT_COMPRESSION" default:"150"`

	// Default warehouse used to resolve stock figures.
	WarehouseID int `envconfig:"ALMACEN_ID" default:"2"`

	// Cache TTLs
	CacheTTLCategories time.Duration `envconfig:"CACHE_TTL_CATEGORIAS" default:"30m"`
	CacheTTLProducts   time.Duration `envconfig:"CACHE_TTL_PRODUCTOS" default:"15m"`
	CacheTTLWarehouses time.Duration `envconfig:"CACHE_TTL_ALMACENES" default:"30m"`

	// Logging
	PrettyLogs bool `envconfig:"PRETTY_LOGS" default:"false"`
}

// Load reads configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the upstream connection is configured. Everything
// else has a workable default.
func (c Config) Validate() error {
	if c.UpstreamBaseURL == "" {
		return errors.New("config: API_BASE_URL is required")
	}
	if c.UpstreamAPIKey == "" {
		return errors.New("config: PERSEO_API_KEY is required")
	}
	return nil
}

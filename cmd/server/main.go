package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalogbridge/pkg/cache"
	"catalogbridge/pkg/catalog"
	"catalogbridge/pkg/config"
	"catalogbridge/pkg/hydrate"
	"catalogbridge/pkg/imaging"
	"catalogbridge/pkg/obs"
	"catalogbridge/pkg/server"
	"catalogbridge/pkg/upstream"
	"catalogbridge/pkg/warehouse"
)

const (
	serverReadTimeout = 15 * time.Second
	// Cold aggregations download and compress a whole category; the write
	// timeout has to outlast the slowest of them.
	serverWriteTimeout = 2 * time.Minute
	shutdownTimeout    = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := obs.NewLogger(true)
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	log := obs.NewLogger(cfg.PrettyLogs)
	log.Info().
		Str("port", cfg.Port).
		Int("default_warehouse", cfg.WarehouseID).
		Bool("dev_mode", cfg.DevMode).
		Msg("starting catalog aggregation service")

	gateway, err := upstream.New(upstream.Config{
		BaseURL:     cfg.UpstreamBaseURL,
		APIKey:      cfg.UpstreamAPIKey,
		ListTimeout: cfg.ProductListTimeout,
		ItemTimeout: cfg.ImageRequestTimeout,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("could not build upstream client")
	}

	codec := imaging.Codec{
		MaxSize:        cfg.MaxImageSize,
		Quality:        cfg.ImageQuality,
		SkipSmall:      cfg.SkipCompressionIfSmall,
		MinEncodedSize: cfg.MinImageSizeToCompress,
	}
	pool := imaging.NewPool(codec, cfg.MaxConcurrentCompression, log)
	pipeline := hydrate.New(gateway, pool, cfg.MaxConcurrentRequests, log)

	warehouses := warehouse.New(gateway, cache.New(cfg.CacheTTLWarehouses), log)
	svc := catalog.New(gateway, pipeline, warehouses,
		cache.New(cfg.CacheTTLCategories),
		cache.New(cfg.CacheTTLProducts),
		cfg.WarehouseID, log)

	router := server.NewRouter(cfg, svc, warehouses, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server shutdown was not clean")
	}
	log.Info().Msg("server exited")
}

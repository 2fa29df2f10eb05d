// entry point of the application
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"vidgate/internal/cache"
	"vidgate/internal/config"
	"vidgate/internal/consts"
	"vidgate/internal/coordinator"
	"vidgate/internal/extractor"
	httprouter "vidgate/internal/infrastructure/delivery/http"
	"vidgate/internal/observability"
	"vidgate/internal/platform"
	"vidgate/internal/proxymgr"
	"vidgate/internal/registry"
	"vidgate/internal/storage"
	"vidgate/internal/streamer"
	httpserver "vidgate/pkg/http/server"
	"vidgate/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.New()
	if err != nil {
		slog.Error("config new", slog.Any("error", err))
		stop()
		os.Exit(1)
	}

	log, err := logger.New(&logger.Options{
		AddSource: true,
		Level:     cfg.App.LogLevel,
	})
	if err != nil {
		slog.WarnContext(ctx, "logger level invalid; defaulting to info", slog.Any("error", err))
	}

	metrics := observability.New()

	// Proxy manager is nil when no proxies are configured; all
	// collaborators treat that as direct connections.
	proxyMgr := proxymgr.New(log, cfg)
	proxyMgr.StartHealthChecker(ctx)
	if proxyMgr != nil {
		log.InfoContext(ctx, "proxy rotation enabled", slog.Int("proxy_count", proxyMgr.Available()))
	}

	var resultCache cache.Cache
	if cfg.Cache.Backend == consts.CacheBackendRedis {
		resultCache = cache.NewRedis(log, cfg, metrics)
	} else {
		resultCache = cache.NewMemory(ctx, log, metrics, cfg.Cache.SweepInterval)
	}

	reg := registry.New(ctx, log, cfg, metrics)
	storer := storage.New(log, cfg, metrics)
	go storer.CleanupExpiredFiles(ctx)

	extract := extractor.NewChain(log, extractor.NewYouTube(log))

	adapters := []platform.Adapter{
		platform.NewYouTube(log, cfg.Platform.AuthProbeTTL, cfg.Platform.AuthProbeSize),
		platform.NewGeneric(),
	}

	coord := coordinator.New(cfg, log, reg, resultCache, storer, extract, adapters, proxyMgr, metrics)
	coord.Start(ctx)

	streams := streamer.New(log, cfg, extract, adapters, proxyMgr, metrics)

	router := httprouter.New(log, coord, streams, metrics)

	httpSrv := httpserver.New(router, httpserver.Options{
		Addr:            cfg.HTTP.Port,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	})

	log.InfoContext(ctx, "vidgate started", slog.String("port", cfg.HTTP.Port))

	select {
	case <-ctx.Done():
	case err := <-httpSrv.Notify():
		log.ErrorContext(ctx, "http server stopped", slog.Any("error", err))
	}

	err = httpSrv.Shutdown()
	if err != nil {
		log.Error(err.Error())
	}

	log.InfoContext(ctx, "vidgate shut down gracefully")
}

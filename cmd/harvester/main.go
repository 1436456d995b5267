package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/user/listing-harvester/internal/api"
	"github.com/user/listing-harvester/internal/config"
	"github.com/user/listing-harvester/internal/crawler"
	"github.com/user/listing-harvester/internal/monitoring"
	"github.com/user/listing-harvester/internal/proxy"
	"github.com/user/listing-harvester/internal/storage"
	"github.com/user/listing-harvester/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLogger, _ := zap.NewProduction()
		bootLogger.Fatal("could not load config", zap.Error(err))
	}

	// Initialize structured logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		bootLogger, _ := zap.NewProduction()
		bootLogger.Fatal("could not build logger", zap.Error(err))
	}
	defer log.Sync()

	// Initialize Monitoring, Proxies
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(registry)

	proxyManager, err := proxy.NewManager(proxy.ParseList(cfg.Proxies))
	if err != nil {
		log.Fatal("invalid proxy list", zap.Error(err))
	}

	baseURL, err := crawler.ParseBaseURL(cfg.BaseURL)
	if err != nil {
		log.Fatal("invalid base url", zap.Error(err))
	}

	// Initialize optional harvest snapshot store
	var store api.HarvestStore
	if cfg.RedisAddr != "" {
		redisStore := storage.NewHarvestStore(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.HarvestTTL())
		defer redisStore.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisStore.Ping(ctx); err != nil {
			log.Warn("redis is not reachable yet, harvests may not be stored", zap.Error(err))
		}
		cancel()
		store = redisStore
	}

	// Initialize Core Harvester template
	pageMin, pageMax := cfg.PageDelay()
	detailMin, detailMax := cfg.DetailDelay()
	opts := crawler.NewPortalOptions(baseURL, cfg.SearchTimeoutDuration(), cfg.DetailTimeoutDuration(), proxyManager)
	opts.PageDelay = crawler.Pacer{Min: pageMin, Max: pageMax}
	opts.DetailDelay = crawler.Pacer{Min: detailMin, Max: detailMax}
	opts.MaxListings = cfg.MaxListings

	// Initialize API Server
	server := api.NewServer(cfg, opts, store, metrics, registry, log)

	// Graceful Shutdown
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("could not start server", zap.Error(err))
		}
	}()

	log.Info("server started",
		zap.String("port", cfg.ServerPort),
		zap.String("base_url", baseURL.String()),
		zap.Bool("proxies", proxyManager.Enabled()),
		zap.Bool("harvest_store", store != nil),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exiting")
}

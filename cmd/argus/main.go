package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/XavierBriggs/Argus/internal/api"
	"github.com/XavierBriggs/Argus/internal/config"
	"github.com/XavierBriggs/Argus/internal/fetch"
	"github.com/XavierBriggs/Argus/internal/ingest"
	"github.com/XavierBriggs/Argus/internal/service"
	"github.com/XavierBriggs/Argus/internal/writer"
	"github.com/XavierBriggs/Argus/pkg/models"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var db *sql.DB
	if cfg.Postgres.Enabled {
		db, err = sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			logger.Fatalf("connect to Postgres: %v", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			logger.Fatalf("ping Postgres: %v", err)
		}
		logger.Info("connected to Postgres")
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatalf("connect to Redis: %v", err)
		}
		logger.Info("connected to Redis")
	}

	var snapshotWriter *writer.Writer
	if db != nil || redisClient != nil {
		snapshotWriter = writer.NewWriter(db, redisClient, logger)
	}

	svc := service.New(ctx, service.Options{
		Fetch: fetch.Config{
			MaxAttempts:     cfg.Fetch.MaxAttempts,
			BackoffBase:     cfg.Fetch.BackoffBase,
			DefaultTimeout:  cfg.Fetch.Timeout,
			DefaultCacheTTL: cfg.Cache.TTL,
			FallbackHosts:   cfg.Fetch.FallbackHosts,
		},
		CacheTTL:       cfg.Cache.TTL,
		CacheMaxSize:   cfg.Cache.MaxEntries,
		CacheJanitor:   cfg.Cache.JanitorInterval,
		SnapshotWriter: snapshotWriter,
	}, logger)
	defer svc.Close()

	for _, p := range cfg.Providers {
		parser, ok := ingest.ParserByName(p.Parser)
		if !ok {
			logger.Fatalf("provider %s: unknown parser %q", p.ID, p.Parser)
		}
		if err := svc.AddProvider(models.Provider{
			ID:           p.ID,
			Name:         p.Name,
			BaseEndpoint: p.Endpoint,
			APIKey:       p.APIKey,
			Weight:       p.Weight,
			Enabled:      p.Enabled,
		}); err != nil {
			logger.Fatalf("register provider %s: %v", p.ID, err)
		}
		svc.RegisterParser(p.ID, parser)
	}
	logger.Infof("registered %d provider(s)", len(cfg.Providers))

	if !cfg.Refresh.StartPaused {
		if err := svc.StartRefresh(cfg.Refresh.Interval); err != nil {
			logger.Fatalf("start refresh: %v", err)
		}
	}

	router := api.NewRouter(svc, logger, cfg.Server.Mode)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Infof("API listening on :%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("serve API: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("API shutdown: %v", err)
	}
	svc.Close()

	logger.Info("stopped")
}

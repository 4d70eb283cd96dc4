package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"

	"Driftline/internal/api/middleware"
	"Driftline/internal/api/routes"
	"Driftline/internal/backend"
	"Driftline/internal/backend/httpclient"
	backendPostgres "Driftline/internal/backend/postgres"
	"Driftline/internal/config"
	"Driftline/internal/core/blocklist"
	"Driftline/internal/core/cache"
	"Driftline/internal/core/comments"
	"Driftline/internal/core/feeds"
	"Driftline/internal/core/mutations"
	"Driftline/internal/core/records"
	"Driftline/internal/realtime"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	remote, cleanup, err := buildBackend(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize backend", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	store := cache.NewStore(cfg.Cache.MaxEntries, cfg.Cache.Retention, logger)

	resolver := blocklist.NewResolver(remote, cfg.Sync.BlocklistFailOpen, logger)
	cachedResolver := blocklist.NewCachedResolver(resolver, store)

	feedService := feeds.NewFeedService(store, remote, cachedResolver, logger)
	commentService := comments.NewCommentService(store, remote, cachedResolver, logger)

	pipeline := mutations.NewPipeline(store, logger)
	mutationService := mutations.NewService(pipeline, store, remote, logger)

	startCoalescers(ctx, cfg, store, remote, logger)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.ViewerExtractor)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	r.Use(rateLimiter.Middleware)

	routes.RegisterQueryRoutes(r, feedService, commentService, logger)
	routes.RegisterMutationRoutes(r, mutationService, logger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("gateway starting", "addr", cfg.Server.Addr(), "backend", cfg.Backend.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	logger.Info("gateway stopped")
}

// buildBackend selects the remote service per config: the in-process
// postgres reference store, or the HTTP client against a hosted API.
func buildBackend(cfg *config.Config, logger *slog.Logger) (backend.RemoteService, func(), error) {
	switch cfg.Backend.Mode {
	case "http":
		client := httpclient.New(cfg.Backend.APIURL,
			httpclient.WithAuthToken(cfg.Backend.AuthToken),
			httpclient.WithLogger(logger))
		return client, func() {}, nil

	default:
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			return nil, nil, err
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, err
		}
		if err := backendPostgres.Migrate(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("connected to record store")

		store := backendPostgres.NewStore(db, logger)
		return store, func() { db.Close() }, nil
	}
}

// startCoalescers subscribes to change streams for every collection and
// feeds them through a debouncing coalescer into the cache. The gateway
// serves many viewers, so the coalescer runs without a viewer identity and
// never suppresses echoes.
func startCoalescers(ctx context.Context, cfg *config.Config, store *cache.Store, remote backend.RemoteService, logger *slog.Logger) {
	collections := []string{
		records.CollectionPosts,
		records.CollectionComments,
		records.CollectionVotes,
		records.CollectionBlocks,
		records.CollectionBookmarks,
		records.CollectionPollVotes,
	}

	for _, collection := range collections {
		sub, err := remote.Subscribe(ctx, collection, backend.Predicate{})
		if err != nil {
			logger.Warn("subscription unavailable, relying on lazy staleness",
				"collection", collection,
				"error", err)
			continue
		}

		coalescer := realtime.NewCoalescer(store, "", cfg.Sync.DebounceWindow, logger)
		go func(collection string) {
			if err := coalescer.Run(ctx, sub); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("coalescer stopped", "collection", collection, "error", err)
			}
		}(collection)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

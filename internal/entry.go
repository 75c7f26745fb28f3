// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ticker/internal/annotate"
	"github.com/starford/ticker/internal/api"
	"github.com/starford/ticker/internal/feedservice"
	"github.com/starford/ticker/internal/feedsync"
	"github.com/starford/ticker/internal/mcpserver"
	"github.com/starford/ticker/internal/media"
	"github.com/starford/ticker/internal/reference"
	"github.com/starford/ticker/internal/shortlink"
	"github.com/starford/ticker/internal/sse"
	"github.com/starford/ticker/internal/storage"
	"github.com/starford/ticker/internal/store"
)

// components is the wired object graph shared by all commands.
type components struct {
	cfg    *Config
	logger *slog.Logger
	db     *store.DB
	src    *storage.FS
	files  *media.Store
	syncer *feedsync.Syncer
	svc    *feedservice.Service
}

func (c *components) Close() error {
	return c.db.Close()
}

func newApplication(opts []Option) (*application, *slog.Logger, error) {
	app := &application{logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(logger)

	return app, logger, nil
}

// setup wires storage, rendering and the feed service. events receives
// item changes made through the service and may be nil.
func setup(cfg *Config, logger *slog.Logger, events feedsync.EventCallback) (*components, error) {
	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("source_dir", cfg.Feed.SourceDir),
		slog.String("media_dir", cfg.Feed.MediaDir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("timezone", cfg.Feed.Timezone),
		slog.String("log_level", cfg.App.LogLevel.String()))

	loc, err := cfg.Feed.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	// Ensure source directory exists.
	if err := os.MkdirAll(cfg.Feed.SourceDir, 0o755); err != nil {
		return nil, fmt.Errorf("create source dir: %w", err)
	}

	src, err := storage.NewFS(cfg.Feed.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	files, err := media.NewStore(cfg.Feed.MediaDir, cfg.Feed.MediaURL)
	if err != nil {
		return nil, fmt.Errorf("init media: %w", err)
	}

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	resolver := reference.NewResolver(db, cfg.Feed.OverviewPath, files.URL(""), loc)
	engine := annotate.NewEngine(db, resolver, logger)
	issuer := shortlink.NewIssuer(db,
		shortlink.WithCodeLength(cfg.ShareLink.CodeLength),
		shortlink.WithMaxAttempts(cfg.ShareLink.MaxAttempts),
		shortlink.WithLocation(loc),
		shortlink.WithLogger(logger),
	)
	syncer := feedsync.New(db, src, engine, loc, logger)

	return &components{
		cfg:    cfg,
		logger: logger,
		db:     db,
		src:    src,
		files:  files,
		syncer: syncer,
		svc: feedservice.New(feedservice.Deps{
			DB:       db,
			Sources:  src,
			Syncer:   syncer,
			Engine:   engine,
			Resolver: resolver,
			Issuer:   issuer,
			Logger:   logger,
			Events:   events,
		}, cfg.Feed.OverviewPath, cfg.Feed.LookbackDays),
	}, nil
}

// syncOnce runs a full pass and logs its outcome.
func (c *components) syncOnce(ctx context.Context, cb feedsync.EventCallback) (feedsync.Stats, error) {
	stats, err := c.syncer.Sync(ctx, cb)
	if err != nil {
		return stats, err
	}
	c.logger.Info("sync finished",
		slog.Int("created", stats.Created),
		slog.Int("updated", stats.Updated),
		slog.Int("deleted", stats.Deleted),
		slog.Int("failed", stats.Failed),
		slog.Int("relinked", stats.Relinked))
	return stats, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, logger, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// SSE broker.
	broker := sse.NewBroker(cfg.Feed.EventThrottle, sse.WithLogger(logger))
	defer broker.Close()

	c, err := setup(cfg, logger, broker.PublishItemEvent)
	if err != nil {
		return err
	}
	defer c.Close()

	// Run initial sync.
	if _, err := c.syncOnce(ctx, broker.PublishItemEvent); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	mh := api.NewMediaHandler(c.files)
	apiRouter := api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, mh)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := c.svc.Ready(); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Uploaded media, referenced by rendered summaries.
	r.Get(c.files.URL("{filename}"), mh.ServeFile)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	if cfg.Feed.Watch {
		g.Go(func() error {
			if err := c.syncer.Watch(gCtx, c.src.Root(), broker.PublishItemEvent); err != nil {
				logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Stops the watcher.
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunSync runs a single sync pass over the source directory and exits.
func RunSync(ctx context.Context, opts ...Option) (feedsync.Stats, error) {
	app, logger, err := newApplication(opts)
	if err != nil {
		return feedsync.Stats{}, err
	}
	c, err := setup(app.config, logger, nil)
	if err != nil {
		return feedsync.Stats{}, err
	}
	defer c.Close()

	return c.syncOnce(ctx, nil)
}

// RunMCP syncs the sources and serves the MCP tools on stdin/stdout.
// Logs go to the configured output, which must not be stdout.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, logger, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := setup(app.config, logger, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err := c.syncOnce(ctx, nil); err != nil {
		c.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	c.logger.Info("MCP server starting on stdio")
	return mcpserver.New(c.svc, c.files).ServeStdio()
}

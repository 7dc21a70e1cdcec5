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

	"github.com/starford/lore/internal/api"
	"github.com/starford/lore/internal/generate"
	"github.com/starford/lore/internal/index"
	"github.com/starford/lore/internal/mcpserver"
	"github.com/starford/lore/internal/notestore"
	"github.com/starford/lore/internal/retrieval"
	"github.com/starford/lore/internal/sse"
	"github.com/starford/lore/internal/storage"
	"github.com/starford/lore/internal/vault"
)

// core is the explicitly constructed store and the services built on it.
type core struct {
	db     *index.DB
	notes  *notestore.Service
	ask    *retrieval.Service
	logger *slog.Logger
}

func (c *core) Close() error {
	return c.db.Close()
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// open sets up logging and opens the store. noteOpts are passed to the note
// store, e.g. a change hook.
func (a *application) open(noteOpts ...notestore.Option) (*core, error) {
	cfg := a.config

	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("version", a.version),
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("generation_url", cfg.Generation.BaseURL),
		slog.String("generation_model", cfg.Generation.Model),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	notes := notestore.NewService(db, append([]notestore.Option{notestore.WithLogger(logger)}, noteOpts...)...)
	gen := generate.NewClient(generate.WithBaseURL(cfg.Generation.BaseURL))
	ask := retrieval.NewService(notes, gen,
		retrieval.WithModel(cfg.Generation.Model),
		retrieval.WithTimeout(cfg.Generation.Timeout),
		retrieval.WithDefaultTopK(cfg.Retrieval.DefaultTopK),
		retrieval.WithLogger(logger),
	)

	return &core{db: db, notes: notes, ask: ask, logger: logger}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or a
// termination signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	broker := sse.NewBroker()
	defer broker.Close()

	c, err := app.open(notestore.WithChangeHook(broker.PublishNoteEvent))
	if err != nil {
		return err
	}
	defer c.Close()
	logger := c.logger

	apiRouter := api.NewRouter(c.notes, c.ask, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := c.db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

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

		// Close SSE streams first so Shutdown does not wait on them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools over stdin/stdout until the client disconnects.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	c, err := app.open()
	if err != nil {
		return err
	}
	defer c.Close()

	c.logger.Info("Starting MCP server on stdio")
	return mcpserver.New(c.notes, c.ask, app.version).ServeStdio()
}

// RunImport loads every Markdown file under dir into the store.
func RunImport(ctx context.Context, dir string, opts ...Option) (*vault.ImportReport, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		dir = app.config.Vault.Path
	}
	src, err := storage.NewFS(dir)
	if err != nil {
		return nil, err
	}
	c, err := app.open()
	if err != nil {
		return nil, err
	}
	defer c.Close()

	return vault.Import(ctx, c.notes, src, c.logger.With(slog.String("dir", src.Root())))
}

// RunExport writes every note to dir as a Markdown file.
func RunExport(ctx context.Context, dir string, opts ...Option) (*vault.ExportReport, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		dir = app.config.Vault.Path
	}
	dst, err := storage.CreateFS(dir)
	if err != nil {
		return nil, err
	}
	c, err := app.open()
	if err != nil {
		return nil, err
	}
	defer c.Close()

	return vault.Export(ctx, c.notes, dst, c.logger.With(slog.String("dir", dst.Root())))
}

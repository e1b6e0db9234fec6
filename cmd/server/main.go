// Package main implements the entry point for the dragnet screening server,
// which ingests uploaded tabular datasets and runs fuzzy name searches
// against them in the background.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/afero"

	"github.com/tomhaynes/dragnet/internal/config"
	"github.com/tomhaynes/dragnet/internal/engine"
	"github.com/tomhaynes/dragnet/internal/ingest"
	"github.com/tomhaynes/dragnet/internal/match"
	"github.com/tomhaynes/dragnet/internal/notify"
	"github.com/tomhaynes/dragnet/internal/platform/filestore"
	"github.com/tomhaynes/dragnet/internal/platform/logger"
	"github.com/tomhaynes/dragnet/internal/platform/postgres"
	"github.com/tomhaynes/dragnet/internal/platform/smtp"
	"github.com/tomhaynes/dragnet/internal/recovery"
	"github.com/tomhaynes/dragnet/internal/search"
	"github.com/tomhaynes/dragnet/internal/store"
)

// shutdownTimeout bounds how long in-flight HTTP requests may take to drain.
const shutdownTimeout = 30 * time.Second

// application holds the wired dependencies of the server.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	sources       store.SourceStore
	tasks         store.TaskStore
	searches      store.SearchStore
	notifications store.NotificationStore

	pool     *match.Pool
	ingestor *ingest.Ingestor
	notifier *notify.Notifier
	engine   *engine.Engine
}

func main() {
	app, err := initializeApp()
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := app.run(); err != nil {
		app.logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

// initializeApp loads configuration, connects the database, applies
// migrations and wires every component together.
func initializeApp() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.Setup(cfg.Server.LogLevel)
	log.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := postgres.RunMigrations(db, log); err != nil {
		return nil, err
	}

	tasks := postgres.NewPostgresTaskStore(db)
	dataset := postgres.NewPostgresDatasetStore(db)
	searches := postgres.NewPostgresSearchStore(db)
	notifications := postgres.NewPostgresNotificationStore(db)

	sources, err := filestore.New(afero.NewOsFs(), cfg.Storage.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize source store: %w", err)
	}

	pool := match.NewPool(match.PoolConfig{WorkerCount: cfg.Engine.ScoringPoolSize}, log)

	ingestor, err := ingest.NewIngestor(sources, dataset, tasks, ingest.Config{
		BatchSize:       cfg.Engine.IngestBatchSize,
		ColumnCacheSize: cfg.Engine.ColumnCacheSize,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ingestor: %w", err)
	}

	searcher, err := search.NewSearcher(dataset, searches, pool, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize searcher: %w", err)
	}

	transport := smtp.New(smtp.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})

	notifier, err := notify.NewNotifier(notifications, transport, notify.Config{
		RetryBackoffBase: cfg.Engine.RetryBackoffBase,
		RetryBackoffCap:  cfg.Engine.RetryBackoffCap,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize notifier: %w", err)
	}

	eng, err := engine.New(ingestor, searcher, notifier, engine.Config{
		QueueCapacity: cfg.Engine.QueueCapacity,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize job engine: %w", err)
	}

	return &application{
		config:        cfg,
		logger:        log,
		db:            db,
		sources:       sources,
		tasks:         tasks,
		searches:      searches,
		notifications: notifications,
		pool:          pool,
		ingestor:      ingestor,
		notifier:      notifier,
		engine:        eng,
	}, nil
}

// run starts the background machinery and the HTTP server, then blocks
// until a termination signal arrives and everything has shut down.
func (app *application) run() error {
	app.pool.Start()
	app.engine.Start()

	// Replay work interrupted by the previous shutdown before accepting
	// new submissions.
	loader, err := recovery.NewLoader(app.tasks, app.searches, app.notifications, app.engine, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize recovery loader: %w", err)
	}

	recoverCtx := logger.WithLogger(context.Background(), app.logger)
	if err := loader.Recover(recoverCtx); err != nil {
		return fmt.Errorf("startup recovery failed: %w", err)
	}

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	go app.notifier.RunRetryMonitor(monitorCtx, app.config.Engine.RetrySweepInterval,
		app.engine.EnqueueNotification)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		stopMonitor()
		return fmt.Errorf("http server failed: %w", err)
	case sig := <-quit:
		app.logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("http server shutdown failed", "error", err)
	}

	stopMonitor()
	app.engine.Stop()
	app.pool.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("failed to close database connection", "error", err)
	}

	app.logger.Info("server stopped")
	return nil
}

// Package server initializes and runs the file vault server: it opens the
// database, runs migrations, selects the blob backend, wires the services
// and serves the HTTP API until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/filevault/filevault/internal/logging"
	"github.com/filevault/filevault/internal/server/blobstore"
	"github.com/filevault/filevault/internal/server/cache"
	"github.com/filevault/filevault/internal/server/config"
	"github.com/filevault/filevault/internal/server/httpapi"
	"github.com/filevault/filevault/internal/server/repositories/repomanager"
	"github.com/filevault/filevault/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	handler http.Handler
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var listingCache services.ListingCache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		listingCache = cache.NewListingCache(client, cfg.CacheTTL)
	}

	fileService := services.NewFileService(db, repos, blobs, listingCache, logger)
	shareService := services.NewShareService(db, repos, listingCache, logger)
	retentionService := services.NewRetentionService(db, repos, blobs, logger)
	userService := services.NewUserService(db, repos, retentionService, logger,
		cfg.SecretKey, cfg.AccessTokenValidityDuration)
	notificationService := services.NewNotificationService(db, repos, logger)

	handlers := httpapi.Handlers{
		Files:         httpapi.NewFileHandler(fileService, logger),
		Shares:        httpapi.NewShareHandler(shareService, logger),
		Users:         httpapi.NewUserHandler(userService, logger),
		Notifications: httpapi.NewNotificationHandler(notificationService, logger),
	}
	handler := httpapi.NewRouter(handlers, []byte(cfg.SecretKey), logger)

	return &App{config: cfg, logger: logger, db: db, handler: handler}, nil
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blobstore.BlobStore, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendFS:
		return blobstore.NewFSStore(cfg.BlobDir)
	case config.BlobBackendS3:
		return blobstore.NewS3Store(ctx, blobstore.S3Config{
			RootUser:     cfg.S3AccessKey,
			RootPassword: cfg.S3SecretKey,
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
		})
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves the HTTP API until the context ends, then shuts the server
// down gracefully.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	server := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: app.handler,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "starting server", "addr", app.config.EndpointAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(ctx, "shutdown error", "error", err)
	}

	return app.db.Close()
}

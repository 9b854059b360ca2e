package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rohits-web03/lockbox/internal/api"
	"github.com/rohits-web03/lockbox/internal/api/handlers"
	"github.com/rohits-web03/lockbox/internal/api/services"
	"github.com/rohits-web03/lockbox/internal/config"
	"github.com/rohits-web03/lockbox/internal/filename"
	"github.com/rohits-web03/lockbox/internal/logger"
	"github.com/rohits-web03/lockbox/internal/repositories"
	"github.com/rs/zerolog/log"
)

// app holds the clients and services built once at startup.
type app struct {
	cfg        config.Config
	files      *services.FileService
	reconciler *services.Reconciler
	closers    []func(context.Context) error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Setup(cfg.Environment, cfg.LogLevel)

	a := &app{cfg: cfg}

	blobStore, err := a.blobStore()
	if err != nil {
		return nil, err
	}
	recordStore, err := a.recordStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	blobs := repositories.NewBlobGateway(blobStore, cfg.SignedURLTTL)
	records := repositories.NewRecordRepository(recordStore,
		cfg.LookupMode == config.LookupNamespaced,
		cfg.UploadMode == config.UploadUpsert,
	)

	a.files = services.NewFileService(blobs, records, filename.NewParser(cfg.StrictFilenames), logger.Component("files"))
	a.reconciler = services.NewReconciler(blobs, records, logger.Component("reconciler"))

	log.Info().
		Str("blob_store", cfg.BlobStore).
		Str("record_store", cfg.RecordStore).
		Str("lookup_mode", cfg.LookupMode).
		Str("upload_mode", cfg.UploadMode).
		Msg("dependencies initialized")
	return a, nil
}

func (a *app) blobStore() (repositories.BlobStore, error) {
	switch a.cfg.BlobStore {
	case config.BlobStoreS3:
		log.Info().Str("bucket", a.cfg.S3.BucketName).Str("endpoint", a.cfg.S3.S3Endpoint()).Msg("using S3 blob store")
		return repositories.NewS3BlobStore(a.cfg.S3), nil
	case config.BlobStoreMemory:
		log.Warn().Msg("using in-memory blob store, content is lost on exit")
		return repositories.NewMemoryBlobStore(fmt.Sprintf("http://localhost:%s/blobs", a.cfg.Port)), nil
	}
	return nil, fmt.Errorf("unknown blob store %q", a.cfg.BlobStore)
}

func (a *app) recordStore(ctx context.Context) (repositories.RecordStore, error) {
	switch a.cfg.RecordStore {
	case config.RecordStorePostgres:
		db, err := repositories.ConnectDatabase(a.cfg.DB_URL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
		log.Info().Msg("successfully connected to database")
		return repositories.NewPostgresRecordStore(db), nil

	case config.RecordStoreMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := repositories.ConnectMongo(connectCtx, a.cfg.Mongo.URI)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Disconnect)
		log.Info().Str("database", a.cfg.Mongo.Database).Msg("successfully connected to mongo")
		return repositories.NewMongoRecordStore(ctx, client.Database(a.cfg.Mongo.Database), logger.Component("mongo")), nil

	case config.RecordStoreMemory:
		log.Warn().Msg("using in-memory record store, records are lost on exit")
		return repositories.NewMemoryRecordStore(), nil
	}
	return nil, fmt.Errorf("unknown record store %q", a.cfg.RecordStore)
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, c := range a.closers {
		if err := c(ctx); err != nil {
			log.Error().Err(err).Msg("failed to close client")
		}
	}
}

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	files := handlers.NewFileHandler(a.files, a.reconciler, a.cfg.MaxUploadSize, logger.Component("http"))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", a.cfg.Port),
		Handler: api.SetupRouter(files, a.cfg.CorsConfig, logger.Component("http")),
		// Timeouts prevent resource exhaustion from slow clients
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", a.cfg.Port).Msg("starting lockbox server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("could not listen on port %s: %w", a.cfg.Port, err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runReconcile(ctx context.Context, out io.Writer, failOnDrift bool) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.reconciler.Scan(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}

	if failOnDrift && !report.Consistent() {
		return errors.New("blob and record stores disagree")
	}
	return nil
}

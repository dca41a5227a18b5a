package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	api "github.com/mind-engage/mindengage-coderunner/internal/api/http"
	"github.com/mind-engage/mindengage-coderunner/internal/attempt"
	auth "github.com/mind-engage/mindengage-coderunner/internal/auth/middleware"
	"github.com/mind-engage/mindengage-coderunner/internal/config"
	"github.com/mind-engage/mindengage-coderunner/internal/db"
	"github.com/mind-engage/mindengage-coderunner/internal/grading"
	"github.com/mind-engage/mindengage-coderunner/internal/storage"
	syncx "github.com/mind-engage/mindengage-coderunner/internal/sync"
	"github.com/mind-engage/mindengage-coderunner/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	log := logger.L()
	defer func() { _ = log.Sync() }()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db open failed: %w", err)
	}
	defer dbh.Close()

	events := syncx.NewEventRepo(dbh)
	opts := []attempt.Option{
		attempt.WithLogger(log),
		attempt.WithEvents(events),
	}
	if cfg.ArchiveBackend != "" {
		bs, err := openArchive(ctx, cfg)
		if err != nil {
			return fmt.Errorf("archive store: %w", err)
		}
		opts = append(opts, attempt.WithArchive(bs))
	}
	svc := attempt.NewService(
		attempt.NewSQLStore(dbh, db.Driver(cfg.DBDriver)),
		grading.NewDefaultGrader(),
		opts...,
	)

	// --- Auth (local JWT) ---
	authOpts := []auth.Option{auth.WithDevLogins(cfg.EnableDevLogins)}
	if cfg.AdminUser != "" && cfg.AdminPassHash != "" {
		authOpts = append(authOpts, auth.WithAdmin(cfg.AdminUser, cfg.AdminPassHash))
	}
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret, authOpts...)

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.Deps{
			Service:     svc,
			Auth:        authSvc,
			Events:      events,
			Log:         log,
			CORSOrigins: cfg.CORSOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("db", cfg.DBDriver),
			zap.String("archive", cfg.ArchiveBackend), zap.Bool("dev_logins", cfg.EnableDevLogins))
		errc <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case sig := <-stop:
		log.Info("shutting down", zap.Stringer("signal", sig))
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 15*time.Second)
	defer done()
	return srv.Shutdown(shutdownCtx)
}

func openArchive(ctx context.Context, cfg config.Config) (storage.BlobStore, error) {
	var bs storage.BlobStore
	switch cfg.ArchiveBackend {
	case "fs":
		fs, err := storage.NewFSStore(cfg.ArchivePath)
		if err != nil {
			return nil, err
		}
		bs = fs
	case "minio":
		ms, err := storage.NewMinIOStore(ctx, storage.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			UseSSL:    cfg.MinIOUseSSL,
			Bucket:    cfg.MinIOBucket,
		})
		if err != nil {
			return nil, err
		}
		bs = ms
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.ArchiveBackend)
	}
	if cfg.ArchiveCompress {
		bs = storage.Compressed(bs)
	}
	return bs, nil
}

// Package main initializes and starts the EnrollKeeper HTTP server,
// setting up configuration, logging, the record store, credential
// protection, git replication, services and handlers.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/EnrollKeeper/internal/config"
	"github.com/atinyakov/EnrollKeeper/internal/credential"
	"github.com/atinyakov/EnrollKeeper/internal/db"
	"github.com/atinyakov/EnrollKeeper/internal/logger"
	"github.com/atinyakov/EnrollKeeper/internal/server/handler/http"
	"github.com/atinyakov/EnrollKeeper/internal/service"
	"github.com/atinyakov/EnrollKeeper/internal/store"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line, config file and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", orDefault(version, "N/A"))
	fmt.Printf("Build date: %s\n", orDefault(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A cipher strategy without a key is a startup failure.
	protector, err := credential.New(credential.Config{
		Strategy:  options.Protection,
		SecretKey: options.SecretKey,
		IVLength:  options.IVLength,
	})
	if err != nil {
		zapLogger.Fatal("cannot init credential protector", zap.Error(err))
	}

	var records service.RecordStore
	if options.DatabaseDSN != "" {
		postgresDB, err := db.InitPostgres(options.DatabaseDSN)
		if err != nil {
			zapLogger.Fatal("cannot init database", zap.Error(err))
		}
		defer postgresDB.Close()

		db.StartHistoryPruner(ctx, postgresDB,
			time.Hour, // interval
			options.HistoryRetention.Duration,
			zapLogger,
		)
		records = store.NewPostgresStore(postgresDB, options.StoreTimeout.Duration)
	} else {
		fs, err := store.NewFileStore(options.DataDir, options.StoreTimeout.Duration)
		if err != nil {
			zapLogger.Fatal("cannot init file store", zap.Error(err))
		}
		records = fs
	}

	var replicator service.Replicator
	rel := newRelay(ctx, options, zapLogger)
	if rel != nil {
		replicator = rel
	}

	enrollmentService := service.NewEnrollmentService(records, protector, replicator, zapLogger)
	handler := &http.EnrollmentHandler{Service: enrollmentService, Log: zapLogger}
	router := http.NewRouter(handler, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLogger.Info("starting HTTP server",
			zap.String("addr", options.Port),
			zap.String("protection", protector.Strategy()),
			zap.Bool("replication", rel != nil),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			zapLogger.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), options.RelayTimeout.Duration+5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server shutdown", zap.Error(err))
	}
	if rel != nil {
		if err := rel.Close(shutdownCtx); err != nil {
			zapLogger.Warn("relay did not drain", zap.Error(err))
		}
		published, failed, dropped := rel.Stats()
		zapLogger.Info("relay stopped",
			zap.Uint64("published", published),
			zap.Uint64("failed", failed),
			zap.Uint64("dropped", dropped),
		)
	}
}

// orDefault returns s if it is non-empty, otherwise def
// (equivalent to cmp.Or for two strings, which needs Go 1.22).
func orDefault(s, def string) string {
	if s != "" {
		return s
	}
	return def
}

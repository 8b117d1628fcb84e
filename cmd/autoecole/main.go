package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/autoecole-scheduler/internal/application"
	"github.com/example/autoecole-scheduler/internal/config"
	httptransport "github.com/example/autoecole-scheduler/internal/http"
	"github.com/example/autoecole-scheduler/internal/logging"
	"github.com/example/autoecole-scheduler/internal/persistence/sqlstore"
)

const usage = `usage:
  autoecole            start the scheduling API
  autoecole hash-key K print the AUTOECOLE_API_KEY_HASH value for key K`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) > 0 {
		switch args[0] {
		case "hash-key":
			return hashKey(args[1:], stdout, application.DefaultArgon2idParams)
		default:
			return fmt.Errorf("unknown command %q\n%s", args[0], usage)
		}
	}
	return serve(ctx, stdout)
}

func hashKey(args []string, stdout io.Writer, params application.Argon2idParams) error {
	if len(args) != 1 || args[0] == "" {
		return errors.New(usage)
	}
	hash, err := application.HashAPIKey(args[0], params)
	if err != nil {
		return fmt.Errorf("failed to hash key: %w", err)
	}
	_, err = fmt.Fprintln(stdout, hash)
	return err
}

func serve(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		logging.New(stdout, slog.LevelInfo).Error("failed to load configuration", "error", err)
		return err
	}
	logger := logging.New(stdout, cfg.LogLevel, "service", "autoecole")

	store, err := sqlstore.Open(ctx, cfg.DatabaseConfig(), logger)
	if err != nil {
		logger.Error("failed to open storage", "error", err, "dialect", cfg.DBDialect)
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	verifier, err := application.NewAPIKeyVerifier(cfg.APIKeyHash)
	if err != nil {
		logger.Error("invalid api key hash", "error", err)
		return err
	}

	services := newServices(store, cfg, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           newHandler(services, verifier, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("scheduling API listening", "addr", server.Addr, "timezone", cfg.Location.String())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		return err
	}
	return nil
}

func newServices(store *sqlstore.Store, cfg config.Config, logger *slog.Logger) *application.Services {
	return application.NewServices(application.Stores{
		Sessions:  store.Sessions,
		Presence:  store.Presence,
		Exams:     store.Exams,
		Directory: store.Directory,
	}, application.Options{
		IDGenerator:           uuid.NewString,
		Now:                   time.Now,
		Logger:                logger,
		Location:              cfg.Location,
		DefaultTheoryCapacity: cfg.DefaultTheoryCapacity,
		Weights:               cfg.Weights(),
		ProgressionCacheTTL:   cfg.ProgressionCacheTTL,
	})
}

type keyVerifier interface {
	Verify(key string) error
}

func newHandler(services *application.Services, verifier keyVerifier, logger *slog.Logger) http.Handler {
	return httptransport.NewRouter(httptransport.RouterConfig{
		Sessions:     httptransport.NewSessionHandler(services.Sessions, logger),
		Enrollment:   httptransport.NewEnrollmentHandler(services.Enrollment, logger),
		Presence:     httptransport.NewPresenceHandler(services.Presence, logger),
		Progression:  httptransport.NewProgressionHandler(services.Progression, logger),
		Directory:    httptransport.NewDirectoryHandler(services.Directory, logger),
		Availability: httptransport.NewAvailabilityHandler(services.Availability, logger),
		Auth:         httptransport.RequireAPIKey(verifier, logger),
		Middleware:   []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})
}

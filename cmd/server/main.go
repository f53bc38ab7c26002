package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/cinemateca/db"
	"github.com/Clark-Hu/cinemateca/internal/auth"
	"github.com/Clark-Hu/cinemateca/internal/config"
	httpserver "github.com/Clark-Hu/cinemateca/internal/http"
	"github.com/Clark-Hu/cinemateca/internal/logging"
	"github.com/Clark-Hu/cinemateca/internal/metrics"
	"github.com/Clark-Hu/cinemateca/internal/repository"
	"github.com/Clark-Hu/cinemateca/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New(logging.Options{Output: os.Stderr})
		bootLogger.Fatal().Err(err).Msg("config error")
	}

	logger := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	storeOpts := store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	}

	st, err := store.New(dbCtx, cfg.DBURL, storeOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer st.Close()

	if cfg.DBAutoMigrate {
		if err := store.Migrate(dbCtx, st.Pool(), db.Migrations, "migrations", logger); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
	}

	hasher, err := auth.NewHasher(cfg.BcryptCost)
	if err != nil {
		logger.Fatal().Err(err).Msg("init password hasher")
	}
	tokens, err := auth.NewTokenManager(cfg.JWTSecret, time.Duration(cfg.JWTTTLSecs)*time.Second)
	if err != nil {
		logger.Fatal().Err(err).Msg("init token manager")
	}

	repo := repository.New(st)
	if cfg.BootstrapAdmin() {
		if err := bootstrapAdmin(dbCtx, cfg, repo, hasher, logger); err != nil {
			logger.Fatal().Err(err).Msg("bootstrap admin")
		}
	}

	prometheus.MustRegister(metrics.NewPoolCollector(st.Stats))

	server := httpserver.New(cfg, st, repo, tokens, hasher, logger)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("server error")
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
}

// bootstrapAdmin creates the configured administrator unless the username or email is taken.
func bootstrapAdmin(ctx context.Context, cfg config.Config, repo *repository.Repository, hasher *auth.Hasher, logger zerolog.Logger) error {
	hash, err := hasher.Hash(cfg.AdminPassword)
	if err != nil {
		return err
	}
	created, err := repo.Users.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, hash)
	if err != nil {
		return err
	}
	logger.Info().Str("username", cfg.AdminUsername).Bool("created", created).Msg("admin account checked")
	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/quillboard/quillboard/internal/auth"
	"github.com/quillboard/quillboard/internal/auth/memory"
	authpg "github.com/quillboard/quillboard/internal/auth/postgres"
	"github.com/quillboard/quillboard/internal/config"
	"github.com/quillboard/quillboard/internal/forum"
	forummem "github.com/quillboard/quillboard/internal/forum/memory"
	forumpg "github.com/quillboard/quillboard/internal/forum/postgres"
	"github.com/quillboard/quillboard/internal/icon"
	"github.com/quillboard/quillboard/internal/logging"
	"github.com/quillboard/quillboard/internal/observability"
	"github.com/quillboard/quillboard/internal/store"
	"github.com/quillboard/quillboard/internal/web"
	"github.com/quillboard/quillboard/pkg/errutil"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the forum server",
		Long: `Start the public HTTP server and the metrics/health listener.
Without database.url the server runs against in-memory stores, optionally
seeded from --dev-accounts; data does not survive a restart.`,
		RunE: runServe,
	}

	cmd.Flags().String("server.listen_addr", "", "public listen address")
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")
	cmd.Flags().String("log.level", "", "log level (debug, info, warn, error)")
	cmd.Flags().String("log.format", "", "log format (json, text)")
	cmd.Flags().String("dev-accounts", "", "seed file for in-memory dev accounts")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("quillboard", version, cfg.Log.Format, cfg.Log.Level)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	users, sessions, messages, memSessions, cleanup, err := buildStores(ctx, cfg, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	hasher := auth.NewArgon2idHasher(auth.DefaultArgon2Params())
	authService, err := auth.NewService(users, sessions, hasher,
		auth.WithLogger(logger),
		auth.WithExpiry(cfg.Session.IdleTimeout, cfg.Session.MaxLifetime))
	if err != nil {
		return err
	}

	icons, err := icon.NewStore(cfg.Icons.Dir)
	if err != nil {
		return err
	}

	var ready atomic.Bool
	obs := observability.NewServer(cfg.Observability.ListenAddr, ready.Load)
	obsErrCh, err := obs.Start()
	if err != nil {
		return oops.Code("SERVE_FAILED").With("operation", "start observability server").Wrap(err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if stopErr := obs.Stop(shutdownCtx); stopErr != nil {
			errutil.LogError(logger, "observability server shutdown failed", stopErr)
		}
	}()

	server, err := web.NewServer(cfg, authService, users, messages, icons,
		web.WithServerLogger(logger),
		web.WithMetrics(obs.Metrics()))
	if err != nil {
		return err
	}

	webErrCh, err := server.Start()
	if err != nil {
		return oops.Code("SERVE_FAILED").With("operation", "start web server").Wrap(err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if stopErr := server.Stop(shutdownCtx); stopErr != nil {
			errutil.LogError(logger, "web server shutdown failed", stopErr)
		}
	}()

	go purgeLoop(ctx, authService, memSessions, obs.Metrics(), cfg.Session.PurgeInterval, logger)

	ready.Store(true)
	logger.Info("quillboard serving", "addr", server.Addr())

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		return nil
	case err := <-webErrCh:
		if err != nil {
			return oops.Code("SERVE_FAILED").With("operation", "web server").Wrap(err)
		}
		return nil
	case err := <-obsErrCh:
		if err != nil {
			return oops.Code("SERVE_FAILED").With("operation", "observability server").Wrap(err)
		}
		return nil
	}
}

// buildStores selects postgres or in-memory repositories based on
// configuration. The returned cleanup closes the pool when one was opened;
// memSessions is non-nil only in memory mode.
func buildStores(ctx context.Context, cfg config.Config, cmd *cobra.Command) (
	auth.UserRepository, auth.SessionRepository, forum.MessageRepository,
	*memory.SessionStore, func(), error,
) {
	if cfg.Database.URL != "" {
		pool, err := store.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		return authpg.NewUserRepository(pool),
			authpg.NewSessionRepository(pool),
			forumpg.NewMessageRepository(pool),
			nil,
			pool.Close,
			nil
	}

	slog.Warn("no database.url configured, using in-memory stores")

	users := memory.NewUserStore()
	if seedFile, _ := cmd.Flags().GetString("dev-accounts"); seedFile != "" {
		accounts, err := loadSeedAccounts(seedFile)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		hasher := auth.NewArgon2idHasher(auth.DefaultArgon2Params())
		if err := seedUsers(ctx, users, hasher, accounts, cmd.Printf); err != nil {
			return nil, nil, nil, nil, nil, err
		}
	}

	sessions := memory.NewSessionStore()
	return users, sessions, forummem.NewMessageStore(), sessions, func() {}, nil
}

// purgeLoop sweeps expired sessions until the context is cancelled.
func purgeLoop(ctx context.Context, svc *auth.Service, memSessions *memory.SessionStore,
	metrics *observability.Metrics, interval time.Duration, logger *slog.Logger,
) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := svc.PurgeExpired(ctx)
			if err != nil {
				errutil.LogError(logger, "session purge failed", err)
				continue
			}
			if removed > 0 {
				logger.Info("expired sessions purged", "count", removed)
			}
			if memSessions != nil {
				metrics.ActiveSessions.Set(float64(memSessions.Len()))
			}
		}
	}
}

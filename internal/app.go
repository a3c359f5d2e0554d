package internal

import (
	"context"

	"github.com/arcyd/arcyd/internal/conduit"
	"github.com/arcyd/arcyd/internal/config"
	"github.com/arcyd/arcyd/internal/git"
	"github.com/arcyd/arcyd/internal/metrics"
	"github.com/arcyd/arcyd/internal/reconcile"
	"github.com/arcyd/arcyd/internal/reports"
	"github.com/arcyd/arcyd/internal/server"
	"github.com/arcyd/arcyd/internal/tracker"
	"github.com/arcyd/arcyd/internal/watcher"
	"github.com/arcyd/arcyd/pkg/badgerfx"
	"github.com/capcom6/go-infra-fx/validator"
	"github.com/go-core-fx/fiberfx"
	"github.com/go-core-fx/healthfx"
	"github.com/go-core-fx/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Run() {
	fx.New(
		// CORE MODULES
		logger.Module(),
		logger.WithFxDefaultLogger(),
		badgerfx.Module(),
		healthfx.Module(),
		fiberfx.Module(),
		validator.Module,
		//
		// APP MODULES
		config.Module(),
		server.Module(),
		metrics.Module(),
		//
		// BUSINESS MODULES
		fx.Provide(func() healthfx.Version { return healthfx.Version{Version: "0.0.1", ReleaseID: 1} }),
		git.Module(),
		conduit.Module(),
		tracker.Module(),
		reports.Module(),
		watcher.Module(),
		reconcile.Module(),
		//
		// LIFECYCLE MANAGEMENT
		fx.Invoke(func(lc fx.Lifecycle, logger *zap.Logger) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					logger.Info("🚀 Arcyd daemon starting up")
					return nil
				},
				OnStop: func(_ context.Context) error {
					logger.Info("🛑 Arcyd daemon shutting down gracefully")
					return nil
				},
			})
		}),
	).Run()
}

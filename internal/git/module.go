package git

import (
	"context"

	"github.com/go-core-fx/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Module(
		"git",
		logger.WithNamedLogger("git"),
		fx.Provide(NewService),
		fx.Invoke(func(svc *Service, logger *zap.Logger, lc fx.Lifecycle) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					version, err := svc.Version(ctx)
					if err != nil {
						return err
					}
					logger.Info("git cli found", zap.String("version", version))
					return nil
				},
			})
		}),
	)
}

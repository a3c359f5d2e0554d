package reconcile

import (
	"context"
	"sync"

	"github.com/arcyd/arcyd/internal/conduit"
	"github.com/arcyd/arcyd/internal/git"
	"github.com/go-core-fx/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Module(
		"reconcile",
		logger.WithNamedLogger("reconcile"),
		fx.Provide(
			func(s *git.Service) Opener { return s },
			func(s *conduit.Service) Reviewer { return s },
			fx.Private,
		),
		fx.Provide(NewService),
		fx.Invoke(func(svc *Service, logger *zap.Logger, lc fx.Lifecycle) {
			ctx, cancel := context.WithCancel(context.Background())
			wg := sync.WaitGroup{}

			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					logger.Info("starting reconcile loop", zap.Strings("repos", svc.Repos()))
					wg.Add(1)
					go func() {
						defer wg.Done()
						svc.Run(ctx)
					}()
					return nil
				},
				OnStop: func(stopCtx context.Context) error {
					logger.Info("stopping reconcile loop")
					cancel()

					done := make(chan struct{})
					go func() {
						wg.Wait()
						close(done)
					}()

					select {
					case <-done:
						return nil
					case <-stopCtx.Done():
						return stopCtx.Err()
					}
				},
			})
		}),
	)
}

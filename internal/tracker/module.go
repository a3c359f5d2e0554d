package tracker

import (
	"github.com/go-core-fx/logger"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module(
		"tracker",
		logger.WithNamedLogger("tracker"),
		fx.Provide(NewRepository, fx.Private),
		fx.Provide(NewService),
	)
}

package reports

import (
	"github.com/go-core-fx/logger"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module(
		"reports",
		logger.WithNamedLogger("reports"),
		fx.Provide(NewRepository, fx.Private),
		fx.Provide(NewService),
	)
}

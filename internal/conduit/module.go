package conduit

import (
	"github.com/go-core-fx/logger"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module(
		"conduit",
		logger.WithNamedLogger("conduit"),
		fx.Provide(
			fx.Annotate(NewHTTPClient, fx.As(new(Client))),
			fx.Private,
		),
		fx.Provide(NewService),
	)
}

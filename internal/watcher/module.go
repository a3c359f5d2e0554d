package watcher

import (
	"net/http"
	"time"

	"github.com/go-core-fx/logger"
	"go.uber.org/fx"
)

type Config struct {
	Timeout time.Duration
}

func Module() fx.Option {
	return fx.Module(
		"watcher",
		logger.WithNamedLogger("watcher"),
		fx.Provide(func(config Config) *Watcher {
			return New(NewHTTPRequestFunc(&http.Client{Timeout: config.Timeout}))
		}),
		fx.Provide(NewStore),
	)
}

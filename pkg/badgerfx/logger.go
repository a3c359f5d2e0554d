package badgerfx

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// zapLogger routes badger's printf-style logs to zap. Badger terminates its
// messages with a newline, which is dropped.
type zapLogger struct {
	logger *zap.Logger
}

func newLogger(l *zap.Logger) *zapLogger {
	return &zapLogger{
		logger: l.WithOptions(zap.AddCallerSkip(1)),
	}
}

func (l *zapLogger) Debugf(format string, a ...any) {
	l.logger.Debug(message(format, a))
}

func (l *zapLogger) Errorf(format string, a ...any) {
	l.logger.Error(message(format, a))
}

// Infof is demoted to debug: badger reports every compaction and flush at
// info level.
func (l *zapLogger) Infof(format string, a ...any) {
	l.logger.Debug(message(format, a))
}

func (l *zapLogger) Warningf(format string, a ...any) {
	l.logger.Warn(message(format, a))
}

func message(format string, a []any) string {
	return strings.TrimRight(fmt.Sprintf(format, a...), "\n")
}

var _ badger.Logger = (*zapLogger)(nil)

package dispatch

import (
	"sync"

	"go.uber.org/zap"
)

var (
	pkgLogger  *zap.Logger
	loggerOnce sync.Once
)

// logger returns the dispatch package's logger instance.
// It uses a no-op logger by default.
func logger() *zap.Logger {
	loggerOnce.Do(func() {
		if pkgLogger == nil {
			pkgLogger = zap.NewNop()
		}
	})
	return pkgLogger
}

// SetLogger configures the dispatch package's logger.
// This must be called before any dispatcher is created.
func SetLogger(l *zap.Logger) {
	pkgLogger = l
}

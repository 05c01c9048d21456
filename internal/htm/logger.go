package htm

import (
	"sync"

	"github.com/tphakala/anomalystream/internal/logger"
)

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the htm package logger scoped to the htm module.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("htm")
	})
	return serviceLogger
}

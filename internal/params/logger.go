package params

import (
	"sync"

	"github.com/tphakala/anomalystream/internal/logger"
)

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the params package logger scoped to the params module.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("params")
	})
	return serviceLogger
}

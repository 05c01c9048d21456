package output

import (
	"sync"

	"github.com/tphakala/anomalystream/internal/logger"
)

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the output package logger scoped to the output module.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("output")
	})
	return serviceLogger
}

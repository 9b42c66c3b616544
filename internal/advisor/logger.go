package advisor

import (
	"sync"

	"github.com/agrisense/farm-advisor/internal/logger"
)

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the advisor package logger.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("advisor")
	})
	return serviceLogger
}

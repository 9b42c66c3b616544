package v1

import (
	"sync"

	"github.com/agrisense/farm-advisor/internal/logger"
)

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the v1 API logger.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("api.v1")
	})
	return serviceLogger
}

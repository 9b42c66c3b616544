package auth

import (
	"sync"

	"github.com/agrisense/farm-advisor/internal/logger"
)

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the auth package logger.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("auth")
	})
	return serviceLogger
}

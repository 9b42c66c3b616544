package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"
)

// GormLoggerAdapter routes GORM output into a module logger. Statements go
// to TRACE; failed and slow statements go to WARN.
type GormLoggerAdapter struct {
	logger        Logger
	slowThreshold time.Duration
	silent        bool
}

var _ gorm_logger.Interface = (*GormLoggerAdapter)(nil)

// NewGormLoggerAdapter wraps logger. A zero slowThreshold disables slow-query warnings.
func NewGormLoggerAdapter(logger Logger, slowThreshold time.Duration) *GormLoggerAdapter {
	if logger == nil {
		logger = NewSlogLogger(nil, LogLevelInfo, nil)
	}
	return &GormLoggerAdapter{logger: logger, slowThreshold: slowThreshold}
}

// LogMode only honours gorm_logger.Silent (used by Session(&gorm.Session{Logger: ...})).
// Other levels come from the module's configured level.
func (a *GormLoggerAdapter) LogMode(level gorm_logger.LogLevel) gorm_logger.Interface {
	clone := *a
	clone.silent = level == gorm_logger.Silent
	return &clone
}

func (a *GormLoggerAdapter) Info(_ context.Context, msg string, data ...any) {
	if !a.silent {
		a.logger.Debug(fmt.Sprintf(msg, data...))
	}
}

func (a *GormLoggerAdapter) Warn(_ context.Context, msg string, data ...any) {
	if !a.silent {
		a.logger.Warn(fmt.Sprintf(msg, data...))
	}
}

func (a *GormLoggerAdapter) Error(_ context.Context, msg string, data ...any) {
	if !a.silent {
		a.logger.Error(fmt.Sprintf(msg, data...))
	}
}

// Trace is called once per statement. gorm.ErrRecordNotFound is a normal
// lookup miss and is not treated as a failure.
func (a *GormLoggerAdapter) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if a.silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	log := a.logger.WithContext(ctx).With(
		String("sql", sql),
		Int64("rows", rows),
		Duration("elapsed", elapsed))

	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := a.slowThreshold > 0 && elapsed > a.slowThreshold
	switch {
	case failed:
		log.Warn("Query failed", Error(err))
	case slow:
		log.Warn("Slow query", Duration("threshold", a.slowThreshold))
	default:
		log.Trace("Query")
	}
}

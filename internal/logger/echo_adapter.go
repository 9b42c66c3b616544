package logger

import (
	"fmt"
	"io"
	"sync/atomic"

	echo_log "github.com/labstack/gommon/log"
)

// EchoLoggerAdapter adapts Logger to echo.Logger so framework messages
// end up in the "http" module instead of echo's own stdout writer.
//
//	e := echo.New()
//	e.Logger = logger.NewEchoLoggerAdapter(log.Module("echo"))
type EchoLoggerAdapter struct {
	logger Logger
	level  atomic.Uint32
}

// NewEchoLoggerAdapter creates an Echo logger adapter that forwards to logger.
func NewEchoLoggerAdapter(logger Logger) *EchoLoggerAdapter {
	if logger == nil {
		logger = NewSlogLogger(nil, LogLevelInfo, nil)
	}
	a := &EchoLoggerAdapter{logger: logger}
	a.level.Store(uint32(echo_log.DEBUG))
	return a
}

// Output is unused; the wrapped logger owns its writers.
func (a *EchoLoggerAdapter) Output() io.Writer { return io.Discard }

func (a *EchoLoggerAdapter) SetOutput(_ io.Writer) {}

func (a *EchoLoggerAdapter) Prefix() string { return "" }

func (a *EchoLoggerAdapter) SetPrefix(_ string) {}

func (a *EchoLoggerAdapter) SetHeader(_ string) {}

// Level returns the minimum echo level forwarded to the wrapped logger.
func (a *EchoLoggerAdapter) Level() echo_log.Lvl {
	return echo_log.Lvl(a.level.Load())
}

// SetLevel drops echo messages below lvl before they reach the wrapped logger.
func (a *EchoLoggerAdapter) SetLevel(lvl echo_log.Lvl) {
	a.level.Store(uint32(lvl))
}

func (a *EchoLoggerAdapter) emit(lvl echo_log.Lvl, msg string, fields ...Field) {
	if lvl < a.Level() {
		return
	}
	switch lvl {
	case echo_log.DEBUG:
		a.logger.Debug(msg, fields...)
	case echo_log.WARN:
		a.logger.Warn(msg, fields...)
	case echo_log.ERROR:
		a.logger.Error(msg, fields...)
	default:
		a.logger.Info(msg, fields...)
	}
}

func (a *EchoLoggerAdapter) Print(i ...any)                    { a.emit(echo_log.INFO, fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Printf(format string, args ...any) { a.emit(echo_log.INFO, fmt.Sprintf(format, args...)) }
func (a *EchoLoggerAdapter) Printj(j echo_log.JSON)            { a.emit(echo_log.INFO, "echo", Any("data", j)) }
func (a *EchoLoggerAdapter) Debug(i ...any)                    { a.emit(echo_log.DEBUG, fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Debugf(format string, args ...any) { a.emit(echo_log.DEBUG, fmt.Sprintf(format, args...)) }
func (a *EchoLoggerAdapter) Debugj(j echo_log.JSON)            { a.emit(echo_log.DEBUG, "echo", Any("data", j)) }
func (a *EchoLoggerAdapter) Info(i ...any)                     { a.emit(echo_log.INFO, fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Infof(format string, args ...any)  { a.emit(echo_log.INFO, fmt.Sprintf(format, args...)) }
func (a *EchoLoggerAdapter) Infoj(j echo_log.JSON)             { a.emit(echo_log.INFO, "echo", Any("data", j)) }
func (a *EchoLoggerAdapter) Warn(i ...any)                     { a.emit(echo_log.WARN, fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Warnf(format string, args ...any)  { a.emit(echo_log.WARN, fmt.Sprintf(format, args...)) }
func (a *EchoLoggerAdapter) Warnj(j echo_log.JSON)             { a.emit(echo_log.WARN, "echo", Any("data", j)) }
func (a *EchoLoggerAdapter) Error(i ...any)                    { a.emit(echo_log.ERROR, fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Errorf(format string, args ...any) { a.emit(echo_log.ERROR, fmt.Sprintf(format, args...)) }
func (a *EchoLoggerAdapter) Errorj(j echo_log.JSON)            { a.emit(echo_log.ERROR, "echo", Any("data", j)) }

// Fatal logs at ERROR and panics; echo's Recover middleware turns it into a 500.
func (a *EchoLoggerAdapter) Fatal(i ...any) {
	msg := fmt.Sprint(i...)
	a.logger.Error(msg)
	panic("echo fatal: " + msg)
}

func (a *EchoLoggerAdapter) Fatalf(format string, args ...any) {
	a.Fatal(fmt.Sprintf(format, args...))
}

func (a *EchoLoggerAdapter) Fatalj(j echo_log.JSON) {
	a.Fatal(fmt.Sprintf("%v", j))
}

func (a *EchoLoggerAdapter) Panic(i ...any) {
	msg := fmt.Sprint(i...)
	a.logger.Error(msg)
	panic(msg)
}

func (a *EchoLoggerAdapter) Panicf(format string, args ...any) {
	a.Panic(fmt.Sprintf(format, args...))
}

func (a *EchoLoggerAdapter) Panicj(j echo_log.JSON) {
	a.Panic(fmt.Sprintf("%v", j))
}

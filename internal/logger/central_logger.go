package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	// Embedded tzdata keeps time.LoadLocation working on hosts without a zoneinfo database.
	_ "time/tzdata"
)

// traceLevelValue sits one step below slog.LevelDebug.
const traceLevelValue = slog.Level(-8)

var levelsByName = map[string]slog.Level{
	string(LogLevelTrace): traceLevelValue,
	string(LogLevelDebug): slog.LevelDebug,
	string(LogLevelInfo):  slog.LevelInfo,
	string(LogLevelWarn):  slog.LevelWarn,
	string(LogLevelError): slog.LevelError,
}

// parseLogLevel maps a configured level name to slog. Unknown names mean info.
func parseLogLevel(level string) slog.Level {
	if l, ok := levelsByName[level]; ok {
		return l
	}
	return slog.LevelInfo
}

func parseSlogLevel(level LogLevel) slog.Level { return parseLogLevel(string(level)) }

var (
	global   *CentralLogger
	globalMu sync.Mutex
)

// SetGlobal installs cl as the logger returned by Global. Call it once at
// startup, after the configuration is loaded.
func SetGlobal(cl *CentralLogger) {
	globalMu.Lock()
	global = cl
	globalMu.Unlock()
}

// Global returns the installed CentralLogger, or an info-level console logger
// when SetGlobal has not been called yet.
func Global() *CentralLogger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = &CentralLogger{
			config: &LoggingConfig{DefaultLevel: DefaultLogLevel},
			tz:     time.Local,
			base:   newTextHandler(os.Stdout, slog.LevelInfo),
		}
	}
	return global
}

// CentralLogger hands out module loggers. Modules listed in ModuleOutputs
// write to their own JSON file; every other module shares the base handler.
type CentralLogger struct {
	config  *LoggingConfig
	tz      *time.Location
	base    slog.Handler
	main    *fileWriter
	modules map[string]*fileWriter

	mu sync.RWMutex
}

// NewCentralLogger opens every configured output. cfg is completed with defaults in place.
func NewCentralLogger(cfg *LoggingConfig) (*CentralLogger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("logging config cannot be nil")
	}
	applyConfigDefaults(cfg)

	tz, err := loadTimezone(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	cl := &CentralLogger{config: cfg, tz: tz, modules: make(map[string]*fileWriter)}
	if err := cl.openOutputs(); err != nil {
		_ = cl.Close()
		return nil, err
	}
	return cl, nil
}

func loadTimezone(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	tz, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", name, err)
	}
	return tz, nil
}

func (cl *CentralLogger) openOutputs() error {
	var outputs []slog.Handler

	if c := cl.config.Console; c.Enabled {
		outputs = append(outputs, newTextHandler(os.Stdout, parseLogLevel(c.Level)))
	}
	if f := cl.config.FileOutput; f.Enabled {
		w, err := newFileWriter(f.Path)
		if err != nil {
			return fmt.Errorf("failed to create base handler: %w", err)
		}
		cl.main = w
		outputs = append(outputs, newJSONHandler(w, parseLogLevel(f.Level), cl.tz))
	}
	if len(outputs) == 0 {
		outputs = append(outputs, newTextHandler(os.Stdout, parseLogLevel(cl.config.DefaultLevel)))
	}
	cl.base = combine(outputs)

	for name, out := range cl.config.ModuleOutputs {
		if !out.Enabled {
			continue
		}
		w, err := newFileWriter(out.FilePath)
		if err != nil {
			return fmt.Errorf("failed to create log writer for module %s: %w", name, err)
		}
		cl.modules[name] = w
	}
	return nil
}

func combine(handlers []slog.Handler) slog.Handler {
	if len(handlers) == 1 {
		return handlers[0]
	}
	return newMultiWriterHandler(handlers...)
}

// newJSONHandler stamps record times in tz.
func newJSONHandler(w io.Writer, level slog.Level, tz *time.Location) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Time(slog.TimeKey, a.Value.Time().In(tz))
			}
			return a
		},
	})
}

// Module returns a logger for the named component.
func (cl *CentralLogger) Module(name string) Logger {
	if cl == nil {
		return nil
	}

	cl.mu.RLock()
	defer cl.mu.RUnlock()

	level := parseLogLevel(cl.config.DefaultLevel)
	if l, ok := cl.config.ModuleLevels[name]; ok {
		level = parseLogLevel(l)
	}

	handler := cl.base
	if w, ok := cl.modules[name]; ok {
		out := cl.config.ModuleOutputs[name]
		if out.Level != "" {
			level = parseLogLevel(out.Level)
		}
		handlers := []slog.Handler{newJSONHandler(w, level, cl.tz)}
		if out.ConsoleAlso && cl.config.Console != nil && cl.config.Console.Enabled {
			handlers = append(handlers, newTextHandler(os.Stdout, level))
		}
		handler = combine(handlers)
	}

	return &moduleLogger{module: name, logger: slog.New(handler), level: level}
}

// writers lists every open file writer under a descriptive name.
func (cl *CentralLogger) writers() map[string]*fileWriter {
	all := make(map[string]*fileWriter, len(cl.modules)+1)
	if cl.main != nil {
		all["main"] = cl.main
	}
	for name, w := range cl.modules {
		all["module "+name] = w
	}
	return all
}

// Flush writes buffered file output to the OS.
func (cl *CentralLogger) Flush() error {
	if cl == nil {
		return nil
	}
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	var errs []error
	for name, w := range cl.writers() {
		if err := w.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush %s log writer: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Close flushes and closes every file output.
func (cl *CentralLogger) Close() error {
	if cl == nil {
		return nil
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()

	var errs []error
	for name, w := range cl.writers() {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s log writer: %w", name, err))
		}
	}
	cl.main = nil
	cl.modules = map[string]*fileWriter{}
	return errors.Join(errs...)
}

func ensureFileDirectory(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == path {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

type traceIDContextKey struct{}

// TraceIDKey is the context key read by WithContext. Set it with WithTraceID.
var TraceIDKey = traceIDContextKey{}

// WithTraceID returns a copy of ctx carrying traceID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func traceIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(TraceIDKey).(string)
	return id
}

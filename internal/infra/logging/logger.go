package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Constants for log levels that match slog.Level values.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Type aliases for commonly used slog types.
type (
	Logger  = *slog.Logger
	Handler = slog.Handler
	Level   = slog.Level
)

// LoggerConfig holds configuration parameters for logging.
type LoggerConfig struct {
	// AppName is the application identifier added to all log entries
	AppName string

	// Output specifies where logs are written ("stdout", "stderr", "discard" or a file path)
	Output string `env:"OUTPUT" default:"stderr"`

	// Level sets the minimum log level ("debug", "info", "warn", "error")
	Level string `env:"LEVEL" default:"info"`

	// Filter overrides levels per logger name prefix ("repo:warn,svc.identitysvc:debug")
	Filter string `env:"FILTER" default:""`

	// JSON enables JSON-formatted output instead of human-readable console output
	JSON bool `env:"JSON" default:"false"`

	OutputHandle io.Writer
}

//nolint:gochecknoglobals
var (
	Group = slog.Group

	state struct {
		sync.RWMutex
		cfg LoggerConfig
	}
)

// Configure sets up the global logging configuration.
// Loggers obtained before Configure keep discarding their output.
func Configure(ctx context.Context, cfg LoggerConfig, appName string) {
	cfg.AppName = appName

	if cfg.OutputHandle == nil {
		cfg.OutputHandle = openOutput(cfg.Output)
	}

	state.Lock()
	state.cfg = cfg
	state.Unlock()

	slog.SetLogLoggerLevel(ParseLevel(cfg.Level, LevelInfo))

	GetLogger("infra.logging").DebugContext(ctx, "logging configured", Group("config",
		"app", cfg.AppName,
		"output", cfg.Output,
		"level", cfg.Level,
		"filter", cfg.Filter,
		"json", cfg.JSON,
	))
}

func openOutput(output string) io.Writer {
	switch output {
	case "", "discard":
		return io.Discard
	case "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	}

	file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		panic(fmt.Errorf("open log file: %w", err))
	}

	return file
}

// GetLogger returns a logger tagged with name, which identifies the source module
// and drives the per-package filter.
func GetLogger(name string) Logger {
	state.RLock()
	cfg := state.cfg
	state.RUnlock()

	if cfg.OutputHandle == nil || cfg.OutputHandle == io.Discard {
		return NewNopLogger()
	}

	level := ParseLevel(cfg.Level, LevelInfo)

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(cfg.OutputHandle, &slog.HandlerOptions{
			AddSource: true,
			Level:     level,
		})
	} else {
		handler = &ConsoleHandler{
			Output:    cfg.OutputHandle,
			Level:     level,
			PkgLevels: parseFilter(cfg.Filter),
			mu:        new(sync.Mutex),
		}
	}

	logger := slog.New(NewTracingHandler(handler))
	if cfg.AppName != "" {
		logger = logger.With("app", cfg.AppName)
	}

	return logger.With(LoggerNameKey, name)
}

// GetLogLogger adapts a Logger to the standard library *log.Logger, for
// http.Server.ErrorLog and similar hooks.
func GetLogLogger(logger Logger, level Level) *log.Logger {
	return slog.NewLogLogger(logger.With("stdlog", true).Handler(), level)
}

func parseFilter(filter string) map[string]Level {
	levels := make(map[string]Level)

	for _, entry := range strings.Split(filter, ",") {
		name, lvl, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok {
			continue
		}

		levels[name] = ParseLevel(lvl, LevelDebug)
	}

	return levels
}

// ParseLevel maps "debug", "info", "warn" and "error" to a Level, case-insensitively.
func ParseLevel(s string, fallback Level) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return fallback
	}
}

package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// LoggerNameKey is the attribute carrying the logger name set by GetLogger.
const LoggerNameKey = "logger"

const (
	ansiReset     = "\033[0m"
	ansiRed       = "\033[31m"
	ansiGreen     = "\033[32m"
	ansiYellow    = "\033[33m"
	ansiCyan      = "\033[36m"
	ansiGray      = "\033[90m"
	ansiUnderline = "\033[4m"
)

func levelColor(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return ansiRed
	case l >= slog.LevelWarn:
		return ansiYellow
	case l >= slog.LevelInfo:
		return ansiGreen
	default:
		return ansiCyan
	}
}

// ConsoleHandler renders records as single colored lines followed by the caller,
// meant for local development.
type ConsoleHandler struct {
	// Output is the destination for log output
	Output io.Writer
	// Level is the minimum level for log records to be processed
	Level slog.Leveler
	// PkgLevels maps logger name prefixes to minimum levels
	PkgLevels map[string]slog.Level

	attrs  []slog.Attr
	groups []string
	mu     *sync.Mutex
}

var _ slog.Handler = (*ConsoleHandler)(nil)

// Enabled implements slog.Handler.Enabled.
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	floor := h.Level.Level()

	// a filter may lower the threshold for a single package
	for _, l := range h.PkgLevels {
		if l < floor {
			floor = l
		}
	}

	return level >= floor
}

// Handle implements slog.Handler.
func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make([]slog.Attr, 0, r.NumAttrs()+len(h.attrs))
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)

		return true
	})

	if r.Level < h.threshold(attrs) {
		return nil
	}

	var b strings.Builder

	b.WriteString(ansiGray + r.Time.Format("15:04:05.000000") + ansiReset)
	b.WriteString(" " + levelColor(r.Level) + "[" + r.Level.String() + "]" + ansiReset)
	b.WriteString(" " + r.Message)

	if len(attrs) > 0 {
		prefix := ""
		if len(h.groups) > 0 {
			prefix = strings.Join(h.groups, ".") + "."
		}

		b.WriteString(" " + ansiGray + "|" + ansiReset)
		writeAttrs(&b, prefix, attrs)
	}

	if r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		fn := frame.Function[strings.LastIndex(frame.Function, "/")+1:]

		b.WriteString("\n-> " + ansiGray + fn + "()")
		b.WriteString(" in " + ansiUnderline + frame.File + ":" + strconv.Itoa(frame.Line) + ansiReset)
	}

	if h.mu != nil {
		h.mu.Lock()
		defer h.mu.Unlock()
	}

	_, err := fmt.Fprintln(h.Output, b.String())

	return err //nolint:wrapcheck
}

// threshold resolves the minimum level for the logger named in attrs,
// walking from the most specific name prefix to the configured default.
func (h *ConsoleHandler) threshold(attrs []slog.Attr) slog.Level {
	var name string

	for _, a := range attrs {
		if a.Key == LoggerNameKey {
			name = a.Value.String()
		}
	}

	for name != "" {
		if l, ok := h.PkgLevels[name]; ok {
			return l
		}

		i := strings.LastIndex(name, ".")
		if i < 0 {
			break
		}

		name = name[:i]
	}

	return h.Level.Level()
}

func writeAttrs(b *strings.Builder, prefix string, attrs []slog.Attr) {
	for _, a := range attrs {
		if a.Value.Kind() == slog.KindGroup {
			writeAttrs(b, prefix+a.Key+".", a.Value.Group())

			continue
		}

		b.WriteString(" " + prefix + a.Key + "=" + ansiGray + a.Value.String() + ansiReset)
	}
}

// WithAttrs implements slog.Handler.WithAttrs.
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	c.attrs = append(c.attrs, attrs...)

	return c
}

// WithGroup implements slog.Handler.WithGroup.
func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	c := h.clone()
	c.groups = append(c.groups, name)

	return c
}

func (h *ConsoleHandler) clone() *ConsoleHandler {
	mu := h.mu
	if mu == nil {
		mu = new(sync.Mutex)
	}

	return &ConsoleHandler{
		Output:    h.Output,
		Level:     h.Level,
		PkgLevels: h.PkgLevels,
		attrs:     append([]slog.Attr{}, h.attrs...),
		groups:    append([]string{}, h.groups...),
		mu:        mu,
	}
}

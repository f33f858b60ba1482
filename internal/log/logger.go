package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Logger is a slog.Logger bound to one component. The component attribute is
// attached once, so WithComponent replaces it instead of repeating it.
type Logger struct {
	*slog.Logger
	base      *slog.Logger
	attrs     []any
	component string
}

// Config holds logger configuration. Handler, when set, wins over Format
// and Output.
type Config struct {
	Level     slog.Level
	Format    string
	Output    io.Writer
	Component string
	Handler   slog.Handler
}

func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Format:    FormatText,
		Output:    os.Stdout,
		Component: ComponentApp,
	}
}

// ParseFormat accepts "text" and "json", case-insensitively. Empty is text.
func ParseFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("invalid log format '%s': must be text or json", s)
}

// NewHandler builds a text or JSON handler writing to w.
func NewHandler(format string, w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == FormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		out := config.Output
		if out == nil {
			out = os.Stdout
		}
		handler = NewHandler(config.Format, out, config.Level)
	}
	return newLogger(slog.New(handler), nil, config.Component)
}

func newLogger(base *slog.Logger, attrs []any, component string) *Logger {
	l := base
	if component != "" {
		l = l.With(FieldComponent, component)
	}
	if len(attrs) > 0 {
		l = l.With(attrs...)
	}
	return &Logger{Logger: l, base: base, attrs: attrs, component: component}
}

// With returns a logger carrying args on every record.
func (l *Logger) With(args ...any) *Logger {
	attrs := append(append([]any{}, l.attrs...), args...)
	return newLogger(l.base, attrs, l.component)
}

// WithComponent returns a logger for component, keeping the other attributes.
func (l *Logger) WithComponent(component string) *Logger {
	return newLogger(l.base, l.attrs, component)
}

// SetDefault sets the default logger for the application
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}

func (l *Logger) Component() string {
	return l.component
}

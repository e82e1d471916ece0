// Package logging provides structured slog logging for ledgerctl.
//
// Logs default to a rotated file under the data directory so that the
// interactive terminal only shows client output. Attribute keys that look
// like secrets (passwords, seeds, keys) are redacted before they are written,
// and records logged with a context carry the operation ID stored in it.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"ledgerctl/internal/config"
)

// Level represents a logging level.
type Level = slog.Level

// Log levels.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format represents the output format for logs.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// Options holds the resolved logger settings.
type Options struct {
	Level  Level
	Format Format

	// Output is "stdout", "stderr", "file" or "both" (stderr and file).
	Output string

	FilePath   string
	MaxSizeMB  int64
	MaxAgeDays int
	MaxBackups int
	Compress   bool

	// App tags every record; packages add their own "component".
	App string

	// Writer replaces the console stream when set.
	Writer io.Writer
}

// DefaultOptions logs info and above to stderr.
func DefaultOptions() *Options {
	return &Options{
		Level:      LevelInfo,
		Format:     FormatText,
		Output:     "stderr",
		MaxSizeMB:  10,
		MaxAgeDays: 30,
		MaxBackups: 5,
		Compress:   true,
		App:        "ledgerctl",
	}
}

// OptionsFromConfig converts the [logging] config section.
func OptionsFromConfig(c config.LoggingConfig) (*Options, error) {
	level, err := ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	opts := DefaultOptions()
	opts.Level = level
	if strings.EqualFold(c.Format, "json") {
		opts.Format = FormatJSON
	}
	opts.Output = c.Output
	opts.FilePath = c.FilePath
	if c.MaxSizeMB > 0 {
		opts.MaxSizeMB = int64(c.MaxSizeMB)
	}
	if c.MaxAgeDays > 0 {
		opts.MaxAgeDays = c.MaxAgeDays
	}
	opts.MaxBackups = c.MaxBackups
	opts.Compress = c.Compress
	return opts, nil
}

// Logger is a slog.Logger whose level can change at runtime and which owns
// the log file, if any.
type Logger struct {
	*slog.Logger
	level   *slog.LevelVar
	rotator *FileRotator
}

// New creates a Logger.
func New(opts *Options) (*Logger, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	l := &Logger{level: new(slog.LevelVar)}
	l.level.Set(opts.Level)

	w, err := l.open(opts)
	if err != nil {
		return nil, fmt.Errorf("setup writers: %w", err)
	}

	handlerOpts := &slog.HandlerOptions{
		Level:       l.level,
		ReplaceAttr: redact,
	}
	var handler slog.Handler
	if opts.Format == FormatJSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	if opts.App != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("app", opts.App)})
	}

	l.Logger = slog.New(contextHandler{handler})
	return l, nil
}

// FromConfig builds a Logger from the [logging] config section.
func FromConfig(c config.LoggingConfig) (*Logger, error) {
	opts, err := OptionsFromConfig(c)
	if err != nil {
		return nil, err
	}
	return New(opts)
}

// SetDefault installs l as the slog default.
func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}

func (l *Logger) open(opts *Options) (io.Writer, error) {
	console := opts.Writer
	if console == nil {
		console = os.Stderr
		if strings.EqualFold(opts.Output, "stdout") {
			console = os.Stdout
		}
	}

	output := strings.ToLower(opts.Output)
	if output != "file" && output != "both" {
		return console, nil
	}

	rotator, err := NewFileRotator(RotateOptions{
		Path:       opts.FilePath,
		MaxSizeMB:  opts.MaxSizeMB,
		MaxAgeDays: opts.MaxAgeDays,
		MaxBackups: opts.MaxBackups,
		Compress:   opts.Compress,
	})
	if err != nil {
		return nil, err
	}
	l.rotator = rotator
	if output == "both" {
		return io.MultiWriter(console, rotator), nil
	}
	return rotator, nil
}

// SetLevel changes the minimum level of l and every logger derived from it.
func (l *Logger) SetLevel(level Level) {
	l.level.Set(level)
}

// Level returns the current minimum level.
func (l *Logger) Level() Level {
	return l.level.Level()
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

var sensitiveKeys = []string{
	"password", "passphrase", "secret", "token", "key",
	"credential", "private", "mnemonic", "seed", "auth",
}

func shouldRedact(key string) bool {
	key = strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if shouldRedact(a.Key) {
		a.Value = slog.StringValue("[REDACTED]")
	}
	return a
}

type contextKey struct{}

// ContextWithOperationID returns a context carrying an operation ID. Records
// logged through a Logger with that context are tagged op_id.
func ContextWithOperationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// OperationIDFromContext extracts the operation ID from ctx.
func OperationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// contextHandler adds op_id from the record's context.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := OperationIDFromContext(ctx); id != "" {
		r.AddAttrs(slog.String("op_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}

// ParseLevel parses a string into a log level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

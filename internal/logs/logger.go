package logs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/golang-cz/devslog"
	"github.com/mattn/go-isatty"
)

var ErrInvalidLogLevel = errors.New("invalid log level")

var logger = newLogger(os.Stdout, slog.LevelInfo)

// Init replaces the package logger. Pretty output is used on a terminal,
// JSON lines otherwise.
func Init(level string) error {
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}
	logger = newLogger(os.Stdout, lvl)
	slog.SetDefault(logger)
	return nil
}

// SetOutput is used by tests to capture log lines.
func SetOutput(w io.Writer) {
	logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: replaceAttr,
	}))
}

// LogJSON writes one entry with severity ("DEBUG", "INFO", "WARN", "ERROR" & "FATAL"),
// message, time and the given fields.
func LogJSON(level, message string, fields map[string]interface{}) {
	attrs := make([]slog.Attr, 0, len(fields))
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	lvl := severity(level)
	logger.LogAttrs(context.Background(), lvl, message, attrs...)
	if strings.EqualFold(level, "FATAL") {
		os.Exit(1)
	}
}

func newLogger(w *os.File, lvl slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lvl, ReplaceAttr: replaceAttr}

	var handler slog.Handler
	if isatty.IsTerminal(w.Fd()) {
		handler = devslog.NewHandler(w, &devslog.Options{HandlerOptions: &slog.HandlerOptions{Level: lvl}})
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.LevelKey:
		a.Key = "severity"
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl > slog.LevelError {
			a.Value = slog.StringValue("FATAL")
		}
	case slog.MessageKey:
		a.Key = "message"
	}
	return a
}

func severity(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	case "FATAL":
		return slog.LevelError + 4
	default:
		return slog.LevelInfo
	}
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidLogLevel, level)
	}
}

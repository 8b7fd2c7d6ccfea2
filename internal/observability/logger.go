package observability

import (
	"io"
	"log/slog"
	"os"
)

// Logger is the process-wide logger.
var Logger *slog.Logger

// InitLogger installs a JSON (production) or text handler at the given level and makes it the slog default.
func InitLogger(production bool, level slog.Level) {
	Logger = newLogger(os.Stdout, production, level)
	slog.SetDefault(Logger)
}

func newLogger(w io.Writer, production bool, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if production {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func logger() *slog.Logger {
	if Logger == nil {
		InitLogger(false, slog.LevelInfo)
	}
	return Logger
}

func Info(msg string, args ...any)  { logger().Info(msg, args...) }
func Warn(msg string, args ...any)  { logger().Warn(msg, args...) }
func Error(msg string, args ...any) { logger().Error(msg, args...) }
func Debug(msg string, args ...any) { logger().Debug(msg, args...) }

// Fatal logs at error level and exits.
func Fatal(msg string, args ...any) {
	logger().Error(msg, args...)
	os.Exit(1)
}

// WithTicker returns a logger tagged with the ticker.
func WithTicker(ticker string) *slog.Logger {
	return logger().With("ticker", ticker)
}

// WithPass returns a logger tagged with an evaluation pass id.
func WithPass(passID string) *slog.Logger {
	return logger().With("pass_id", passID)
}

func WithError(err error) *slog.Logger {
	return logger().With("error", err)
}

package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pyama86/slaffic-ticket/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New は LOG_LEVEL と LOG_FORMAT に従ったロガーを作る。LOG_FILE があれば標準出力と両方に書く
func New(cfg config.LogConfig) *slog.Logger {
	writers := []io.Writer{os.Stdout}
	if cfg.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    100,
			MaxBackups: 7,
			MaxAge:     30,
			Compress:   true,
		})
	}
	return newLogger(cfg, io.MultiWriter(writers...))
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

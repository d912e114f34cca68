package app

import (
	"log/slog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a configured slog.Logger and a flush function.
// LOG_FORMAT=json routes records through a zap production core.
func NewLogger(cfg *Config) (*slog.Logger, func()) {
	level, _ := cfg.Level()
	if cfg != nil && cfg.LogFormat == "json" {
		zcfg := zap.NewProductionConfig()
		zcfg.Level = zap.NewAtomicLevelAt(zapLevel(level))
		z, err := zcfg.Build()
		if err == nil {
			handler := zapslog.NewHandler(z.Core(), zapslog.WithCaller(true))
			return slog.New(handler), func() { _ = z.Sync() }
		}
		slog.Default().Warn("zap logger unavailable, falling back to text", slog.Any("error", err))
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{AddSource: true, Level: level})
	return slog.New(handler), func() {}
}

func zapLevel(level slog.Level) zapcore.Level {
	switch {
	case level >= slog.LevelError:
		return zapcore.ErrorLevel
	case level >= slog.LevelWarn:
		return zapcore.WarnLevel
	case level >= slog.LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

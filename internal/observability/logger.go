package observability

import (
	"strings"

	"github.com/railzwaylabs/paycore/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger from observability settings.
func NewLogger(cfg config.Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if raw := strings.TrimSpace(cfg.Observability.LogLevel); raw != "" {
		parsed, err := zapcore.ParseLevel(raw)
		if err != nil {
			return nil, err
		}
		level.SetLevel(parsed)
	}

	zcfg := zap.NewProductionConfig()
	if strings.EqualFold(cfg.Observability.LogFormat, "console") {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(
		zap.String("service", cfg.Observability.ServiceName),
		zap.String("version", cfg.AppVersion),
		zap.String("env", cfg.Environment),
	), nil
}

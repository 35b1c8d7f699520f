package observability

import (
	"context"
	"testing"

	"github.com/railzwaylabs/paycore/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerHonoursLevel(t *testing.T) {
	cfg := config.Config{Observability: config.ObservabilityConfig{LogLevel: "warn", LogFormat: "console"}}
	log, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	cfg := config.Config{Observability: config.ObservabilityConfig{LogLevel: "loud"}}
	_, err := NewLogger(cfg)
	assert.Error(t, err)
}

func TestNewExporterPerProtocol(t *testing.T) {
	for _, protocol := range []string{"http", "grpc"} {
		exp, err := newExporter(config.ObservabilityConfig{
			OTLPEndpoint: "localhost:4317",
			OTLPInsecure: true,
			OTLPProtocol: protocol,
		})
		require.NoError(t, err, protocol)
		assert.NotNil(t, exp)
		assert.NoError(t, exp.Shutdown(context.Background()))
	}
}

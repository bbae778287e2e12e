package logger_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"library-catalog/config"
	"library-catalog/logger"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LogConfig
		enabled zapcore.Level
		wantErr bool
	}{
		{name: "console info", cfg: config.LogConfig{Level: "info", Format: "console"}, enabled: zapcore.InfoLevel},
		{name: "json debug", cfg: config.LogConfig{Level: "DEBUG", Format: "json"}, enabled: zapcore.DebugLevel},
		{name: "bad level", cfg: config.LogConfig{Level: "loud"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := logger.New(tt.cfg, "library")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.True(t, log.Core().Enabled(tt.enabled))
			require.False(t, log.Core().Enabled(tt.enabled-1))
		})
	}
}

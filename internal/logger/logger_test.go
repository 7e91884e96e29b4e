package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	tests := []struct {
		env       string
		debug     bool
		wantDebug bool
	}{
		{"production", false, false},
		{"production", true, true},
		{"development", false, false},
		{"development", true, true},
	}
	for _, tt := range tests {
		lg, err := New(tt.env, tt.debug)
		require.NoError(t, err)
		assert.Equal(t, tt.wantDebug, lg.Core().Enabled(zap.DebugLevel), "env=%s debug=%v", tt.env, tt.debug)
		assert.True(t, lg.Core().Enabled(zap.InfoLevel))
	}
}

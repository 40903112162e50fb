package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"recipebox/internal/config"
	"recipebox/internal/otp"
)

func TestOpen_EphemeralKeyAndMigrations(t *testing.T) {
	cfg := config.Default()
	cfg.Database.DSN = filepath.Join(t.TempDir(), "core.db")

	core, err := Open(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer core.Close()

	flow, err := core.Flows.Start(otp.PurposeVerifyAccountEmail, "cook@example.com")
	require.NoError(t, err)
	attempts, err := core.Flows.Attempts(context.Background(), "cook@example.com", 5)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, flow.ID, attempts[0].FlowID)
}

func TestOpen_BadSessionKey(t *testing.T) {
	cfg := config.Default()
	cfg.Database.DSN = filepath.Join(t.TempDir(), "core.db")
	cfg.Session.Key = "not-hex"

	_, err := Open(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "session key")
}

func TestApplyLogLevel(t *testing.T) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	applyLogLevel(&level, "debug", zap.NewNop())
	assert.Equal(t, zapcore.DebugLevel, level.Level())

	applyLogLevel(&level, "loud", zap.NewNop())
	assert.Equal(t, zapcore.DebugLevel, level.Level())
}

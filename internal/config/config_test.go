package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "127.0.0.1:8787", cfg.ListenAddr())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
server:
  port: 9000
api:
  base_url: https://api.recipebox.test
  timeout: 5s
otp:
  cooldown_seconds: 30
  auto_submit: true
database:
  driver: postgres
  url: postgres://localhost/recipebox?sslmode=disable
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("RECIPEBOX_PORT", "9100")
	t.Setenv("RECIPEBOX_SESSION_KEY", "00ff")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "https://api.recipebox.test", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, 30, cfg.OTP.CooldownSeconds)
	assert.True(t, cfg.OTP.AutoSubmit)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "00ff", cfg.Session.Key)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: mysql\n"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)

	t.Setenv("RECIPEBOX_PORT", "eighty")
	_, err = Load(filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}

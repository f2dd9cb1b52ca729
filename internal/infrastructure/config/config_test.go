package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andeslabs/cryptoqr/backend/internal/logging"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8600", cfg.Server.Port)
	assert.Equal(t, "standard", cfg.Security.Policy)
	assert.Equal(t, 1000, cfg.Security.MinIntervalMS)
	assert.Equal(t, 256, cfg.Security.AuditCapacity)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("SECURITY_POLICY", "strict")
	t.Setenv("QR_DIRECTORY", "/var/data/qr")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "strict", cfg.Security.Policy)
	assert.Equal(t, "/var/data/qr", cfg.QR.Directory)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qrdir.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
allowed_directories = ["/srv/qr", "/data/output"]
blocked_patterns = ["**/node_modules/**"]
policy = "strict"
`), 0o644))

	fc, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"/srv/qr", "/data/output"}, fc.AllowedDirectories)
	assert.Equal(t, []string{"**/node_modules/**"}, fc.BlockedPatterns)
	assert.Equal(t, "strict", fc.Policy)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("allowed_directories = not-toml"), 0o644))
	_, err = LoadFile(bad)
	assert.Error(t, err)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qrdir.toml")
	require.NoError(t, os.WriteFile(path, []byte(`allowed_directories = ["/srv/qr"]`), 0o644))

	w, err := NewWatcher(path, logging.NewNop())
	require.NoError(t, err)
	defer w.Close()

	reloaded := make(chan *FileConfig, 4)
	w.Start(func(fc *FileConfig) { reloaded <- fc })

	require.NoError(t, os.WriteFile(path, []byte(`allowed_directories = ["/srv/qr", "/data/new"]`), 0o644))

	deadline := time.After(3 * time.Second)
	for {
		select {
		case fc := <-reloaded:
			// A single save can emit several events; wait for the one
			// carrying the new content.
			for _, d := range fc.AllowedDirectories {
				if d == "/data/new" {
					return
				}
			}
		case <-deadline:
			t.Fatal("timed out waiting for config reload")
		}
	}
}

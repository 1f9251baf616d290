package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tandem.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Trace.DB)
	assert.Equal(t, 100, cfg.Fuzz.Seeds)
	assert.Equal(t, 30, cfg.Fuzz.Edits)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "tandem", cfg.Redis.ChannelPrefix)
	assert.Empty(t, cfg.File)
}

func TestLoad_File(t *testing.T) {
	t.Setenv("TANDEM_REDIS_ADDR", "")
	path := writeConfig(t, `
log:
  level: debug
trace:
  db: /tmp/trace.db
fuzz:
  seeds: 7
  edits: 12
  initial: hello
redis:
  addr: redis:6380
  channel_prefix: docs
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/trace.db", cfg.Trace.DB)
	assert.Equal(t, FuzzConfig{Seeds: 7, Edits: 12, Initial: "hello"}, cfg.Fuzz)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, "docs", cfg.Redis.ChannelPrefix)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "fuzz:\n  seeds: 3\n"))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Fuzz.Seeds)
	assert.Equal(t, 30, cfg.Fuzz.Edits)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "fuzz:\n  seeds: 3\nredis:\n  addr: a:1\n")
	t.Setenv("TANDEM_FUZZ_SEEDS", "11")
	t.Setenv("TANDEM_REDIS_ADDR", "b:2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 11, cfg.Fuzz.Seeds)
	assert.Equal(t, "b:2", cfg.Redis.Addr)
}

func TestLoad_SearchWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.File)
	assert.Equal(t, 100, cfg.Fuzz.Seeds)
}

func TestLoad_SearchFindsWorkingDirectoryFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tandem.yaml"), []byte("fuzz:\n  edits: 4\n"), 0o644))
	chdir(t, dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Fuzz.Edits)
	assert.NotEmpty(t, cfg.File)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"negative seeds", "fuzz:\n  seeds: -1\n", "fuzz.seeds"},
		{"negative edits", "fuzz:\n  edits: -2\n", "fuzz.edits"},
		{"empty prefix", "redis:\n  channel_prefix: \"\"\n", "channel_prefix"},
		{"malformed yaml", "fuzz: [\n", "read config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

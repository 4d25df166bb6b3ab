package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir isolates the .env lookup
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	cfg, err := Load(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr())
	assert.Equal(t, "data/billing.db", cfg.Database.Path)
	assert.Equal(t, 90*24*time.Hour, cfg.Database.Retention)
	assert.Equal(t, 50, cfg.Mail.PollAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Mail.PollInterval)
	assert.Equal(t, "console", cfg.Logger.Format)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
workspace:
  output_dir: out
mail:
  to: [billing@example.com]
  cc: [ops@example.com, lead@example.com]
  poll_interval: 20ms
logger:
  format: json
`), 0644))

	t.Setenv("BILLING_SERVER_HOST", "0.0.0.0")
	t.Setenv("BILLING_SIGNATURE", "/tmp/sig.htm")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
	assert.Equal(t, "out", cfg.Workspace.OutputDir)
	assert.Equal(t, []string{"billing@example.com"}, cfg.Mail.To)
	assert.Len(t, cfg.Mail.CC, 2)
	assert.Equal(t, 20*time.Millisecond, cfg.Mail.PollInterval)
	assert.Equal(t, "/tmp/sig.htm", cfg.Mail.SignaturePath)
	assert.Equal(t, "json", cfg.Logger.Utils().Format)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BILLING_DATABASE_PATH=env.db\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("BILLING_DATABASE_PATH") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.Database.Path)
}

func TestLoad_Malformed(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:    ServerConfig{Port: 8080},
			Database:  DatabaseConfig{Path: "x.db", Retention: time.Hour, PruneInterval: time.Minute},
			Workspace: WorkspaceConfig{OutputDir: "out"},
			Mail:      MailConfig{DraftsDir: "drafts", PollAttempts: 1},
			Logger:    LoggerConfig{Format: "json"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"database path", func(c *Config) { c.Database.Path = "" }},
		{"prune interval", func(c *Config) { c.Database.PruneInterval = 0 }},
		{"output dir", func(c *Config) { c.Workspace.OutputDir = "" }},
		{"drafts dir", func(c *Config) { c.Mail.DraftsDir = "" }},
		{"poll attempts", func(c *Config) { c.Mail.PollAttempts = 0 }},
		{"to address", func(c *Config) { c.Mail.To = []string{"nobody"} }},
		{"cc address", func(c *Config) { c.Mail.CC = []string{"a@example.com", "@"} }},
		{"log format", func(c *Config) { c.Logger.Format = "xml" }},
	}

	base := valid()
	require.NoError(t, base.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

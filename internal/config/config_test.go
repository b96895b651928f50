package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/tmp/inventory.sock", cfg.Server.RPCSocket)
	assert.Equal(t, 24*time.Hour, cfg.Server.SessionTTL)
	assert.Equal(t, "inventory.db", cfg.Database.Path)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.EqualValues(t, 10<<20, cfg.Attachments.MaxSize)
	assert.Equal(t, 30*time.Minute, cfg.Wizard.SessionTTL)
	assert.Equal(t, 5, cfg.HTTP.LoginBurst)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
  session_ttl: 2h
database:
  path: /var/lib/inventory/inventory.db
storage:
  driver: s3
  s3:
    bucket: attachments
    endpoint: http://minio:9000
    use_path_style: true
attachments:
  max_size: 2048
`)
	t.Setenv("INVENTORY_DATABASE_PATH", "/tmp/override.db")
	t.Setenv("INVENTORY_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 2*time.Hour, cfg.Server.SessionTTL)
	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "s3", cfg.Storage.Driver)
	assert.Equal(t, "attachments", cfg.Storage.S3.Bucket)
	assert.True(t, cfg.Storage.S3.UsePathStyle)
	assert.EqualValues(t, 2048, cfg.Attachments.MaxSize)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown driver", body: "storage:\n  driver: ftp\n"},
		{name: "s3 without bucket", body: "storage:\n  driver: s3\n"},
		{name: "half credentials", body: "storage:\n  driver: s3\n  s3:\n    bucket: b\n    access_key_id: k\n"},
		{name: "short session", body: "server:\n  session_ttl: 10s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigContent = `
[development]
host = "localhost"
port = 8080
log_level = "trace"
log_to_stdout = true
postgres_host = "localhost"
postgres_port = "5432"
postgres_db_name = "wikibin"
redis_host = "localhost"
redis_port = "6379"

[production]
host = "0.0.0.0"
port = 9000
log_level = "debug"
logs_path = "/var/log/wikibin.log"
postgres_host = "db"
postgres_port = "5432"
postgres_db_name = "wikibin"
redis_host = "redis"
redis_port = "6379"
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigContent), 0o600))

	cfg, err := Load("development", path)
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "trace", cfg.LogLevel)
	assert.True(t, cfg.LogToStdout)
	assert.Equal(t, "development", cfg.Environment)

	cfg, err = Load("prod", path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "/var/log/wikibin.log", cfg.LogsPath)

	_, err = Load("staging", path)
	assert.Error(t, err)
}

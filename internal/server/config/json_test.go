package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	full := writeTempJSON(t, dir, "full.json", map[string]any{
		"http_addr":          "www.example:9000",
		"tcp_addr":           ":9001",
		"grpc_addr":          ":9002",
		"database_dsn":       "postgres://db/users",
		"database_pool_size": 20,
		"cert_file":          "c.pem",
		"key_file":           "k.pem",
		"max_connections":    64,
		"shutdown_timeout":   "30s",
		"log_level":          "error",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", full}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, Config{
			HTTPAddr:         "www.example:9000",
			TCPAddr:          ":9001",
			GRPCAddr:         ":9002",
			DatabaseDSN:      "postgres://db/users",
			DatabasePoolSize: 20,
			CertFile:         "c.pem",
			KeyFile:          "k.pem",
			MaxConnections:   64,
			ShutdownTimeout:  30 * time.Second,
			LogLevel:         "error",
		}, *cfg)
	})

	t.Run("partial file keeps other values", func(t *testing.T) {
		partial := writeTempJSON(t, dir, "partial.json", map[string]any{
			"grpc_addr": "",
		})
		os.Args = []string{"testbin", "-c", partial}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "", cfg.GRPCAddr)
		assert.Equal(t, ":8080", cfg.HTTPAddr)
		assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	})

	t.Run("no config flag leaves config untouched", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{HTTPAddr: "defaults:1234", MaxConnections: 3}
		parseJson(cfg)

		assert.Equal(t, Config{HTTPAddr: "defaults:1234", MaxConnections: 3}, *cfg)
	})

	t.Run("invalid JSON panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		require.Panics(t, func() { parseJson(&Config{}) })
	})

	t.Run("missing file panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", filepath.Join(dir, "absent.json")}

		require.Panics(t, func() { parseJson(&Config{}) })
	})
}

package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/usersvc/internal/flagx"
	"github.com/dmitrijs2005/usersvc/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Every field is
// optional: absent keys keep whatever value the Config already had.
type JsonConfig struct {
	HTTPAddr         *string         `json:"http_addr"`
	TCPAddr          *string         `json:"tcp_addr"`
	GRPCAddr         *string         `json:"grpc_addr"`
	DatabaseDSN      *string         `json:"database_dsn"`
	DatabasePoolSize *int            `json:"database_pool_size"`
	CertFile         *string         `json:"cert_file"`
	KeyFile          *string         `json:"key_file"`
	MaxConnections   *int            `json:"max_connections"`
	ShutdownTimeout  *timex.Duration `json:"shutdown_timeout"`
	LogLevel         *string         `json:"log_level"`
}

// parseJson overlays values from the file named by -c/-config. Without the
// flag nothing happens. An unreadable file or invalid JSON panics, like a
// malformed flag does.
func parseJson(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setIf(&config.HTTPAddr, c.HTTPAddr)
	setIf(&config.TCPAddr, c.TCPAddr)
	setIf(&config.GRPCAddr, c.GRPCAddr)
	setIf(&config.DatabaseDSN, c.DatabaseDSN)
	setIf(&config.DatabasePoolSize, c.DatabasePoolSize)
	setIf(&config.CertFile, c.CertFile)
	setIf(&config.KeyFile, c.KeyFile)
	setIf(&config.MaxConnections, c.MaxConnections)
	setIf(&config.LogLevel, c.LogLevel)
	if c.ShutdownTimeout != nil {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

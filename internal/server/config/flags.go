package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/usersvc/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
//	-a string     HTTP bind address (e.g. ":8080"), "" disables HTTP
//	-n string     TCP line-JSON bind address, "" disables it
//	-g string     gRPC bind address, "" disables it
//	-d string     database DSN ("memory" or postgres://...)
//	-p int        database pool size
//	-cert string  TLS certificate file
//	-key string   TLS private key file
//	-m int        max concurrent connections per listener
//	-s int        shutdown timeout, seconds
//	-l string     log level
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-n", "-g", "-d", "-p", "-cert", "-key", "-m", "-s", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port")
	fs.StringVar(&config.TCPAddr, "n", config.TCPAddr, "TCP line-JSON address and port")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "gRPC address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.IntVar(&config.DatabasePoolSize, "p", config.DatabasePoolSize, "database pool size")
	fs.StringVar(&config.CertFile, "cert", config.CertFile, "TLS certificate file")
	fs.StringVar(&config.KeyFile, "key", config.KeyFile, "TLS key file")
	fs.IntVar(&config.MaxConnections, "m", config.MaxConnections, "max connections per listener")
	shutdownTimeout := fs.Int("s", int(config.ShutdownTimeout.Seconds()), "shutdown timeout (in seconds)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.ShutdownTimeout = time.Duration(*shutdownTimeout) * time.Second
}

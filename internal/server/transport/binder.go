// Package transport binds listening sockets. A Binder tries to serve TLS
// with the configured certificate and falls back to plaintext on the same
// address when the certificate cannot be loaded.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/dmitrijs2005/usersvc/internal/logging"
	"golang.org/x/net/netutil"
)

// Mode is the security state a listener ended up in.
type Mode int

const (
	ModePlain Mode = iota
	ModeSecured
)

func (m Mode) String() string {
	if m == ModeSecured {
		return "secured"
	}
	return "plain"
}

var ErrNoCertificate = errors.New("certificate or key path not configured")

// Binding is a bound listener. When Mode is ModeSecured, Listener already
// performs the TLS handshake and TLS is the config it uses; Raw is the
// connection-limited socket beneath it for servers that run their own
// handshake.
type Binding struct {
	Listener net.Listener
	Raw      net.Listener
	Mode     Mode
	TLS      *tls.Config
}

type Binder struct {
	certFile string
	keyFile  string
	maxConns int
	logger   logging.Logger
}

// NewBinder returns a Binder. maxConns <= 0 leaves listeners unbounded.
func NewBinder(certFile, keyFile string, maxConns int, logger logging.Logger) *Binder {
	return &Binder{
		certFile: certFile,
		keyFile:  keyFile,
		maxConns: maxConns,
		logger:   logger.With("module", "transport"),
	}
}

// Listen binds addr for the transport called name. Certificate problems are
// logged and answered with a plaintext listener; only a failure to bind the
// socket is returned.
func (b *Binder) Listen(ctx context.Context, name, addr string, nextProtos ...string) (*Binding, error) {
	tlsCfg, tlsErr := b.serverTLSConfig(nextProtos)

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%s: bind %s: %w", name, addr, err)
	}
	if b.maxConns > 0 {
		ln = netutil.LimitListener(ln, b.maxConns)
	}

	if tlsErr != nil {
		b.logger.Warn(ctx, "TLS unavailable, serving plaintext",
			"transport", name,
			"addr", ln.Addr().String(),
			"error", tlsErr,
		)
		return &Binding{Listener: ln, Raw: ln, Mode: ModePlain}, nil
	}

	b.logger.Info(ctx, "listener bound", "transport", name, "addr", ln.Addr().String(), "mode", ModeSecured.String())
	return &Binding{Listener: tls.NewListener(ln, tlsCfg), Raw: ln, Mode: ModeSecured, TLS: tlsCfg}, nil
}

func (b *Binder) serverTLSConfig(nextProtos []string) (*tls.Config, error) {
	if strings.TrimSpace(b.certFile) == "" || strings.TrimSpace(b.keyFile) == "" {
		return nil, ErrNoCertificate
	}
	cert, err := tls.LoadX509KeyPair(b.certFile, b.keyFile)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		NextProtos:   nextProtos,
	}, nil
}

// Package netcheck reports whether the sync server is reachable.
package netcheck

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"
)

// DefaultDialTimeout bounds a single reachability probe.
const DefaultDialTimeout = 3 * time.Second

// Oracle answers "are we online?". It is consulted before every
// network-touching operation.
type Oracle interface {
	Online(ctx context.Context) bool
}

// OracleFunc adapts a plain function to an Oracle.
type OracleFunc func(ctx context.Context) bool

// Online calls f.
func (f OracleFunc) Online(ctx context.Context) bool { return f(ctx) }

// Static is an Oracle with a fixed answer.
type Static bool

// Online returns the fixed answer.
func (s Static) Online(context.Context) bool { return bool(s) }

// DialOracle probes connectivity by opening a TCP connection to the server.
type DialOracle struct {
	addr    string
	timeout time.Duration
	dialer  net.Dialer
}

// NewDialOracle builds a DialOracle for the host of baseURL. The port
// defaults from the scheme.
func NewDialOracle(baseURL string, timeout time.Duration) (*DialOracle, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("base url %q has no host", baseURL)
	}

	port := u.Port()
	if port == "" {
		port = "443"
		if u.Scheme == "http" {
			port = "80"
		}
	}
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	return &DialOracle{
		addr:    net.JoinHostPort(u.Hostname(), port),
		timeout: timeout,
	}, nil
}

// Online reports whether a TCP connection to the server could be opened.
func (o *DialOracle) Online(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	conn, err := o.dialer.DialContext(ctx, "tcp", o.addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

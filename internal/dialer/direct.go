package dialer

import (
	"context"
	"fmt"
	"net"
)

type directDialer struct {
	cfg Config
}

// NewDirectDialer returns a Dialer that connects straight to the address
// with cfg.DialTimeout.
func NewDirectDialer(cfg Config) Dialer {
	return &directDialer{cfg: cfg}
}

func (f *directDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	// Keep-alive is left to the session holder, which applies it once
	// negotiation succeeds. Negative disables the OS default meanwhile.
	dd := net.Dialer{Timeout: f.cfg.DialTimeout, KeepAlive: -1}

	conn, err := dd.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", network, address, err)
	}

	return conn, nil
}

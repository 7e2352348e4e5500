package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/die-net/sockshold/internal/dialer"
	"github.com/die-net/sockshold/internal/proxyspec"
	"github.com/die-net/sockshold/internal/session"
	"github.com/die-net/sockshold/internal/socks5"
)

type tunnelConfig struct {
	Dialer             dialer.Dialer
	NegotiationTimeout time.Duration
	Session            session.Config

	// Once closes the connection right after a successful handshake.
	Once    bool
	Verbose bool
}

// openTunnel dials the proxy, negotiates, and holds the connection until ctx
// is done. The connection is closed on every return path.
func openTunnel(ctx context.Context, cfg tunnelConfig, spec proxyspec.Spec) error {
	log.Printf("connecting to SOCKS5 proxy %s", spec)

	c, err := cfg.Dialer.DialContext(ctx, "tcp", spec.Address())
	if err != nil {
		if ctx.Err() != nil {
			log.Print("interrupted while connecting")
			return nil
		}
		return &exitError{code: exitHandshake, err: err}
	}

	h := session.New(c, cfg.Session)
	defer h.Close()

	n := &socks5.Negotiator{Auth: spec.Auth, Timeout: cfg.NegotiationTimeout}
	if err := n.Negotiate(ctx, h.Conn()); err != nil {
		if ctx.Err() != nil {
			log.Print("interrupted during handshake")
			return nil
		}
		if cfg.Verbose {
			log.Printf("handshake stopped in state %s", n.State())
		}
		return &exitError{code: exitHandshake, err: fmt.Errorf("handshake failed: %w", err)}
	}

	if cfg.Verbose {
		log.Printf("proxy selected method 0x%02x", n.Method())
	}

	if spec.Auth != nil && n.Method() == socks5.MethodUsernamePassword {
		log.Printf("authenticated as %q", spec.Auth.Username)
	} else {
		log.Print("connected (no authentication required)")
	}

	if cfg.Once {
		log.Print("closing connection")
		return nil
	}

	log.Print("connection is open and will be kept alive; press Ctrl-C to terminate")
	err = h.Hold(ctx)
	log.Print("terminating connection")
	return err
}

package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/die-net/sockshold/internal/conn"
)

// DefaultTick is the hold loop's wake-up granularity when Config.Tick is
// unset.
const DefaultTick = time.Second

// probeWait bounds each liveness read. It must be positive; a deadline
// already in the past fails the read before EOF can be observed.
const probeWait = 10 * time.Millisecond

// ErrPeerClosed is returned by Hold when a liveness probe finds the
// connection closed or broken.
var ErrPeerClosed = errors.New("session: connection to proxy lost")

type Config struct {
	// KeepAlive is applied best-effort when holding starts.
	KeepAlive net.KeepAliveConfig
	// Tick is how often the hold loop wakes up. Zero means DefaultTick.
	Tick time.Duration
	// Probe checks on every tick whether the proxy has closed the
	// connection. Any bytes the proxy sends are discarded.
	Probe bool
	// Logger receives non-fatal problems. Nil means log.Default().
	Logger *log.Logger
}

type Holder struct {
	conn net.Conn
	cfg  Config

	closeOnce sync.Once
	closeErr  error
}

// New takes ownership of c.
func New(c net.Conn, cfg Config) *Holder {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Holder{conn: c, cfg: cfg}
}

// Conn returns the held connection for negotiation. Callers must not close
// it; use Close.
func (h *Holder) Conn() net.Conn {
	return h.conn
}

// Close closes the connection. Only the first call reaches the connection;
// later calls return the first result.
func (h *Holder) Close() error {
	h.closeOnce.Do(func() {
		h.closeErr = h.conn.Close()
	})
	return h.closeErr
}

// Hold applies keep-alive and blocks until ctx is done or a probe fails, then
// closes the connection. Cancellation is not an error.
func (h *Holder) Hold(ctx context.Context) error {
	defer h.Close()

	if err := conn.ApplyKeepAlive(h.conn, h.cfg.KeepAlive); err != nil {
		h.cfg.Logger.Printf("keepalive not applied, continuing: %v", err)
	}

	t := time.NewTicker(h.cfg.Tick)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}

		if h.cfg.Probe {
			if err := h.probe(); err != nil {
				return err
			}
		}
	}
}

func (h *Holder) probe() error {
	if err := h.conn.SetReadDeadline(time.Now().Add(probeWait)); err != nil {
		return fmt.Errorf("%w: %w", ErrPeerClosed, err)
	}

	var buf [512]byte
	for {
		_, err := h.conn.Read(buf[:])
		if err == nil {
			continue
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			_ = h.conn.SetReadDeadline(time.Time{})
			return nil
		}
		return fmt.Errorf("%w: %w", ErrPeerClosed, err)
	}
}

package session

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type countingConn struct {
	net.Conn
	closes atomic.Int32
}

func (c *countingConn) Close() error {
	c.closes.Add(1)
	return c.Conn.Close()
}

func quietLogger(buf *bytes.Buffer) *log.Logger {
	return log.New(buf, "", 0)
}

func TestHoldCancel(t *testing.T) {
	t.Parallel()

	client, server := net.Pipe()
	defer server.Close()
	cc := &countingConn{Conn: client}

	var logs bytes.Buffer
	tick := 50 * time.Millisecond
	h := New(cc, Config{Tick: tick, Probe: true, Logger: quietLogger(&logs)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Hold(ctx) }()

	// Let a few ticks pass so the loop is known to be parked.
	time.Sleep(3 * tick)
	cancelled := time.Now()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hold did not return after cancel")
	}
	if d := time.Since(cancelled); d > tick+probeWait+100*time.Millisecond {
		t.Fatalf("shutdown took %v, longer than one tick", d)
	}

	if n := cc.closes.Load(); n != 1 {
		t.Fatalf("expected 1 close, got %d", n)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if n := cc.closes.Load(); n != 1 {
		t.Fatalf("expected close to stay at 1, got %d", n)
	}
}

func TestHoldKeepAliveFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	client, server := net.Pipe()
	defer server.Close()

	var logs bytes.Buffer
	h := New(client, Config{Tick: 10 * time.Millisecond, KeepAlive: net.KeepAliveConfig{Enable: true}, Logger: quietLogger(&logs)})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := h.Hold(ctx); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(logs.String(), "keepalive not applied") {
		t.Fatalf("expected keepalive log, got %q", logs.String())
	}
}

func TestHoldPeerClosed(t *testing.T) {
	t.Parallel()

	client, server := net.Pipe()
	cc := &countingConn{Conn: client}

	var logs bytes.Buffer
	h := New(cc, Config{Tick: 10 * time.Millisecond, Probe: true, Logger: quietLogger(&logs)})

	_ = server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := h.Hold(ctx)
	if !errors.Is(err, ErrPeerClosed) {
		t.Fatalf("expected ErrPeerClosed, got %v", err)
	}
	if n := cc.closes.Load(); n != 1 {
		t.Fatalf("expected 1 close, got %d", n)
	}
}

func TestHoldDiscardsStrayBytes(t *testing.T) {
	t.Parallel()

	client, server := net.Pipe()
	defer server.Close()

	var logs bytes.Buffer
	h := New(client, Config{Tick: 10 * time.Millisecond, Probe: true, Logger: quietLogger(&logs)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Hold(ctx) }()

	// net.Pipe writes block until read, so this returning means the probe
	// consumed the bytes.
	_ = server.SetWriteDeadline(time.Now().Add(time.Second))
	if _, err := server.Write([]byte("unsolicited")); err != nil {
		t.Fatal(err)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestHoldWithoutProbeIgnoresPeer(t *testing.T) {
	t.Parallel()

	client, server := net.Pipe()
	_ = server.Close()

	var logs bytes.Buffer
	h := New(client, Config{Tick: 5 * time.Millisecond, Logger: quietLogger(&logs)})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := h.Hold(ctx); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestCloseBeforeHold(t *testing.T) {
	t.Parallel()

	client, server := net.Pipe()
	defer server.Close()
	cc := &countingConn{Conn: client}

	h := New(cc, Config{})
	if h.Conn() != cc {
		t.Fatal("Conn returned a different connection")
	}
	_ = h.Close()
	_ = h.Close()
	if n := cc.closes.Load(); n != 1 {
		t.Fatalf("expected 1 close, got %d", n)
	}
}

package testutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"

	txsocks5 "github.com/txthinking/socks5"
)

// FakeProxy scripts the server side of a SOCKS5 method negotiation.
type FakeProxy struct {
	// Method is sent in the method selection reply.
	Method byte
	// Username and Password, when Method is username/password, are compared
	// against the client's sub-negotiation request.
	Username string
	Password string
	// Status overrides the sub-negotiation status when non-nil.
	Status *byte

	// Greeting and UserPass record what the client sent.
	Greeting *txsocks5.NegotiationRequest
	UserPass *txsocks5.UserPassNegotiationRequest
	// Trailing holds any bytes the client sent after negotiation finished,
	// up to the point the client closed the connection.
	Trailing []byte
}

// Serve runs the scripted negotiation on conn, then drains conn until EOF
// into Trailing.
func (p *FakeProxy) Serve(conn net.Conn) error {
	neg, err := txsocks5.NewNegotiationRequestFrom(conn)
	if err != nil {
		return fmt.Errorf("negotiation request: %w", err)
	}
	p.Greeting = neg

	if _, err := txsocks5.NewNegotiationReply(p.Method).WriteTo(conn); err != nil {
		return fmt.Errorf("negotiation reply: %w", err)
	}

	if p.Method == txsocks5.MethodUsernamePassword {
		urq, err := txsocks5.NewUserPassNegotiationRequestFrom(conn)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			// The client gave up before sub-negotiating.
			return nil
		}
		if err != nil {
			return fmt.Errorf("read userpass: %w", err)
		}
		p.UserPass = urq

		var status byte = txsocks5.UserPassStatusSuccess
		if string(urq.Uname) != p.Username || string(urq.Passwd) != p.Password {
			status = txsocks5.UserPassStatusFailure
		}
		if p.Status != nil {
			status = *p.Status
		}
		if _, err := txsocks5.NewUserPassNegotiationReply(status).WriteTo(conn); err != nil {
			return fmt.Errorf("write userpass: %w", err)
		}
	}

	var buf bytes.Buffer
	_, err = io.Copy(&buf, conn)
	p.Trailing = buf.Bytes()
	if err != nil && !errors.Is(err, io.ErrClosedPipe) && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("drain: %w", err)
	}
	return nil
}

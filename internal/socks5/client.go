package socks5

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	txsocks5 "github.com/txthinking/socks5"
)

const (
	// MethodNone is the "no authentication required" method.
	MethodNone = txsocks5.MethodNone
	// MethodUsernamePassword is the RFC 1929 username/password method.
	MethodUsernamePassword = txsocks5.MethodUsernamePassword
)

// MaxCredentialLen is the longest username or password RFC 1929 can carry in
// its one-byte length prefix.
const MaxCredentialLen = 255

// Auth configures optional username/password authentication for SOCKS5
// negotiation.
type Auth struct {
	Username string
	Password string
}

// Validate reports whether a can be encoded in an RFC 1929 request.
func (a *Auth) Validate() error {
	if a == nil {
		return nil
	}
	if a.Username == "" {
		return errors.New("socks5: empty username")
	}
	if len(a.Username) > MaxCredentialLen {
		return fmt.Errorf("%w: username is %d bytes, max %d", ErrCredentialsTooLong, len(a.Username), MaxCredentialLen)
	}
	if len(a.Password) > MaxCredentialLen {
		return fmt.Errorf("%w: password is %d bytes, max %d", ErrCredentialsTooLong, len(a.Password), MaxCredentialLen)
	}
	return nil
}

// State is a step of the client negotiation.
type State int

const (
	Init State = iota
	GreetingSent
	AwaitingMethodSelection
	SubNegotiation
	Authenticated
	Failed
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case GreetingSent:
		return "greeting-sent"
	case AwaitingMethodSelection:
		return "awaiting-method-selection"
	case SubNegotiation:
		return "sub-negotiation"
	case Authenticated:
		return "authenticated"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// aLongTimeAgo is a non-zero deadline in the past, used to abort blocked I/O.
var aLongTimeAgo = time.Unix(1, 0)

// Negotiator drives a single client negotiation over an open connection.
//
// A Negotiator is not reusable; create one per connection.
type Negotiator struct {
	// Auth, when non-nil, makes the client offer only username/password.
	Auth *Auth
	// Timeout bounds the whole negotiation. Zero means no timeout.
	Timeout time.Duration

	state  State
	method byte
}

// Negotiate performs the method negotiation (and sub-negotiation, if the
// proxy selects it) on conn. It applies timeout as a deadline on conn and
// clears it on success. conn is never closed.
func Negotiate(ctx context.Context, conn net.Conn, auth *Auth, timeout time.Duration) error {
	n := &Negotiator{Auth: auth, Timeout: timeout}
	return n.Negotiate(ctx, conn)
}

// State returns the last state the negotiation reached.
func (n *Negotiator) State() State {
	return n.state
}

// Method returns the method the proxy selected, valid once the state has
// passed AwaitingMethodSelection.
func (n *Negotiator) Method() byte {
	return n.method
}

// Negotiate runs the state machine from Init until Authenticated or Failed.
func (n *Negotiator) Negotiate(ctx context.Context, conn net.Conn) error {
	if n.state != Init {
		return fmt.Errorf("negotiator already used (state %s)", n.state)
	}

	// Length overflow must be caught before anything reaches the wire.
	if err := n.Auth.Validate(); err != nil {
		n.state = Failed
		return err
	}

	if n.Timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(n.Timeout)); err != nil {
			n.state = Failed
			return fmt.Errorf("set deadline: %w", err)
		}
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(aLongTimeAgo)
	})
	defer stop()

	for n.state != Authenticated {
		if err := n.step(ctx, conn); err != nil {
			n.state = Failed
			return err
		}
	}

	if !stop() && ctx.Err() != nil {
		// Cancellation raced with the final read; the deadline is now poisoned.
		n.state = Failed
		return ctx.Err()
	}
	if n.Timeout > 0 {
		_ = conn.SetDeadline(time.Time{})
	}
	return nil
}

func (n *Negotiator) step(ctx context.Context, conn net.Conn) error {
	switch n.state {
	case Init:
		methods := []byte{txsocks5.MethodNone}
		if n.Auth != nil {
			methods = []byte{txsocks5.MethodUsernamePassword}
		}
		if _, err := txsocks5.NewNegotiationRequest(methods).WriteTo(conn); err != nil {
			return classify(ctx, "write greeting", err)
		}
		n.state = GreetingSent

	case GreetingSent:
		n.state = AwaitingMethodSelection

	case AwaitingMethodSelection:
		rep, err := txsocks5.NewNegotiationReplyFrom(conn)
		if err != nil {
			return classify(ctx, "read method selection", err)
		}
		if rep.Ver != txsocks5.Ver {
			return fmt.Errorf("%w: method selection version 0x%02x", ErrProtocol, rep.Ver)
		}
		n.method = rep.Method

		switch rep.Method {
		case txsocks5.MethodUnsupportAll:
			return ErrNoAcceptableMethod
		case txsocks5.MethodNone:
			n.state = Authenticated
		case txsocks5.MethodUsernamePassword:
			if n.Auth == nil {
				return fmt.Errorf("%w: proxy selected username/password but no credentials were offered", ErrUnexpectedMethod)
			}
			n.state = SubNegotiation
		default:
			return fmt.Errorf("%w: 0x%02x", ErrUnexpectedMethod, rep.Method)
		}

	case SubNegotiation:
		req := txsocks5.NewUserPassNegotiationRequest([]byte(n.Auth.Username), []byte(n.Auth.Password))
		if _, err := req.WriteTo(conn); err != nil {
			return classify(ctx, "write username/password", err)
		}
		rep, err := txsocks5.NewUserPassNegotiationReplyFrom(conn)
		if err != nil {
			return classify(ctx, "read username/password status", err)
		}
		if rep.Ver != txsocks5.UserPassVer {
			return fmt.Errorf("%w: username/password reply version 0x%02x", ErrProtocol, rep.Ver)
		}
		if rep.Status != txsocks5.UserPassStatusSuccess {
			return fmt.Errorf("%w: status 0x%02x", ErrAuthenticationFailed, rep.Status)
		}
		n.state = Authenticated

	default:
		return fmt.Errorf("unexpected state %s", n.state)
	}
	return nil
}

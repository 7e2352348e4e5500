package socks5

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
)

var (
	// ErrProtocol reports a malformed or short reply from the proxy.
	ErrProtocol = errors.New("socks5: protocol error")

	// ErrNoAcceptableMethod reports a method selection of 0xFF.
	ErrNoAcceptableMethod = errors.New("socks5: no acceptable authentication methods")

	// ErrUnexpectedMethod reports a method selection the client did not offer.
	ErrUnexpectedMethod = errors.New("socks5: unexpected authentication method")

	// ErrAuthenticationFailed reports a non-zero RFC 1929 status.
	ErrAuthenticationFailed = errors.New("socks5: username/password authentication failed")

	// ErrTimeout reports that the proxy did not answer within the negotiation timeout.
	ErrTimeout = errors.New("socks5: negotiation timed out")

	// ErrCredentialsTooLong reports a username or password over 255 bytes.
	ErrCredentialsTooLong = errors.New("socks5: username/password too long")
)

// classify maps a transport or codec error seen during step into the
// package's error taxonomy. Plain I/O errors are wrapped verbatim.
func classify(ctx context.Context, step string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", step, ctxErr)
	}

	var ne net.Error
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		return fmt.Errorf("%w: %s: %w", ErrTimeout, step, err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %s: short reply: %w", ErrProtocol, step, err)
	case isIOError(err):
		return fmt.Errorf("%s: %w", step, err)
	default:
		// Anything else came from the codec rejecting the reply bytes.
		return fmt.Errorf("%w: %s: %w", ErrProtocol, step, err)
	}
}

func isIOError(err error) bool {
	var (
		ne net.Error
		oe *net.OpError
		se *os.SyscallError
	)
	return errors.As(err, &oe) || errors.As(err, &se) || errors.As(err, &ne) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}

package proxyspec

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/die-net/sockshold/internal/socks5"
)

// DefaultPort is used when a proxy URL has no port.
const DefaultPort = 1080

// Spec describes one SOCKS5 proxy endpoint and its optional credentials.
type Spec struct {
	Host string
	Port int
	// Auth is nil when the proxy is used without credentials.
	Auth *socks5.Auth
}

// Address returns host:port suitable for dialing.
func (s Spec) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// String returns the spec as a socks5:// URL with the password redacted.
func (s Spec) String() string {
	u := &url.URL{Scheme: "socks5", Host: s.Address()}
	if s.Auth != nil {
		u.User = url.UserPassword(s.Auth.Username, s.Auth.Password)
	}
	return u.Redacted()
}

// Validate checks the host, port range, and credential invariants.
func (s Spec) Validate() error {
	if s.Host == "" {
		return errors.New("empty host")
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", s.Port)
	}
	if err := s.Auth.Validate(); err != nil {
		return err
	}
	return nil
}

// ParseError is returned when no proxy description can be found in the
// input, or the one found is invalid.
type ParseError struct {
	// Rule names the extraction rule that produced the error, if any.
	Rule string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Rule == "" {
		return "parse proxy: " + e.Err.Error()
	}
	return fmt.Sprintf("parse proxy (%s): %v", e.Rule, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ErrNotFound is wrapped by the ParseError returned when nothing in the input
// looks like a proxy.
var ErrNotFound = errors.New("no proxy found in input")

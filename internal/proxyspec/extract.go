package proxyspec

import (
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/die-net/sockshold/internal/socks5"
)

var (
	socksURLRE = regexp.MustCompile(`socks5h?://[^\s"']+`)
	schemeRE   = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
	hostPortRE = regexp.MustCompile(`([0-9a-zA-Z.-]+):(\d{1,5})`)
)

// urlRule finds a proxy URL candidate in text.
type urlRule struct {
	name string
	re   *regexp.Regexp
}

// find returns the candidate captured by the rule: the first submatch if the
// pattern has one, otherwise the whole match.
func (r urlRule) find(text string) (string, bool) {
	m := r.re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[len(m)-1], true
}

// Rules after the JSON rule, in priority order. Flag values may be wrapped in
// a single quote character, as they are in pasted shell commands.
var urlRules = []urlRule{
	{name: "socks url", re: socksURLRE},
	{name: "--socks5-host", re: regexp.MustCompile(`--socks5-host\s+["']?([^\s"']+)`)},
	{name: "--socks5", re: regexp.MustCompile(`--socks5\s+["']?([^\s"']+)`)},
	{name: "--proxy", re: regexp.MustCompile(`--proxy\s+["']?([^\s"']+)`)},
	{name: "-x", re: regexp.MustCompile(`(?:^|\s)-x\s+["']?([^\s"']+)`)},
}

// Extract finds a proxy description in text. The first matching rule wins:
//
//  1. the whole input is a JSON object (see Record)
//  2. an embedded socks5:// or socks5h:// URL
//  3. a --socks5-host, --socks5, --proxy, or -x flag value
//  4. (used by 1-3) URL parsing of scheme://[user[:pass]@]host[:port]
//  5. the first host:port substring
//
// A JSON object that does not describe a proxy falls through to the other
// rules. A URL found by rules 2 or 3 that fails to parse is an error; the
// bare host:port rule is not consulted for it.
//
// All errors are *ParseError.
func Extract(text string) (Spec, error) {
	text = strings.TrimSpace(text)

	var jsonErr error
	if rec, ok := decodeRecord(text); ok {
		s, err := rec.Spec()
		if err == nil {
			return s, nil
		}
		jsonErr = &ParseError{Rule: "json", Err: err}
	}

	for _, r := range urlRules {
		raw, ok := r.find(text)
		if !ok {
			continue
		}
		s, err := ParseURL(raw)
		if err != nil {
			return Spec{}, &ParseError{Rule: r.name, Err: err}
		}
		return s, nil
	}

	if m := hostPortRE.FindStringSubmatch(text); m != nil {
		s, err := hostPortSpec(m[1], m[2])
		if err != nil {
			return Spec{}, &ParseError{Rule: "host:port", Err: err}
		}
		return s, nil
	}

	if jsonErr != nil {
		return Spec{}, jsonErr
	}
	return Spec{}, &ParseError{Err: ErrNotFound}
}

// ExtractFile reads path and runs Extract on its contents.
func ExtractFile(path string) (Spec, error) {
	b, err := os.ReadFile(path) //nolint:gosec // Path is from the command line.
	if err != nil {
		return Spec{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Extract(string(b))
}

// ParseURL parses scheme://[user[:pass]@]host[:port]. A missing scheme is
// taken to be socks5://, and a missing port is DefaultPort. The scheme is not
// otherwise checked; the proxy is always spoken to as SOCKS5.
//
// Credentials are taken literally, without percent-decoding, so passwords
// containing '#', '?', '/', '%', or '@' survive as typed. The userinfo ends at
// the last '@' and the username at the first ':'. Errors never include the
// password.
func ParseURL(raw string) (Spec, error) {
	authority := schemeRE.ReplaceAllString(raw, "")

	var (
		userinfo string
		hasUser  bool
	)
	if i := strings.LastIndex(authority, "@"); i >= 0 {
		userinfo, authority, hasUser = authority[:i], authority[i+1:], true
	}

	hostport := strings.TrimSuffix(authority, "/")
	if strings.ContainsAny(hostport, "/?#") {
		return Spec{}, fmt.Errorf("invalid proxy url: unexpected path, query, or fragment after %q", hostport)
	}

	s, err := splitHostPort(hostport)
	if err != nil {
		return Spec{}, err
	}

	if hasUser {
		user, pass, hasPass := strings.Cut(userinfo, ":")
		if s.Auth, err = credentials(user, hasPass, pass); err != nil {
			return Spec{}, err
		}
	}

	if err := s.Validate(); err != nil {
		return Spec{}, err
	}
	return s, nil
}

// splitHostPort parses host, host:port, [v6], or [v6]:port.
func splitHostPort(hostport string) (Spec, error) {
	s := Spec{Host: hostport, Port: DefaultPort}

	switch {
	case strings.HasPrefix(hostport, "[") && strings.HasSuffix(hostport, "]"):
		s.Host = hostport[1 : len(hostport)-1]
	case strings.Contains(hostport, ":"):
		host, port, err := net.SplitHostPort(hostport)
		if err != nil {
			return Spec{}, fmt.Errorf("invalid proxy address: %w", err)
		}
		s.Host = host
		if port != "" {
			if s.Port, err = parsePort(port); err != nil {
				return Spec{}, err
			}
		}
	}

	if s.Host == "" {
		return Spec{}, fmt.Errorf("invalid proxy url: missing host in %q", hostport)
	}
	return s, nil
}

func hostPortSpec(host, port string) (Spec, error) {
	p, err := parsePort(port)
	if err != nil {
		return Spec{}, err
	}
	s := Spec{Host: host, Port: p}
	if err := s.Validate(); err != nil {
		return Spec{}, err
	}
	return s, nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	if p < 1 || p > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", p)
	}
	return p, nil
}

var (
	errUserWithoutPass = errors.New("username given without password")
	errPassWithoutUser = errors.New("password given without username")
)

// credentials builds Auth from optional username and password. No username
// and no password means no credentials; anything in between is an error.
func credentials(user string, hasPass bool, pass string) (*socks5.Auth, error) {
	switch {
	case user == "" && (!hasPass || pass == ""):
		return nil, nil
	case user == "":
		return nil, errPassWithoutUser
	case !hasPass:
		return nil, errUserWithoutPass
	}
	return &socks5.Auth{Username: user, Password: pass}, nil
}

package proxyspec

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Record is the JSON shape of a proxy entry as kept by proxy lists:
//
//	{"host": "10.0.0.5", "port": 1080, "username": "u", "password": "p"}
//
// hostname is accepted in place of host, and port may be a number or a
// numeric string. A record with a proxy URL instead,
//
//	{"proxy": "socks5://u:p@10.0.0.5:1080"}
//
// is resolved from the URL alone; any host/port fields alongside it are
// ignored. A proxy field that is not a string is ignored instead.
type Record struct {
	Proxy    json.RawMessage `json:"proxy,omitempty"`
	Host     string          `json:"host,omitempty"`
	Hostname string          `json:"hostname,omitempty"`
	Port     json.Number     `json:"port,omitempty"`
	Username *string         `json:"username,omitempty"`
	Password *string         `json:"password,omitempty"`
}

// NewRecord returns the record form of s.
func NewRecord(s Spec) Record {
	r := Record{Host: s.Host, Port: json.Number(strconv.Itoa(s.Port))}
	if s.Auth != nil {
		user, pass := s.Auth.Username, s.Auth.Password
		r.Username, r.Password = &user, &pass
	}
	return r
}

// Spec resolves r into a validated Spec.
func (r Record) Spec() (Spec, error) {
	if proxy, ok := r.proxyURL(); ok {
		return ParseURL(proxy)
	}

	host := r.Host
	if host == "" {
		host = r.Hostname
	}
	if host == "" || r.Port == "" {
		return Spec{}, errors.New("json must contain host and port, or a proxy url")
	}

	port, err := parsePort(r.Port.String())
	if err != nil {
		return Spec{}, err
	}

	var user, pass string
	if r.Username != nil {
		user = *r.Username
	}
	if r.Password != nil {
		pass = *r.Password
	}
	auth, err := credentials(user, r.Password != nil, pass)
	if err != nil {
		return Spec{}, err
	}

	s := Spec{Host: host, Port: port, Auth: auth}
	if err := s.Validate(); err != nil {
		return Spec{}, err
	}
	return s, nil
}

// proxyURL returns the proxy field if it holds a JSON string.
func (r Record) proxyURL() (string, bool) {
	if len(r.Proxy) == 0 {
		return "", false
	}
	var s *string
	if err := json.Unmarshal(r.Proxy, &s); err != nil || s == nil {
		return "", false
	}
	return *s, true
}

// decodeRecord reports whether text is a single JSON object that decodes as a
// Record.
func decodeRecord(text string) (Record, bool) {
	if !strings.HasPrefix(text, "{") {
		return Record{}, false
	}
	var r Record
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		return Record{}, false
	}
	return r, true
}

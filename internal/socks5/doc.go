// Package socks5 implements the client half of the SOCKS5 method negotiation
// (RFC 1928) and username/password sub-negotiation (RFC 1929) used by
// sockshold.
//
// It wraps the low-level protocol types in github.com/txthinking/socks5 and
// adds a strict state machine with distinguishable errors on top. It never
// opens, closes, or issues a CONNECT request on the transport; the caller owns
// the connection before and after negotiation.
package socks5

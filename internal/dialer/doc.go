// Package dialer opens the transport to the SOCKS5 proxy.
//
// Dialers implement a small interface (DialContext) so the lifecycle in main
// can be driven against a fake in tests.
package dialer

// Package session holds an established proxy connection open until the
// caller cancels.
//
// A Holder owns its connection from the moment it is constructed, which is
// normally right after dialing and before negotiation, so the connection is
// closed exactly once on every path out: failed negotiation, I/O error, or
// cancellation.
package session

// Package conn holds TCP connection tuning shared by the dialer and the
// session holder.
package conn

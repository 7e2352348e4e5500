// Package proxyspec turns loosely structured text into a validated SOCKS5
// proxy description.
//
// Extract accepts what people tend to paste: a JSON record, a curl command
// line, a socks5:// URL, or just host:port somewhere in a blob of text. The
// rules are tried in a fixed order and the first one that matches decides the
// result, so the outcome for a given input never depends on anything but the
// input.
package proxyspec

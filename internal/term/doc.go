// Package term reports whether a file descriptor is an interactive terminal.
//
// On Linux and the BSDs it asks the kernel for the descriptor's termios
// settings; success means a terminal. On other platforms it always reports
// false.
package term

//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly

package term

func IsTerminal(_ uintptr) bool {
	return false
}

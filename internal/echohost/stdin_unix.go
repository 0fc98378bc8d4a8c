//go:build unix

package echohost

import (
	"os"

	"golang.org/x/sys/unix"
)

// pollableStdin reopens a pipe or socket stdin in non-blocking mode, so the
// runtime poller serves its reads and Close interrupts a blocked Read.
// Terminals and regular files are returned unchanged.
func pollableStdin() *os.File {
	info, err := os.Stdin.Stat()
	if err != nil || info.Mode()&(os.ModeNamedPipe|os.ModeSocket) == 0 {
		return os.Stdin
	}
	if err := unix.SetNonblock(unix.Stdin, true); err != nil {
		return os.Stdin
	}
	return os.NewFile(uintptr(unix.Stdin), "/dev/stdin")
}

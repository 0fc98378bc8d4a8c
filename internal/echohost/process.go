package echohost

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// RunProcess runs the host on the standard streams of the process until
// stdin ends, the stop sentinel arrives, or SIGINT or SIGTERM is received.
// It returns the process exit code.
func RunProcess(argv []string) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return Main(ctx, argv, SystemStreams(), SystemEnv())
}

// SystemStreams returns the standard streams prepared for a host: a caller
// that stops reading shows up as a write error instead of SIGPIPE, and
// closing stdin releases a pending read where the platform allows it.
func SystemStreams() Streams {
	signal.Ignore(syscall.SIGPIPE)
	return Streams{Stdin: pollableStdin(), Stdout: os.Stdout, Stderr: os.Stderr}
}

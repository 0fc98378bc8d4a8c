//go:build !unix

package echohost

import "os"

func pollableStdin() *os.File {
	return os.Stdin
}

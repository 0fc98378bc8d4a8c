// Command echohost is a native messaging host that echoes every message
// back to the calling extension. Browsers start it with the caller origin as
// the first argument and exchange length-prefixed JSON over stdio.
package main

import (
	"os"

	"github.com/Zereker/nativemsg/internal/echohost"
)

func main() {
	os.Exit(echohost.RunProcess(os.Args[1:]))
}

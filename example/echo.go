// Example echo plays the browser side of native messaging: it starts a host
// executable, sends every line read from stdin as {"text": line}, and
// prints the host's replies.
//
//	go build -o /tmp/echohost ./cmd/echohost
//	go run ./example /tmp/echohost
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Zereker/nativemsg"
)

const origin = "chrome-extension://knldjmfmopnpolahpmmgbagdohdnhkik/"

type request struct {
	Text string `json:"text"`
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: echo <host executable>")
		os.Exit(2)
	}

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	host, err := nativemsg.StartHost(ctx, os.Args[1], origin,
		nativemsg.ReconnectCommandOption([]string{os.Args[1], origin}),
	)
	if err != nil {
		slog.Error("failed to start host", "error", err)
		cancel()
		os.Exit(1)
	}
	slog.Info("host started", "pid", host.Pid())

	lines := bufio.NewScanner(os.Stdin)
	for lines.Scan() {
		if err := host.SendJSON(request{Text: lines.Text()}); err != nil {
			slog.Error("send failed", "error", err)
			break
		}
		reply, err := host.Receive()
		if err != nil {
			slog.Error("receive failed", "error", err)
			break
		}
		fmt.Println(string(reply.Body()))
	}

	if err := host.Wait(); err != nil {
		slog.Error("host exited", "error", err)
	}
}

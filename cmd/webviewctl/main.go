// Command webviewctl removes the preinstalled WebView from attached Android
// devices to avoid signature mismatches when installing a local build.
//
// This is for development devices only and fails on user builds.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Zereker/nativemsg/internal/logging"
	"github.com/Zereker/nativemsg/internal/webview"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		adbPath   string
		devices   []string
		verbosity int
	)

	cmd := &cobra.Command{
		Use:   "webviewctl",
		Short: "Remove the preinstalled WebView from Android devices",
		Long: `Removes the preinstalled WebView APKs to avoid signature mismatches during
development. Updates are uninstalled, system images removed, and the WebView
fallback logic disabled so that a standalone WebView can be installed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := logging.ConfigureRuntime(levelFor(verbosity))

			adb := webview.NewADB(adbPath)
			targets, err := webview.HealthyDevices(cmd.Context(), adb, devices)
			if err != nil {
				return err
			}
			logger.Info("removing preinstalled webview", "devices", len(targets))

			return webview.NewRemover(logger).RemoveAll(cmd.Context(), targets)
		},
	}

	cmd.Flags().StringVar(&adbPath, "adb-path", "", "path to the adb binary (default: adb from PATH)")
	cmd.Flags().StringArrayVarP(&devices, "device", "d", nil, "serial of a target device; repeat for several (default: all healthy devices)")
	cmd.Flags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity")

	return cmd
}

func levelFor(verbosity int) string {
	switch {
	case verbosity >= 2:
		return "debug"
	case verbosity == 1:
		return "info"
	default:
		return "warn"
	}
}

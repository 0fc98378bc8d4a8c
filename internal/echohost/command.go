package echohost

import (
	"context"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Zereker/nativemsg"
	"github.com/Zereker/nativemsg/internal/logging"
)

// Streams are the standard streams of the host process.
type Streams struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Main runs the host with argv (without the program name) and returns the
// process exit code: 0 after a clean end of stream or the stop sentinel,
// 1 after a validation or protocol failure.
func Main(ctx context.Context, argv []string, streams Streams, env Env) int {
	if err := NewCommand(argv, streams, env).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(streams.Stderr, err)
		return 1
	}
	return 0
}

// NewCommand returns the echohost command set up to parse argv.
func NewCommand(argv []string, streams Streams, env Env) *cobra.Command {
	if argv == nil {
		// cobra falls back to os.Args for nil.
		argv = []string{}
	}

	var (
		parentWindow     int64
		reconnectCommand string
		listen           string
		configPath       string
	)

	cmd := &cobra.Command{
		Use:           "echohost <origin>",
		Short:         "Native messaging host that echoes every message back",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, positional []string) error {
			args := Args{
				Origin:           positional[0],
				ParentWindow:     parentWindow,
				ReconnectCommand: reconnectCommand,
			}
			if len(argv) > 0 {
				args.FirstArg = argv[0]
			}

			reconnect, err := Validate(args, env)
			if err != nil {
				return err
			}

			if configPath == "" {
				exe, err := env.Executable()
				if err != nil {
					return errors.Wrap(err, "locate executable")
				}
				configPath = filepath.Join(filepath.Dir(exe), ConfigFileName)
			}
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			order, err := ParseByteOrder(cfg.ByteOrder)
			if err != nil {
				return err
			}

			logger := logging.NewProfile(logging.ProfileRuntime, streams.Stderr, cfg.LogLevel)

			newOptions := func() []nativemsg.Option {
				host := New(args.Origin, reconnect, logger)
				opts := append(host.Options(),
					nativemsg.ByteOrderOption(order),
					nativemsg.MessageMaxSize(cfg.MaxMessageSize),
				)
				if cfg.SkipInvalid {
					opts = append(opts, nativemsg.OnErrorOption(skipInvalid))
				}
				return opts
			}

			if listen != "" {
				return serve(cmd.Context(), listen, logger, newOptions)
			}
			return runStdio(cmd.Context(), streams, logger, newOptions())
		},
	}
	cmd.SetArgs(argv)
	cmd.SetOut(streams.Stderr)
	cmd.SetErr(streams.Stderr)

	flags := cmd.Flags()
	flags.Int64Var(&parentWindow, "parent-window", 0, "Native handle of the calling window")
	flags.StringVar(&reconnectCommand, "reconnect-command", "", "Base64 encoded JSON reconnect command")
	flags.StringVar(&listen, "listen", "", "Serve sessions on this TCP address instead of stdio")
	flags.StringVar(&configPath, "config", "", "Config file (default: "+ConfigFileName+" next to the executable)")

	return cmd
}

// stdinGrace bounds how long a canceled host waits for its stdin read to
// return.
const stdinGrace = time.Second

// runStdio runs one session on the process streams.
func runStdio(ctx context.Context, streams Streams, logger nativemsg.Logger, opts []nativemsg.Option) error {
	session, err := nativemsg.NewSession(streams.Stdin, streams.Stdout, opts...)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Run(ctx)
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		// Closing stdin does not interrupt a blocked read on every platform.
		select {
		case err = <-done:
		case <-time.After(stdinGrace):
			logger.Warn("stdin still blocked after cancel, exiting", "grace", stdinGrace)
			return nil
		}
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, nativemsg.ErrIOFailure):
		// The caller closed its end; there is nobody left to answer.
		logger.Warn("stopping after write failure", "error", err)
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	default:
		return err
	}
}

// serve runs one independent session per TCP connection until ctx ends.
func serve(ctx context.Context, listen string, logger nativemsg.Logger, newOptions func() []nativemsg.Option) error {
	addr, err := net.ResolveTCPAddr("tcp", listen)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", listen)
	}
	server, err := nativemsg.New(addr, nativemsg.ServerLoggerOption(logger))
	if err != nil {
		return err
	}
	defer server.Close()

	err = server.Serve(ctx, nativemsg.SessionHandler(newOptions))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// skipInvalid keeps a session alive across frames that are not JSON.
func skipInvalid(err error) nativemsg.ErrorAction {
	if errors.Is(err, nativemsg.ErrInvalidPayload) || errors.Is(err, nativemsg.ErrMessageTooLarge) {
		return nativemsg.Continue
	}
	return nativemsg.Disconnect
}

package nativemsg

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

// hostOptions configures how StartHost launches a host.
type hostOptions struct {
	parentWindow     int64
	reconnectCommand any
	dir              string
	env              []string
	stderr           io.Writer
	channel          []Option
}

// HostOption configures StartHost.
type HostOption func(*hostOptions)

// ParentWindowOption passes --parent-window=handle to the host.
func ParentWindowOption(handle int64) HostOption {
	return func(o *hostOptions) {
		o.parentWindow = handle
	}
}

// ReconnectCommandOption passes cmd to the host as
// --reconnect-command=base64(json(cmd)).
func ReconnectCommandOption(cmd any) HostOption {
	return func(o *hostOptions) {
		o.reconnectCommand = cmd
	}
}

// HostEnvOption sets the environment of the host process.
// The default is the environment of the current process.
func HostEnvOption(env []string) HostOption {
	return func(o *hostOptions) {
		o.env = env
	}
}

// HostDirOption overrides the working directory of the host. Hosts are
// expected to refuse to run anywhere but their own directory.
func HostDirOption(dir string) HostOption {
	return func(o *hostOptions) {
		o.dir = dir
	}
}

// HostStderrOption sets where the host's stderr goes. Default os.Stderr.
func HostStderrOption(w io.Writer) HostOption {
	return func(o *hostOptions) {
		o.stderr = w
	}
}

// HostChannelOption sets channel options (codec, byte order, logger) for
// the frames exchanged with the host.
func HostChannelOption(opt ...Option) HostOption {
	return func(o *hostOptions) {
		o.channel = append(o.channel, opt...)
	}
}

// Host is a running native messaging host process, seen from the caller:
// frames are written to its stdin and read from its stdout.
type Host struct {
	cmd *exec.Cmd
	ch  *Channel
}

// StartHost launches the host executable at path the way a browser does:
// the working directory is the directory of the executable, the first
// argument is the caller origin, and optional flags follow.
func StartHost(ctx context.Context, path, origin string, opt ...HostOption) (*Host, error) {
	opts := hostOptions{stderr: os.Stderr}
	for _, o := range opt {
		o(&opts)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve host path %q", path)
	}

	args, err := hostArgs(origin, opts)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, abs, args...)
	cmd.Dir = filepath.Dir(abs)
	if opts.dir != "" {
		cmd.Dir = opts.dir
	}
	cmd.Env = opts.env
	cmd.Stderr = opts.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "host stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "host stdout")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "start host %s", abs)
	}

	return &Host{
		cmd: cmd,
		ch:  NewChannel(stdout, stdin, opts.channel...),
	}, nil
}

func hostArgs(origin string, opts hostOptions) ([]string, error) {
	args := []string{origin}
	if opts.parentWindow != 0 {
		args = append(args, "--parent-window="+strconv.FormatInt(opts.parentWindow, 10))
	}
	if opts.reconnectCommand != nil {
		raw, err := json.Marshal(opts.reconnectCommand)
		if err != nil {
			return nil, errors.Wrap(err, "encode reconnect command")
		}
		args = append(args, "--reconnect-command="+base64.StdEncoding.EncodeToString(raw))
	}
	return args, nil
}

// Send writes payload as one frame to the host's stdin.
func (h *Host) Send(payload []byte) error {
	return h.ch.WriteMessage(payload)
}

// SendJSON marshals v and sends it as one frame.
func (h *Host) SendJSON(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode message")
	}
	return h.Send(raw)
}

// Receive reads one frame from the host's stdout. It returns io.EOF after
// the host closed its stdout.
func (h *Host) Receive() (Message, error) {
	return h.ch.ReadMessage()
}

// CloseStdin closes the host's stdin, which the host observes as the end
// of the stream.
func (h *Host) CloseStdin() error {
	if closer, ok := h.ch.out.(io.Closer); ok {
		return ignoreClosed(closer.Close())
	}
	return nil
}

// CloseStdout stops reading the host's stdout. The host's next write
// fails with a broken pipe.
func (h *Host) CloseStdout() error {
	return h.ch.CloseInput()
}

// Signal sends sig to the host process.
func (h *Host) Signal(sig os.Signal) error {
	return h.cmd.Process.Signal(sig)
}

// Wait closes the host's stdin and waits for the process to exit.
// The returned error is an *exec.ExitError for a non-zero exit code.
func (h *Host) Wait() error {
	_ = h.CloseStdin()
	return h.cmd.Wait()
}

// Pid returns the process id of the host.
func (h *Host) Pid() int {
	return h.cmd.Process.Pid
}

package echohost

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Validation failures. Each one makes the host exit with status 1 before
// any frame is read.
var (
	// ErrOriginNotFirst: the caller origin is missing or not argv[1].
	ErrOriginNotFirst = errors.New("caller URL is not specified as the first arg")
	// ErrWrongDirectory: the working directory is not the executable's.
	ErrWrongDirectory = errors.New("native messaging host started in a wrong directory")
	// ErrInvalidParentWindow: the handle is not a live window.
	ErrInvalidParentWindow = errors.New("invalid --parent-window")
	// ErrInvalidReconnect: the reconnect command is not base64 encoded JSON.
	ErrInvalidReconnect = errors.New("invalid --reconnect-command")
)

// Args are the command-line arguments a browser passes to the host.
type Args struct {
	// Origin identifies the caller, e.g. "chrome-extension://<id>/".
	Origin string
	// FirstArg is the first raw argument. Browsers always put the origin
	// there.
	FirstArg string
	// ParentWindow is the native handle of the calling window, 0 if absent.
	ParentWindow int64
	// ReconnectCommand is base64 encoded JSON, empty if absent.
	ReconnectCommand string
}

// Env is the part of the process environment the validation depends on.
type Env struct {
	Getwd      func() (string, error)
	Executable func() (string, error)
	// IsWindow reports whether handle is a live window. supported is false
	// on platforms without window handles, where no check is made.
	IsWindow func(handle int64) (valid, supported bool)
}

// SystemEnv returns the Env of the running process.
func SystemEnv() Env {
	return Env{
		Getwd:      os.Getwd,
		Executable: os.Executable,
		IsWindow:   isWindow,
	}
}

// Validate checks args against env and returns the decoded reconnect
// command, or nil when none was given.
func Validate(args Args, env Env) (json.RawMessage, error) {
	if args.Origin == "" || args.FirstArg != args.Origin {
		return nil, ErrOriginNotFirst
	}

	if err := checkWorkingDir(env); err != nil {
		return nil, err
	}

	if args.ParentWindow != 0 && env.IsWindow != nil {
		if valid, supported := env.IsWindow(args.ParentWindow); supported && !valid {
			return nil, errors.Wrapf(ErrInvalidParentWindow, "handle %d", args.ParentWindow)
		}
	}

	return decodeReconnect(args.ReconnectCommand)
}

// checkWorkingDir requires the working directory to be the directory that
// holds the executable. The comparison ignores case, as browsers on
// case-insensitive file systems may spell the path differently.
func checkWorkingDir(env Env) error {
	cwd, err := env.Getwd()
	if err != nil {
		return errors.Wrap(err, "get working directory")
	}
	exe, err := env.Executable()
	if err != nil {
		return errors.Wrap(err, "locate executable")
	}

	if !strings.EqualFold(canonical(cwd), canonical(filepath.Dir(exe))) {
		return errors.Wrapf(ErrWrongDirectory, "cwd %s", cwd)
	}
	return nil
}

func canonical(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return filepath.Clean(path)
}

func decodeReconnect(encoded string) (json.RawMessage, error) {
	if encoded == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidReconnect, "base64: %v", err)
	}
	if !json.Valid(raw) {
		return nil, errors.Wrap(ErrInvalidReconnect, "payload is not JSON")
	}
	return json.RawMessage(raw), nil
}

package nativemsg_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/Zereker/nativemsg"
	"github.com/Zereker/nativemsg/internal/echohost"
)

const envEchoHost = "NATIVEMSG_TEST_ECHO_HOST"

// The test binary doubles as the echo host when started by StartHost.
func TestMain(m *testing.M) {
	if os.Getenv(envEchoHost) == "1" {
		os.Exit(echohost.RunProcess(os.Args[1:]))
	}
	os.Exit(m.Run())
}

const origin = "chrome-extension://knldjmfmopnpolahpmmgbagdohdnhkik/"

func startEchoHost(t *testing.T, stderr io.Writer, opt ...nativemsg.HostOption) *nativemsg.Host {
	t.Helper()
	opts := append([]nativemsg.HostOption{
		nativemsg.HostEnvOption(append(os.Environ(), envEchoHost+"=1")),
		nativemsg.HostStderrOption(stderr),
	}, opt...)

	host, err := nativemsg.StartHost(context.Background(), os.Args[0], origin, opts...)
	if err != nil {
		t.Fatalf("StartHost failed: %v", err)
	}
	return host
}

func TestStartHost_Echo(t *testing.T) {
	var stderr bytes.Buffer
	reconnect := map[string]any{"command": []any{"echohost", "--restore"}}
	host := startEchoHost(t, &stderr, nativemsg.ReconnectCommandOption(reconnect))

	var got []echohost.Response
	for i := 0; i < 3; i++ {
		if err := host.SendJSON(map[string]int{"n": i}); err != nil {
			t.Fatalf("SendJSON failed: %v", err)
		}
		msg, err := host.Receive()
		if err != nil {
			t.Fatalf("Receive failed: %v (stderr %q)", err, stderr.String())
		}
		var resp echohost.Response
		if err := json.Unmarshal(msg.Body(), &resp); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		got = append(got, resp)
	}

	args := json.RawMessage(`{"command":["echohost","--restore"]}`)
	want := []echohost.Response{
		{ID: 1, Echo: json.RawMessage(`{"n":0}`), CallerURL: origin, Args: args},
		{ID: 2, Echo: json.RawMessage(`{"n":1}`), CallerURL: origin, Args: args},
		{ID: 3, Echo: json.RawMessage(`{"n":2}`), CallerURL: origin, Args: args},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("responses mismatch (-want +got):\n%s", diff)
	}

	if err := host.Wait(); err != nil {
		t.Errorf("Wait failed: %v (stderr %q)", err, stderr.String())
	}
}

func TestStartHost_StopHost(t *testing.T) {
	var stderr bytes.Buffer
	host := startEchoHost(t, &stderr)

	if err := host.SendJSON(map[string]bool{"stopHostTest": true}); err != nil {
		t.Fatalf("SendJSON failed: %v", err)
	}
	msg, err := host.Receive()
	if err != nil {
		t.Fatalf("Receive failed: %v (stderr %q)", err, stderr.String())
	}
	if string(msg.Body()) != `{"stopped": true }` {
		t.Errorf("response = %s", msg.Body())
	}

	// The host closed its stdin before confirming.
	err = host.SendJSON(map[string]string{"text": "too late"})
	if !errors.Is(err, nativemsg.ErrIOFailure) {
		t.Errorf("expected ErrIOFailure, got %v", err)
	}

	if err := host.Wait(); err != nil {
		t.Errorf("Wait failed: %v (stderr %q)", err, stderr.String())
	}
}

func TestStartHost_WrongDirectory(t *testing.T) {
	var stderr bytes.Buffer
	host := startEchoHost(t, &stderr, nativemsg.HostDirOption(t.TempDir()))

	if _, err := host.Receive(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}

	err := host.Wait()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *exec.ExitError, got %v", err)
	}
	if exitErr.ExitCode() != 1 {
		t.Errorf("exit code = %d, want 1", exitErr.ExitCode())
	}
	if !strings.Contains(stderr.String(), "wrong directory") {
		t.Errorf("stderr = %q, want a wrong directory diagnostic", stderr.String())
	}
}

func TestStartHost_CallerStopsReading(t *testing.T) {
	var stderr bytes.Buffer
	host := startEchoHost(t, &stderr)

	if err := host.CloseStdout(); err != nil {
		t.Fatalf("CloseStdout failed: %v", err)
	}
	if err := host.SendJSON(map[string]int{"a": 1}); err != nil {
		t.Fatalf("SendJSON failed: %v", err)
	}

	// The reply hits a broken pipe: the host logs it and exits 0.
	if err := host.Wait(); err != nil {
		t.Fatalf("Wait failed: %v (stderr %q)", err, stderr.String())
	}
	if !strings.Contains(stderr.String(), "stopping after write failure") {
		t.Errorf("stderr = %q, want the write failure logged", stderr.String())
	}
}

func TestStartHost_TerminateWhileReading(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("SIGTERM cannot be delivered on windows")
	}

	var stderr bytes.Buffer
	host := startEchoHost(t, &stderr)

	if err := host.SendJSON(map[string]int{"a": 1}); err != nil {
		t.Fatalf("SendJSON failed: %v", err)
	}
	if _, err := host.Receive(); err != nil {
		t.Fatalf("Receive failed: %v", err)
	}

	// stdin stays open; the host is blocked reading the next frame.
	if err := host.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("Signal failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := host.Receive()
		done <- err
	}()

	select {
	case err := <-done:
		if err != io.EOF {
			t.Errorf("expected io.EOF after exit, got %v", err)
		}
	case <-time.After(5 * time.Second):
		_ = host.CloseStdin()
		t.Fatalf("host still running 5s after SIGTERM (stderr %q)", stderr.String())
	}

	if err := host.Wait(); err != nil {
		t.Errorf("Wait failed: %v (stderr %q)", err, stderr.String())
	}
}

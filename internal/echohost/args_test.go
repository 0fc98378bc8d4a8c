package echohost

import (
	"encoding/base64"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

const testOrigin = "chrome-extension://knldjmfmopnpolahpmmgbagdohdnhkik/"

func testEnv(cwd, exeDir string) Env {
	return Env{
		Getwd:      func() (string, error) { return cwd, nil },
		Executable: func() (string, error) { return filepath.Join(exeDir, "echohost"), nil },
		IsWindow:   func(int64) (bool, bool) { return false, false },
	}
}

func TestValidate_OK(t *testing.T) {
	dir := t.TempDir()

	reconnect, err := Validate(Args{Origin: testOrigin, FirstArg: testOrigin}, testEnv(dir, dir))
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if reconnect != nil {
		t.Errorf("reconnect = %s, want nil", reconnect)
	}
}

func TestValidate_OriginNotFirst(t *testing.T) {
	dir := t.TempDir()

	_, err := Validate(Args{Origin: testOrigin, FirstArg: "--parent-window=1"}, testEnv(dir, dir))
	if err != ErrOriginNotFirst {
		t.Errorf("expected ErrOriginNotFirst, got %v", err)
	}
}

func TestValidate_WrongDirectory(t *testing.T) {
	exeDir := t.TempDir()
	cwd := t.TempDir()

	_, err := Validate(Args{Origin: testOrigin, FirstArg: testOrigin}, testEnv(cwd, exeDir))
	if !errors.Is(err, ErrWrongDirectory) {
		t.Errorf("expected ErrWrongDirectory, got %v", err)
	}
}

func TestValidate_DirectoryCaseInsensitive(t *testing.T) {
	env := testEnv("/opt/Hosts/Echo", "/opt/hosts/echo")

	if _, err := Validate(Args{Origin: testOrigin, FirstArg: testOrigin}, env); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestValidate_ParentWindow(t *testing.T) {
	dir := t.TempDir()
	env := testEnv(dir, dir)
	env.IsWindow = func(handle int64) (bool, bool) { return handle == 42, true }

	args := Args{Origin: testOrigin, FirstArg: testOrigin, ParentWindow: 42}
	if _, err := Validate(args, env); err != nil {
		t.Errorf("Validate with live window failed: %v", err)
	}

	args.ParentWindow = 7
	if _, err := Validate(args, env); !errors.Is(err, ErrInvalidParentWindow) {
		t.Errorf("expected ErrInvalidParentWindow, got %v", err)
	}
}

func TestValidate_ParentWindowUnsupported(t *testing.T) {
	dir := t.TempDir()

	args := Args{Origin: testOrigin, FirstArg: testOrigin, ParentWindow: 7}
	if _, err := Validate(args, testEnv(dir, dir)); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestValidate_ReconnectCommand(t *testing.T) {
	dir := t.TempDir()
	encoded := base64.StdEncoding.EncodeToString([]byte(`{"command":["echohost","--restore"]}`))

	reconnect, err := Validate(Args{Origin: testOrigin, FirstArg: testOrigin, ReconnectCommand: encoded}, testEnv(dir, dir))
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if string(reconnect) != `{"command":["echohost","--restore"]}` {
		t.Errorf("reconnect = %s", reconnect)
	}
}

func TestValidate_ReconnectCommandInvalid(t *testing.T) {
	dir := t.TempDir()

	for _, encoded := range []string{"%%%", base64.StdEncoding.EncodeToString([]byte("{not json"))} {
		_, err := Validate(Args{Origin: testOrigin, FirstArg: testOrigin, ReconnectCommand: encoded}, testEnv(dir, dir))
		if !errors.Is(err, ErrInvalidReconnect) {
			t.Errorf("%q: expected ErrInvalidReconnect, got %v", encoded, err)
		}
	}
}

package webview

import (
	"bufio"
	"context"
	"os/exec"
	"path"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrNoDevices reports that no healthy device was found.
var ErrNoDevices = errors.New("no healthy devices")

// runner runs a command and returns its combined output.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ADB runs the adb binary.
type ADB struct {
	path string
	run  runner
}

// NewADB returns an ADB running the binary at path, or "adb" from PATH
// when path is empty.
func NewADB(path string) *ADB {
	if path == "" {
		path = "adb"
	}
	return &ADB{path: path, run: execRunner}
}

// Command runs adb with args and returns its trimmed output. Failures wrap
// ErrCommandFailed and carry the output.
func (a *ADB) Command(ctx context.Context, args ...string) (string, error) {
	out, err := a.run(ctx, a.path, args...)
	text := strings.TrimSpace(string(out))
	if err != nil {
		if ctx.Err() != nil {
			return text, ctx.Err()
		}
		return text, errors.Wrapf(ErrCommandFailed, "adb %s: %v: %s", strings.Join(args, " "), err, text)
	}
	return text, nil
}

// DeviceState is one line of "adb devices".
type DeviceState struct {
	Serial string
	State  string
}

// Devices lists the devices adb knows about.
func (a *ADB) Devices(ctx context.Context) ([]DeviceState, error) {
	out, err := a.Command(ctx, "devices")
	if err != nil {
		return nil, err
	}

	var devices []DeviceState
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 || strings.HasPrefix(fields[0], "*") {
			continue
		}
		devices = append(devices, DeviceState{Serial: fields[0], State: fields[1]})
	}
	return devices, nil
}

// Device returns the device with serial.
func (a *ADB) Device(serial string) Device {
	return &adbDevice{adb: a, serial: serial}
}

// HealthyDevices returns the devices in the "device" state. When serials
// is not empty only those devices are returned, and each of them must be
// healthy.
func HealthyDevices(ctx context.Context, adb *ADB, serials []string) ([]Device, error) {
	states, err := adb.Devices(ctx)
	if err != nil {
		return nil, err
	}

	healthy := make(map[string]bool)
	var all []string
	for _, s := range states {
		if s.State == "device" {
			healthy[s.Serial] = true
			all = append(all, s.Serial)
		}
	}

	if len(serials) == 0 {
		serials = all
	}
	if len(serials) == 0 {
		return nil, ErrNoDevices
	}

	devices := make([]Device, 0, len(serials))
	for _, serial := range serials {
		if !healthy[serial] {
			return nil, errors.Wrapf(ErrNoDevices, "device %s is not attached or not ready", serial)
		}
		devices = append(devices, adb.Device(serial))
	}
	return devices, nil
}

type adbDevice struct {
	adb    *ADB
	serial string
}

func (d *adbDevice) command(ctx context.Context, args ...string) (string, error) {
	return d.adb.Command(ctx, append([]string{"-s", d.serial}, args...)...)
}

func (d *adbDevice) shell(ctx context.Context, args ...string) (string, error) {
	return d.command(ctx, append([]string{"shell"}, args...)...)
}

func (d *adbDevice) Serial() string {
	return d.serial
}

func (d *adbDevice) IsEmulator() bool {
	return strings.HasPrefix(d.serial, "emulator-")
}

func (d *adbDevice) EnableRoot(ctx context.Context) error {
	out, err := d.command(ctx, "root")
	if err != nil {
		return err
	}
	if strings.Contains(out, "cannot run as root") {
		return errors.Wrapf(ErrCommandFailed, "adb root: %s", out)
	}
	_, err = d.command(ctx, "wait-for-device")
	return err
}

func (d *adbDevice) Uninstall(ctx context.Context, pkg string) error {
	out, err := d.command(ctx, "uninstall", pkg)
	if err != nil {
		return err
	}
	// Older adb versions exit 0 on failure.
	if !strings.Contains(out, "Success") {
		return errors.Wrapf(ErrCommandFailed, "uninstall %s: %s", pkg, out)
	}
	return nil
}

func (d *adbDevice) RemoveSystemApps(ctx context.Context, pkgs []string) error {
	var paths []string
	for _, pkg := range pkgs {
		p, err := d.ApplicationPaths(ctx, pkg)
		if err != nil {
			return err
		}
		paths = append(paths, p...)
	}
	if len(paths) == 0 {
		return nil
	}

	if _, err := d.command(ctx, "remount"); err != nil {
		return err
	}
	for _, p := range paths {
		// System apps live in a directory of their own.
		if _, err := d.shell(ctx, "rm", "-rf", path.Dir(p)); err != nil {
			return err
		}
	}

	// Restart the framework so that the package manager forgets the apps.
	if _, err := d.shell(ctx, "stop"); err != nil {
		return err
	}
	if _, err := d.shell(ctx, "start"); err != nil {
		return err
	}
	_, err := d.command(ctx, "wait-for-device")
	return err
}

func (d *adbDevice) SendKeyEvent(ctx context.Context, keycode int) error {
	_, err := d.shell(ctx, "input", "keyevent", strconv.Itoa(keycode))
	return err
}

func (d *adbDevice) ApplicationPaths(ctx context.Context, pkg string) ([]string, error) {
	out, err := d.shell(ctx, "pm", "path", pkg)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	var paths []string
	for _, line := range strings.Split(out, "\n") {
		if p, ok := strings.CutPrefix(strings.TrimSpace(line), "package:"); ok {
			paths = append(paths, p)
		}
	}
	// pm exits non-zero without output for unknown packages. Anything else
	// it prints on failure comes from adb or the device.
	if err != nil && len(paths) == 0 && out != "" {
		return nil, err
	}
	return paths, nil
}

// SetWebViewFallback toggles the fallback logic. Enabling the redundant
// packages is what disables it.
func (d *adbDevice) SetWebViewFallback(ctx context.Context, enabled bool) error {
	action := "enable-redundant-packages"
	if enabled {
		action = "disable-redundant-packages"
	}
	_, err := d.shell(ctx, "cmd", "webviewupdate", action)
	return err
}

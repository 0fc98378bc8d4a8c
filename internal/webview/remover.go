// Package webview removes the WebView preinstalled on Android development
// devices, so that a locally built WebView signed with other keys can be
// installed in its place.
package webview

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Packages are the known WebView package names.
var Packages = []string{"com.android.webview", "com.google.android.webview"}

// KeycodeMenu unlocks the screen after the framework restarted.
const KeycodeMenu = 82

var (
	// ErrCommandFailed reports a device command that did not succeed.
	ErrCommandFailed = errors.New("device command failed")
	// ErrStillInstalled reports a WebView package that survived removal.
	ErrStillInstalled = errors.New("webview is still installed")
)

const writableSystemHint = `did you start the emulator with "-writable-system"? ` +
	"See https://chromium.googlesource.com/chromium/src/+/main/docs/android_emulator.md#writable-system-partition"

// Device is one Android device reachable over adb.
type Device interface {
	Serial() string
	IsEmulator() bool
	EnableRoot(ctx context.Context) error
	// Uninstall removes updates installed on top of a system package. It
	// fails with ErrCommandFailed when there is nothing to uninstall.
	Uninstall(ctx context.Context, pkg string) error
	RemoveSystemApps(ctx context.Context, pkgs []string) error
	SendKeyEvent(ctx context.Context, keycode int) error
	ApplicationPaths(ctx context.Context, pkg string) ([]string, error)
	SetWebViewFallback(ctx context.Context, enabled bool) error
}

// Remover removes preinstalled WebViews.
type Remover struct {
	logger *slog.Logger
}

// NewRemover returns a remover logging to logger, or to slog's default
// logger when nil.
func NewRemover(logger *slog.Logger) *Remover {
	if logger == nil {
		logger = slog.Default()
	}
	return &Remover{logger: logger}
}

// RemovePreinstalled removes WebView updates and system images from dev and
// then disables the WebView fallback logic, which allows a standalone
// WebView on Android N and later.
func (r *Remover) RemovePreinstalled(ctx context.Context, dev Device) error {
	logger := r.logger.With("device", dev.Serial())

	if err := dev.EnableRoot(ctx); err != nil {
		return errors.Wrapf(err, "enable root on %s", dev.Serial())
	}

	logger.Info("uninstalling updates")
	for _, pkg := range Packages {
		if err := dev.Uninstall(ctx, pkg); err != nil {
			if !errors.Is(err, ErrCommandFailed) {
				return errors.Wrapf(err, "uninstall %s", pkg)
			}
			// The package is on the system image without updates.
			logger.Info("no update to uninstall", "package", pkg)
		}
	}

	if err := r.removeSystemImages(ctx, dev, logger); err != nil {
		if dev.IsEmulator() {
			logger.Error(writableSystemHint)
		}
		return err
	}

	if err := dev.SetWebViewFallback(ctx, false); err != nil {
		return errors.Wrapf(err, "disable webview fallback on %s", dev.Serial())
	}
	logger.Info("preinstalled webview removed")
	return nil
}

func (r *Remover) removeSystemImages(ctx context.Context, dev Device, logger *slog.Logger) error {
	logger.Info("removing system images")
	if err := dev.RemoveSystemApps(ctx, Packages); err != nil {
		return errors.Wrapf(err, "remove system apps from %s", dev.Serial())
	}
	if err := dev.SendKeyEvent(ctx, KeycodeMenu); err != nil {
		return errors.Wrapf(err, "unlock %s", dev.Serial())
	}

	for _, pkg := range Packages {
		paths, err := dev.ApplicationPaths(ctx, pkg)
		if err != nil {
			return errors.Wrapf(err, "look up %s", pkg)
		}
		if len(paths) > 0 {
			return errors.Wrapf(ErrStillInstalled, "%s on %s at %s", pkg, dev.Serial(), strings.Join(paths, ", "))
		}
	}
	return nil
}

// RemoveAll removes the preinstalled WebView from every device in
// parallel. It returns the first error; the other devices still finish.
func (r *Remover) RemoveAll(ctx context.Context, devices []Device) error {
	var g errgroup.Group
	for _, dev := range devices {
		dev := dev
		g.Go(func() error {
			return r.RemovePreinstalled(ctx, dev)
		})
	}
	return g.Wait()
}

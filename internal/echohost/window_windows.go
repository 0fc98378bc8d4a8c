//go:build windows

package echohost

import "golang.org/x/sys/windows"

var procIsWindow = windows.NewLazySystemDLL("user32.dll").NewProc("IsWindow")

func isWindow(handle int64) (valid, supported bool) {
	if err := procIsWindow.Find(); err != nil {
		return false, true
	}
	r, _, _ := procIsWindow.Call(uintptr(handle))
	return r != 0, true
}

//go:build !windows

package echohost

// There are no window handles to validate outside Windows.
func isWindow(int64) (valid, supported bool) {
	return false, false
}

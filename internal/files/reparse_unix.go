//go:build !windows

package files

// isReparsePoint reports whether path carries the reparse-point attribute.
// Reparse points are a Windows-only concept; on other platforms symlinks are
// caught by the Lstat check in rejectSymlinkComponents.
func isReparsePoint(path string) (bool, error) {
	return false, nil
}

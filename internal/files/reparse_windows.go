//go:build windows

package files

import "golang.org/x/sys/windows"

// isReparsePoint reports whether path carries the reparse-point attribute,
// which covers NTFS symlinks and junctions alike.
func isReparsePoint(path string) (bool, error) {
	attrs, err := windows.GetFileAttributes(windows.StringToUTF16Ptr(path))
	if err != nil {
		return false, err
	}
	return attrs&windows.FILE_ATTRIBUTE_REPARSE_POINT != 0, nil
}

//go:build !windows

package files

import "os"

// renameAtomic replaces newPath with oldPath in one step; POSIX rename is
// already atomic on the same filesystem.
func renameAtomic(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

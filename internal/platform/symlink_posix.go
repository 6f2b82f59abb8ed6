//go:build !windows

package platform

import "golang.org/x/sys/unix"

// IsSymlink reports whether path is a symbolic link, without following it.
// It uses a raw lstat rather than os.Lstat's FileInfo wrapper, mirroring how
// this platform's filesystem code reads mode bits directly off unix.Stat_t
// instead of decoding them through os.FileMode.
func IsSymlink(path string) (bool, error) {
	var stat unix.Stat_t
	if err := unix.Lstat(path, &stat); err != nil {
		return false, err
	}
	return stat.Mode&unix.S_IFMT == unix.S_IFLNK, nil
}

// Package must provides "log and swallow" helpers for the best-effort
// cleanup paths the specification calls out explicitly: file backup
// restoration failures, best-effort removals during commit/rollback/clean,
// and temporary-tree teardown. Every function here performs an operation
// that is allowed to fail without aborting the caller; on failure it logs a
// warning through the supplied logger and returns.
package must

import (
	"io"
	"os"

	"github.com/btrekkie/file-builder/logging"
)

// Close closes c, logging on failure.
func Close(c io.Closer, logger *logging.Logger) {
	if err := c.Close(); err != nil {
		logger.Warnf("unable to close: %s", err.Error())
	}
}

// Remove removes the named file or empty directory, logging on failure.
// Missing files are not treated as failures.
func Remove(name string, logger *logging.Logger) {
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		logger.Warnf("unable to remove '%s': %s", name, err.Error())
	}
}

// RemoveAll recursively removes path, logging on failure.
func RemoveAll(path string, logger *logging.Logger) {
	if err := os.RemoveAll(path); err != nil {
		logger.Warnf("unable to remove '%s': %s", path, err.Error())
	}
}

// MkdirAll creates path and any missing parents, logging on failure.
func MkdirAll(path string, perm os.FileMode, logger *logging.Logger) {
	if err := os.MkdirAll(path, perm); err != nil {
		logger.Warnf("unable to create directory '%s': %s", path, err.Error())
	}
}

// Rename renames oldpath to newpath, logging on failure.
func Rename(oldpath, newpath string, logger *logging.Logger) {
	if err := os.Rename(oldpath, newpath); err != nil {
		logger.Warnf("unable to rename '%s' to '%s': %s", oldpath, newpath, err.Error())
	}
}

// Succeed logs a warning identifying task if err is non-nil. It is used at
// call sites where the surrounding code already decided the failure is
// recoverable and only wants it recorded.
func Succeed(err error, task string, logger *logging.Logger) {
	if err != nil {
		logger.Warnf("unable to %s: %s", task, err.Error())
	}
}

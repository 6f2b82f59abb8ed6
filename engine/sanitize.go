package engine

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/btrekkie/file-builder/buildfile"
)

// sanitizeFilename resolves filename to an absolute, cleaned path, the form
// every cache key and virtual-filesystem lookup in this module is keyed on.
func sanitizeFilename(filename string) (string, error) {
	absolute, err := filepath.Abs(filename)
	if err != nil {
		return "", buildfile.Wrap(buildfile.KindBadArg, err, "invalid filename: "+filename)
	}
	return absolute, nil
}

// errorKindString returns the buildfile.Kind string carried by err, or
// "OSError" if err isn't a *buildfile.Error. This is what gets persisted in
// a SimpleOp's ErrorKind field, and compared against on replay.
func errorKindString(err error) string {
	var bfErr *buildfile.Error
	if errors.As(err, &bfErr) {
		return bfErr.Kind.String()
	}
	return buildfile.KindOSError.String()
}

// wrapOSError translates a bare os package error into the taxonomy used
// throughout this module, for the handful of places (reading a file's
// contents, after its existence has already been confirmed by a recorded
// simple operation) where the standard library is consulted directly.
func wrapOSError(err error) error {
	if err == nil {
		return nil
	}
	if os.IsNotExist(err) {
		return buildfile.Wrap(buildfile.KindFileNotFound, err, "file does not exist")
	}
	if os.IsPermission(err) {
		return buildfile.Wrap(buildfile.KindOSError, err, "permission denied")
	}
	return buildfile.Wrap(buildfile.KindOSError, err, "I/O error")
}

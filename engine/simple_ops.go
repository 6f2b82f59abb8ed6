package engine

import (
	"os"

	"github.com/btrekkie/file-builder/jsoncanon"
	"github.com/btrekkie/file-builder/operation"
)

// execSimpleOp runs one simple operation through this scope's executor,
// records it as a suboperation regardless of the outcome, and returns the
// executor's result (or error) unchanged. Appending happens even when the
// executor itself errored, mirroring how a Python context manager's
// "finally" clause still runs after the guarded block raises - and, as
// there, a failure to append (because this scope already finished)
// replaces whatever error the operation itself produced.
func (b *Builder) execSimpleOp(name operation.SimpleOpName, args []jsoncanon.Value) (jsoncanon.Value, error) {
	if err := b.checkContext(); err != nil {
		return jsoncanon.Value{}, err
	}

	op := &operation.SimpleOp{Name: name, ArgsValue: args}
	result, execErr := b.executor.Exec(name, args, nil)
	if execErr != nil {
		op.ErrorKind = errorKindString(execErr)
	} else {
		op.ReturnValue = result
		op.HasReturn = true
	}
	op.IsFinished = true

	if err := b.appendSuboperation(op); err != nil {
		return jsoncanon.Value{}, err
	}
	return result, execErr
}

// ReadText reads filename's contents as text, comparing against the cache
// by file metadata (size and modification time).
func (b *Builder) ReadText(filename string) (string, error) {
	return b.ReadTextWithComparison(filename, operation.ComparisonMetadata)
}

// ReadTextWithComparison is ReadText, with an explicit comparison strategy.
func (b *Builder) ReadTextWithComparison(filename string, comparison operation.FileComparison) (string, error) {
	data, err := b.readFile(filename, comparison)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadBinary reads filename's contents as bytes, comparing against the
// cache by file metadata (size and modification time).
func (b *Builder) ReadBinary(filename string) ([]byte, error) {
	return b.ReadBinaryWithComparison(filename, operation.ComparisonMetadata)
}

// ReadBinaryWithComparison is ReadBinary, with an explicit comparison
// strategy.
func (b *Builder) ReadBinaryWithComparison(filename string, comparison operation.FileComparison) ([]byte, error) {
	return b.readFile(filename, comparison)
}

// DeclareRead records a dependency on filename's contents without reading
// them, for callers that already have the contents from some other source
// (e.g. they were just written by this same build).
func (b *Builder) DeclareRead(filename string) error {
	return b.DeclareReadWithComparison(filename, operation.ComparisonMetadata)
}

// DeclareReadWithComparison is DeclareRead, with an explicit comparison
// strategy.
func (b *Builder) DeclareReadWithComparison(filename string, comparison operation.FileComparison) error {
	abs, err := sanitizeFilename(filename)
	if err != nil {
		return err
	}
	_, err = b.execSimpleOp(operation.OpRead, []jsoncanon.Value{jsoncanon.String(abs), jsoncanon.String(string(comparison))})
	return err
}

func (b *Builder) readFile(filename string, comparison operation.FileComparison) ([]byte, error) {
	abs, err := sanitizeFilename(filename)
	if err != nil {
		return nil, err
	}
	if _, err := b.execSimpleOp(
		operation.OpRead, []jsoncanon.Value{jsoncanon.String(abs), jsoncanon.String(string(comparison))},
	); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, wrapOSError(err)
	}
	return data, nil
}

// ListDir returns the sorted names of dir's immediate children, in the
// virtual view of the filesystem.
func (b *Builder) ListDir(dir string) ([]string, error) {
	abs, err := sanitizeFilename(dir)
	if err != nil {
		return nil, err
	}
	result, err := b.execSimpleOp(operation.OpListDir, []jsoncanon.Value{jsoncanon.String(abs)})
	if err != nil {
		return nil, err
	}
	return valueToStrings(result), nil
}

// Walk visits dir and its descendant directories, in the virtual view of
// the filesystem, depth-first. topDown controls whether a directory is
// visited before or after its descendants.
func (b *Builder) Walk(dir string, topDown bool) ([]WalkEntry, error) {
	abs, err := sanitizeFilename(dir)
	if err != nil {
		return nil, err
	}
	result, err := b.execSimpleOp(operation.OpWalk, []jsoncanon.Value{jsoncanon.String(abs), jsoncanon.Bool(topDown)})
	if err != nil {
		return nil, err
	}
	return valueToWalkEntries(result), nil
}

// IsFile reports whether filename is a regular file, in the virtual view of
// the filesystem.
func (b *Builder) IsFile(filename string) (bool, error) {
	abs, err := sanitizeFilename(filename)
	if err != nil {
		return false, err
	}
	result, err := b.execSimpleOp(operation.OpIsFile, []jsoncanon.Value{jsoncanon.String(abs)})
	if err != nil {
		return false, err
	}
	return result.Bool(), nil
}

// IsDir reports whether filename is a directory, in the virtual view of the
// filesystem.
func (b *Builder) IsDir(filename string) (bool, error) {
	abs, err := sanitizeFilename(filename)
	if err != nil {
		return false, err
	}
	result, err := b.execSimpleOp(operation.OpIsDir, []jsoncanon.Value{jsoncanon.String(abs)})
	if err != nil {
		return false, err
	}
	return result.Bool(), nil
}

// Exists reports whether filename exists, in the virtual view of the
// filesystem.
func (b *Builder) Exists(filename string) (bool, error) {
	abs, err := sanitizeFilename(filename)
	if err != nil {
		return false, err
	}
	result, err := b.execSimpleOp(operation.OpExists, []jsoncanon.Value{jsoncanon.String(abs)})
	if err != nil {
		return false, err
	}
	return result.Bool(), nil
}

// GetSize returns filename's size in bytes, in the virtual view of the
// filesystem.
func (b *Builder) GetSize(filename string) (int64, error) {
	abs, err := sanitizeFilename(filename)
	if err != nil {
		return 0, err
	}
	result, err := b.execSimpleOp(operation.OpGetSize, []jsoncanon.Value{jsoncanon.String(abs)})
	if err != nil {
		return 0, err
	}
	return result.Int(), nil
}

func valueToStrings(v jsoncanon.Value) []string {
	seq := v.Seq()
	out := make([]string, len(seq))
	for i, e := range seq {
		out[i] = e.Str()
	}
	return out
}

func valueToWalkEntries(v jsoncanon.Value) []WalkEntry {
	seq := v.Seq()
	out := make([]WalkEntry, len(seq))
	for i, e := range seq {
		tuple := e.Seq()
		out[i] = WalkEntry{Dir: tuple[0].Str(), Subdirs: valueToStrings(tuple[1]), Subfiles: valueToStrings(tuple[2])}
	}
	return out
}

package engine

import (
	"fmt"
	"path/filepath"

	"github.com/btrekkie/file-builder/cache"
	"github.com/btrekkie/file-builder/createdfiles"
	"github.com/btrekkie/file-builder/internal/platform"
	"github.com/btrekkie/file-builder/jsoncanon"
	"github.com/btrekkie/file-builder/operation"
)

// areSuboperationsCached reports whether every one of op's suboperations
// would still produce the same observations against the virtual
// filesystem. createdFiles is the per-probe overlay accumulating the
// directories and files this check has hypothetically created so far, so
// that a later suboperation in the same tree sees the earlier ones' effects
// without touching the real filesystem.
func (b *Builder) areSuboperationsCached(op operation.Record, createdFiles *createdfiles.CreatedFiles) (bool, error) {
	complex := complexOf(op)
	if complex == nil {
		return true, nil
	}

	for _, sub := range complex.Suboperations {
		switch s := sub.(type) {
		case *operation.BuildFileOp:
			ok, err := b.isBuildFileOperationCached(s, createdFiles)
			if err != nil || !ok {
				return false, err
			}
		case *operation.SubbuildOp:
			ok, err := b.isSubbuildOperationCached(s, createdFiles)
			if err != nil || !ok {
				return false, err
			}
		case *operation.SimpleOp:
			if !b.isSimpleOperationCached(s, createdFiles) {
				return false, nil
			}
		default:
			return false, fmt.Errorf("engine: unrecognized suboperation type %T", sub)
		}
	}
	return true, nil
}

// isBuildFileOperationCached reports whether op, a suboperation of some
// cached complex operation, is still valid to replay: op.Filename isn't
// already spoken for in this build, its own comparison result still holds
// (unless it previously raised), and its own suboperations are still valid.
// On success, op.Filename (and its created-implying ancestors) are recorded
// into createdFiles as though op had actually run, so later suboperations
// in the same tree observe it.
func (b *Builder) isBuildFileOperationCached(op *operation.BuildFileOp, createdFiles *createdfiles.CreatedFiles) (bool, error) {
	if !jsoncanon.Equal(b.oldCache.GetFuncVersion(op.FuncName), b.newCache.GetFuncVersion(op.FuncName)) {
		return false, nil
	}
	if op.SetupFailed {
		return false, nil
	}
	if !op.Raised {
		ok, err := b.isBuildFileCached(op)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	normCasedFilename := platform.NormCase(op.Filename)
	if b.newCache.HasNormCasedFile(normCasedFilename) || b.executor.IsCacheFile(op.Filename) {
		return false, nil
	}
	if _, err := b.dirsToMake(filepath.Dir(op.Filename), createdFiles); err != nil {
		return false, nil
	}

	createdFiles.StartedBuildingFile(op.Filename)
	ok, err := b.areSuboperationsCached(op, createdFiles)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if op.Raised {
		createdFiles.ErrorBuildingFile(op.Filename)
	} else {
		createdFiles.FinishedBuildingFile(op.Filename)
	}
	return true, nil
}

// isSubbuildOperationCached reports whether op, a suboperation of some
// cached complex operation, is still valid to replay: its (func, args,
// kwargs) key isn't already spoken for in this build, and its own
// suboperations are still valid.
func (b *Builder) isSubbuildOperationCached(op *operation.SubbuildOp, createdFiles *createdfiles.CreatedFiles) (bool, error) {
	if !jsoncanon.Equal(b.oldCache.GetFuncVersion(op.FuncName), b.newCache.GetFuncVersion(op.FuncName)) {
		return false, nil
	}
	if op.SetupFailed {
		return false, nil
	}

	key := cache.SubbuildKey(op.FuncName, op.ArgsValue, op.Kwargs)
	if b.newCache.HasSubbuild(key) {
		return false, nil
	}
	return b.areSuboperationsCached(op, createdFiles)
}

// isSimpleOperationCached reports whether re-executing op against the
// virtual filesystem (through createdFiles's overlay) would produce the
// same outcome it did when it was first recorded.
func (b *Builder) isSimpleOperationCached(op *operation.SimpleOp, createdFiles *createdfiles.CreatedFiles) bool {
	if !jsoncanon.Equal(b.oldCache.GetOperationVersion(op.Name), b.newCache.GetOperationVersion(op.Name)) {
		return false
	}
	if !validSimpleOpName(op.Name) {
		return false
	}

	result, err := b.executor.Exec(op.Name, op.ArgsValue, createdFiles)
	var errorKind string
	if err != nil {
		errorKind = errorKindString(err)
	}
	if errorKind != op.ErrorKind {
		return false
	}
	if errorKind != "" {
		return true
	}
	return jsoncanon.Equal(result, op.ReturnValue)
}

func validSimpleOpName(name operation.SimpleOpName) bool {
	switch name {
	case operation.OpRead, operation.OpListDir, operation.OpWalk,
		operation.OpIsFile, operation.OpIsDir, operation.OpExists, operation.OpGetSize:
		return true
	default:
		return false
	}
}

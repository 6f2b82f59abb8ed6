package engine

import (
	"os"
	"path/filepath"

	"github.com/btrekkie/file-builder/buildfile"
	"github.com/btrekkie/file-builder/createdfiles"
	"github.com/btrekkie/file-builder/internal/platform"
	"github.com/btrekkie/file-builder/jsoncanon"
	"github.com/btrekkie/file-builder/operation"
)

// BuildFile builds filename by calling fn, or reuses a previous build's
// result for it if nothing relevant has changed. Comparison is by file
// metadata (size and modification time).
func (b *Builder) BuildFile(
	filename, funcName string, fn FileFunc, args []jsoncanon.Value,
) (jsoncanon.Value, error) {
	return b.BuildFileWithComparison(filename, operation.ComparisonMetadata, funcName, fn, args)
}

// BuildFileWithComparison is BuildFile, with an explicit comparison
// strategy for deciding whether the file built last time is still up to
// date.
func (b *Builder) BuildFileWithComparison(
	filename string, comparison operation.FileComparison, funcName string, fn FileFunc, args []jsoncanon.Value,
) (jsoncanon.Value, error) {
	if err := b.assertNotFinished(); err != nil {
		return jsoncanon.Value{}, err
	}
	if err := b.checkContext(); err != nil {
		return jsoncanon.Value{}, err
	}
	absFilename, err := sanitizeFilename(filename)
	if err != nil {
		return jsoncanon.Value{}, err
	}

	sub := &operation.BuildFileOp{
		ComplexOp:          operation.ComplexOp{FuncName: funcName, ArgsValue: copyArgs(args)},
		Filename:           absFilename,
		FileComparisonKind: comparison,
	}
	child := &Builder{
		ctx:      b.ctx,
		record:   sub,
		oldCache: b.oldCache,
		newCache: b.newCache,
		executor: b.executor,
		backups:  b.backups,
		dirs:     b.dirs,
		logger:   b.logger.Sublogger("build_file"),
	}

	runErr := child.runBuildFile(fn)
	if runErr != nil && !sub.Raised {
		sub.Raised = true
		sub.SetupFailed = true
	}
	sub.IsFinished = true

	if err := b.appendSuboperation(sub); err != nil {
		return jsoncanon.Value{}, err
	}
	return sub.ReturnValue, runErr
}

// runBuildFile implements the five-step build-file protocol on child, whose
// record is already populated with the target filename, comparison
// strategy, function name, and arguments: validate the call, prepare the
// parent directories, reserve the file against concurrent duplicate builds,
// probe the cache for a reusable result, and otherwise execute fn.
func (b *Builder) runBuildFile(fn FileFunc) error {
	op := b.record.(*operation.BuildFileOp)
	filename := op.Filename

	if err := b.assertBuildFileCallValid(filename); err != nil {
		return err
	}
	createdDirs, err := b.prepareFileCreation(filename)
	if err != nil {
		return err
	}
	lockedCreatedDirs := b.dirs.StartedBuildingFile(filename, createdDirs)

	reused, setupErr := func() (bool, error) {
		b.ensureDirsCase(lockedCreatedDirs)

		ok, err := b.tryToReuseCachedFile(op)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}

		if info, statErr := os.Stat(filename); statErr == nil && !info.IsDir() {
			if backedUp, err := b.backups.BackUpAndRemove(filename); err != nil {
				return false, err
			} else if backedUp {
				b.logger.Printf("moved %s to a temporary directory, in preparation for rebuilding the file", filename)
			}
		}
		if err := b.newCache.StartBuildingFile(filename); err != nil {
			return false, err
		}
		return false, nil
	}()
	if setupErr != nil {
		b.dirs.ErrorBuildingFile(filename)
		return setupErr
	}
	if reused {
		return nil
	}
	return b.rebuildFile(op, fn)
}

func (b *Builder) assertBuildFileCallValid(filename string) error {
	if err := b.newCache.AssertDoesntHaveNormCasedFile(platform.NormCase(filename), filename); err != nil {
		return err
	}
	if b.executor.IsCacheFile(filename) {
		return buildfile.New(buildfile.KindCacheFileConflict, "build_file* may not write to the cache file: "+filename)
	}
	return nil
}

// prepareFileCreation clears the way for filename to become a regular file:
// if it is currently a directory on disk that is absent from the virtual
// view (one a build created), that directory is emptied and removed; either
// way, its parent directories are created.
func (b *Builder) prepareFileCreation(filename string) ([]string, error) {
	if info, err := os.Stat(filename); err == nil && info.IsDir() {
		isDir, err := b.executor.IsDir(filename, nil)
		if err != nil {
			return nil, err
		}
		if isDir {
			return nil, externalEntryError(filename)
		}
		b.logger.Printf(
			"building %s, but that file is a directory created during a build operation, so moving its "+
				"contents to a temporary directory and then removing it",
			filename)
		if err := b.makeRoom(filename, filename); err != nil {
			return nil, err
		}
	}
	return b.makeDirs(filepath.Dir(filename))
}

// noneableFileComparisonResult is the file comparison result for filename,
// or ok == false if filename does not currently exist (as a regular file)
// in the virtual view.
func (b *Builder) noneableFileComparisonResult(
	filename string, comparison operation.FileComparison,
) (result jsoncanon.Value, ok bool, err error) {
	result, err = b.executor.FileComparisonResult(filename, comparison)
	if err != nil {
		if buildfile.Is(err, buildfile.KindFileNotFound) || buildfile.Is(err, buildfile.KindIsADirectory) {
			return jsoncanon.Value{}, false, nil
		}
		return jsoncanon.Value{}, false, err
	}
	return result, true, nil
}

// isBuildFileCached reports whether op, a finished BuildFileOp recorded by
// the previous build, still accurately describes op.Filename's current
// state in the virtual view: same case on disk, and an unchanged (or
// consistently still-absent) file comparison result.
func (b *Builder) isBuildFileCached(op *operation.BuildFileOp) (bool, error) {
	ok, err := hasCase(op.Filename)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	result, exists, err := b.noneableFileComparisonResult(op.Filename, op.FileComparisonKind)
	if err != nil {
		return false, err
	}
	if !exists {
		return !op.HasComparisonResult, nil
	}
	return op.HasComparisonResult && jsoncanon.Equal(op.FileComparisonResult, result), nil
}

// buildFileCacheLookup returns the previous build's BuildFileOp for op's
// filename if it is eligible to be replayed: same function, same arguments,
// same function version, the file itself still matches, and every
// suboperation it performed is still cache-valid. Returns nil if no such
// record is reusable.
func (b *Builder) buildFileCacheLookup(op *operation.BuildFileOp) *operation.BuildFileOp {
	cached := b.oldCache.GetFile(op.Filename)
	if cached == nil || cached.Raised || cached.FuncName != op.FuncName {
		return nil
	}
	if !jsoncanon.Equal(b.oldCache.GetFuncVersion(op.FuncName), b.newCache.GetFuncVersion(op.FuncName)) {
		return nil
	}
	if !jsoncanon.Equal(jsoncanon.Seq(cached.ArgsValue), jsoncanon.Seq(op.ArgsValue)) {
		return nil
	}
	if !jsoncanon.Equal(jsoncanon.Map(cached.Kwargs), jsoncanon.Map(op.Kwargs)) {
		return nil
	}

	if ok, err := b.isBuildFileCached(cached); err != nil || !ok {
		return nil
	}
	if ok, err := b.areSuboperationsCached(cached, createdfiles.New()); err != nil || !ok {
		return nil
	}
	return cached
}

// tryToReuseCachedFile replays op's cached result, if one is available and
// still valid, instead of calling the user's build-file function. Returns
// whether a cached result was reused.
func (b *Builder) tryToReuseCachedFile(op *operation.BuildFileOp) (bool, error) {
	cached := b.buildFileCacheLookup(op)
	if cached == nil {
		return false, nil
	}

	result, exists, err := b.noneableFileComparisonResult(op.Filename, op.FileComparisonKind)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	if err := b.applyCachedSuboperations(cached); err != nil {
		return false, err
	}

	op.FileComparisonResult = result
	op.HasComparisonResult = true
	op.Suboperations = cached.Suboperations
	op.ReturnValue = cached.ReturnValue
	op.HasReturn = cached.HasReturn
	op.IsFinished = true

	if err := b.newCache.UseCachedOperation(op); err != nil {
		return false, err
	}
	return true, nil
}

// applyCachedSuboperations recreates the directory reservations that op's
// suboperations implied when they first ran, so the live BuildDirs/backup
// bookkeeping stays consistent with a replayed result the same way it would
// have if those suboperations had actually executed this build.
func (b *Builder) applyCachedSuboperations(op operation.Record) error {
	complex := complexOf(op)
	if complex == nil {
		return nil
	}

	for _, sub := range complex.Suboperations {
		switch s := sub.(type) {
		case *operation.BuildFileOp:
			if s.Raised {
				continue
			}
			createdDirs, err := b.makeDirs(filepath.Dir(s.Filename))
			if err != nil {
				return err
			}
			lockedCreatedDirs := b.dirs.StartedBuildingFile(s.Filename, createdDirs)
			if err := func() error {
				b.ensureDirsCase(lockedCreatedDirs)
				return b.applyCachedSuboperations(s)
			}(); err != nil {
				b.dirs.ErrorBuildingFile(s.Filename)
				return err
			}
		case *operation.SubbuildOp:
			if err := b.applyCachedSuboperations(s); err != nil {
				return err
			}
		}
	}
	return nil
}

// rebuildFile calls fn to produce filename, since no cached result could be
// reused, then records the outcome.
func (b *Builder) rebuildFile(op *operation.BuildFileOp, fn FileFunc) error {
	filename := op.Filename

	if err := b.checkContext(); err != nil {
		b.handleErrorBuildingFile(op)
		return err
	}

	result, fnErr := fn(b, filename, copyArgs(op.ArgsValue))
	if fnErr != nil {
		b.handleErrorBuildingFile(op)
		return buildfile.Wrap(buildfile.KindUserRaised, fnErr, "build_file* function failed for "+filename)
	}

	comparisonResult, exists, err := b.noneableFileComparisonResult(filename, op.FileComparisonKind)
	if err != nil {
		b.handleErrorBuildingFile(op)
		return err
	}
	if !exists {
		b.handleErrorBuildingFile(op)
		return buildfile.New(buildfile.KindDidNotCreate, "the build_file* call for "+filename+" didn't create that file")
	}

	op.ReturnValue = result
	op.HasReturn = true
	op.FileComparisonResult = comparisonResult
	op.HasComparisonResult = true
	op.IsFinished = true
	b.newCache.FinishBuildingFile(op)

	if b.oldCache.CreatedFile(filename) {
		b.logger.Printf("rebuilt file %s", filename)
	} else {
		b.logger.Printf("built file %s", filename)
	}
	return nil
}

func (b *Builder) handleErrorBuildingFile(op *operation.BuildFileOp) {
	op.Raised = true
	b.dirs.ErrorBuildingFile(op.Filename)
	tryToRemoveFile(op.Filename, b.logger)
	b.logger.Warnf("failed to rebuild %s, due to an exception", op.Filename)

	op.IsFinished = true
	b.newCache.FinishBuildingFile(op)
}

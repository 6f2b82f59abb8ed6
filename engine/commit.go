package engine

import (
	"os"
	"sort"

	"github.com/btrekkie/file-builder/internal/platform"
	"github.com/btrekkie/file-builder/logging"
)

// setCreatedDirs reconciles the root build's live directory bookkeeping
// (b.dirs) with cacheFileCreatedDirs, the ancestors of the cache file itself
// that had to be created before the build even began (and so were never
// passed through b.dirs.StartedBuildingFile). It records every created
// directory into the new cache, and returns the norm-cased directories that
// were virtually created and then rolled back due to a build-file error,
// and were never recreated - the set commit() must still remove from the
// real filesystem.
func (b *Builder) setCreatedDirs(cacheFileCreatedDirs []string) []string {
	createdDirs := b.dirs.CreatedDirs()

	normCasedCreated := make(map[string]bool, len(createdDirs))
	for _, dir := range createdDirs {
		normCasedCreated[platform.NormCase(dir)] = true
	}

	normCasedErrorCreatedDirs := make(map[string]bool)
	for _, dir := range b.dirs.NormCasedErrorCreatedDirs() {
		normCasedErrorCreatedDirs[dir] = true
	}

	for _, dir := range cacheFileCreatedDirs {
		normCasedDir := platform.NormCase(dir)
		if normCasedCreated[normCasedDir] {
			continue
		}
		createdDirs = append(createdDirs, dir)
		normCasedCreated[normCasedDir] = true
		delete(normCasedErrorCreatedDirs, normCasedDir)
		b.ensureDirCase(dir)
	}

	b.newCache.AddCreatedDirs(createdDirs)

	result := make([]string, 0, len(normCasedErrorCreatedDirs))
	for dir := range normCasedErrorCreatedDirs {
		result = append(result, dir)
	}
	return result
}

// commit finalizes a successful build: anything the previous build created
// that this build didn't recreate is removed from the real filesystem.
// normCasedErrorCreatedDirs additionally names directories this build
// itself created and then rolled back partway through, due to an
// individual build-file error that did not fail the whole build.
func (b *Builder) commit(normCasedErrorCreatedDirs []string) {
	b.logger.Printf("committing build operation")

	for _, filename := range b.oldCache.CreatedFiles() {
		if b.executor.IsCacheFile(filename) {
			continue
		}
		isFile, err := b.executor.IsFile(filename, nil)
		if err == nil && !isFile {
			tryToRemoveFile(filename, b.logger)
		}
	}

	dirsToRemove := make(map[string]bool, len(normCasedErrorCreatedDirs))
	for _, dir := range normCasedErrorCreatedDirs {
		dirsToRemove[dir] = true
	}
	for _, dir := range b.oldCache.CreatedDirs() {
		isDir, err := b.executor.IsDir(dir, nil)
		if err == nil && !isDir {
			dirsToRemove[platform.NormCase(dir)] = true
		}
	}
	removeEmptyDirs(mapKeys(dirsToRemove), b.logger)

	b.logger.Printf("committed build operation")
}

// rollBack undoes everything the failed build attempted: files and
// directories it virtually created are removed again, directories the
// previous build created (and this build may have torn down along the way)
// are recreated, and every file this build backed up is restored.
func (b *Builder) rollBack(cacheFileCreatedDirs []string) {
	b.logger.Warnf("rolling back build operation, due to an exception")

	dirsToRemove := make(map[string]bool)
	for _, dir := range b.dirs.CreatedDirs() {
		dirsToRemove[platform.NormCase(dir)] = true
	}
	for _, dir := range cacheFileCreatedDirs {
		dirsToRemove[platform.NormCase(dir)] = true
	}
	for _, dir := range b.dirs.NormCasedErrorCreatedDirs() {
		dirsToRemove[dir] = true
	}
	for _, dir := range b.oldCache.CreatedDirs() {
		delete(dirsToRemove, platform.NormCase(dir))
	}

	for _, filename := range b.newCache.CreatedFiles() {
		if !b.oldCache.CreatedFile(filename) {
			tryToRemoveFile(filename, b.logger)
		}
	}
	removeEmptyDirs(mapKeys(dirsToRemove), b.logger)

	createDirs(b.oldCache.CreatedDirs(), b.logger)
	b.backups.RestoreAll()

	b.logger.Printf("rolled back build operation")
}

func mapKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// removeEmptyDirs removes each of dirs from the real filesystem, longest
// path first, so a directory whose children are also being removed doesn't
// get skipped merely because it isn't empty yet. Failures (e.g. the
// directory isn't actually empty, because it holds a file this build didn't
// track) are silently skipped: this is best-effort cleanup, not a
// correctness requirement.
func removeEmptyDirs(dirs []string, logger *logging.Logger) {
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		if err := os.Remove(dir); err == nil {
			logger.Printf("removed empty directory %s", dir)
		}
	}
}

// createDirs creates each of dirs on the real filesystem, shortest path
// first, so a parent is always created before its children.
func createDirs(dirs []string, logger *logging.Logger) {
	sorted := append([]string(nil), dirs...)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) < len(sorted[j]) })
	for _, dir := range sorted {
		if err := os.Mkdir(dir, 0o777); err != nil {
			if info, statErr := os.Stat(dir); statErr != nil || !info.IsDir() {
				logger.Errorf("failed to create directory %s: %v", dir, err)
			}
			continue
		}
		logger.Printf("created directory %s", dir)
	}
}

// tryToRemoveFile removes filename from the real filesystem if it is
// currently a regular file, logging (but not propagating) any failure.
func tryToRemoveFile(filename string, logger *logging.Logger) {
	info, err := os.Stat(filename)
	if err != nil || info.IsDir() {
		return
	}
	if err := os.Remove(filename); err != nil {
		logger.Errorf("failed to remove %s: %v", filename, err)
		return
	}
	logger.Printf("removed %s", filename)
}

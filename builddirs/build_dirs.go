// Package builddirs tracks, for one build, which directories exist in the
// virtual view of the filesystem: the view in which files not yet built are
// absent, files already built are present, and directories are implied by
// whichever of those files currently live under them.
package builddirs

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/btrekkie/file-builder/internal/platform"
)

// Dirs is the build's shared directory bookkeeping. It must be fed
// StartedBuildingFile, ErrorBuildingFile, and HandleNormCasedDirExists calls
// as the build progresses; see Engine for when each is called. Dirs is safe
// for concurrent use.
type Dirs struct {
	mu sync.Mutex

	// buildDirCounts maps the norm-cased filename of a directory reserved
	// for at least one descendant build file to the number of direct
	// children reserving it.
	buildDirCounts map[string]int
	// createdDirsMap maps the norm-cased filename of a directory this build
	// virtually created (and hasn't since virtually removed) to its
	// original-case filename.
	createdDirsMap map[string]string
	// errorCreatedDirs holds the norm-cased filenames of directories this
	// build virtually created, then virtually removed due to a build-file
	// error, and hasn't since virtually recreated.
	errorCreatedDirs map[string]bool
	// existsDirs holds norm-cased directories known to exist in the virtual
	// view. If X is a member, so is filepath.Dir(X).
	existsDirs map[string]bool
	// maybeRemovedDirs holds norm-cased directories that might be removed;
	// confirming requires a directory scan, deferred until needed.
	maybeRemovedDirs map[string]bool
	// removedDirs holds norm-cased directories confirmed removed, provided
	// they are not also keys of buildDirCounts.
	removedDirs map[string]bool
	// removedFiles holds norm-cased files from the previous build that are
	// removed in the virtual view, but might still be present.
	removedFiles map[string]bool
}

// New creates a Dirs for a build, seeded with the directories and files
// (including the cache file) the previous build created, so that
// IsRemovedNormCase can recognize stale output left over from a prior run.
func New(oldCacheDirs, oldCacheFiles []string) *Dirs {
	d := &Dirs{
		buildDirCounts:   make(map[string]int),
		createdDirsMap:   make(map[string]string),
		errorCreatedDirs: make(map[string]bool),
		existsDirs:       make(map[string]bool),
		maybeRemovedDirs: make(map[string]bool),
		removedDirs:      make(map[string]bool),
		removedFiles:     make(map[string]bool),
	}
	for _, dir := range oldCacheDirs {
		d.maybeRemovedDirs[platform.NormCase(dir)] = true
	}
	for _, file := range oldCacheFiles {
		d.removedFiles[platform.NormCase(file)] = true
	}
	return d
}

// IsRemovedNormCase reports whether normCasedDir refers to a directory that
// was created during the previous or current build and is not present in
// the virtual view of the filesystem.
func (d *Dirs) IsRemovedNormCase(normCasedDir string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.buildDirCounts[normCasedDir] > 0 {
		return false, nil
	}
	if d.removedDirs[normCasedDir] {
		return true, nil
	}
	if !d.maybeRemovedDirs[normCasedDir] {
		return false, nil
	}
	return d.checkMaybeRemovedDir(normCasedDir)
}

// HandleNormCasedDirExists records that normCasedDir is known to exist in
// the virtual view, outside of any per-probe overlay. A SimpleOpExecutor
// calls this whenever it observes such a directory on the real filesystem.
func (d *Dirs) HandleNormCasedDirExists(normCasedDir string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handleDirExists(normCasedDir)
}

// StartedBuildingFile handles the start of building filename, including the
// case where a cached result is reused. createdDirs lists the non-norm-cased
// parent directories of filename that the caller virtually created; it
// returns the subset that this call locked in as genuinely created, since
// concurrent threads may race to create the same directory and only one may
// claim it.
func (d *Dirs) StartedBuildingFile(filename string, createdDirs []string) []string {
	createdSet := make(map[string]bool, len(createdDirs))
	for _, dir := range createdDirs {
		createdSet[dir] = true
	}

	var lockedCreatedDirs []string
	prevParent := filename
	parent := filepath.Dir(prevParent)

	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.removedFiles, platform.NormCase(filename))
	for parent != prevParent {
		normCasedParent := platform.NormCase(parent)
		count := d.buildDirCounts[normCasedParent]
		d.buildDirCounts[normCasedParent] = count + 1
		if count > 0 {
			break
		}
		if createdSet[parent] {
			d.createdDirsMap[normCasedParent] = parent
			delete(d.errorCreatedDirs, normCasedParent)
			delete(d.removedFiles, normCasedParent)
			lockedCreatedDirs = append(lockedCreatedDirs, parent)
		}

		prevParent = parent
		parent = filepath.Dir(parent)
	}
	return lockedCreatedDirs
}

// ErrorBuildingFile handles an error raised while building filename,
// unwinding the directory reservations StartedBuildingFile made for it.
func (d *Dirs) ErrorBuildingFile(filename string) {
	prevParent := platform.NormCase(filename)
	parent := filepath.Dir(prevParent)

	d.mu.Lock()
	defer d.mu.Unlock()

	for parent != prevParent {
		count := d.buildDirCounts[parent] - 1
		if count > 0 {
			d.buildDirCounts[parent] = count
			break
		}
		delete(d.buildDirCounts, parent)
		if _, had := d.createdDirsMap[parent]; had {
			delete(d.createdDirsMap, parent)
			d.errorCreatedDirs[parent] = true
			d.maybeRemovedDirs[parent] = true

			// We can't simply remove parent from existsDirs, because that
			// could break the invariant that if X is in existsDirs, so is
			// filepath.Dir(X).
			d.existsDirs = make(map[string]bool)
		}

		prevParent = parent
		parent = filepath.Dir(parent)
	}
}

// CreatedDirs returns the non-norm-cased filenames of the directories
// virtually created during the current build.
func (d *Dirs) CreatedDirs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	dirs := make([]string, 0, len(d.createdDirsMap))
	for _, dir := range d.createdDirsMap {
		dirs = append(dirs, dir)
	}
	return dirs
}

// NormCasedErrorCreatedDirs returns the norm-cased filenames of the
// directories the current build virtually created, then virtually removed
// due to a build-file error, and hasn't since virtually recreated.
func (d *Dirs) NormCasedErrorCreatedDirs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	dirs := make([]string, 0, len(d.errorCreatedDirs))
	for dir := range d.errorCreatedDirs {
		dirs = append(dirs, dir)
	}
	return dirs
}

// handleDirExists is HandleNormCasedDirExists without the lock; callers must
// hold d.mu.
func (d *Dirs) handleDirExists(normCasedDir string) {
	parent := normCasedDir
	for !d.existsDirs[parent] && d.buildDirCounts[parent] == 0 {
		delete(d.removedDirs, parent)
		delete(d.maybeRemovedDirs, parent)
		delete(d.removedFiles, parent)
		d.existsDirs[parent] = true
		next := filepath.Dir(parent)
		if next == parent {
			return
		}
		parent = next
	}
	for !d.existsDirs[parent] {
		d.existsDirs[parent] = true
		next := filepath.Dir(parent)
		if next == parent {
			return
		}
		parent = next
	}
}

// checkMaybeRemovedDir scans normCasedDir, which must be a member of
// maybeRemovedDirs and not a key of buildDirCounts, to determine whether it
// is present in the virtual view. Callers must hold d.mu.
func (d *Dirs) checkMaybeRemovedDir(normCasedDir string) (bool, error) {
	delete(d.maybeRemovedDirs, normCasedDir)

	subfiles, err := os.ReadDir(normCasedDir)
	if err != nil {
		if os.IsNotExist(err) {
			// The directory doesn't exist in the real filesystem, so it
			// doesn't exist in the virtual filesystem either.
			d.removedDirs[normCasedDir] = true
			return true, nil
		}
		if isNotADirectory(err) {
			// The directory was externally removed and a file created in
			// its place.
			d.handleDirExists(filepath.Dir(normCasedDir))
			return false, nil
		}
		return false, err
	}

	for _, subfile := range subfiles {
		absoluteSubfile := filepath.Join(normCasedDir, platform.NormCase(subfile.Name()))
		switch {
		case d.removedDirs[absoluteSubfile]:
			if isFile(absoluteSubfile) {
				// The directory was externally removed and a file created
				// in its place.
				d.handleDirExists(normCasedDir)
				return false, nil
			}
		case d.removedFiles[absoluteSubfile]:
			if isDir(absoluteSubfile) {
				// The file was externally removed and a directory created
				// in its place.
				d.handleDirExists(absoluteSubfile)
				return false, nil
			}
		case d.maybeRemovedDirs[absoluteSubfile]:
			removed, err := d.checkMaybeRemovedDir(absoluteSubfile)
			if err != nil {
				return false, err
			}
			if !removed {
				return false, nil
			}
		default:
			if isDir(absoluteSubfile) {
				d.handleDirExists(absoluteSubfile)
			} else {
				d.handleDirExists(normCasedDir)
			}
			return false, nil
		}
	}

	d.removedDirs[normCasedDir] = true
	return true, nil
}

func isFile(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && !info.IsDir()
}

func isDir(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.IsDir()
}

func isNotADirectory(err error) bool {
	return errors.Is(err, syscall.ENOTDIR)
}

// Package createdfiles models the files and directories created during one
// portion of a build: a per-probe overlay used only to check whether a
// cached build-file result can be reused, answering SimpleOpExecutor queries
// as though the recorded files already existed.
package createdfiles

import (
	"path/filepath"

	"github.com/btrekkie/file-builder/internal/platform"
)

// CreatedFiles is not safe for concurrent use; a given instance is only ever
// touched from a single thread while replaying one cache entry.
type CreatedFiles struct {
	normCasedFiles           map[string]bool
	normCasedDirs            map[string]bool
	normCasedDirToSubfiles   map[string]map[string]string
	normCasedDirToStartCount map[string]int
}

// New returns an empty CreatedFiles.
func New() *CreatedFiles {
	return &CreatedFiles{
		normCasedFiles:           make(map[string]bool),
		normCasedDirs:            make(map[string]bool),
		normCasedDirToSubfiles:   make(map[string]map[string]string),
		normCasedDirToStartCount: make(map[string]int),
	}
}

// StartedBuildingFile records the start of a build-file operation targeting
// filename (non-norm-cased), implicitly creating all of its ancestor
// directories.
func (c *CreatedFiles) StartedBuildingFile(filename string) {
	parent := filepath.Dir(filename)
	normCasedParent := platform.NormCase(parent)
	c.normCasedDirToStartCount[normCasedParent]++

	for !c.normCasedDirs[normCasedParent] {
		c.normCasedDirs[normCasedParent] = true
		c.addToSubfiles(parent)
		parent = filepath.Dir(parent)
		normCasedParent = platform.NormCase(parent)
	}
}

// FinishedBuildingFile records the successful completion of a build-file
// operation targeting filename. Do not call this for a build that raised.
func (c *CreatedFiles) FinishedBuildingFile(filename string) {
	c.normCasedFiles[platform.NormCase(filename)] = true
	c.addToSubfiles(filename)
}

// ErrorBuildingFile records that an error was raised while building
// filename, unwinding the ancestor directory reservations
// StartedBuildingFile made, down to the first ancestor still reserved by
// another in-progress or completed build file.
func (c *CreatedFiles) ErrorBuildingFile(filename string) {
	parent := platform.NormCase(filepath.Dir(filename))
	count := c.normCasedDirToStartCount[parent] - 1
	if count > 0 {
		c.normCasedDirToStartCount[parent] = count
		return
	}

	delete(c.normCasedDirToStartCount, parent)
	delete(c.normCasedDirs, parent)
	for c.removeFromSubfiles(parent) {
		parent = filepath.Dir(parent)
		if c.normCasedDirToStartCount[parent] > 0 {
			break
		}
		delete(c.normCasedDirs, parent)
	}
}

// HasNormCasedFile reports whether a regular file with the given norm-cased
// filename was created.
func (c *CreatedFiles) HasNormCasedFile(normCasedFilename string) bool {
	return c.normCasedFiles[normCasedFilename]
}

// HasNormCasedDir reports whether a directory with the given norm-cased
// filename was created (implicitly, as an ancestor of a built file).
func (c *CreatedFiles) HasNormCasedDir(normCasedDir string) bool {
	return c.normCasedDirs[normCasedDir]
}

// ListDir returns the non-norm-cased names of the immediate children of dir
// that were created. Returns nil if dir was not created, or was created as a
// regular file rather than a directory. The returned names are final path
// components only, and never include "." or "..".
func (c *CreatedFiles) ListDir(dir string) []string {
	subfiles, ok := c.normCasedDirToSubfiles[platform.NormCase(dir)]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(subfiles))
	for _, name := range subfiles {
		names = append(names, name)
	}
	return names
}

// addToSubfiles adds filename's base name to the subfile listing of its
// parent directory. A no-op if filename is a root directory or already
// present.
func (c *CreatedFiles) addToSubfiles(filename string) {
	dirName := filepath.Dir(filename)
	baseName := filepath.Base(filename)
	if dirName == filename {
		return
	}
	normCasedDirName := platform.NormCase(dirName)
	subfiles, ok := c.normCasedDirToSubfiles[normCasedDirName]
	if !ok {
		subfiles = make(map[string]string)
		c.normCasedDirToSubfiles[normCasedDirName] = subfiles
	}
	normCasedBaseName := platform.NormCase(baseName)
	if _, ok := subfiles[normCasedBaseName]; !ok {
		subfiles[normCasedBaseName] = baseName
	}
}

// removeFromSubfiles removes normCasedFilename's entry from its parent's
// subfile listing, assuming it is present (or that normCasedFilename is a
// root directory). Reports whether the parent's listing became empty and
// was removed as a result.
func (c *CreatedFiles) removeFromSubfiles(normCasedFilename string) bool {
	normCasedDirName := filepath.Dir(normCasedFilename)
	normCasedBaseName := filepath.Base(normCasedFilename)
	if normCasedDirName == normCasedFilename {
		return false
	}
	subfiles := c.normCasedDirToSubfiles[normCasedDirName]
	delete(subfiles, normCasedBaseName)
	if len(subfiles) > 0 {
		return false
	}
	delete(c.normCasedDirToSubfiles, normCasedDirName)
	return true
}

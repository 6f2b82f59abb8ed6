// Package simpleops executes the seven simple operations (read, list_dir,
// walk, is_file, is_dir, exists, get_size) against the virtual view of the
// filesystem: the overlay in which files a build has already produced exist,
// files it has virtually removed don't, and a CreatedFiles probe may add
// further, not-yet-real files and directories for the duration of a cache
// validity check.
package simpleops

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/btrekkie/file-builder/buildfile"
	"github.com/btrekkie/file-builder/builddirs"
	"github.com/btrekkie/file-builder/cache"
	"github.com/btrekkie/file-builder/createdfiles"
	"github.com/btrekkie/file-builder/internal/platform"
	"github.com/btrekkie/file-builder/jsoncanon"
	"github.com/btrekkie/file-builder/operation"
)

type hashEntry struct {
	hash    string
	isBuilt bool
}

// Executor answers the seven simple operations against the virtual view for
// one build. It is safe for concurrent use.
type Executor struct {
	normCasedCacheFilename string
	oldCache               *cache.Cache
	newCache               *cache.Cache
	dirs                   *builddirs.Dirs

	hashCacheMu sync.Mutex
	hashCache   map[string]hashEntry
}

// New returns an Executor for a build whose cache file is cacheFilename, and
// whose previous and in-progress caches are oldCache and newCache.
func New(cacheFilename string, oldCache, newCache *cache.Cache, dirs *builddirs.Dirs) *Executor {
	return &Executor{
		normCasedCacheFilename: platform.NormCase(cacheFilename),
		oldCache:               oldCache,
		newCache:               newCache,
		dirs:                   dirs,
		hashCache:              make(map[string]hashEntry),
	}
}

// IsCacheFile reports whether filename is the build's own cache file.
func (e *Executor) IsCacheFile(filename string) bool {
	return platform.NormCase(filename) == e.normCasedCacheFilename
}

// WalkEntry is one entry of a Walk result: a directory along with the
// subdirectories and regular files immediately inside it, in the virtual
// view.
type WalkEntry struct {
	Dir      string
	Subdirs  []string
	Subfiles []string
}

// FileComparisonResult computes the real-filesystem comparison result for
// filename per comparison, independent of the virtual view.
func (e *Executor) FileComparisonResult(filename string, comparison operation.FileComparison) (jsoncanon.Value, error) {
	switch comparison {
	case operation.ComparisonMetadata:
		return e.fileMetadata(filename)
	case operation.ComparisonHash:
		return e.fileHash(filename)
	default:
		return jsoncanon.Value{}, buildfile.New(buildfile.KindBadArg, "not a file comparison name")
	}
}

// Read returns the file comparison result that values a read of filename,
// after checking that filename resolves to a regular file in the virtual
// view.
func (e *Executor) Read(
	filename string, comparison operation.FileComparison, createdFiles *createdfiles.CreatedFiles,
) (jsoncanon.Value, error) {
	normCasedFilename := platform.NormCase(filename)
	isFileNoRead, known := e.isFileNoRead(normCasedFilename, createdFiles)
	if known && !isFileNoRead {
		isDir, err := e.IsDir(filename, createdFiles)
		if err != nil {
			return jsoncanon.Value{}, err
		}
		if isDir {
			return jsoncanon.Value{}, buildfile.New(buildfile.KindIsADirectory, "cannot read a directory: "+filename)
		}
		return jsoncanon.Value{}, buildfile.New(buildfile.KindFileNotFound, "the requested file does not exist: "+filename)
	}

	result, err := e.FileComparisonResult(filename, comparison)
	if err != nil {
		if buildfile.Is(err, buildfile.KindFileNotFound) {
			return jsoncanon.Value{}, buildfile.New(buildfile.KindFileNotFound, "the requested file does not exist: "+filename)
		}
		if buildfile.Is(err, buildfile.KindIsADirectory) {
			return jsoncanon.Value{}, buildfile.New(buildfile.KindIsADirectory, "cannot read a directory: "+filename)
		}
		return jsoncanon.Value{}, err
	}

	if createdFiles == nil || !createdFiles.HasNormCasedFile(normCasedFilename) {
		e.dirs.HandleNormCasedDirExists(filepath.Dir(normCasedFilename))
	}
	return result, nil
}

// ListDir returns the immediate children of dir in the virtual view, sorted.
func (e *Executor) ListDir(dir string, createdFiles *createdfiles.CreatedFiles) ([]string, error) {
	if err := e.assertIsDir(dir, createdFiles); err != nil {
		return nil, err
	}
	superset, err := e.listDirSuperset(dir, createdFiles)
	if err != nil {
		return nil, err
	}
	var subfiles []string
	for _, subfile := range superset {
		absolute := filepath.Join(dir, subfile)
		exists, err := e.Exists(absolute, createdFiles)
		if err != nil {
			return nil, err
		}
		if exists {
			subfiles = append(subfiles, subfile)
		}
	}
	return subfiles, nil
}

// Walk returns the virtual-view contents of dir, recursively, in either
// parent-before-children (topDown) or children-before-parent order. Returns
// nil if dir is not a directory.
func (e *Executor) Walk(dir string, topDown bool, createdFiles *createdfiles.CreatedFiles) ([]WalkEntry, error) {
	isDir, err := e.IsDir(dir, createdFiles)
	if err != nil {
		return nil, err
	}
	if !isDir {
		return nil, nil
	}
	var results []WalkEntry
	if err := e.appendWalk(dir, topDown, createdFiles, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// IsFile reports whether filename refers to a regular file in the virtual
// view.
func (e *Executor) IsFile(filename string, createdFiles *createdfiles.CreatedFiles) (bool, error) {
	normCasedFilename := platform.NormCase(filename)
	if isFileNoRead, known := e.isFileNoRead(normCasedFilename, createdFiles); known {
		return isFileNoRead, nil
	}
	info, err := os.Stat(normCasedFilename)
	if err == nil && !info.IsDir() {
		e.dirs.HandleNormCasedDirExists(filepath.Dir(normCasedFilename))
		return true, nil
	}
	return false, nil
}

// IsDir reports whether filename refers to a directory in the virtual view.
func (e *Executor) IsDir(filename string, createdFiles *createdfiles.CreatedFiles) (bool, error) {
	normCasedDir := platform.NormCase(filename)
	if createdFiles != nil {
		if createdFiles.HasNormCasedDir(normCasedDir) {
			return true, nil
		}
		if createdFiles.HasNormCasedFile(normCasedDir) {
			return false, nil
		}
	}

	removed, err := e.dirs.IsRemovedNormCase(normCasedDir)
	if err != nil {
		return false, err
	}
	if removed {
		return false, nil
	}
	info, err := os.Stat(normCasedDir)
	if err == nil && info.IsDir() {
		e.dirs.HandleNormCasedDirExists(normCasedDir)
		return true, nil
	}
	return false, nil
}

// Exists reports whether filename refers to anything in the virtual view.
func (e *Executor) Exists(filename string, createdFiles *createdfiles.CreatedFiles) (bool, error) {
	isFile, err := e.IsFile(filename, createdFiles)
	if err != nil {
		return false, err
	}
	if isFile {
		return true, nil
	}
	return e.IsDir(filename, createdFiles)
}

// GetSize returns the real-filesystem size of filename in bytes, after
// asserting it exists in the virtual view.
func (e *Executor) GetSize(filename string, createdFiles *createdfiles.CreatedFiles) (int64, error) {
	if err := e.assertExists(filename, createdFiles); err != nil {
		return 0, err
	}
	info, err := os.Stat(filename)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (e *Executor) fileMetadata(filename string) (jsoncanon.Value, error) {
	info, err := os.Stat(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return jsoncanon.Value{}, buildfile.New(buildfile.KindFileNotFound, "file does not exist: "+filename)
		}
		return jsoncanon.Value{}, err
	}
	if info.IsDir() {
		return jsoncanon.Value{}, buildfile.New(buildfile.KindIsADirectory, "is a directory: "+filename)
	}
	return jsoncanon.Map(map[string]jsoncanon.Value{
		"size":   jsoncanon.Int(info.Size()),
		"timeNs": jsoncanon.Int(info.ModTime().UnixNano()),
	}), nil
}

func (e *Executor) fileHash(filename string) (jsoncanon.Value, error) {
	normCasedFilename := platform.NormCase(filename)
	isBuilt := e.newCache.HasNormCasedFile(normCasedFilename)

	e.hashCacheMu.Lock()
	entry, ok := e.hashCache[normCasedFilename]
	e.hashCacheMu.Unlock()
	if ok && entry.isBuilt == isBuilt {
		info, err := os.Stat(normCasedFilename)
		if err != nil {
			if os.IsNotExist(err) {
				return jsoncanon.Value{}, buildfile.New(buildfile.KindFileNotFound, "file does not exist: "+filename)
			}
			return jsoncanon.Value{}, err
		}
		if info.IsDir() {
			return jsoncanon.Value{}, buildfile.New(buildfile.KindIsADirectory, "is a directory: "+filename)
		}
		return jsoncanon.String(entry.hash), nil
	}

	f, err := os.Open(normCasedFilename)
	if err != nil {
		if os.IsNotExist(err) {
			return jsoncanon.Value{}, buildfile.New(buildfile.KindFileNotFound, "file does not exist: "+filename)
		}
		return jsoncanon.Value{}, err
	}
	defer f.Close()
	if info, err := f.Stat(); err == nil && info.IsDir() {
		return jsoncanon.Value{}, buildfile.New(buildfile.KindIsADirectory, "is a directory: "+filename)
	}

	digest := sha256.New()
	if _, err := io.Copy(digest, f); err != nil {
		return jsoncanon.Value{}, err
	}
	hash := hex.EncodeToString(digest.Sum(nil))

	e.hashCacheMu.Lock()
	e.hashCache[normCasedFilename] = hashEntry{hash: hash, isBuilt: isBuilt}
	e.hashCacheMu.Unlock()
	return jsoncanon.String(hash), nil
}

// isFileNoRead implements IsFile without touching the real filesystem. It
// reports (result, true) when the virtual view settles the question without
// a stat call, or (_, false) when the caller must fall back to stat.
func (e *Executor) isFileNoRead(normCasedFilename string, createdFiles *createdfiles.CreatedFiles) (bool, bool) {
	if createdFiles != nil {
		if createdFiles.HasNormCasedFile(normCasedFilename) {
			return true, true
		}
		if createdFiles.HasNormCasedDir(normCasedFilename) {
			return false, true
		}
	}

	if normCasedFilename == e.normCasedCacheFilename {
		return false, true
	}
	if e.newCache.HasNormCasedFile(normCasedFilename) {
		if e.newCache.GetNormCasedFile(normCasedFilename) == nil {
			// Currently being built.
			return false, true
		}
	} else if e.oldCache.CreatedNormCasedFile(normCasedFilename) {
		return false, true
	}
	return false, false
}

func (e *Executor) assertIsDir(filename string, createdFiles *createdfiles.CreatedFiles) error {
	isDir, err := e.IsDir(filename, createdFiles)
	if err != nil {
		return err
	}
	if isDir {
		return nil
	}
	isFile, err := e.IsFile(filename, createdFiles)
	if err != nil {
		return err
	}
	if isFile {
		return buildfile.New(buildfile.KindNotADirectory, filename+" is not a directory")
	}
	return buildfile.New(buildfile.KindFileNotFound, "directory does not exist: "+filename)
}

func (e *Executor) assertExists(filename string, createdFiles *createdfiles.CreatedFiles) error {
	exists, err := e.Exists(filename, createdFiles)
	if err != nil {
		return err
	}
	if !exists {
		return buildfile.New(buildfile.KindFileNotFound, "file does not exist: "+filename)
	}
	return nil
}

// listDirSuperset returns a superset of ListDir's result: the real
// directory listing, plus any CreatedFiles overlay entries not already
// present (by normalized name), sorted for determinism.
func (e *Executor) listDirSuperset(dir string, createdFiles *createdfiles.CreatedFiles) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	subfiles := make([]string, len(entries))
	for i, entry := range entries {
		subfiles[i] = entry.Name()
	}
	if createdFiles != nil {
		normCasedSubfiles := make(map[string]bool, len(subfiles))
		for _, subfile := range subfiles {
			normCasedSubfiles[platform.NormCase(subfile)] = true
		}
		for _, subfile := range createdFiles.ListDir(dir) {
			if !normCasedSubfiles[platform.NormCase(subfile)] {
				subfiles = append(subfiles, subfile)
			}
		}
	}
	sort.Strings(subfiles)
	return subfiles, nil
}

func (e *Executor) appendWalk(
	dir string, topDown bool, createdFiles *createdfiles.CreatedFiles, results *[]WalkEntry,
) error {
	superset, err := e.listDirSuperset(dir, createdFiles)
	if err != nil {
		superset = nil
	}

	var subdirs, subfiles []string
	for _, subfile := range superset {
		absolute := filepath.Join(dir, subfile)
		isFile, err := e.IsFile(absolute, createdFiles)
		if err != nil {
			return err
		}
		if isFile {
			subfiles = append(subfiles, subfile)
			continue
		}
		isDir, err := e.IsDir(absolute, createdFiles)
		if err != nil {
			return err
		}
		if isDir {
			subdirs = append(subdirs, subfile)
		}
	}

	if topDown {
		*results = append(*results, WalkEntry{Dir: dir, Subdirs: subdirs, Subfiles: subfiles})
	}
	for _, subdir := range subdirs {
		absolute := filepath.Join(dir, subdir)
		isSymlink, err := platform.IsSymlink(absolute)
		if err != nil {
			continue
		}
		if !isSymlink {
			if err := e.appendWalk(absolute, topDown, createdFiles, results); err != nil {
				return err
			}
		}
	}
	if !topDown {
		*results = append(*results, WalkEntry{Dir: dir, Subdirs: subdirs, Subfiles: subfiles})
	}
	return nil
}

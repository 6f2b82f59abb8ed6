package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btrekkie/file-builder/buildfile"
	"github.com/btrekkie/file-builder/createdfiles"
	"github.com/btrekkie/file-builder/internal/platform"
)

// dirsToMake returns dir and those of its ancestors that must be created (in
// the virtual view) before dir itself can be used, outermost first, stopping
// at the first ancestor that already exists. createdFiles is the per-probe
// overlay to consult during a cache-validity replay, or nil to consult the
// real executor state.
func (b *Builder) dirsToMake(dir string, createdFiles *createdfiles.CreatedFiles) ([]string, error) {
	var pending []string
	parent := dir

	isDir, err := b.executor.IsDir(parent, createdFiles)
	if err != nil {
		return nil, err
	}
	var isFile bool
	if !isDir {
		isFile, err = b.executor.IsFile(parent, createdFiles)
		if err != nil {
			return nil, err
		}
	}

	for !isFile && !isDir {
		if b.executor.IsCacheFile(parent) {
			return nil, buildfile.New(
				buildfile.KindNotADirectory,
				fmt.Sprintf("unable to create directory %s, because the parent %s is the cache file", dir, parent))
		}
		pending = append(pending, parent)

		prevParent := parent
		parent = filepath.Dir(parent)
		if parent == prevParent {
			return nil, buildfile.New(
				buildfile.KindFileNotFound,
				fmt.Sprintf("unable to create directory %s, because %s does not exist", dir, parent))
		}

		isDir, err = b.executor.IsDir(parent, createdFiles)
		if err != nil {
			return nil, err
		}
		isFile = false
		if !isDir {
			isFile, err = b.executor.IsFile(parent, createdFiles)
			if err != nil {
				return nil, err
			}
		}
	}
	if isFile {
		return nil, buildfile.New(
			buildfile.KindNotADirectory,
			fmt.Sprintf("unable to create directory %s, because the parent %s is a regular file", dir, parent))
	}

	for i, j := 0, len(pending)-1; i < j; i, j = i+1, j-1 {
		pending[i], pending[j] = pending[j], pending[i]
	}
	return pending, nil
}

// makeDirs creates, on the real filesystem, every ancestor of dir that the
// virtual view considers missing, moving any stale file left over from a
// previous build out of the way first. It returns the directories it
// created (or found already created by a concurrent racer), outermost
// first.
func (b *Builder) makeDirs(dir string) ([]string, error) {
	toMake, err := b.dirsToMake(dir, nil)
	if err != nil {
		return nil, err
	}

	for _, parent := range toMake {
		if info, statErr := os.Stat(parent); statErr == nil && !info.IsDir() &&
			b.oldCache.CreatedNormCasedFile(platform.NormCase(parent)) {
			if ok, backErr := b.backups.BackUpAndRemove(parent); backErr != nil {
				return nil, backErr
			} else if ok {
				b.logger.Printf(
					"moved %s to a temporary directory, in order to create a directory with that filename", parent)
			}
		}

		if err := os.Mkdir(parent, 0o777); err != nil {
			if os.IsExist(err) {
				continue
			}
			return nil, wrapOSError(err)
		}
		b.logger.Printf("created directory %s", parent)
	}
	return toMake, nil
}

// makeRoom empties dir of the entries a previous build put there (entries
// absent from the virtual view; regular files are backed up), then removes
// dir itself, so that a regular file can be created in its place. Any entry
// present in the virtual view fails with buildfile.KindIsADirectory.
// makeRoomFilename is the build-file target whose error message, if any,
// should name; it may differ from dir when makeRoom is recursing into a
// subdirectory.
func (b *Builder) makeRoom(dir, makeRoomFilename string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return wrapOSError(err)
	}

	for _, entry := range entries {
		absolute := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			isVirtualDir, err := b.executor.IsDir(absolute, nil)
			if err != nil {
				return err
			}
			if isVirtualDir {
				return externalEntryError(makeRoomFilename)
			}
			if err := b.makeRoom(absolute, makeRoomFilename); err != nil {
				return err
			}
			continue
		}

		isVirtualFile, err := b.executor.IsFile(absolute, nil)
		if err != nil {
			return err
		}
		if isVirtualFile {
			return externalEntryError(makeRoomFilename)
		}
		if ok, err := b.backups.BackUpAndRemove(absolute); err != nil {
			return err
		} else if ok {
			b.logger.Printf("moved %s to a temporary directory", absolute)
		}
	}

	if err := os.Remove(dir); err != nil {
		return externalEntryError(makeRoomFilename)
	}
	b.logger.Printf("removed empty directory %s", dir)
	return nil
}

func externalEntryError(filename string) error {
	return buildfile.New(
		buildfile.KindIsADirectory,
		"the file passed to build_file* is an existing directory, so we can't write to it: "+filename)
}

// hasCase reports whether filename is present on disk with exactly its
// given case. On a case-sensitive platform (where platform.NormCase is the
// identity function) this is trivially true; a case-insensitive platform
// requires checking the real directory listing.
func hasCase(filename string) (bool, error) {
	if platform.NormCase("A") == platform.NormCase("a") {
		parent := filepath.Dir(filename)
		base := filepath.Base(filename)
		entries, err := os.ReadDir(parent)
		if err != nil {
			return true, nil
		}
		for _, entry := range entries {
			if platform.NormCase(entry.Name()) == platform.NormCase(base) {
				return entry.Name() == base, nil
			}
		}
		return true, nil
	}
	return true, nil
}

// ensureDirCase renames dir onto itself if the real filesystem's casing of
// it differs from dir's own casing, so that directories created in the
// virtual view under one case end up with that case on disk. Failures are
// logged and swallowed: getting the case wrong is cosmetic, not correctness
// affecting, on a case-insensitive filesystem.
func (b *Builder) ensureDirCase(dir string) {
	ok, err := hasCase(dir)
	if err != nil || ok {
		return
	}
	if err := os.Rename(dir, dir); err != nil {
		b.logger.Warn(err)
	}
}

func (b *Builder) ensureDirsCase(dirs []string) {
	for _, dir := range dirs {
		b.ensureDirCase(dir)
	}
}

package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/btrekkie/file-builder/buildfile"
	"github.com/btrekkie/file-builder/builddirs"
	"github.com/btrekkie/file-builder/cache"
	"github.com/btrekkie/file-builder/filebackups"
	"github.com/btrekkie/file-builder/jsoncanon"
	"github.com/btrekkie/file-builder/logging"
	"github.com/btrekkie/file-builder/simpleops"
)

// Build runs an incremental build identified by buildName, reusing as much
// as possible from the cache file at cacheFilename. fn is called exactly
// once, with a root Builder through which it declares the files and
// subbuilds that make up the build.
func Build(ctx context.Context, cacheFilename, buildName string, fn RootFunc, opts *Options) (any, error) {
	return BuildVersioned(ctx, cacheFilename, buildName, nil, fn, opts)
}

// BuildVersioned is Build, additionally keying every build-file and
// subbuild call's cache validity on versions: a map from function name to
// an arbitrary JSON-representable value. Bumping a function's entry in
// versions invalidates every cached result produced by calls naming that
// function, without needing to touch any other part of the cache.
func BuildVersioned(
	ctx context.Context, cacheFilename, buildName string, versions map[string]jsoncanon.Value, fn RootFunc,
	opts *Options,
) (any, error) {
	logger := loggerFromOptions(opts)

	absCacheFilename, err := sanitizeFilename(cacheFilename)
	if err != nil {
		return nil, err
	}

	oldCache, err := loadOldCache(absCacheFilename, buildName, versions, logger)
	if err != nil {
		return nil, err
	}

	newCache := cache.NewEmptyMutable(buildName, versions)
	dirs := builddirs.New(oldCache.CreatedDirs(), append(oldCache.CreatedFiles(), absCacheFilename))
	executor := simpleops.New(absCacheFilename, oldCache, newCache, dirs)

	backups, err := filebackups.Acquire(logger)
	if err != nil {
		return nil, err
	}
	defer backups.Close()

	root := &Builder{
		ctx:      ctx,
		oldCache: oldCache,
		newCache: newCache,
		executor: executor,
		backups:  backups,
		dirs:     dirs,
		logger:   logger,
	}
	result, buildErr := root.runBuild(absCacheFilename, fn)
	root.isFinishedBuild = true
	return result, buildErr
}

// loadOldCache reads the previous build's cache file, if there is one
// compatible with buildName, or returns an empty stand-in cache otherwise.
func loadOldCache(
	absCacheFilename, buildName string, versions map[string]jsoncanon.Value, logger *logging.Logger,
) (*cache.Cache, error) {
	info, statErr := os.Stat(absCacheFilename)
	switch {
	case statErr == nil && info.IsDir():
		return nil, buildfile.New(
			buildfile.KindIsADirectory,
			"the cache file is an existing directory, so we can't write to it: "+absCacheFilename)
	case statErr == nil:
		oldCache, err := cache.ReadImmutable(absCacheFilename)
		if err != nil {
			return nil, err
		}
		if oldCache.BuildName() != buildName {
			return nil, buildfile.New(
				buildfile.KindCacheFormat,
				fmt.Sprintf(
					"the cache file was created for the build named %s, which is different from the specified "+
						"build name %s",
					oldCache.BuildName(), buildName))
		}
		return oldCache, nil
	default:
		logger.Printf("the cache file %s does not exist, so building everything from scratch", absCacheFilename)
		return cache.NewEmptyImmutable(buildName, versions), nil
	}
}

// runBuild drives the root build on b: create the cache file's own parent
// directories first (so a cache file that can never be written fails fast,
// before anything else is built), call fn, record the directories it
// created, write the new cache file, and either commit or roll back
// depending on the outcome.
func (b *Builder) runBuild(cacheFilename string, fn RootFunc) (any, error) {
	cacheFileCreatedDirs, err := b.makeDirs(filepath.Dir(cacheFilename))
	if err != nil {
		return nil, err
	}

	result, fnErr := fn(b)
	b.isFinishedBuild = true
	if fnErr != nil {
		b.rollBack(cacheFileCreatedDirs)
		return nil, fnErr
	}

	normCasedErrorCreatedDirs := b.setCreatedDirs(cacheFileCreatedDirs)

	existed, backErr := b.backupCacheFileIfPresent(cacheFilename)
	if backErr != nil {
		b.rollBack(cacheFileCreatedDirs)
		return nil, backErr
	}
	if existed {
		b.logger.Printf("moved cache file %s to a temporary directory", cacheFilename)
	}

	if err := b.newCache.Write(cacheFilename); err != nil {
		b.rollBack(cacheFileCreatedDirs)
		return nil, err
	}
	b.logger.Printf("wrote cache file %s", cacheFilename)

	b.commit(normCasedErrorCreatedDirs)
	return result, nil
}

func (b *Builder) backupCacheFileIfPresent(filename string) (bool, error) {
	info, err := os.Stat(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, wrapOSError(err)
	}
	if info.IsDir() {
		return false, nil
	}
	return b.backups.BackUpAndRemove(filename)
}

// Clean removes every file and directory the build named buildName created,
// according to the cache file at cacheFilename, along with the cache file
// itself. It is a no-op if the cache file does not exist. If buildName is
// non-nil, Clean verifies the cache file was built under that name before
// touching anything.
func Clean(cacheFilename string, buildName *string, logger *logging.Logger) error {
	absCacheFilename, err := sanitizeFilename(cacheFilename)
	if err != nil {
		return err
	}

	info, statErr := os.Stat(absCacheFilename)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			logger.Printf("the cache file %s does not exist, so there's nothing to clean", absCacheFilename)
			return nil
		}
		return wrapOSError(statErr)
	}
	if info.IsDir() {
		return buildfile.New(
			buildfile.KindIsADirectory,
			"the cache file is an existing directory, so we can't write to it: "+absCacheFilename)
	}

	oldCache, err := cache.ReadImmutable(absCacheFilename)
	if err != nil {
		return err
	}
	if buildName != nil && oldCache.BuildName() != *buildName {
		return buildfile.New(
			buildfile.KindCacheFormat,
			fmt.Sprintf(
				"the cache file was created for the build named %s, which is different from the specified "+
					"build name %s",
				oldCache.BuildName(), *buildName))
	}

	for _, filename := range oldCache.CreatedFiles() {
		tryToRemoveFile(filename, logger)
	}
	tryToRemoveFile(absCacheFilename, logger)
	removeEmptyDirs(oldCache.CreatedDirs(), logger)
	return nil
}

// Package cache stores the results of a build: both the finished results of
// a previous run, loaded read-only, and the in-progress/finished results of
// the current run, built up concurrently. See operation for the record
// types stored here.
package cache

import (
	"sort"
	"sync"

	"github.com/btrekkie/file-builder/buildfile"
	"github.com/btrekkie/file-builder/internal/platform"
	"github.com/btrekkie/file-builder/jsoncanon"
	"github.com/btrekkie/file-builder/operation"
)

// softwareIdentity tags cache files as belonging to this format, distinct
// from any similarly-shaped JSON another tool might produce.
const softwareIdentity = "file_builder"

// FileVersion is the current cache file format version. Bump this whenever
// the file format or the semantics it encodes change; a reader that sees
// any other value (including the zero value, which the format never
// legitimately uses) rejects the file with buildfile.KindCacheFormat.
var FileVersion = jsoncanon.Int(1)

type locker interface {
	Lock()
	Unlock()
}

type noopLocker struct{}

func (noopLocker) Lock()   {}
func (noopLocker) Unlock() {}

// Cache is a thread-safe store of BuildFileOp and SubbuildOp records for one
// build. An immutable Cache (as returned by ReadImmutable) skips locking
// entirely, since nothing may mutate it.
//
// To avoid deadlock, code that needs more than one of filesMu, subbuildsMu,
// and createdDirsMu must acquire them in that order.
type Cache struct {
	buildName string

	filesMu        locker
	files          map[string]*operation.BuildFileOp // nil value = in progress
	normCasedFiles map[string]*operation.BuildFileOp // nil value = in progress

	subbuildsMu locker
	subbuilds   map[string]*operation.SubbuildOp // nil value = in progress

	createdDirsMu locker
	createdDirs   map[string]bool

	funcVersions      map[string]jsoncanon.Value
	operationVersions map[string]jsoncanon.Value
}

func newLockSet(mutable bool) (locker, locker, locker) {
	if !mutable {
		return noopLocker{}, noopLocker{}, noopLocker{}
	}
	return &sync.Mutex{}, &sync.Mutex{}, &sync.Mutex{}
}

// NewEmptyMutable returns a new, empty, mutable Cache for a build named
// buildName, whose build-file and subbuild entries are versioned per
// funcVersions.
func NewEmptyMutable(buildName string, funcVersions map[string]jsoncanon.Value) *Cache {
	return newEmpty(buildName, funcVersions, true)
}

// NewEmptyImmutable returns a new, empty, immutable Cache. It is only useful
// as a stand-in "previous build" cache when there is no real previous
// build.
func NewEmptyImmutable(buildName string, funcVersions map[string]jsoncanon.Value) *Cache {
	return newEmpty(buildName, funcVersions, false)
}

func newEmpty(buildName string, funcVersions map[string]jsoncanon.Value, mutable bool) *Cache {
	filesMu, subbuildsMu, createdDirsMu := newLockSet(mutable)
	return &Cache{
		buildName:         buildName,
		filesMu:           filesMu,
		files:             make(map[string]*operation.BuildFileOp),
		normCasedFiles:    make(map[string]*operation.BuildFileOp),
		subbuildsMu:       subbuildsMu,
		subbuilds:         make(map[string]*operation.SubbuildOp),
		createdDirsMu:     createdDirsMu,
		createdDirs:       make(map[string]bool),
		funcVersions:      funcVersions,
		operationVersions: map[string]jsoncanon.Value{},
	}
}

// SubbuildKey returns the cache key for a subbuild identified by funcName,
// args, and kwargs: a string uniquely identifying that function name and
// argument set.
func SubbuildKey(funcName string, args []jsoncanon.Value, kwargs map[string]jsoncanon.Value) string {
	return jsoncanon.Seq([]jsoncanon.Value{
		jsoncanon.String(funcName),
		jsoncanon.Seq(args),
		jsoncanon.Map(kwargs),
	}).HashKey()
}

// BuildName returns the build's name, as supplied to NewEmptyMutable or
// recorded in the cache file read by ReadImmutable.
func (c *Cache) BuildName() string { return c.buildName }

// GetFile returns the BuildFileOp recorded for filename, or nil if building
// filename has not started, or has started but not finished.
func (c *Cache) GetFile(filename string) *operation.BuildFileOp {
	c.filesMu.Lock()
	defer c.filesMu.Unlock()
	return c.files[filename]
}

// GetNormCasedFile is like GetFile, keyed by the platform-normalized
// filename.
func (c *Cache) GetNormCasedFile(normCasedFilename string) *operation.BuildFileOp {
	c.filesMu.Lock()
	defer c.filesMu.Unlock()
	return c.normCasedFiles[normCasedFilename]
}

// StartBuildingFile records that filename is about to be built, claiming it
// exclusively for the rest of this build. Returns
// buildfile.KindDuplicateBuild if filename, or a filename with the same
// normalized form, is already present (in progress or finished).
func (c *Cache) StartBuildingFile(filename string) error {
	normCasedFilename := platform.NormCase(filename)
	c.filesMu.Lock()
	defer c.filesMu.Unlock()
	if err := c.assertDoesntHaveNormCasedFileLocked(normCasedFilename, filename); err != nil {
		return err
	}
	c.files[filename] = nil
	c.normCasedFiles[normCasedFilename] = nil
	return nil
}

// FinishBuildingFile records the result of building op.Filename, including
// the case where the build function raised. op.Finished() must be true and
// its ComplexOp.SetupFailed must be false.
func (c *Cache) FinishBuildingFile(op *operation.BuildFileOp) {
	c.filesMu.Lock()
	defer c.filesMu.Unlock()
	c.files[op.Filename] = op
	c.normCasedFiles[platform.NormCase(op.Filename)] = op
}

// HasNormCasedFile reports whether there is a cache entry (in progress or
// finished) for normCasedFilename.
func (c *Cache) HasNormCasedFile(normCasedFilename string) bool {
	c.filesMu.Lock()
	defer c.filesMu.Unlock()
	_, ok := c.normCasedFiles[normCasedFilename]
	return ok
}

// CreatedFile reports whether filename was created by this cache's build:
// a finished, non-raised BuildFileOp entry exists for it.
func (c *Cache) CreatedFile(filename string) bool {
	c.filesMu.Lock()
	op := c.files[filename]
	c.filesMu.Unlock()
	return op != nil && !op.Raised
}

// CreatedNormCasedFile is like CreatedFile, keyed by the normalized
// filename.
func (c *Cache) CreatedNormCasedFile(normCasedFilename string) bool {
	c.filesMu.Lock()
	op := c.normCasedFiles[normCasedFilename]
	c.filesMu.Unlock()
	return op != nil && !op.Raised
}

// AssertDoesntHaveNormCasedFile returns buildfile.KindDuplicateBuild if
// there is already an entry (in progress or finished) for
// normCasedFilename.
func (c *Cache) AssertDoesntHaveNormCasedFile(normCasedFilename, filename string) error {
	c.filesMu.Lock()
	defer c.filesMu.Unlock()
	return c.assertDoesntHaveNormCasedFileLocked(normCasedFilename, filename)
}

func (c *Cache) assertDoesntHaveNormCasedFileLocked(normCasedFilename, filename string) error {
	if _, ok := c.normCasedFiles[normCasedFilename]; ok {
		return buildfile.New(buildfile.KindDuplicateBuild, "building the same file twice is not allowed: "+filename)
	}
	return nil
}

// CreatedFiles returns the non-normalized filenames of every file this
// build finished building without raising.
func (c *Cache) CreatedFiles() []string {
	c.filesMu.Lock()
	defer c.filesMu.Unlock()
	var created []string
	for filename, op := range c.files {
		if op != nil && !op.Raised {
			created = append(created, filename)
		}
	}
	return created
}

// GetSubbuild returns the SubbuildOp recorded under key, as returned by
// SubbuildKey, or nil if that subbuild has not started, or has started but
// not finished.
func (c *Cache) GetSubbuild(key string) *operation.SubbuildOp {
	c.subbuildsMu.Lock()
	defer c.subbuildsMu.Unlock()
	return c.subbuilds[key]
}

// StartSubbuild records that the subbuild identified by key is about to run.
// Returns buildfile.KindDuplicateSubbuild if it is already present.
func (c *Cache) StartSubbuild(key string, op *operation.SubbuildOp) error {
	c.subbuildsMu.Lock()
	defer c.subbuildsMu.Unlock()
	if err := c.assertDoesntHaveSubbuildLocked(key, op); err != nil {
		return err
	}
	c.subbuilds[key] = nil
	return nil
}

// FinishSubbuild records the result of running the subbuild identified by
// key, including the case where the subbuild function raised. op.Finished()
// must be true and its SetupFailed must be false.
func (c *Cache) FinishSubbuild(key string, op *operation.SubbuildOp) {
	c.subbuildsMu.Lock()
	defer c.subbuildsMu.Unlock()
	c.subbuilds[key] = op
}

// HasSubbuild reports whether there is a cache entry (in progress or
// finished) for key.
func (c *Cache) HasSubbuild(key string) bool {
	c.subbuildsMu.Lock()
	defer c.subbuildsMu.Unlock()
	_, ok := c.subbuilds[key]
	return ok
}

// AssertDoesntHaveSubbuild returns buildfile.KindDuplicateSubbuild if key is
// already present.
func (c *Cache) AssertDoesntHaveSubbuild(key string, op *operation.SubbuildOp) error {
	c.subbuildsMu.Lock()
	defer c.subbuildsMu.Unlock()
	return c.assertDoesntHaveSubbuildLocked(key, op)
}

func (c *Cache) assertDoesntHaveSubbuildLocked(key string, op *operation.SubbuildOp) error {
	if _, ok := c.subbuilds[key]; ok {
		return buildfile.New(
			buildfile.KindDuplicateSubbuild,
			"calling the same subbuild function twice with the same arguments is not allowed: "+op.FuncName)
	}
	return nil
}

// UseCachedOperation plants op, and every BuildFileOp/SubbuildOp in its
// suboperation tree whose SetupFailed is false, into this cache as finished
// entries, atomically with respect to conflicting concurrent inserts.
// op.Finished() must be true. Fails with buildfile.KindDuplicateBuild or
// buildfile.KindDuplicateSubbuild if any of those entries collides with one
// already present.
func (c *Cache) UseCachedOperation(op operation.Record) error {
	c.filesMu.Lock()
	defer c.filesMu.Unlock()
	c.subbuildsMu.Lock()
	defer c.subbuildsMu.Unlock()

	if err := c.assertNoRepeatsLocked(op); err != nil {
		return err
	}
	c.useCachedOperationLocked(op)
	return nil
}

func (c *Cache) assertNoRepeatsLocked(op operation.Record) error {
	switch o := op.(type) {
	case *operation.BuildFileOp:
		if !o.SetupFailed {
			if err := c.assertDoesntHaveNormCasedFileLocked(platform.NormCase(o.Filename), o.Filename); err != nil {
				return err
			}
		}
		for _, sub := range o.Suboperations {
			if err := c.assertNoRepeatsComplexLocked(sub); err != nil {
				return err
			}
		}
	case *operation.SubbuildOp:
		if !o.SetupFailed {
			key := SubbuildKey(o.FuncName, o.ArgsValue, o.Kwargs)
			if err := c.assertDoesntHaveSubbuildLocked(key, o); err != nil {
				return err
			}
		}
		for _, sub := range o.Suboperations {
			if err := c.assertNoRepeatsComplexLocked(sub); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Cache) assertNoRepeatsComplexLocked(op operation.Record) error {
	switch op.(type) {
	case *operation.BuildFileOp, *operation.SubbuildOp:
		return c.assertNoRepeatsLocked(op)
	default:
		return nil
	}
}

func (c *Cache) useCachedOperationLocked(op operation.Record) {
	switch o := op.(type) {
	case *operation.BuildFileOp:
		if !o.SetupFailed {
			c.files[o.Filename] = o
			c.normCasedFiles[platform.NormCase(o.Filename)] = o
		}
		for _, sub := range o.Suboperations {
			c.useCachedOperationComplex(sub)
		}
	case *operation.SubbuildOp:
		if !o.SetupFailed {
			c.subbuilds[SubbuildKey(o.FuncName, o.ArgsValue, o.Kwargs)] = o
		}
		for _, sub := range o.Suboperations {
			c.useCachedOperationComplex(sub)
		}
	}
}

func (c *Cache) useCachedOperationComplex(op operation.Record) {
	switch op.(type) {
	case *operation.BuildFileOp, *operation.SubbuildOp:
		c.useCachedOperationLocked(op)
	}
}

// AddCreatedDirs records that dirs were virtually created during this
// build.
func (c *Cache) AddCreatedDirs(dirs []string) {
	c.createdDirsMu.Lock()
	defer c.createdDirsMu.Unlock()
	for _, dir := range dirs {
		c.createdDirs[dir] = true
	}
}

// CreatedDirs returns the non-normalized filenames of the directories
// virtually created during this build. This may be stale relative to the
// live BuildDirs state until the build's root scope records it.
func (c *Cache) CreatedDirs() []string {
	c.createdDirsMu.Lock()
	defer c.createdDirsMu.Unlock()
	dirs := make([]string, 0, len(c.createdDirs))
	for dir := range c.createdDirs {
		dirs = append(dirs, dir)
	}
	return dirs
}

// GetFuncVersion returns the recorded version for funcName, or the zero
// Value if there is none.
func (c *Cache) GetFuncVersion(funcName string) jsoncanon.Value {
	return c.funcVersions[funcName]
}

// GetOperationVersion returns the recorded version for the given simple
// operation name, or the zero Value if there is none.
func (c *Cache) GetOperationVersion(opName operation.SimpleOpName) jsoncanon.Value {
	return c.operationVersions[string(opName)]
}

// sortedCreatedDirs returns c.createdDirs's keys in sorted order so Write's
// output is deterministic across runs with the same contents.
func sortedCreatedDirs(m map[string]bool) []string {
	dirs := make([]string, 0, len(m))
	for dir := range m {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

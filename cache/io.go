package cache

import (
	"compress/gzip"
	"io"
	"os"

	"github.com/btrekkie/file-builder/buildfile"
	"github.com/btrekkie/file-builder/internal/platform"
	"github.com/btrekkie/file-builder/jsoncanon"
	"github.com/btrekkie/file-builder/operation"
	"github.com/pkg/errors"
)

// Write serializes this cache's contents to filename as gzip-compressed,
// sorted-key canonical JSON, suitable for later loading with ReadImmutable.
// Callers must ensure no file building or subbuilds are still in progress.
func (c *Cache) Write(filename string) error {
	c.filesMu.Lock()
	c.subbuildsMu.Lock()
	c.createdDirsMu.Lock()
	var allOps []operation.Record
	for _, op := range c.files {
		allOps = append(allOps, op)
	}
	for _, op := range c.subbuilds {
		allOps = append(allOps, op)
	}
	createdDirs := sortedCreatedDirs(c.createdDirs)
	c.createdDirsMu.Unlock()
	c.subbuildsMu.Unlock()
	c.filesMu.Unlock()

	nonRoot := make(map[operation.Record]bool)
	for _, op := range allOps {
		markSuboperations(op, nonRoot)
	}
	rootOps := make([]jsoncanon.Value, 0, len(allOps))
	for _, op := range allOps {
		if !nonRoot[op] {
			rootOps = append(rootOps, operation.ToValue(op))
		}
	}

	createdDirsValues := make([]jsoncanon.Value, len(createdDirs))
	for i, dir := range createdDirs {
		createdDirsValues[i] = jsoncanon.String(dir)
	}

	cacheValue := jsoncanon.Map(map[string]jsoncanon.Value{
		"buildName":         jsoncanon.String(c.buildName),
		"cacheFileVersion":  FileVersion,
		"createdDirs":       jsoncanon.Seq(createdDirsValues),
		"funcVersions":      jsoncanon.Map(c.funcVersions),
		"operationVersions": jsoncanon.Map(c.operationVersions),
		"rootOperations":    jsoncanon.Seq(rootOps),
		"software":          jsoncanon.String(softwareIdentity),
	})

	data, err := jsoncanon.MarshalCanonical(cacheValue)
	if err != nil {
		return errors.Wrap(err, "marshaling cache contents")
	}

	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if _, err := gz.Write(data); err != nil {
		gz.Close()
		return errors.Wrap(err, "writing cache file")
	}
	return gz.Close()
}

func markSuboperations(op operation.Record, nonRoot map[operation.Record]bool) {
	switch o := op.(type) {
	case *operation.BuildFileOp:
		for _, sub := range o.Suboperations {
			nonRoot[sub] = true
			markSuboperations(sub, nonRoot)
		}
	case *operation.SubbuildOp:
		for _, sub := range o.Suboperations {
			nonRoot[sub] = true
			markSuboperations(sub, nonRoot)
		}
	}
}

// ReadImmutable loads the Cache stored in filename, as written by Write. The
// returned Cache is immutable.
func ReadImmutable(filename string) (*Cache, error) {
	info, err := os.Stat(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, buildfile.New(buildfile.KindFileNotFound, "the requested file does not exist: "+filename)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, buildfile.New(buildfile.KindIsADirectory, "cannot read a directory: "+filename)
	}

	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, buildfile.Wrap(buildfile.KindCacheFormat, err, "error reading cache file "+filename)
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, buildfile.Wrap(buildfile.KindCacheFormat, err, "error reading cache file "+filename)
	}

	cacheValue, err := jsoncanon.ParseCanonical(data)
	if err != nil {
		return nil, buildfile.Wrap(buildfile.KindCacheFormat, err, "error parsing cache file "+filename)
	}
	if cacheValue.Kind() != jsoncanon.KindMap {
		return nil, buildfile.New(buildfile.KindCacheFormat, "error parsing cache file "+filename)
	}
	m := cacheValue.Map()

	software, ok := m["software"]
	if !ok || software.Kind() != jsoncanon.KindString || software.Str() != softwareIdentity {
		return nil, buildfile.New(buildfile.KindCacheFormat, "error parsing cache file "+filename)
	}

	version, ok := m["cacheFileVersion"]
	if !ok || !jsoncanon.Equal(version, FileVersion) {
		return nil, buildfile.New(
			buildfile.KindCacheFormat,
			"error parsing cache file "+filename+
				". This cache file was created with a different version of this library. Try upgrading.")
	}

	buildNameVal, ok := m["buildName"]
	if !ok || buildNameVal.Kind() != jsoncanon.KindString {
		return nil, buildfile.New(buildfile.KindCacheFormat, "error parsing cache file "+filename)
	}

	rootOpsVal, ok := m["rootOperations"]
	if !ok || rootOpsVal.Kind() != jsoncanon.KindSeq {
		return nil, buildfile.New(buildfile.KindCacheFormat, "error parsing cache file "+filename)
	}

	files := make(map[string]*operation.BuildFileOp)
	subbuilds := make(map[string]*operation.SubbuildOp)
	for _, opVal := range rootOpsVal.Seq() {
		if _, err := operationFromValue(opVal, files, subbuilds); err != nil {
			return nil, buildfile.Wrap(buildfile.KindCacheFormat, err, "error parsing cache file "+filename)
		}
	}

	createdDirsVal, ok := m["createdDirs"]
	if !ok || createdDirsVal.Kind() != jsoncanon.KindSeq {
		return nil, buildfile.New(buildfile.KindCacheFormat, "error parsing cache file "+filename)
	}
	createdDirs := make(map[string]bool)
	for _, v := range createdDirsVal.Seq() {
		if v.Kind() != jsoncanon.KindString {
			return nil, buildfile.New(buildfile.KindCacheFormat, "error parsing cache file "+filename)
		}
		createdDirs[v.Str()] = true
	}

	funcVersionsVal, ok := m["funcVersions"]
	if !ok || funcVersionsVal.Kind() != jsoncanon.KindMap {
		return nil, buildfile.New(buildfile.KindCacheFormat, "error parsing cache file "+filename)
	}
	operationVersionsVal, ok := m["operationVersions"]
	if !ok || operationVersionsVal.Kind() != jsoncanon.KindMap {
		return nil, buildfile.New(buildfile.KindCacheFormat, "error parsing cache file "+filename)
	}

	normCasedFiles := make(map[string]*operation.BuildFileOp, len(files))
	for filename, op := range files {
		normCasedFiles[platform.NormCase(filename)] = op
	}

	return &Cache{
		buildName:         buildNameVal.Str(),
		filesMu:           noopLocker{},
		files:             files,
		normCasedFiles:    normCasedFiles,
		subbuildsMu:       noopLocker{},
		subbuilds:         subbuilds,
		createdDirsMu:     noopLocker{},
		createdDirs:       createdDirs,
		funcVersions:      funcVersionsVal.Map(),
		operationVersions: operationVersionsVal.Map(),
	}, nil
}

// operationFromValue parses one root or nested operation, indexing
// non-setup-failed BuildFileOp/SubbuildOp records into files/subbuilds as
// it goes, mirroring how Cache itself indexes them.
func operationFromValue(
	v jsoncanon.Value, files map[string]*operation.BuildFileOp, subbuilds map[string]*operation.SubbuildOp,
) (operation.Record, error) {
	op, err := operation.FromValue(v)
	if err != nil {
		return nil, err
	}
	if err := indexOperation(op, files, subbuilds); err != nil {
		return nil, err
	}
	return op, nil
}

func indexOperation(
	op operation.Record, files map[string]*operation.BuildFileOp, subbuilds map[string]*operation.SubbuildOp,
) error {
	switch o := op.(type) {
	case *operation.BuildFileOp:
		if !o.SetupFailed {
			files[o.Filename] = o
		}
		for _, sub := range o.Suboperations {
			if err := indexOperation(sub, files, subbuilds); err != nil {
				return err
			}
		}
	case *operation.SubbuildOp:
		if !o.SetupFailed {
			subbuilds[SubbuildKey(o.FuncName, o.ArgsValue, o.Kwargs)] = o
		}
		for _, sub := range o.Suboperations {
			if err := indexOperation(sub, files, subbuilds); err != nil {
				return err
			}
		}
	}
	return nil
}

package cache

import (
	"path/filepath"
	"testing"

	"github.com/btrekkie/file-builder/buildfile"
	"github.com/btrekkie/file-builder/jsoncanon"
	"github.com/btrekkie/file-builder/operation"
)

func TestStartBuildingFileDuplicate(t *testing.T) {
	c := NewEmptyMutable("test", nil)
	if err := c.StartBuildingFile("/foo/a.txt"); err != nil {
		t.Fatalf("first StartBuildingFile failed: %v", err)
	}
	err := c.StartBuildingFile("/foo/a.txt")
	if !buildfile.Is(err, buildfile.KindDuplicateBuild) {
		t.Errorf("expected KindDuplicateBuild, got %v", err)
	}
}

func TestFinishBuildingFileThenCreatedFile(t *testing.T) {
	c := NewEmptyMutable("test", nil)
	if err := c.StartBuildingFile("/foo/a.txt"); err != nil {
		t.Fatalf("StartBuildingFile failed: %v", err)
	}
	op := &operation.BuildFileOp{
		ComplexOp: operation.ComplexOp{FuncName: "make_a", IsFinished: true},
		Filename:  "/foo/a.txt",
	}
	c.FinishBuildingFile(op)

	if !c.CreatedFile("/foo/a.txt") {
		t.Error("expected CreatedFile to report true for a finished, non-raised build")
	}
	got := c.GetFile("/foo/a.txt")
	if got != op {
		t.Errorf("GetFile returned %+v, want the installed op", got)
	}
}

func TestStartSubbuildDuplicate(t *testing.T) {
	c := NewEmptyMutable("test", nil)
	key := SubbuildKey("f", nil, nil)
	placeholder := &operation.SubbuildOp{ComplexOp: operation.ComplexOp{FuncName: "f"}}
	if err := c.StartSubbuild(key, placeholder); err != nil {
		t.Fatalf("first StartSubbuild failed: %v", err)
	}
	err := c.StartSubbuild(key, placeholder)
	if !buildfile.Is(err, buildfile.KindDuplicateSubbuild) {
		t.Errorf("expected KindDuplicateSubbuild, got %v", err)
	}
}

func TestUseCachedOperationPlantsSuboperations(t *testing.T) {
	c := NewEmptyMutable("test", nil)
	sub := &operation.SubbuildOp{ComplexOp: operation.ComplexOp{FuncName: "helper", IsFinished: true}}
	root := &operation.BuildFileOp{
		ComplexOp: operation.ComplexOp{
			FuncName:      "make_a",
			Suboperations: []operation.Record{sub},
			IsFinished:    true,
		},
		Filename: "/foo/a.txt",
	}

	if err := c.UseCachedOperation(root); err != nil {
		t.Fatalf("UseCachedOperation failed: %v", err)
	}
	if !c.CreatedFile("/foo/a.txt") {
		t.Error("expected the root build-file op to be installed")
	}
	key := SubbuildKey("helper", nil, nil)
	if c.GetSubbuild(key) != sub {
		t.Error("expected the nested subbuild op to be installed")
	}
}

func TestUseCachedOperationRejectsConflict(t *testing.T) {
	c := NewEmptyMutable("test", nil)
	if err := c.StartBuildingFile("/foo/a.txt"); err != nil {
		t.Fatalf("StartBuildingFile failed: %v", err)
	}
	root := &operation.BuildFileOp{
		ComplexOp: operation.ComplexOp{FuncName: "make_a", IsFinished: true},
		Filename:  "/foo/a.txt",
	}
	err := c.UseCachedOperation(root)
	if !buildfile.Is(err, buildfile.KindDuplicateBuild) {
		t.Errorf("expected KindDuplicateBuild, got %v", err)
	}
}

func TestWriteReadImmutableRoundTrip(t *testing.T) {
	c := NewEmptyMutable("my-build", map[string]jsoncanon.Value{"make_a": jsoncanon.Int(3)})
	op := &operation.BuildFileOp{
		ComplexOp: operation.ComplexOp{
			FuncName:    "make_a",
			ArgsValue:   []jsoncanon.Value{jsoncanon.String("/foo/a.txt")},
			ReturnValue: jsoncanon.Null(),
			HasReturn:   true,
			IsFinished:  true,
		},
		Filename:             "/foo/a.txt",
		FileComparisonKind:   operation.ComparisonMetadata,
		FileComparisonResult: jsoncanon.Map(map[string]jsoncanon.Value{"size": jsoncanon.Int(4)}),
		HasComparisonResult:  true,
	}
	if err := c.StartBuildingFile("/foo/a.txt"); err != nil {
		t.Fatalf("StartBuildingFile failed: %v", err)
	}
	c.FinishBuildingFile(op)
	c.AddCreatedDirs([]string{"/foo"})

	dir := t.TempDir()
	cacheFile := filepath.Join(dir, "cache.gz")
	if err := c.Write(cacheFile); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	loaded, err := ReadImmutable(cacheFile)
	if err != nil {
		t.Fatalf("ReadImmutable failed: %v", err)
	}
	if loaded.BuildName() != "my-build" {
		t.Errorf("BuildName() = %q, want %q", loaded.BuildName(), "my-build")
	}
	if !loaded.CreatedFile("/foo/a.txt") {
		t.Error("expected the loaded cache to report /foo/a.txt as created")
	}
	loadedDirs := loaded.CreatedDirs()
	if len(loadedDirs) != 1 || loadedDirs[0] != "/foo" {
		t.Errorf("CreatedDirs() = %v, want [/foo]", loadedDirs)
	}
	if !jsoncanon.Equal(loaded.GetFuncVersion("make_a"), jsoncanon.Int(3)) {
		t.Errorf("GetFuncVersion(make_a) = %v, want 3", loaded.GetFuncVersion("make_a"))
	}
}

func TestReadImmutableMissingFile(t *testing.T) {
	_, err := ReadImmutable(filepath.Join(t.TempDir(), "missing.gz"))
	if !buildfile.Is(err, buildfile.KindFileNotFound) {
		t.Errorf("expected KindFileNotFound, got %v", err)
	}
}

func TestReadImmutableRejectsWrongVersion(t *testing.T) {
	dir := t.TempDir()
	cacheFile := filepath.Join(dir, "cache.gz")
	c := NewEmptyMutable("b", nil)
	if err := c.Write(cacheFile); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	old := FileVersion
	FileVersion = jsoncanon.Int(999)
	defer func() { FileVersion = old }()

	_, err := ReadImmutable(cacheFile)
	if !buildfile.Is(err, buildfile.KindCacheFormat) {
		t.Errorf("expected KindCacheFormat for a version mismatch, got %v", err)
	}
}

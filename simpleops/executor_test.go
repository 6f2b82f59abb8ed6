package simpleops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/btrekkie/file-builder/buildfile"
	"github.com/btrekkie/file-builder/builddirs"
	"github.com/btrekkie/file-builder/cache"
	"github.com/btrekkie/file-builder/operation"
)

func newTestExecutor() (*Executor, string) {
	dir, err := os.MkdirTemp("", "simpleops_test")
	if err != nil {
		panic(err)
	}
	oldCache := cache.NewEmptyImmutable("old", nil)
	newCache := cache.NewEmptyMutable("new", nil)
	dirs := builddirs.New(nil, nil)
	return New(filepath.Join(dir, "cache.gz"), oldCache, newCache, dirs), dir
}

func TestIsFileRegularFile(t *testing.T) {
	e, dir := newTestExecutor()
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	isFile, err := e.IsFile(path, nil)
	if err != nil {
		t.Fatalf("IsFile failed: %v", err)
	}
	if !isFile {
		t.Error("expected IsFile to report true for a regular file")
	}

	isDir, err := e.IsDir(path, nil)
	if err != nil {
		t.Fatalf("IsDir failed: %v", err)
	}
	if isDir {
		t.Error("expected IsDir to report false for a regular file")
	}
}

func TestIsDirDirectory(t *testing.T) {
	e, dir := newTestExecutor()
	defer os.RemoveAll(dir)

	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	isDir, err := e.IsDir(sub, nil)
	if err != nil {
		t.Fatalf("IsDir failed: %v", err)
	}
	if !isDir {
		t.Error("expected IsDir to report true for a directory")
	}
}

func TestExistsMissingFile(t *testing.T) {
	e, dir := newTestExecutor()
	defer os.RemoveAll(dir)

	exists, err := e.Exists(filepath.Join(dir, "missing.txt"), nil)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("expected Exists to report false for a missing file")
	}
}

func TestReadMissingFileReturnsFileNotFound(t *testing.T) {
	e, dir := newTestExecutor()
	defer os.RemoveAll(dir)

	_, err := e.Read(filepath.Join(dir, "missing.txt"), operation.ComparisonMetadata, nil)
	if !buildfile.Is(err, buildfile.KindFileNotFound) {
		t.Errorf("expected KindFileNotFound, got %v", err)
	}
}

func TestReadDirectoryReturnsIsADirectory(t *testing.T) {
	e, dir := newTestExecutor()
	defer os.RemoveAll(dir)

	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	_, err := e.Read(sub, operation.ComparisonMetadata, nil)
	if !buildfile.Is(err, buildfile.KindIsADirectory) {
		t.Errorf("expected KindIsADirectory, got %v", err)
	}
}

func TestFileComparisonResultMetadataReflectsSize(t *testing.T) {
	e, dir := newTestExecutor()
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	result, err := e.FileComparisonResult(path, operation.ComparisonMetadata)
	if err != nil {
		t.Fatalf("FileComparisonResult failed: %v", err)
	}
	size := result.Map()["size"]
	if size.Int() != 5 {
		t.Errorf("size = %d, want 5", size.Int())
	}
}

func TestFileComparisonResultHashIsStableAcrossCalls(t *testing.T) {
	e, dir := newTestExecutor()
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	first, err := e.FileComparisonResult(path, operation.ComparisonHash)
	if err != nil {
		t.Fatalf("FileComparisonResult failed: %v", err)
	}
	second, err := e.FileComparisonResult(path, operation.ComparisonHash)
	if err != nil {
		t.Fatalf("FileComparisonResult failed: %v", err)
	}
	if first.Str() != second.Str() {
		t.Errorf("hash changed across calls: %q vs %q", first.Str(), second.Str())
	}
	if first.Str() == "" {
		t.Error("expected a non-empty hash")
	}
}

func TestListDirReturnsSortedChildren(t *testing.T) {
	e, dir := newTestExecutor()
	defer os.RemoveAll(dir)

	for _, name := range []string{"b.txt", "a.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	subfiles, err := e.ListDir(dir, nil)
	if err != nil {
		t.Fatalf("ListDir failed: %v", err)
	}
	want := []string{"a.txt", "b.txt", "sub"}
	if len(subfiles) != len(want) {
		t.Fatalf("ListDir = %v, want %v", subfiles, want)
	}
	for i, name := range want {
		if subfiles[i] != name {
			t.Errorf("ListDir[%d] = %q, want %q", i, subfiles[i], name)
		}
	}
}

func TestListDirNotADirectory(t *testing.T) {
	e, dir := newTestExecutor()
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := e.ListDir(path, nil)
	if !buildfile.Is(err, buildfile.KindNotADirectory) {
		t.Errorf("expected KindNotADirectory, got %v", err)
	}
}

func TestWalkTopDownVisitsParentBeforeChild(t *testing.T) {
	e, dir := newTestExecutor()
	defer os.RemoveAll(dir)

	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "a.txt"), nil, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	entries, err := e.Walk(dir, true, nil)
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Walk returned %d entries, want 2", len(entries))
	}
	if entries[0].Dir != dir {
		t.Errorf("entries[0].Dir = %q, want %q", entries[0].Dir, dir)
	}
	if entries[1].Dir != sub {
		t.Errorf("entries[1].Dir = %q, want %q", entries[1].Dir, sub)
	}
	if len(entries[1].Subfiles) != 1 || entries[1].Subfiles[0] != "a.txt" {
		t.Errorf("entries[1].Subfiles = %v, want [a.txt]", entries[1].Subfiles)
	}
}

func TestWalkOnNonDirectoryReturnsNil(t *testing.T) {
	e, dir := newTestExecutor()
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	entries, err := e.Walk(path, true, nil)
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	if entries != nil {
		t.Errorf("Walk on a non-directory = %v, want nil", entries)
	}
}

func TestGetSizeMissingFile(t *testing.T) {
	e, dir := newTestExecutor()
	defer os.RemoveAll(dir)

	_, err := e.GetSize(filepath.Join(dir, "missing.txt"), nil)
	if !buildfile.Is(err, buildfile.KindFileNotFound) {
		t.Errorf("expected KindFileNotFound, got %v", err)
	}
}

func TestIsCacheFileMatchesNormalizedCacheFilename(t *testing.T) {
	e, dir := newTestExecutor()
	defer os.RemoveAll(dir)

	if !e.IsCacheFile(filepath.Join(dir, "cache.gz")) {
		t.Error("expected IsCacheFile to recognize the executor's own cache file")
	}
	if e.IsCacheFile(filepath.Join(dir, "other.gz")) {
		t.Error("expected IsCacheFile to reject an unrelated file")
	}
}

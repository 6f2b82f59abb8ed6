package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/btrekkie/file-builder/buildfile"
	"github.com/btrekkie/file-builder/jsoncanon"
)

func writeFileFunc(content string) FileFunc {
	return func(b *Builder, absoluteFilename string, args []jsoncanon.Value) (jsoncanon.Value, error) {
		if err := os.WriteFile(absoluteFilename, []byte(content), 0o644); err != nil {
			return jsoncanon.Value{}, err
		}
		return jsoncanon.Int(int64(len(content))), nil
	}
}

func TestBuildFileReusesCachedResultAcrossBuilds(t *testing.T) {
	dir := t.TempDir()
	cacheFilename := filepath.Join(dir, "cache.gz")
	target := filepath.Join(dir, "out.txt")

	var calls int
	fn := func(b *Builder, absoluteFilename string, args []jsoncanon.Value) (jsoncanon.Value, error) {
		calls++
		return writeFileFunc("hello")(b, absoluteFilename, args)
	}
	root := func(b *Builder) (any, error) {
		_, err := b.BuildFile(target, "write_out", fn, nil)
		return nil, err
	}

	if _, err := Build(context.Background(), cacheFilename, "test", root, nil); err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil || string(data) != "hello" {
		t.Fatalf("expected out.txt to contain %q, got %q (err %v)", "hello", data, err)
	}

	if _, err := Build(context.Background(), cacheFilename, "test", root, nil); err != nil {
		t.Fatalf("second Build failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected the build-file function to run once and its result to be reused, ran %d times", calls)
	}
}

func TestBuildFileRebuildsWhenFuncVersionChanges(t *testing.T) {
	dir := t.TempDir()
	cacheFilename := filepath.Join(dir, "cache.gz")
	target := filepath.Join(dir, "out.txt")

	var buildFileCalls int
	fn := func(b *Builder, absoluteFilename string, args []jsoncanon.Value) (jsoncanon.Value, error) {
		buildFileCalls++
		return writeFileFunc("v1")(b, absoluteFilename, args)
	}
	root := func(b *Builder) (any, error) {
		_, err := b.BuildFile(target, "write_out", fn, nil)
		return nil, err
	}

	opts1 := &Options{}
	if _, err := BuildVersioned(
		context.Background(), cacheFilename, "test", map[string]jsoncanon.Value{"write_out": jsoncanon.Int(1)}, root,
		opts1,
	); err != nil {
		t.Fatalf("first BuildVersioned failed: %v", err)
	}
	if _, err := BuildVersioned(
		context.Background(), cacheFilename, "test", map[string]jsoncanon.Value{"write_out": jsoncanon.Int(2)}, root,
		opts1,
	); err != nil {
		t.Fatalf("second BuildVersioned failed: %v", err)
	}
	if buildFileCalls != 2 {
		t.Fatalf("expected a version bump to force a rebuild, func ran %d times", buildFileCalls)
	}
}

func TestBuildFileMissingOutputReturnsDidNotCreate(t *testing.T) {
	dir := t.TempDir()
	cacheFilename := filepath.Join(dir, "cache.gz")
	target := filepath.Join(dir, "out.txt")

	noop := func(b *Builder, absoluteFilename string, args []jsoncanon.Value) (jsoncanon.Value, error) {
		return jsoncanon.Null(), nil
	}
	root := func(b *Builder) (any, error) {
		_, err := b.BuildFile(target, "noop", noop, nil)
		return nil, err
	}

	_, err := Build(context.Background(), cacheFilename, "test", root, nil)
	if !buildfile.Is(err, buildfile.KindDidNotCreate) {
		t.Fatalf("expected KindDidNotCreate, got %v", err)
	}
}

func TestBuildFileDuplicateReturnsDuplicateBuild(t *testing.T) {
	dir := t.TempDir()
	cacheFilename := filepath.Join(dir, "cache.gz")
	target := filepath.Join(dir, "out.txt")

	root := func(b *Builder) (any, error) {
		if _, err := b.BuildFile(target, "write_out", writeFileFunc("a"), nil); err != nil {
			return nil, err
		}
		_, err := b.BuildFile(target, "write_out", writeFileFunc("a"), nil)
		return nil, err
	}

	_, err := Build(context.Background(), cacheFilename, "test", root, nil)
	if !buildfile.Is(err, buildfile.KindDuplicateBuild) {
		t.Fatalf("expected KindDuplicateBuild, got %v", err)
	}
}

func TestSubbuildReusesCachedResultAcrossBuilds(t *testing.T) {
	dir := t.TempDir()
	cacheFilename := filepath.Join(dir, "cache.gz")

	var calls int
	compute := func(b *Builder, args []jsoncanon.Value, kwargs map[string]jsoncanon.Value) (jsoncanon.Value, error) {
		calls++
		return jsoncanon.Int(42), nil
	}
	root := func(b *Builder) (any, error) {
		_, err := b.Subbuild("compute", compute, []jsoncanon.Value{jsoncanon.String("x")}, nil)
		return nil, err
	}

	if _, err := Build(context.Background(), cacheFilename, "test", root, nil); err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	if _, err := Build(context.Background(), cacheFilename, "test", root, nil); err != nil {
		t.Fatalf("second Build failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected subbuild function to run once, ran %d times", calls)
	}
}

func TestSubbuildDuplicateReturnsDuplicateSubbuild(t *testing.T) {
	dir := t.TempDir()
	cacheFilename := filepath.Join(dir, "cache.gz")

	compute := func(b *Builder, args []jsoncanon.Value, kwargs map[string]jsoncanon.Value) (jsoncanon.Value, error) {
		return jsoncanon.Int(1), nil
	}
	root := func(b *Builder) (any, error) {
		if _, err := b.Subbuild("compute", compute, nil, nil); err != nil {
			return nil, err
		}
		_, err := b.Subbuild("compute", compute, nil, nil)
		return nil, err
	}

	_, err := Build(context.Background(), cacheFilename, "test", root, nil)
	if !buildfile.Is(err, buildfile.KindDuplicateSubbuild) {
		t.Fatalf("expected KindDuplicateSubbuild, got %v", err)
	}
}

func TestBuildFileRollsBackOnRootError(t *testing.T) {
	dir := t.TempDir()
	cacheFilename := filepath.Join(dir, "cache.gz")
	target := filepath.Join(dir, "sub", "out.txt")

	failure := errorSentinel{}
	root := func(b *Builder) (any, error) {
		if _, err := b.BuildFile(target, "write_out", writeFileFunc("a"), nil); err != nil {
			return nil, err
		}
		return nil, failure
	}

	_, err := Build(context.Background(), cacheFilename, "test", root, nil)
	if err != failure {
		t.Fatalf("expected the root error to propagate, got %v", err)
	}
	if _, statErr := os.Stat(target); !os.IsNotExist(statErr) {
		t.Errorf("expected %s to be rolled back, but it exists", target)
	}
	if _, statErr := os.Stat(filepath.Dir(target)); !os.IsNotExist(statErr) {
		t.Errorf("expected %s to be rolled back, but it exists", filepath.Dir(target))
	}
}

type errorSentinel struct{}

func (errorSentinel) Error() string { return "sentinel failure" }

func TestCleanRemovesCreatedFilesAndCacheFile(t *testing.T) {
	dir := t.TempDir()
	cacheFilename := filepath.Join(dir, "cache.gz")
	target := filepath.Join(dir, "sub", "out.txt")

	root := func(b *Builder) (any, error) {
		_, err := b.BuildFile(target, "write_out", writeFileFunc("a"), nil)
		return nil, err
	}
	if _, err := Build(context.Background(), cacheFilename, "test", root, nil); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	buildName := "test"
	if err := Clean(cacheFilename, &buildName, nil); err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Errorf("expected %s to be removed by Clean", target)
	}
	if _, err := os.Stat(cacheFilename); !os.IsNotExist(err) {
		t.Errorf("expected the cache file to be removed by Clean")
	}
}

func TestCleanOnMissingCacheFileIsNoop(t *testing.T) {
	dir := t.TempDir()
	cacheFilename := filepath.Join(dir, "cache.gz")

	if err := Clean(cacheFilename, nil, nil); err != nil {
		t.Fatalf("Clean on a missing cache file should be a no-op, got %v", err)
	}
}

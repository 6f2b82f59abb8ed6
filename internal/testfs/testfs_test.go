package testfs

import (
	"path/filepath"
	"testing"
)

func TestTreeCreatesNestedFiles(t *testing.T) {
	dir := Tree(t, map[string]string{
		"a/b/c.txt": "hello",
		"d.txt":     "world",
	})

	if got := ReadString(t, filepath.Join(dir, "a", "b", "c.txt")); got != "hello" {
		t.Errorf("c.txt content = %q, want %q", got, "hello")
	}
	MustExist(t, filepath.Join(dir, "d.txt"))
	MustNotExist(t, filepath.Join(dir, "missing.txt"))
}

func TestMkdirAllCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := MkdirAll(t, dir, "x/y/z")
	MustExist(t, path)
}

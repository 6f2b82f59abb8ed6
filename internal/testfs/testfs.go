// Package testfs provides small scratch-directory helpers shared by this
// module's test suites, standing in for the repeated os.MkdirTemp/
// os.WriteFile boilerplate that would otherwise appear in every _test.go
// file that needs a real filesystem tree to exercise.
package testfs

import (
	"os"
	"path/filepath"
	"testing"
)

// Tree creates a temporary directory (cleaned up automatically at the end
// of the test) and populates it from files, a map from slash-separated
// relative path to file content. Intermediate directories are created as
// needed. It returns the temporary directory's absolute path.
func Tree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for relPath, content := range files {
		WriteFile(t, dir, relPath, content)
	}
	return dir
}

// WriteFile writes content to relPath under dir, creating any missing
// parent directories first.
func WriteFile(t *testing.T, dir, relPath, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll failed for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed for %s: %v", path, err)
	}
	return path
}

// MkdirAll creates relPath (and any missing parents) under dir as a
// directory.
func MkdirAll(t *testing.T, dir, relPath string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("MkdirAll failed for %s: %v", path, err)
	}
	return path
}

// MustExist fails the test if path does not exist.
func MustExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected %s to exist, got: %v", path, err)
	}
}

// MustNotExist fails the test if path exists.
func MustNotExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("expected %s to not exist", path)
	} else if !os.IsNotExist(err) {
		t.Errorf("expected %s to not exist, got unexpected error: %v", path, err)
	}
}

// ReadString reads path and fails the test if it can't, returning the
// content as a string.
func ReadString(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed for %s: %v", path, err)
	}
	return string(data)
}

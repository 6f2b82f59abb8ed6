package builddirs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStartedBuildingFileLocksOneCreator(t *testing.T) {
	dir := t.TempDir()
	d := New(nil, nil)
	foo := filepath.Join(dir, "foo")
	bar := filepath.Join(foo, "bar")
	target := filepath.Join(bar, "a.txt")

	locked := d.StartedBuildingFile(target, []string{foo, bar})
	if len(locked) != 2 {
		t.Fatalf("expected both parents locked for the first caller, got %v", locked)
	}

	other := filepath.Join(bar, "b.txt")
	lockedAgain := d.StartedBuildingFile(other, []string{foo, bar})
	if len(lockedAgain) != 0 {
		t.Errorf("expected no directories locked for a second file under the same parents, got %v", lockedAgain)
	}
}

func TestErrorBuildingFileUnwindsReservation(t *testing.T) {
	dir := t.TempDir()
	d := New(nil, nil)
	foo := filepath.Join(dir, "foo")
	target := filepath.Join(foo, "a.txt")

	locked := d.StartedBuildingFile(target, []string{foo})
	if len(locked) != 1 {
		t.Fatalf("expected foo to be locked, got %v", locked)
	}

	d.ErrorBuildingFile(target)

	errored := d.NormCasedErrorCreatedDirs()
	if len(errored) != 1 {
		t.Fatalf("expected foo to appear as an error-created dir, got %v", errored)
	}
	if len(d.CreatedDirs()) != 0 {
		t.Errorf("expected no remaining created dirs after the error, got %v", d.CreatedDirs())
	}
}

func TestIsRemovedNormCaseReservedDirectoryIsNotRemoved(t *testing.T) {
	dir := t.TempDir()
	d := New([]string{dir}, nil)
	foo := filepath.Join(dir, "foo")
	target := filepath.Join(foo, "a.txt")
	d.StartedBuildingFile(target, []string{foo})

	removed, err := d.IsRemovedNormCase(foo)
	if err != nil {
		t.Fatalf("IsRemovedNormCase failed: %v", err)
	}
	if removed {
		t.Error("a directory reserved by an in-progress build file should not read as removed")
	}
}

func TestIsRemovedNormCaseMissingDirectory(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "gone")
	d := New([]string{missing}, nil)

	removed, err := d.IsRemovedNormCase(missing)
	if err != nil {
		t.Fatalf("IsRemovedNormCase failed: %v", err)
	}
	if !removed {
		t.Error("expected a directory absent from disk to read as removed")
	}
}

func TestIsRemovedNormCaseExistingDirectory(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "still-here")
	if err := os.Mkdir(present, 0o755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	d := New([]string{present}, nil)

	removed, err := d.IsRemovedNormCase(present)
	if err != nil {
		t.Fatalf("IsRemovedNormCase failed: %v", err)
	}
	if !removed {
		t.Error("expected an empty directory from the previous build to read as removed, since nothing outside the build put an entry in it")
	}
}

func TestHandleNormCasedDirExistsClearsRemovedState(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "reappeared")
	if err := os.Mkdir(present, 0o755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	d := New([]string{present}, nil)

	// The directory starts out maybe-removed; HandleNormCasedDirExists marks
	// it present, so IsRemovedNormCase must not report it removed.
	d.HandleNormCasedDirExists(present)

	removed, err := d.IsRemovedNormCase(present)
	if err != nil {
		t.Fatalf("IsRemovedNormCase failed: %v", err)
	}
	if removed {
		t.Error("expected HandleNormCasedDirExists to mark the directory as present")
	}
}

// Package filebackups provides the ability to back up files before an
// in-progress build overwrites or removes them, and to restore them if the
// build fails partway through.
package filebackups

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/eknkc/basex"
	"github.com/google/uuid"

	"github.com/btrekkie/file-builder/internal/must"
	"github.com/btrekkie/file-builder/logging"
)

// digitEncoding renders a single base-128 digit (0-127) as one path-safe
// character, so that no backup directory ever holds more than 128 files and
// 128 subdirectories.
var digitEncoding = mustEncoding()

// pathUnsafe holds the ASCII characters excluded from the digit alphabet
// because they are meaningful to path parsing on at least one of the
// platforms this module supports.
var pathUnsafe = map[rune]bool{
	'/': true, '\\': true, ':': true, '*': true, '?': true,
	'"': true, '<': true, '>': true, '|': true,
}

func digitAlphabet() string {
	var runes []rune
	for r := rune('!'); len(runes) < 128; r++ {
		if r == 0x7f || (r >= 0x80 && r <= 0x9f) || pathUnsafe[r] {
			continue
		}
		runes = append(runes, r)
	}
	return string(runes)
}

func mustEncoding() *basex.Encoding {
	enc, err := basex.NewEncoding(digitAlphabet())
	if err != nil {
		panic(err)
	}
	return enc
}

type backup struct {
	filename       string
	backupFilename string
}

// Backups stores files removed or overwritten during a build so they can be
// restored if the build does not complete successfully. The zero value is
// not usable; call Acquire to obtain one. Backups is safe for concurrent
// use.
type Backups struct {
	logger *logging.Logger

	mu              sync.Mutex
	backups         []backup
	nextBackupIndex int
	tempDir         string
}

// Acquire creates the temporary directory used to hold backups and returns a
// ready-to-use *Backups. Call Close when done to remove that directory and
// everything still backed up in it.
func Acquire(logger *logging.Logger) (*Backups, error) {
	tempDir := filepath.Join(os.TempDir(), "file_builder_"+uuid.NewString())
	if err := os.MkdirAll(tempDir, 0o777); err != nil {
		return nil, err
	}
	return &Backups{logger: logger, tempDir: tempDir}, nil
}

// Close removes the backup temporary directory and everything in it. Any
// removal failures are logged and swallowed.
func (b *Backups) Close() {
	must.RemoveAll(b.tempDir, b.logger)
	b.mu.Lock()
	b.backups = nil
	b.nextBackupIndex = 0
	b.mu.Unlock()
}

func (b *Backups) digit(value int) string {
	return digitEncoding.Encode([]byte{byte(value)})
}

// backupPath stores backups in nested subdirectories so that each directory
// holds at most 128 files and 128 subdirectories, rather than dumping every
// backup into one flat directory.
func (b *Backups) backupPath(index int) string {
	var components []string
	value := index
	for value >= 128 {
		components = append(components, b.digit(value%128))
		value /= 128
	}
	dir := filepath.Join(append([]string{b.tempDir}, components...)...)
	return filepath.Join(dir, "file_"+b.digit(value))
}

// BackUpAndRemove backs up filename and removes it from its current
// location. If the file does not exist, this has no effect. If filename
// refers to a directory, the directory itself may be removed; this is not
// normally desirable, but is an acceptable cost of tolerating external
// filesystem modifications. Returns whether the file existed and was a
// regular file (i.e. whether a restorable backup was made).
func (b *Backups) BackUpAndRemove(filename string) (bool, error) {
	b.mu.Lock()
	index := b.nextBackupIndex
	b.nextBackupIndex++
	b.mu.Unlock()

	backupFilename := b.backupPath(index)
	if err := os.MkdirAll(filepath.Dir(backupFilename), 0o777); err != nil {
		return false, err
	}

	if err := os.Rename(filename, backupFilename); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	info, err := os.Lstat(backupFilename)
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		// filename was a directory when we backed it up.
		return false, nil
	}

	b.mu.Lock()
	b.backups = append(b.backups, backup{filename: filename, backupFilename: backupFilename})
	b.mu.Unlock()
	return true, nil
}

// RestoreAll restores every file backed up since the last call to
// RestoreAll, each to its original location, overwriting any existing
// regular file there. A file that cannot be restored (e.g. its original
// location is now an existing directory, or an OS error occurs) is skipped;
// the failure is logged and restoration continues with the rest.
func (b *Backups) RestoreAll() {
	b.mu.Lock()
	backups := b.backups
	b.backups = nil
	b.mu.Unlock()

	for _, bk := range backups {
		if info, err := os.Lstat(bk.filename); err == nil && info.IsDir() {
			b.logger.Errorf(
				"unable to restore old contents of %s, because it is an existing directory", bk.filename)
			continue
		}

		if err := os.MkdirAll(filepath.Dir(bk.filename), 0o777); err != nil {
			b.logger.Errorf(
				"unable to restore old contents of %s, because we failed to create the parent directories: %v",
				bk.filename, err)
			continue
		}

		if err := os.Rename(bk.backupFilename, bk.filename); err != nil {
			b.logger.Errorf("failed to restore old contents of %s: %v", bk.filename, err)
			continue
		}

		b.logger.Printf("restored old contents of %s", bk.filename)
	}
}

// Package operation models the cacheable record of an operation occurring
// during a build: a closed, tagged variant of simple operations (a single
// real filesystem observation) and complex operations (build-file and
// subbuild calls, which may themselves contain nested operations).
package operation

import "github.com/btrekkie/file-builder/jsoncanon"

// SimpleOpName is the closed set of simple operation names a
// SimpleOpExecutor understands. It is modeled as an enum rather than a bare
// string so dispatch never falls back to name-string reflection; the string
// form is retained purely for the persisted record.
type SimpleOpName string

// The simple operations exposed through the public Engine API.
const (
	OpRead    SimpleOpName = "read"
	OpListDir SimpleOpName = "list_dir"
	OpWalk    SimpleOpName = "walk"
	OpIsFile  SimpleOpName = "is_file"
	OpIsDir   SimpleOpName = "is_dir"
	OpExists  SimpleOpName = "exists"
	OpGetSize SimpleOpName = "get_size"
)

// FileComparison selects how a build-file output is compared against its
// cached state.
type FileComparison string

// The two comparison strategies this module defines. A third is explicitly
// out of scope.
const (
	// ComparisonMetadata compares size and modification time; cheap, but can
	// be fooled by a file rewritten with the same size within one mtime
	// tick.
	ComparisonMetadata FileComparison = "METADATA"
	// ComparisonHash compares a streamed SHA-256 digest of the file
	// contents; always correct, but requires reading the whole file.
	ComparisonHash FileComparison = "HASH"
)

// Record is the common interface implemented by every operation variant. A
// Record progresses in_progress -> suboperations accumulated -> finished;
// once Finished() is true, the record is immutable.
type Record interface {
	// Finished reports whether this record has completed. Further mutation
	// after Finished() is true is forbidden.
	Finished() bool
	// Args returns the operation's sanitized positional arguments. For a
	// complex operation, this is only the "declared" arguments; it excludes
	// the function name and (for build-file) the target filename.
	Args() []jsoncanon.Value
}

// SimpleOp is a record of a simple (primitive) filesystem operation.
type SimpleOp struct {
	Name          SimpleOpName
	ArgsValue     []jsoncanon.Value
	ReturnValue   jsoncanon.Value
	HasReturn     bool
	ErrorKind     string // empty if the operation didn't raise
	IsFinished    bool
}

// Finished implements Record.
func (o *SimpleOp) Finished() bool { return o.IsFinished }

// Args implements Record.
func (o *SimpleOp) Args() []jsoncanon.Value { return o.ArgsValue }

// Raised reports whether the simple operation resulted in an error.
func (o *SimpleOp) Raised() bool { return o.ErrorKind != "" }

// ComplexOp carries the fields shared by BuildFileOp and SubbuildOp: the
// function invoked, its arguments, and the nested operations it performed.
type ComplexOp struct {
	FuncName      string
	ArgsValue     []jsoncanon.Value
	Kwargs        map[string]jsoncanon.Value
	Suboperations []Record
	ReturnValue   jsoncanon.Value
	HasReturn     bool
	// Raised is true if the operation resulted in an exception. It is
	// always true when SetupFailed is true.
	Raised bool
	// SetupFailed is true when the exception occurred during setup: after
	// argument validation but before the user function ran or a cached
	// result was reused. Setup-failed records are never replayed.
	SetupFailed bool
	IsFinished  bool
}

// Args implements part of Record for embedders.
func (o *ComplexOp) Args() []jsoncanon.Value { return o.ArgsValue }

// Finished implements part of Record for embedders.
func (o *ComplexOp) Finished() bool { return o.IsFinished }

// AppendSuboperation appends sub to this operation's suboperations. It does
// not check whether sub has finished; callers only append operations that
// have themselves finished.
func (o *ComplexOp) AppendSuboperation(sub Record) {
	o.Suboperations = append(o.Suboperations, sub)
}

// BuildFileOp is a record of a build-file operation: a cacheable unit that
// produces exactly one named output file.
type BuildFileOp struct {
	ComplexOp
	Filename             string
	FileComparisonKind   FileComparison
	FileComparisonResult jsoncanon.Value
	HasComparisonResult  bool
}

// SubbuildOp is a record of a subbuild operation: a cacheable unit
// identified by (func_name, args, kwargs) that produces a sanitized return
// value and may perform nested operations.
type SubbuildOp struct {
	ComplexOp
}

var (
	_ Record = (*SimpleOp)(nil)
	_ Record = (*BuildFileOp)(nil)
	_ Record = (*SubbuildOp)(nil)
)

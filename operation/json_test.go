package operation

import (
	"testing"

	"github.com/btrekkie/file-builder/jsoncanon"
)

// TestSimpleOpRoundTrip tests ToValue/FromValue for a simple operation with
// and without an exception.
func TestSimpleOpRoundTrip(t *testing.T) {
	op := &SimpleOp{
		Name:        OpRead,
		ArgsValue:   []jsoncanon.Value{jsoncanon.String("/tmp/a.txt"), jsoncanon.String("METADATA")},
		ReturnValue: jsoncanon.Map(map[string]jsoncanon.Value{"size": jsoncanon.Int(3)}),
		HasReturn:   true,
		IsFinished:  true,
	}
	got, err := FromValue(ToValue(op))
	if err != nil {
		t.Fatalf("FromValue failed: %v", err)
	}
	gotSimple, ok := got.(*SimpleOp)
	if !ok {
		t.Fatalf("FromValue returned %T, want *SimpleOp", got)
	}
	if gotSimple.Name != op.Name || !gotSimple.HasReturn || !jsoncanon.Equal(gotSimple.ReturnValue, op.ReturnValue) {
		t.Errorf("round-trip mismatch: got %+v, want %+v", gotSimple, op)
	}
	if gotSimple.Raised() {
		t.Error("round-tripped op should not be raised")
	}
}

// TestSimpleOpWithException tests that an error kind survives round-trip.
func TestSimpleOpWithException(t *testing.T) {
	op := &SimpleOp{
		Name:       OpIsFile,
		ArgsValue:  []jsoncanon.Value{jsoncanon.String("/tmp/missing")},
		ErrorKind:  "FileNotFound",
		IsFinished: true,
	}
	got, err := FromValue(ToValue(op))
	if err != nil {
		t.Fatalf("FromValue failed: %v", err)
	}
	gotSimple := got.(*SimpleOp)
	if !gotSimple.Raised() || gotSimple.ErrorKind != "FileNotFound" {
		t.Errorf("expected Raised()=true ErrorKind=FileNotFound, got %+v", gotSimple)
	}
}

// TestBuildFileOpRoundTrip tests ToValue/FromValue for a build-file
// operation with nested suboperations.
func TestBuildFileOpRoundTrip(t *testing.T) {
	sub := &SimpleOp{
		Name:       OpRead,
		ArgsValue:  []jsoncanon.Value{jsoncanon.String("/tmp/in.txt")},
		IsFinished: true,
	}
	op := &BuildFileOp{
		ComplexOp: ComplexOp{
			FuncName:      "lint_file",
			ArgsValue:     []jsoncanon.Value{jsoncanon.String("/tmp/in.txt")},
			Kwargs:        map[string]jsoncanon.Value{},
			Suboperations: []Record{sub},
			ReturnValue:   jsoncanon.String("ok"),
			HasReturn:     true,
			IsFinished:    true,
		},
		Filename:             "/tmp/out.txt",
		FileComparisonKind:   ComparisonMetadata,
		FileComparisonResult: jsoncanon.Map(map[string]jsoncanon.Value{"size": jsoncanon.Int(2), "timeNs": jsoncanon.Int(123)}),
		HasComparisonResult:  true,
	}
	got, err := FromValue(ToValue(op))
	if err != nil {
		t.Fatalf("FromValue failed: %v", err)
	}
	gotBuild, ok := got.(*BuildFileOp)
	if !ok {
		t.Fatalf("FromValue returned %T, want *BuildFileOp", got)
	}
	if gotBuild.Filename != op.Filename || gotBuild.FileComparisonKind != op.FileComparisonKind {
		t.Errorf("round-trip mismatch: got %+v", gotBuild)
	}
	if len(gotBuild.Suboperations) != 1 {
		t.Fatalf("expected 1 suboperation, got %d", len(gotBuild.Suboperations))
	}
	if _, ok := gotBuild.Suboperations[0].(*SimpleOp); !ok {
		t.Errorf("suboperation round-tripped as %T, want *SimpleOp", gotBuild.Suboperations[0])
	}
}

// TestFromValueUnknownType tests that an unrecognized "type" value produces
// a *FormatError rather than a panic.
func TestFromValueUnknownType(t *testing.T) {
	v := jsoncanon.Map(map[string]jsoncanon.Value{"type": jsoncanon.String("bogus")})
	if _, err := FromValue(v); err == nil {
		t.Error("FromValue with unknown type should have failed")
	} else if _, ok := err.(*FormatError); !ok {
		t.Errorf("FromValue returned %T, want *FormatError", err)
	}
}

// TestOptionalFlagsOmittedWhenFalse tests that raised/setupFailed are
// omitted from the serialized form rather than written as false.
func TestOptionalFlagsOmittedWhenFalse(t *testing.T) {
	op := &SubbuildOp{ComplexOp: ComplexOp{
		FuncName:   "f",
		Kwargs:     map[string]jsoncanon.Value{},
		IsFinished: true,
	}}
	v := ToValue(op)
	m := v.Map()
	if _, ok := m["raised"]; ok {
		t.Error("raised should be omitted when false")
	}
	if _, ok := m["setupFailed"]; ok {
		t.Error("setupFailed should be omitted when false")
	}
}

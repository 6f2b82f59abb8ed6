package operation

import (
	"fmt"

	"github.com/btrekkie/file-builder/jsoncanon"
)

// ToValue serializes r into its canonical JSON-ish tree form, per the cache
// file format: a simple op is {type, args, returnValue, exceptionType?}; a
// build-file op is {type:"build_file", filename, fileComparison,
// fileComparisonResult, funcName, args, kwargs, suboperations, returnValue,
// raised?, setupFailed?}; a subbuild op omits the file-specific fields.
// Optional flags are omitted (rather than written false) when they hold
// their default value.
func ToValue(r Record) jsoncanon.Value {
	switch o := r.(type) {
	case *SimpleOp:
		return simpleOpToValue(o)
	case *BuildFileOp:
		return buildFileOpToValue(o)
	case *SubbuildOp:
		return subbuildOpToValue(o)
	default:
		panic(fmt.Sprintf("operation: unknown record type %T", r))
	}
}

func simpleOpToValue(o *SimpleOp) jsoncanon.Value {
	m := map[string]jsoncanon.Value{
		"type": jsoncanon.String(string(o.Name)),
		"args": jsoncanon.Seq(o.ArgsValue),
	}
	if o.HasReturn {
		m["returnValue"] = o.ReturnValue
	}
	if o.ErrorKind != "" {
		m["exceptionType"] = jsoncanon.String(o.ErrorKind)
	}
	return jsoncanon.Map(m)
}

func complexOpFields(o *ComplexOp) map[string]jsoncanon.Value {
	subs := make([]jsoncanon.Value, len(o.Suboperations))
	for i, sub := range o.Suboperations {
		subs[i] = ToValue(sub)
	}
	kwargs := o.Kwargs
	if kwargs == nil {
		kwargs = map[string]jsoncanon.Value{}
	}
	m := map[string]jsoncanon.Value{
		"funcName":      jsoncanon.String(o.FuncName),
		"args":          jsoncanon.Seq(o.ArgsValue),
		"kwargs":        jsoncanon.Map(kwargs),
		"suboperations": jsoncanon.Seq(subs),
	}
	if o.HasReturn {
		m["returnValue"] = o.ReturnValue
	}
	if o.Raised {
		m["raised"] = jsoncanon.Bool(true)
	}
	if o.SetupFailed {
		m["setupFailed"] = jsoncanon.Bool(true)
	}
	return m
}

func buildFileOpToValue(o *BuildFileOp) jsoncanon.Value {
	m := complexOpFields(&o.ComplexOp)
	m["type"] = jsoncanon.String("build_file")
	m["filename"] = jsoncanon.String(o.Filename)
	m["fileComparison"] = jsoncanon.String(string(o.FileComparisonKind))
	if o.HasComparisonResult {
		m["fileComparisonResult"] = o.FileComparisonResult
	}
	return jsoncanon.Map(m)
}

func subbuildOpToValue(o *SubbuildOp) jsoncanon.Value {
	m := complexOpFields(&o.ComplexOp)
	m["type"] = jsoncanon.String("subbuild")
	return jsoncanon.Map(m)
}

// FormatError reports a malformed cache record.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string { return "operation: " + e.Reason }

// FromValue deserializes a Record from its canonical tree form, as produced
// by ToValue. Unknown "type" values produce a *FormatError. Build-file and
// subbuild suboperations are parsed recursively.
func FromValue(v jsoncanon.Value) (Record, error) {
	if v.Kind() != jsoncanon.KindMap {
		return nil, &FormatError{Reason: "operation record is not an object"}
	}
	m := v.Map()
	typeVal, ok := m["type"]
	if !ok || typeVal.Kind() != jsoncanon.KindString {
		return nil, &FormatError{Reason: "operation record has no string \"type\""}
	}
	switch typeVal.Str() {
	case "build_file":
		return buildFileOpFromValue(m)
	case "subbuild":
		return subbuildOpFromValue(m)
	case string(OpRead), string(OpListDir), string(OpWalk), string(OpIsFile),
		string(OpIsDir), string(OpExists), string(OpGetSize):
		return simpleOpFromValue(SimpleOpName(typeVal.Str()), m)
	default:
		return nil, &FormatError{Reason: fmt.Sprintf("unknown operation type %q", typeVal.Str())}
	}
}

func requireField(m map[string]jsoncanon.Value, key string) (jsoncanon.Value, error) {
	v, ok := m[key]
	if !ok {
		return jsoncanon.Value{}, &FormatError{Reason: fmt.Sprintf("missing field %q", key)}
	}
	return v, nil
}

func simpleOpFromValue(name SimpleOpName, m map[string]jsoncanon.Value) (*SimpleOp, error) {
	argsVal, err := requireField(m, "args")
	if err != nil {
		return nil, err
	}
	if argsVal.Kind() != jsoncanon.KindSeq {
		return nil, &FormatError{Reason: "\"args\" is not an array"}
	}
	op := &SimpleOp{
		Name:       name,
		ArgsValue:  argsVal.Seq(),
		IsFinished: true,
	}
	if rv, ok := m["returnValue"]; ok {
		op.ReturnValue = rv
		op.HasReturn = true
	}
	if ev, ok := m["exceptionType"]; ok && ev.Kind() == jsoncanon.KindString {
		op.ErrorKind = ev.Str()
	}
	return op, nil
}

func complexOpFromValue(m map[string]jsoncanon.Value) (ComplexOp, error) {
	funcNameVal, err := requireField(m, "funcName")
	if err != nil {
		return ComplexOp{}, err
	}
	argsVal, err := requireField(m, "args")
	if err != nil {
		return ComplexOp{}, err
	}
	kwargsVal, err := requireField(m, "kwargs")
	if err != nil {
		return ComplexOp{}, err
	}
	subsVal, err := requireField(m, "suboperations")
	if err != nil {
		return ComplexOp{}, err
	}
	if argsVal.Kind() != jsoncanon.KindSeq || kwargsVal.Kind() != jsoncanon.KindMap || subsVal.Kind() != jsoncanon.KindSeq {
		return ComplexOp{}, &FormatError{Reason: "malformed complex operation fields"}
	}
	subsSeq := subsVal.Seq()
	subs := make([]Record, len(subsSeq))
	for i, sv := range subsSeq {
		sub, err := FromValue(sv)
		if err != nil {
			return ComplexOp{}, err
		}
		subs[i] = sub
	}
	op := ComplexOp{
		FuncName:      funcNameVal.Str(),
		ArgsValue:     argsVal.Seq(),
		Kwargs:        kwargsVal.Map(),
		Suboperations: subs,
		IsFinished:    true,
	}
	if rv, ok := m["returnValue"]; ok {
		op.ReturnValue = rv
		op.HasReturn = true
	}
	if rv, ok := m["raised"]; ok && rv.Kind() == jsoncanon.KindBool {
		op.Raised = rv.Bool()
	}
	if sv, ok := m["setupFailed"]; ok && sv.Kind() == jsoncanon.KindBool {
		op.SetupFailed = sv.Bool()
	}
	return op, nil
}

func buildFileOpFromValue(m map[string]jsoncanon.Value) (*BuildFileOp, error) {
	complex, err := complexOpFromValue(m)
	if err != nil {
		return nil, err
	}
	filenameVal, err := requireField(m, "filename")
	if err != nil {
		return nil, err
	}
	comparisonVal, err := requireField(m, "fileComparison")
	if err != nil {
		return nil, err
	}
	op := &BuildFileOp{
		ComplexOp:          complex,
		Filename:           filenameVal.Str(),
		FileComparisonKind: FileComparison(comparisonVal.Str()),
	}
	if rv, ok := m["fileComparisonResult"]; ok {
		op.FileComparisonResult = rv
		op.HasComparisonResult = true
	}
	return op, nil
}

func subbuildOpFromValue(m map[string]jsoncanon.Value) (*SubbuildOp, error) {
	complex, err := complexOpFromValue(m)
	if err != nil {
		return nil, err
	}
	return &SubbuildOp{ComplexOp: complex}, nil
}

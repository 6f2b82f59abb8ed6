// Package jsoncanon canonicalizes arbitrary Go values into a small, finite
// value tree (null, bool, int, float, string, ordered sequence, string-keyed
// map) suitable for hashing, structural equality, and persistence. It is the
// Go analogue of the dynamic "sanitized JSON value" that the rest of this
// module threads through operation records, cache entries, and version
// vectors: nothing downstream of Canonicalize ever stores a raw caller
// object.
package jsoncanon

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies which alternative of the sanitized value union a Value
// holds.
type Kind int

// The closed set of kinds a sanitized Value may take.
const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindSeq
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindSeq:
		return "seq"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a sanitized value: a finite tree over
// {null, bool, int, float, string, ordered sequence, string-keyed map}.
// The zero Value is KindNull. Values are immutable once constructed; Seq and
// Map copy their input so later mutation by the caller has no effect.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	seq  []Value
	m    map[string]Value
}

// Null returns the null Value.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integer Value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating-point Value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Seq returns an ordered-sequence Value over the given elements.
func Seq(vs []Value) Value {
	cp := make([]Value, len(vs))
	copy(cp, vs)
	return Value{kind: KindSeq, seq: cp}
}

// Map returns a string-keyed mapping Value over the given entries.
func Map(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: KindMap, m: cp}
}

// Kind reports which alternative v holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns v's boolean payload. It panics if v is not KindBool.
func (v Value) Bool() bool {
	if v.kind != KindBool {
		panic(fmt.Sprintf("jsoncanon: Bool() called on %s value", v.kind))
	}
	return v.b
}

// Int returns v's integer payload. It panics if v is not KindInt.
func (v Value) Int() int64 {
	if v.kind != KindInt {
		panic(fmt.Sprintf("jsoncanon: Int() called on %s value", v.kind))
	}
	return v.i
}

// Float returns v's floating-point payload. It panics if v is not KindFloat.
func (v Value) Float() float64 {
	if v.kind != KindFloat {
		panic(fmt.Sprintf("jsoncanon: Float() called on %s value", v.kind))
	}
	return v.f
}

// Str returns v's string payload. It panics if v is not KindString.
func (v Value) Str() string {
	if v.kind != KindString {
		panic(fmt.Sprintf("jsoncanon: Str() called on %s value", v.kind))
	}
	return v.s
}

// Seq returns v's sequence payload (unshared with the caller). It panics if
// v is not KindSeq.
func (v Value) Seq() []Value {
	if v.kind != KindSeq {
		panic(fmt.Sprintf("jsoncanon: Seq() called on %s value", v.kind))
	}
	cp := make([]Value, len(v.seq))
	copy(cp, v.seq)
	return cp
}

// Map returns v's mapping payload (unshared with the caller). It panics if v
// is not KindMap.
func (v Value) Map() map[string]Value {
	if v.kind != KindMap {
		panic(fmt.Sprintf("jsoncanon: Map() called on %s value", v.kind))
	}
	cp := make(map[string]Value, len(v.m))
	for k, e := range v.m {
		cp[k] = e
	}
	return cp
}

// Sanitizable lets a caller-defined type control its own canonicalization:
// Canonicalize calls SanitizeJSON and canonicalizes the result in its place.
// This is the escape hatch for caller structs that would otherwise have no
// admissible shape.
type Sanitizable interface {
	SanitizeJSON() (any, error)
}

// BadValue reports that a value could not be canonicalized because it
// contains a kind this package does not admit (an opaque object, a channel,
// a function, and so on).
type BadValue struct {
	Value any
}

func (e *BadValue) Error() string {
	return fmt.Sprintf("jsoncanon: value of type %T is not sanitizable", e.Value)
}

// Canonicalize converts an arbitrary dynamically-typed Go value into a
// sanitized Value tree. Supported inputs: nil, Value, bool, any signed or
// unsigned integer type, float32/float64, string, []any (or any slice/array
// via reflection), map[string]any and map[any]any (or any map via
// reflection, with non-string keys converted per the mapping-key rules
// below), and any type implementing Sanitizable.
//
// Non-string map keys are converted to strings: bool to "true"/"false", any
// integer to its decimal form, any float to its round-trippable decimal form
// (NaN to "NaN", +Inf to "Infinity", -Inf to "-Infinity"), nil to "null".
func Canonicalize(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return Int(int64(x)), nil
	case uint8:
		return Int(int64(x)), nil
	case uint16:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case uint64:
		return Int(int64(x)), nil
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case []any:
		seq := make([]Value, len(x))
		for i, e := range x {
			cv, err := Canonicalize(e)
			if err != nil {
				return Value{}, err
			}
			seq[i] = cv
		}
		return Seq(seq), nil
	case map[string]any:
		m := make(map[string]Value, len(x))
		for k, e := range x {
			cv, err := Canonicalize(e)
			if err != nil {
				return Value{}, err
			}
			m[k] = cv
		}
		return Map(m), nil
	case map[any]any:
		m := make(map[string]Value, len(x))
		for k, e := range x {
			ks, err := keyToString(k)
			if err != nil {
				return Value{}, err
			}
			cv, err := Canonicalize(e)
			if err != nil {
				return Value{}, err
			}
			m[ks] = cv
		}
		return Map(m), nil
	case Sanitizable:
		raw, err := x.SanitizeJSON()
		if err != nil {
			return Value{}, err
		}
		return Canonicalize(raw)
	default:
		if cv, ok := canonicalizeReflect(v); ok {
			return cv, nil
		}
		return Value{}, &BadValue{Value: v}
	}
}

// canonicalizeReflect handles named slice/array/map types that don't match
// the concrete cases in Canonicalize (e.g. []string, map[string]int).
func canonicalizeReflect(v any) (Value, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		n := rv.Len()
		seq := make([]Value, n)
		for i := 0; i < n; i++ {
			cv, err := Canonicalize(rv.Index(i).Interface())
			if err != nil {
				return Value{}, false
			}
			seq[i] = cv
		}
		return Seq(seq), true
	case reflect.Map:
		m := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			ks, err := keyToString(iter.Key().Interface())
			if err != nil {
				return Value{}, false
			}
			cv, err := Canonicalize(iter.Value().Interface())
			if err != nil {
				return Value{}, false
			}
			m[ks] = cv
		}
		return Map(m), true
	case reflect.Ptr:
		if rv.IsNil() {
			return Null(), true
		}
		return canonicalizeReflect(rv.Elem().Interface())
	default:
		return Value{}, false
	}
}

func keyToString(k any) (string, error) {
	switch x := k.(type) {
	case string:
		return x, nil
	case nil:
		return "null", nil
	case bool:
		if x {
			return "true", nil
		}
		return "false", nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", x), nil
	case float32:
		return floatKeyString(float64(x)), nil
	case float64:
		return floatKeyString(x), nil
	default:
		return "", &BadValue{Value: k}
	}
}

func floatKeyString(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}

// Equal reports whether a and b are structurally equal: sequences compare
// positionally, maps compare as unordered key-value sets, a boolean is never
// equal to a numeric, and an int is equal to a float of the same magnitude.
func Equal(a, b Value) bool {
	aBool, bBool := a.kind == KindBool, b.kind == KindBool
	if aBool != bBool {
		return false
	}
	if aBool {
		return a.b == b.b
	}
	aNum, bNum := isNumeric(a.kind), isNumeric(b.kind)
	if aNum && bNum {
		return numericEqual(a, b)
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindString:
		return a.s == b.s
	case KindSeq:
		if len(a.seq) != len(b.seq) {
			return false
		}
		for i := range a.seq {
			if !Equal(a.seq[i], b.seq[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.m) != len(b.m) {
			return false
		}
		for k, av := range a.m {
			bv, ok := b.m[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func isNumeric(k Kind) bool { return k == KindInt || k == KindFloat }

// numericEqual compares two numerics by exact value: an Int equals a Float
// only if the Float is integral and converts to exactly that Int.
func numericEqual(a, b Value) bool {
	if a.kind == KindInt && b.kind == KindInt {
		return a.i == b.i
	}
	if a.kind == KindFloat && b.kind == KindFloat {
		return a.f == b.f
	}
	i, f := a.i, b.f
	if a.kind == KindFloat {
		i, f = b.i, a.f
	}
	return f == math.Trunc(f) && f >= math.MinInt64 && f < -float64(math.MinInt64) && int64(f) == i
}

// formatNumericHashKey renders an Int or Float value so that any two values
// equal under Equal (which compares numerics by exact value)
// produce the same string, regardless of which of the two kinds either one
// holds. An Int always formats as its exact decimal value. A Float with no
// fractional part that fits in an int64 formats the same way, so it agrees
// with an Int of equal magnitude; any other Float falls back to
// strconv.FormatFloat, which only ever needs to compare against another
// Float in that same representation.
func formatNumericHashKey(v Value) string {
	if v.kind == KindInt {
		return strconv.FormatInt(v.i, 10)
	}
	f := v.f
	if !math.IsInf(f, 0) && f == math.Trunc(f) && f >= math.MinInt64 && f < -float64(math.MinInt64) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// HashKey returns a canonical string encoding of v such that, for any two
// sanitized values v1 and v2, v1.HashKey() == v2.HashKey() if and only if
// Equal(v1, v2). It is suitable as a Go map key (e.g. for cache subbuild
// keys). Booleans are tagged distinctly from numerics so the hash honors the
// same "bool never equals numeric" rule as Equal.
func (v Value) HashKey() string {
	var sb strings.Builder
	writeHashKey(&sb, v)
	return sb.String()
}

func writeHashKey(sb *strings.Builder, v Value) {
	switch v.kind {
	case KindNull:
		sb.WriteString("n:")
	case KindBool:
		if v.b {
			sb.WriteString("b:1")
		} else {
			sb.WriteString("b:0")
		}
	case KindInt, KindFloat:
		sb.WriteString("i:")
		sb.WriteString(formatNumericHashKey(v))
	case KindString:
		sb.WriteString("s:")
		sb.WriteString(strconv.Quote(v.s))
	case KindSeq:
		sb.WriteByte('[')
		for i, e := range v.seq {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeHashKey(sb, e)
		}
		sb.WriteByte(']')
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteByte(':')
			writeHashKey(sb, v.m[k])
		}
		sb.WriteByte('}')
	}
}

// HashKey is a package-level convenience equal to v.HashKey(), mirroring the
// source's free-function JsonUtil.to_hashable.
func HashKey(v Value) string { return v.HashKey() }

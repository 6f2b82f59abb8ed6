package jsoncanon

import (
	"math"
	"testing"
)

// TestCanonicalize tests Canonicalize across the admitted value kinds.
func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null()},
		{"bool", true, Bool(true)},
		{"int", 42, Int(42)},
		{"int64", int64(42), Int(42)},
		{"float", 1.5, Float(1.5)},
		{"string", "hi", String("hi")},
		{"slice", []any{1, "a", true}, Seq([]Value{Int(1), String("a"), Bool(true)})},
		{"map", map[string]any{"a": 1, "b": 2}, Map(map[string]Value{"a": Int(1), "b": Int(2)})},
		{"namedSlice", []string{"x", "y"}, Seq([]Value{String("x"), String("y")})},
		{"namedMap", map[string]int{"a": 1}, Map(map[string]Value{"a": Int(1)})},
	}
	for _, test := range tests {
		got, err := Canonicalize(test.in)
		if err != nil {
			t.Errorf("%s: Canonicalize returned error: %v", test.name, err)
			continue
		}
		if !Equal(got, test.want) {
			t.Errorf("%s: Canonicalize(%#v) = %#v, want %#v", test.name, test.in, got, test.want)
		}
	}
}

// TestCanonicalizeBadValue tests that unsanitizable values fail with BadValue.
func TestCanonicalizeBadValue(t *testing.T) {
	ch := make(chan int)
	if _, err := Canonicalize(ch); err == nil {
		t.Error("Canonicalize(chan) should have failed")
	} else if _, ok := err.(*BadValue); !ok {
		t.Errorf("Canonicalize(chan) returned %T, want *BadValue", err)
	}
}

// TestEqual tests the structural equality rules, in particular that a bool
// is never equal to a numeric and that ints compare equal to floats of the
// same magnitude.
func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"intEqualsFloat", Int(3), Float(3), true},
		{"intNotEqualsDifferentFloat", Int(3), Float(3.5), false},
		{"boolNotEqualsIntOne", Bool(true), Int(1), false},
		{"boolNotEqualsIntZero", Bool(false), Int(0), false},
		{"boolEqualsBool", Bool(true), Bool(true), true},
		{"nullEqualsNull", Null(), Null(), true},
		{"nullNotEqualsZero", Null(), Int(0), false},
		{"seqOrderMatters", Seq([]Value{Int(1), Int(2)}), Seq([]Value{Int(2), Int(1)}), false},
		{"seqEqual", Seq([]Value{Int(1), Int(2)}), Seq([]Value{Int(1), Int(2)}), true},
		{
			"mapOrderIrrelevant",
			Map(map[string]Value{"a": Int(1), "b": Int(2)}),
			Map(map[string]Value{"b": Int(2), "a": Int(1)}),
			true,
		},
	}
	for _, test := range tests {
		if got := Equal(test.a, test.b); got != test.want {
			t.Errorf("%s: Equal(%#v, %#v) = %v, want %v", test.name, test.a, test.b, got, test.want)
		}
	}
}

// TestHashKeyConsistentWithEqual tests that HashKey agrees with Equal in
// both directions, per the invariant that hash(to_hashable(v1)) ==
// hash(to_hashable(v2)) iff equal(v1, v2).
func TestHashKeyConsistentWithEqual(t *testing.T) {
	values := []Value{
		Null(),
		Bool(true),
		Bool(false),
		Int(0),
		Int(1),
		Float(0),
		Float(1),
		Float(1.5),
		Int(3_000_000_000_000),
		Float(3_000_000_000_000.0),
		Int(3_000_000_000_001),
		String(""),
		String("x"),
		Seq(nil),
		Seq([]Value{Int(1)}),
		Seq([]Value{Int(1), Int(2)}),
		Map(nil),
		Map(map[string]Value{"a": Int(1)}),
		Map(map[string]Value{"a": Int(1), "b": Bool(true)}),
	}
	for i, a := range values {
		for j, b := range values {
			eq := Equal(a, b)
			hashEq := a.HashKey() == b.HashKey()
			if eq != hashEq {
				t.Errorf("values[%d]=%#v values[%d]=%#v: Equal=%v but HashKey equality=%v", i, a, j, b, eq, hashEq)
			}
		}
	}
}

// TestMarshalParseCanonicalRoundTrip tests that MarshalCanonical followed by
// ParseCanonical reproduces an equal value, including non-finite floats.
func TestMarshalParseCanonicalRoundTrip(t *testing.T) {
	values := []Value{
		Null(),
		Bool(true),
		Int(-7),
		Float(2.5),
		Float(math.NaN()),
		Float(math.Inf(1)),
		Float(math.Inf(-1)),
		String("hello \"world\"\n"),
		Seq([]Value{Int(1), String("a"), Null()}),
		Map(map[string]Value{"z": Int(1), "a": Seq([]Value{Bool(false)})}),
	}
	for _, v := range values {
		data, err := MarshalCanonical(v)
		if err != nil {
			t.Errorf("MarshalCanonical(%#v) failed: %v", v, err)
			continue
		}
		got, err := ParseCanonical(data)
		if err != nil {
			t.Errorf("ParseCanonical(%s) failed: %v", data, err)
			continue
		}
		if v.Kind() == KindFloat && math.IsNaN(v.Float()) {
			if got.Kind() != KindFloat || !math.IsNaN(got.Float()) {
				t.Errorf("round-trip of NaN produced %#v", got)
			}
			continue
		}
		if !Equal(v, got) {
			t.Errorf("round-trip of %#v produced %#v (json: %s)", v, got, data)
		}
	}
}

// TestMarshalCanonicalSortsKeys tests that object keys are emitted in
// lexicographic order regardless of map iteration order.
func TestMarshalCanonicalSortsKeys(t *testing.T) {
	v := Map(map[string]Value{"zebra": Int(1), "apple": Int(2), "mango": Int(3)})
	data, err := MarshalCanonical(v)
	if err != nil {
		t.Fatalf("MarshalCanonical failed: %v", err)
	}
	want := `{"apple":2,"mango":3,"zebra":1}`
	if string(data) != want {
		t.Errorf("MarshalCanonical = %s, want %s", data, want)
	}
}

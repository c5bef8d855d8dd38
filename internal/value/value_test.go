package value

import "testing"

func TestIsFalsey(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"nil", NilValue(), true},
		{"false", BoolValue(false), true},
		{"true", BoolValue(true), false},
		{"zero", NumberValue(0), false},
		{"number", NumberValue(1), false},
	}

	for _, tt := range tests {
		if got := tt.v.IsFalsey(); got != tt.want {
			t.Errorf("%s: IsFalsey() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestEqual_DifferentTypesNeverEqual(t *testing.T) {
	if Equal(NilValue(), BoolValue(false)) {
		t.Error("nil should not equal false")
	}
	if Equal(NumberValue(0), BoolValue(false)) {
		t.Error("0 should not equal false")
	}
}

func TestEqual_SameType(t *testing.T) {
	if !Equal(NilValue(), NilValue()) {
		t.Error("nil should equal nil")
	}
	if !Equal(BoolValue(true), BoolValue(true)) {
		t.Error("true should equal true")
	}
	if Equal(BoolValue(true), BoolValue(false)) {
		t.Error("true should not equal false")
	}
	if !Equal(NumberValue(1.5), NumberValue(1.5)) {
		t.Error("1.5 should equal 1.5")
	}
}

func TestEqual_NaNNotEqualToItself(t *testing.T) {
	nan := NumberValue(nan())
	if Equal(nan, nan) {
		t.Error("NaN should not equal itself")
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestEqual_ObjectsByReferenceIdentity(t *testing.T) {
	a := &ObjString{Chars: "hi"}
	b := &ObjString{Chars: "hi"}

	if !Equal(ObjValue(a), ObjValue(a)) {
		t.Error("same pointer should be equal")
	}
	if Equal(ObjValue(a), ObjValue(b)) {
		t.Error("distinct pointers with equal content should not be equal without interning")
	}
}

func TestString_Rendering(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{NilValue(), "nil"},
		{BoolValue(true), "true"},
		{BoolValue(false), "false"},
		{NumberValue(3), "3"},
		{NumberValue(3.5), "3.5"},
		{ObjValue(&ObjString{Chars: "hello"}), "hello"},
	}

	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestHashString_Deterministic(t *testing.T) {
	if HashString("abc") != HashString("abc") {
		t.Error("hash must be deterministic")
	}
	if HashString("abc") == HashString("abd") {
		t.Error("distinct strings should (almost certainly) hash differently")
	}
}

func TestHeader_MarkAndSize(t *testing.T) {
	s := &ObjString{Chars: "x"}

	if ObjMarked(s) {
		t.Error("new object should start unmarked")
	}
	ObjSetMarked(s, true)
	if !ObjMarked(s) {
		t.Error("expected marked after ObjSetMarked(true)")
	}

	ObjSetSize(s, 42)
	if ObjSize(s) != 42 {
		t.Errorf("ObjSize() = %d, want 42", ObjSize(s))
	}

	var next Obj = &ObjString{Chars: "y"}
	ObjSetNext(s, next)
	if ObjNext(s) != next {
		t.Error("ObjNext did not return the linked object")
	}
}

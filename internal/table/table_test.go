package table

import (
	"testing"

	"github.com/kristofer/loxvm/internal/value"
)

func key(chars string) *value.ObjString {
	return &value.ObjString{Chars: chars, Hash: value.HashString(chars)}
}

func TestSetAndGet(t *testing.T) {
	tbl := New()
	k := key("x")

	if isNew := tbl.Set(k, value.NumberValue(1)); !isNew {
		t.Fatal("expected first Set to report a new key")
	}

	got, ok := tbl.Get(k)
	if !ok {
		t.Fatal("expected key to be present")
	}
	if got.AsNumber() != 1 {
		t.Fatalf("got %v, want 1", got)
	}
}

func TestGet_Missing(t *testing.T) {
	tbl := New()
	if _, ok := tbl.Get(key("missing")); ok {
		t.Fatal("expected missing key to report not found")
	}
}

func TestSet_OverwriteExisting(t *testing.T) {
	tbl := New()
	k := key("x")

	tbl.Set(k, value.NumberValue(1))
	if isNew := tbl.Set(k, value.NumberValue(2)); isNew {
		t.Fatal("expected second Set of same key to report not new")
	}

	got, _ := tbl.Get(k)
	if got.AsNumber() != 2 {
		t.Fatalf("got %v, want 2", got)
	}
}

func TestDelete(t *testing.T) {
	tbl := New()
	k := key("x")
	tbl.Set(k, value.NumberValue(1))

	if !tbl.Delete(k) {
		t.Fatal("expected Delete to report the key was present")
	}
	if _, ok := tbl.Get(k); ok {
		t.Fatal("expected key to be gone after Delete")
	}
	if tbl.Delete(k) {
		t.Fatal("expected second Delete to report false")
	}
}

func TestDelete_ThenReinsertSameSlot(t *testing.T) {
	// Exercises the tombstone-reuse branch of findEntry: re-inserting a
	// deleted key lands on its own tombstone and must be found again.
	tbl := New()
	a := key("a")

	tbl.Set(a, value.NumberValue(1))
	tbl.Delete(a)
	tbl.Set(a, value.NumberValue(2))

	got, ok := tbl.Get(a)
	if !ok || got.AsNumber() != 2 {
		t.Fatalf("expected a=2, got %v, ok=%v", got, ok)
	}
}

func TestCount_GrowsAndRehashesCorrectly(t *testing.T) {
	tbl := New()
	const n = 200
	keys := make([]*value.ObjString, n)
	for i := 0; i < n; i++ {
		keys[i] = key(string(rune('a')) + string(rune(i)))
		tbl.Set(keys[i], value.NumberValue(float64(i)))
	}

	if tbl.Count() != n {
		t.Fatalf("Count() = %d, want %d", tbl.Count(), n)
	}
	for i, k := range keys {
		got, ok := tbl.Get(k)
		if !ok || got.AsNumber() != float64(i) {
			t.Fatalf("key %d: got %v, ok=%v", i, got, ok)
		}
	}
}

func TestAddAll(t *testing.T) {
	// Keys compare by pointer, so both tables share the same key objects,
	// as interned strings would.
	a, b := key("a"), key("b")
	src := New()
	src.Set(a, value.NumberValue(1))
	src.Set(b, value.NumberValue(2))

	dst := New()
	dst.Set(b, value.NumberValue(99)) // overridden by AddAll
	dst.AddAll(src)

	if got, _ := dst.Get(a); got.AsNumber() != 1 {
		t.Errorf("a = %v, want 1", got)
	}
	if got, _ := dst.Get(b); got.AsNumber() != 2 {
		t.Errorf("b = %v, want 2 (AddAll should overwrite)", got)
	}
}

func TestFindKey_ContentBasedLookup(t *testing.T) {
	tbl := New()
	k := key("hello")
	tbl.Set(k, value.NilValue())

	found := tbl.FindKey("hello", value.HashString("hello"))
	if found != k {
		t.Fatal("expected FindKey to return the same pointer by content match")
	}

	if tbl.FindKey("goodbye", value.HashString("goodbye")) != nil {
		t.Fatal("expected FindKey to return nil for absent content")
	}
}

func TestEach_VisitsAllLiveEntries(t *testing.T) {
	tbl := New()
	a := key("a")
	tbl.Set(a, value.NumberValue(1))
	tbl.Set(key("b"), value.NumberValue(2))
	tbl.Delete(a)

	seen := map[string]float64{}
	tbl.Each(func(k *value.ObjString, v value.Value) {
		seen[k.Chars] = v.AsNumber()
	})

	if len(seen) != 1 || seen["b"] != 2 {
		t.Fatalf("unexpected Each result: %v", seen)
	}
}

func TestDeleteIf_WeakSweep(t *testing.T) {
	tbl := New()
	marked := key("marked")
	unmarked := key("unmarked")
	tbl.Set(marked, value.NilValue())
	tbl.Set(unmarked, value.NilValue())

	tbl.DeleteIf(func(k *value.ObjString) bool {
		return k == unmarked
	})

	if _, ok := tbl.Get(marked); !ok {
		t.Error("marked key should survive DeleteIf")
	}
	if _, ok := tbl.Get(unmarked); ok {
		t.Error("unmarked key should be removed by DeleteIf")
	}
}

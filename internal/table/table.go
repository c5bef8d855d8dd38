// Package table implements the open-addressed, interned-string-keyed hash
// table used for globals, a class's methods, an instance's fields, and the
// VM's string-interning set.
package table

import (
	"github.com/kristofer/loxvm/internal/value"
)

const maxLoad = 0.75

type entry struct {
	key   *value.ObjString // nil means empty-or-tombstone
	value value.Value
	// tombstone distinguishes "never used" (false) from "deleted" (true)
	// when key is nil; value.NilValue() would otherwise be ambiguous with a
	// legitimately-stored nil value.
	tombstone bool
}

// Table is an open-addressed hash table keyed by interned string identity.
// Because every *value.ObjString is unique per content (see internal/gc's
// interning), key comparison is always pointer equality.
type Table struct {
	entries []entry
	count   int // live entries + tombstones
}

// New returns an empty table.
func New() *Table {
	return &Table{}
}

// Count reports the number of live (non-tombstone) entries.
func (t *Table) Count() int {
	live := 0
	for _, e := range t.entries {
		if e.key != nil {
			live++
		}
	}
	return live
}

func (t *Table) findEntry(entries []entry, key *value.ObjString) *entry {
	capacity := len(entries)
	index := int(key.Hash) & (capacity - 1)
	var tombstone *entry
	for {
		e := &entries[index]
		if e.key == nil {
			if !e.tombstone {
				if tombstone != nil {
					return tombstone
				}
				return e
			}
			if tombstone == nil {
				tombstone = e
			}
		} else if e.key == key {
			return e
		}
		index = (index + 1) & (capacity - 1)
	}
}

func (t *Table) adjustCapacity(capacity int) {
	entries := make([]entry, capacity)
	t.count = 0
	for _, old := range t.entries {
		if old.key == nil {
			continue
		}
		dst := t.findEntry(entries, old.key)
		dst.key = old.key
		dst.value = old.value
		t.count++
	}
	t.entries = entries
}

// Get looks up key, returning its value and true if present.
func (t *Table) Get(key *value.ObjString) (value.Value, bool) {
	if len(t.entries) == 0 {
		return value.NilValue(), false
	}
	e := t.findEntry(t.entries, key)
	if e.key == nil {
		return value.NilValue(), false
	}
	return e.value, true
}

// Set stores val under key, growing the table if needed. Returns true if
// key was not previously present, whether it lands in a never-used slot or
// reuses a tombstone.
func (t *Table) Set(key *value.ObjString, val value.Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*maxLoad {
		capacity := growCapacity(len(t.entries))
		t.adjustCapacity(capacity)
	}
	e := t.findEntry(t.entries, key)
	isNewKey := e.key == nil
	if isNewKey && !e.tombstone {
		t.count++
	}
	e.key = key
	e.value = val
	e.tombstone = false
	return isNewKey
}

// Delete writes a tombstone at key's slot, if present.
func (t *Table) Delete(key *value.ObjString) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := t.findEntry(t.entries, key)
	if e.key == nil {
		return false
	}
	e.key = nil
	e.value = value.BoolValue(true)
	e.tombstone = true
	return true
}

// AddAll copies every entry of from into t, used by OP_INHERIT to copy a
// superclass's methods into a subclass's method table.
func (t *Table) AddAll(from *Table) {
	for _, e := range from.entries {
		if e.key != nil {
			t.Set(e.key, e.value)
		}
	}
}

// FindKey is the content-based lookup used only by the string interner: it
// compares hash, then length, then bytes, since at the moment of interning
// there is no existing *ObjString pointer to compare against.
func (t *Table) FindKey(chars string, hash uint32) *value.ObjString {
	if len(t.entries) == 0 {
		return nil
	}
	capacity := len(t.entries)
	index := int(hash) & (capacity - 1)
	for {
		e := &t.entries[index]
		if e.key == nil {
			if !e.tombstone {
				return nil
			}
		} else if e.key.Hash == hash && e.key.Chars == chars {
			return e.key
		}
		index = (index + 1) & (capacity - 1)
	}
}

// Each calls f for every live entry. Iteration order is unspecified.
func (t *Table) Each(f func(key *value.ObjString, val value.Value)) {
	for _, e := range t.entries {
		if e.key != nil {
			f(e.key, e.value)
		}
	}
}

// DeleteIf removes every live entry whose key satisfies pred — used for the
// weak-key sweep of the intern table during GC (spec.md 4.5/4.6): pred is
// "this key is unmarked".
func (t *Table) DeleteIf(pred func(key *value.ObjString) bool) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil && pred(e.key) {
			e.key = nil
			e.value = value.BoolValue(true)
			e.tombstone = true
		}
	}
}

func growCapacity(capacity int) int {
	if capacity < 8 {
		return 8
	}
	return capacity * 2
}

package gc

import (
	"github.com/kristofer/loxvm/internal/object"
	"github.com/kristofer/loxvm/internal/value"
)

// Collect runs one full mark-sweep cycle: mark roots grey, trace until the
// grey worklist is empty, weak-sweep the intern table, then sweep the
// object list (spec.md 4.6).
func (h *Heap) Collect() {
	before := h.allocated
	if h.activeVM != nil {
		h.activeVM.MarkVMRoots(h.markGrey, h.markValue)
	}
	if h.activeCompiler != nil {
		h.activeCompiler.MarkCompilerRoots(h.markGrey)
	}
	for _, o := range h.pinned {
		h.markGrey(o)
	}

	h.trace()

	h.strings.DeleteIf(func(key *value.ObjString) bool {
		return !value.ObjMarked(key)
	})

	freed := h.sweep()
	h.nextGC = h.allocated * 2
	if h.nextGC < initialNextGC {
		h.nextGC = initialNextGC
	}

	if h.log != nil {
		h.log.Debugf("gc: collected %d bytes (before=%d after=%d) next at %d", freed, before, h.allocated, h.nextGC)
	}
}

func (h *Heap) markValue(v value.Value) {
	if v.IsObj() {
		h.markGrey(v.AsObj())
	}
}

func (h *Heap) markGrey(o value.Obj) {
	if o == nil || value.ObjMarked(o) {
		return
	}
	value.ObjSetMarked(o, true)
	h.grey = append(h.grey, o)
}

func (h *Heap) trace() {
	for len(h.grey) > 0 {
		o := h.grey[len(h.grey)-1]
		h.grey = h.grey[:len(h.grey)-1]
		h.traceReferences(o)
	}
}

func (h *Heap) traceReferences(o value.Obj) {
	switch obj := o.(type) {
	case *value.ObjString, *object.Native:
		// no outgoing references
	case *object.Upvalue:
		h.markValue(obj.Closed)
	case *object.Function:
		if obj.Name != nil {
			h.markGrey(obj.Name)
		}
		for _, c := range obj.Chunk.Constants {
			h.markValue(c)
		}
	case *object.Closure:
		h.markGrey(obj.Function)
		for _, uv := range obj.Upvalues {
			// OP_CLOSURE allocates Upvalues before the following bytes
			// fill each slot in; a cycle triggered mid-loop must not
			// crash on the not-yet-populated entries.
			if uv != nil {
				h.markGrey(uv)
			}
		}
	case *object.Class:
		if obj.Name != nil {
			h.markGrey(obj.Name)
		}
		obj.Methods.Each(func(key *value.ObjString, v value.Value) {
			h.markGrey(key)
			h.markValue(v)
		})
	case *object.Instance:
		h.markGrey(obj.Class)
		obj.Fields.Each(func(key *value.ObjString, v value.Value) {
			h.markGrey(key)
			h.markValue(v)
		})
	case *object.BoundMethod:
		h.markValue(obj.Receiver)
		h.markGrey(obj.Method)
	}
}

// sweep unlinks and drops every unmarked object from the object list,
// debiting the allocation counter, and clears the mark bit on survivors
// for the next cycle. Returns the number of bytes freed.
func (h *Heap) sweep() int {
	var prev value.Obj
	node := h.objects
	freed := 0
	for node != nil {
		next := value.ObjNext(node)
		if value.ObjMarked(node) {
			value.ObjSetMarked(node, false)
			prev = node
			node = next
			continue
		}
		if prev == nil {
			h.objects = next
		} else {
			value.ObjSetNext(prev, next)
		}
		size := value.ObjSize(node)
		h.allocated -= size
		freed += size
		node = next
	}
	return freed
}

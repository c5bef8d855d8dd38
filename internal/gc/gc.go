// Package gc implements the allocator and the precise, non-incremental,
// non-moving mark-sweep collector shared by the compiler and the VM
// (spec.md 4.6). Both the compiler (parsing identifiers and nested
// functions) and the VM (running bytecode) allocate through the same Heap,
// because the collector must be able to trace roots from whichever one is
// currently active — and, during a REPL session, the VM's globals and
// intern table must survive across many separate compiles.
package gc

import (
	"github.com/kristofer/loxvm/internal/chunk"
	"github.com/kristofer/loxvm/internal/object"
	"github.com/kristofer/loxvm/internal/table"
	"github.com/kristofer/loxvm/internal/value"
)

const initialNextGC = 1 << 20 // 1 MiB of logical heap before the first cycle

// Logger is the minimal logging surface gc needs; *logging.Logger from
// github.com/op/go-logging satisfies it. Nil disables GC tracing.
type Logger interface {
	Debugf(format string, args ...interface{})
}

// CompilerRootMarker lets a compiler register its currently-nested chain
// of function compilers as GC roots while compilation is in progress
// (spec.md 4.2, "GC safety during compilation").
type CompilerRootMarker interface {
	MarkCompilerRoots(mark func(value.Obj))
}

// VMRootMarker lets a VM register its value stack, call frames, open
// upvalues, and globals table as GC roots while it is running.
type VMRootMarker interface {
	MarkVMRoots(mark func(value.Obj), markValue func(value.Value))
}

// Heap owns every live object, the string-interning table, and the grey
// worklist used to trace reachability.
type Heap struct {
	objects   value.Obj
	strings   *table.Table
	allocated int
	nextGC    int
	grey      []value.Obj
	pinned    []value.Obj

	stress bool
	log    Logger

	activeCompiler CompilerRootMarker
	activeVM       VMRootMarker
}

// New returns an empty heap. stress, when true, runs a full collection on
// every allocation (spec.md 9's stress-GC debug flag); it is the single
// most valuable tool for finding missed roots, and the whole test suite is
// written to pass with it enabled.
func New(stress bool, log Logger) *Heap {
	return &Heap{
		strings: table.New(),
		nextGC:  initialNextGC,
		stress:  stress,
		log:     log,
	}
}

// Strings returns the intern table, so the VM can expose it to natives
// that need to look up or create strings (e.g. string concatenation
// results produced outside the ADD opcode).
func (h *Heap) Strings() *table.Table { return h.strings }

// SetActiveCompiler registers the compiler whose nested-compiler chain
// should be walked as roots. Pass nil when compilation finishes.
func (h *Heap) SetActiveCompiler(c CompilerRootMarker) { h.activeCompiler = c }

// SetActiveVM registers the VM whose stack/frames/globals should be walked
// as roots. Pass nil when the VM is not currently running (never expected
// in practice, but keeps the zero value safe).
func (h *Heap) SetActiveVM(vm VMRootMarker) { h.activeVM = vm }

// pin temporarily roots o so that an allocation sequence which hasn't yet
// stored o into a real root (the value stack, a table, a struct field)
// survives a GC triggered mid-sequence. This generalizes clox's "push the
// half-built value onto the VM stack before allocating further" idiom to
// contexts (like the compiler) that have no VM stack of their own — see
// DESIGN.md.
func (h *Heap) pin(o value.Obj) { h.pinned = append(h.pinned, o) }

func (h *Heap) unpin() { h.pinned = h.pinned[:len(h.pinned)-1] }

func (h *Heap) track(o value.Obj, size int) {
	value.ObjSetSize(o, size)
	value.ObjSetNext(o, h.objects)
	h.objects = o
	h.allocated += size
	if h.stress || h.allocated > h.nextGC {
		h.Collect()
	}
}

// InternString returns the unique ObjString for chars, allocating and
// interning a new one if this content hasn't been seen before.
func (h *Heap) InternString(chars string) *value.ObjString {
	hash := value.HashString(chars)
	if existing := h.strings.FindKey(chars, hash); existing != nil {
		return existing
	}
	str := &value.ObjString{Chars: chars, Hash: hash}
	h.pin(str)
	h.strings.Set(str, value.NilValue())
	h.track(str, len(chars))
	h.unpin()
	return str
}

// Concatenate interns the result of joining a and b, reusing an existing
// string if this exact content is already interned. The caller must not
// rely on the operands remaining rooted after this call; push the result
// before doing anything else that could allocate (spec.md 4.4).
func (h *Heap) Concatenate(a, b *value.ObjString) *value.ObjString {
	chars := a.Chars + b.Chars
	return h.InternString(chars)
}

// NewFunction allocates an empty Function with its own Chunk.
func (h *Heap) NewFunction() *object.Function {
	fn := &object.Function{Chunk: chunk.New()}
	h.pin(fn)
	h.track(fn, 64)
	h.unpin()
	return fn
}

// NewNative allocates a Native wrapping fn.
func (h *Heap) NewNative(name string, arity int, fn object.NativeFn) *object.Native {
	n := &object.Native{Name: name, Arity: arity, Fn: fn}
	h.pin(n)
	h.track(n, 32)
	h.unpin()
	return n
}

// NewClosure allocates a Closure over function with room for its upvalues.
func (h *Heap) NewClosure(function *object.Function) *object.Closure {
	c := &object.Closure{Function: function, Upvalues: make([]*object.Upvalue, function.UpvalueCount)}
	h.pin(c)
	h.track(c, 16+8*function.UpvalueCount)
	h.unpin()
	return c
}

// NewUpvalue allocates an open upvalue pointing at the stack slot index,
// whose live storage is loc.
func (h *Heap) NewUpvalue(loc *value.Value, slot int) *object.Upvalue {
	u := &object.Upvalue{Location: loc, Slot: slot}
	h.pin(u)
	h.track(u, 32)
	h.unpin()
	return u
}

// NewClass allocates an empty class named name.
func (h *Heap) NewClass(name *value.ObjString) *object.Class {
	c := &object.Class{Name: name, Methods: table.New()}
	h.pin(c)
	h.track(c, 48)
	h.unpin()
	return c
}

// NewInstance allocates a fresh instance of class.
func (h *Heap) NewInstance(class *object.Class) *object.Instance {
	i := &object.Instance{Class: class, Fields: table.New()}
	h.pin(i)
	h.track(i, 48)
	h.unpin()
	return i
}

// NewBoundMethod allocates a BoundMethod pairing receiver with method.
func (h *Heap) NewBoundMethod(receiver value.Value, method value.Obj) *object.BoundMethod {
	b := &object.BoundMethod{Receiver: receiver, Method: method}
	h.pin(b)
	h.track(b, 32)
	h.unpin()
	return b
}

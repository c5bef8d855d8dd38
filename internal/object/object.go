// Package object defines the heap object variants beyond ObjString
// (which lives in internal/value to break an import cycle — see
// DESIGN.md "Go-specific package split"): functions, natives, closures,
// upvalues, classes, instances, and bound methods.
package object

import (
	"fmt"

	"github.com/kristofer/loxvm/internal/chunk"
	"github.com/kristofer/loxvm/internal/table"
	"github.com/kristofer/loxvm/internal/value"
)

// Function is a compiled function body: its arity, how many upvalues it
// closes over, its bytecode chunk, and an optional name (nil for the
// implicit top-level script).
type Function struct {
	value.Header
	Arity        int
	UpvalueCount int
	Chunk        *chunk.Chunk
	Name         *value.ObjString
}

func (f *Function) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Chars)
}

// NativeFn is a host function registered with the VM via DefineNative.
type NativeFn func(args []value.Value) (value.Value, error)

// Native wraps a host-implemented function so it can be called like any
// other Lox callable.
type Native struct {
	value.Header
	Name  string
	Arity int
	Fn    NativeFn
}

func (n *Native) String() string { return "<native fn>" }

// Upvalue references a captured variable: while open, Location points at
// a live VM stack slot (Slot records which one, since Go pointers can't be
// compared for ordering the way clox compares raw C pointers); once closed,
// Location points at Closed instead. OpenNext threads this object onto the
// VM's open-upvalue list, which is distinct from the GC's intrusive
// object-list link carried by Header.
type Upvalue struct {
	value.Header
	Location *value.Value
	Slot     int
	Closed   value.Value
	OpenNext *Upvalue
}

func (u *Upvalue) String() string { return "upvalue" }

// Closure pairs a compiled Function with the upvalues it captured at
// creation time.
type Closure struct {
	value.Header
	Function *Function
	Upvalues []*Upvalue
}

func (c *Closure) String() string { return c.Function.String() }

// Class holds a class's name and its method table (name -> Closure or
// Function value).
type Class struct {
	value.Header
	Name    *value.ObjString
	Methods *table.Table
}

func (c *Class) String() string { return c.Name.Chars }

// Instance is a runtime object of some Class, with its own field table.
type Instance struct {
	value.Header
	Class  *Class
	Fields *table.Table
}

func (i *Instance) String() string { return fmt.Sprintf("%s instance", i.Class.Name.Chars) }

// BoundMethod pairs a receiver value with the method (Closure or Function)
// looked up on its class, so that extracting "obj.method" and calling it
// later still sees the right receiver.
type BoundMethod struct {
	value.Header
	Receiver value.Value
	Method   value.Obj
}

func (b *BoundMethod) String() string {
	switch m := b.Method.(type) {
	case *Closure:
		return m.String()
	case *Function:
		return m.String()
	default:
		return "<bound method>"
	}
}

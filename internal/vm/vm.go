// Package vm implements the stack-based bytecode interpreter: call frames,
// the value stack, the instruction dispatch loop, upvalue capture, method
// binding, and runtime error reporting (spec.md 4.4).
package vm

import (
	"io"
	"os"
	"strings"

	"github.com/kristofer/loxvm/internal/chunk"
	"github.com/kristofer/loxvm/internal/compiler"
	"github.com/kristofer/loxvm/internal/debug"
	"github.com/kristofer/loxvm/internal/gc"
	"github.com/kristofer/loxvm/internal/object"
	"github.com/kristofer/loxvm/internal/table"
	"github.com/kristofer/loxvm/internal/value"
)

// Numeric limits from spec.md 6.
const (
	FramesMax = 64
	StackMax  = FramesMax * 256
)

// Result is the outcome of one Interpret call.
type Result int

const (
	ResultOK Result = iota
	ResultCompileError
	ResultRuntimeError
)

// Logger is the minimal logging surface vm needs for call tracing;
// *logging.Logger from github.com/op/go-logging satisfies it.
type Logger interface {
	Debugf(format string, args ...interface{})
}

// callFrame is one function activation: the closure being run, the
// instruction pointer into its chunk, and the base stack slot its locals
// start at.
type callFrame struct {
	closure *object.Closure
	ip      int
	slots   int
}

// VM is one interpreter instance (New may be called any number of times,
// each VM fully independent): it owns the value stack,
// the call-frame stack, the globals table, the open-upvalue list, and a
// heap shared with whichever Compiler is currently compiling into it.
type VM struct {
	stack    [StackMax]value.Value
	stackTop int

	frames     [FramesMax]callFrame
	frameCount int

	globals      *table.Table
	openUpvalues *object.Upvalue

	heap *gc.Heap
	log  Logger

	initName  *value.ObjString
	lastErr   *RuntimeError
	lastValue value.Value
	writer    io.Writer
}

// New returns a VM ready to interpret programs. stress enables the
// stress-GC debug mode (spec.md 9); log may be nil to disable tracing.
func New(stress bool, log Logger) *VM {
	vm := &VM{
		globals: table.New(),
		heap:    gc.New(stress, gcLoggerAdapter{log}),
		log:     log,
		writer:  os.Stdout,
	}
	vm.heap.SetActiveVM(vm)
	vm.defineNatives()
	vm.initName = vm.heap.InternString("init")
	return vm
}

// SetOutput redirects the print native's destination; the REPL/test
// harness use this to capture output instead of writing to os.Stdout.
func (vm *VM) SetOutput(w io.Writer) { vm.writer = w }

func (vm *VM) stdout() io.Writer { return vm.writer }

// LastValue returns the value of the most recently popped top-level
// expression statement, for the REPL's "=> value" echo (spec.md 9's
// interactive-session ambient behavior).
func (vm *VM) LastValue() value.Value { return vm.lastValue }

// gcLoggerAdapter adapts vm.Logger to gc.Logger (identical method set;
// kept distinct so the two packages don't need to share a type).
type gcLoggerAdapter struct{ Logger }

func (a gcLoggerAdapter) Debugf(format string, args ...interface{}) {
	if a.Logger == nil {
		return
	}
	a.Logger.Debugf(format, args...)
}

// Heap exposes the shared heap so the driver can pass it to compiler.Compile.
func (vm *VM) Heap() *gc.Heap { return vm.heap }

// MarkVMRoots implements gc.VMRootMarker.
func (vm *VM) MarkVMRoots(mark func(value.Obj), markValue func(value.Value)) {
	for i := 0; i < vm.stackTop; i++ {
		markValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		mark(vm.frames[i].closure)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.OpenNext {
		mark(uv)
	}
	vm.globals.Each(func(key *value.ObjString, v value.Value) {
		mark(key)
		markValue(v)
	})
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

func (vm *VM) push(v value.Value) { vm.stack[vm.stackTop] = v; vm.stackTop++ }

func (vm *VM) pop() value.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) value.Value { return vm.stack[vm.stackTop-1-distance] }

// Interpret compiles and runs source against this VM, per spec.md 6's
// vm_interpret contract.
func (vm *VM) Interpret(source string) Result {
	vm.lastValue = value.NilValue()

	fn, ok := compiler.Compile(vm.heap, source)
	if !ok {
		return ResultCompileError
	}

	vm.push(value.ObjValue(fn))
	closure := vm.heap.NewClosure(fn)
	vm.pop()
	vm.push(value.ObjValue(closure))
	vm.callClosure(closure, 0)

	return vm.run()
}

// DefineNative registers a host function in globals, callable like any
// other Lox function (spec.md 6: vm_define_native).
func (vm *VM) DefineNative(name string, arity int, fn object.NativeFn) {
	native := vm.heap.NewNative(name, arity, fn)
	nameStr := vm.heap.InternString(name)
	vm.push(value.ObjValue(nameStr))
	vm.push(value.ObjValue(native))
	vm.globals.Set(nameStr, vm.stack[vm.stackTop-1])
	vm.pop()
	vm.pop()
}

func (vm *VM) run() Result {
	frame := &vm.frames[vm.frameCount-1]

	readByte := func() byte {
		b := frame.closure.Function.Chunk.Code[frame.ip]
		frame.ip++
		return b
	}
	readShort := func() uint16 {
		hi := readByte()
		lo := readByte()
		return uint16(hi)<<8 | uint16(lo)
	}
	readConstant := func() value.Value {
		return frame.closure.Function.Chunk.Constants[readByte()]
	}
	readString := func() *value.ObjString {
		return readConstant().AsObj().(*value.ObjString)
	}

	for {
		if vm.log != nil {
			var b strings.Builder
			debug.DisassembleInstruction(&b, frame.closure.Function.Chunk, frame.ip)
			vm.log.Debugf("%s", strings.TrimRight(b.String(), "\n"))
		}

		op := chunk.OpCode(readByte())
		switch op {
		case chunk.OpConstant:
			vm.push(readConstant())

		case chunk.OpNil:
			vm.push(value.NilValue())
		case chunk.OpTrue:
			vm.push(value.BoolValue(true))
		case chunk.OpFalse:
			vm.push(value.BoolValue(false))
		case chunk.OpPop:
			vm.lastValue = vm.pop()

		case chunk.OpGetLocal:
			slot := readByte()
			vm.push(vm.stack[frame.slots+int(slot)])
		case chunk.OpSetLocal:
			slot := readByte()
			vm.stack[frame.slots+int(slot)] = vm.peek(0)

		case chunk.OpGetGlobal:
			name := readString()
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("undefined variable '%s'", name.Chars)
			}
			vm.push(v)
		case chunk.OpDefineGlobal:
			name := readString()
			vm.globals.Set(name, vm.peek(0))
			vm.pop()
		case chunk.OpSetGlobal:
			name := readString()
			if vm.globals.Set(name, vm.peek(0)) {
				vm.globals.Delete(name)
				return vm.runtimeError("undefined variable '%s'", name.Chars)
			}

		case chunk.OpGetUpvalue:
			slot := readByte()
			vm.push(*frame.closure.Upvalues[slot].Location)
		case chunk.OpSetUpvalue:
			slot := readByte()
			*frame.closure.Upvalues[slot].Location = vm.peek(0)

		case chunk.OpGetProperty:
			if !vm.peek(0).IsObj() {
				return vm.runtimeError("only instances have properties")
			}
			inst, ok := vm.peek(0).AsObj().(*object.Instance)
			if !ok {
				return vm.runtimeError("only instances have properties")
			}
			name := readString()
			if v, ok := inst.Fields.Get(name); ok {
				vm.pop()
				vm.push(v)
				break
			}
			if !vm.bindMethod(inst.Class, name) {
				return ResultRuntimeError
			}
		case chunk.OpSetProperty:
			if !vm.peek(1).IsObj() {
				return vm.runtimeError("only instances have fields")
			}
			inst, ok := vm.peek(1).AsObj().(*object.Instance)
			if !ok {
				return vm.runtimeError("only instances have fields")
			}
			name := readString()
			inst.Fields.Set(name, vm.peek(0))
			v := vm.pop()
			vm.pop()
			vm.push(v)

		case chunk.OpGetSuper:
			name := readString()
			superclass := vm.pop().AsObj().(*object.Class)
			if !vm.bindMethod(superclass, name) {
				return ResultRuntimeError
			}

		case chunk.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.BoolValue(value.Equal(a, b)))
		case chunk.OpGreater:
			if r := vm.binaryNumberOp(func(a, b float64) value.Value { return value.BoolValue(a > b) }); r != ResultOK {
				return r
			}
		case chunk.OpLess:
			if r := vm.binaryNumberOp(func(a, b float64) value.Value { return value.BoolValue(a < b) }); r != ResultOK {
				return r
			}

		case chunk.OpAdd:
			if r := vm.add(); r != ResultOK {
				return r
			}
		case chunk.OpSubtract:
			if r := vm.binaryNumberOp(func(a, b float64) value.Value { return value.NumberValue(a - b) }); r != ResultOK {
				return r
			}
		case chunk.OpMultiply:
			if r := vm.binaryNumberOp(func(a, b float64) value.Value { return value.NumberValue(a * b) }); r != ResultOK {
				return r
			}
		case chunk.OpDivide:
			if r := vm.binaryNumberOp(func(a, b float64) value.Value { return value.NumberValue(a / b) }); r != ResultOK {
				return r
			}

		case chunk.OpNot:
			vm.push(value.BoolValue(vm.pop().IsFalsey()))
		case chunk.OpNegate:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError("operand must be a number")
			}
			vm.push(value.NumberValue(-vm.pop().AsNumber()))

		case chunk.OpJump:
			offset := readShort()
			frame.ip += int(offset)
		case chunk.OpJumpIfFalse:
			offset := readShort()
			if vm.peek(0).IsFalsey() {
				frame.ip += int(offset)
			}
		case chunk.OpLoop:
			offset := readShort()
			frame.ip -= int(offset)

		case chunk.OpCall:
			argCount := int(readByte())
			if !vm.callValue(vm.peek(argCount), argCount) {
				return ResultRuntimeError
			}
			frame = &vm.frames[vm.frameCount-1]

		case chunk.OpClosure:
			fn := readConstant().AsObj().(*object.Function)
			closure := vm.heap.NewClosure(fn)
			vm.push(value.ObjValue(closure))
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := readByte()
				index := readByte()
				if isLocal != 0 {
					closure.Upvalues[i] = vm.captureUpvalue(frame.slots + int(index))
				} else {
					closure.Upvalues[i] = frame.closure.Upvalues[index]
				}
			}
		case chunk.OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case chunk.OpClass:
			name := readString()
			vm.push(value.ObjValue(vm.heap.NewClass(name)))
		case chunk.OpInherit:
			superVal := vm.peek(1)
			superclass, ok := superVal.AsObj().(*object.Class)
			if !superVal.IsObj() || !ok {
				return vm.runtimeError("superclass must be a class")
			}
			subclass := vm.peek(0).AsObj().(*object.Class)
			subclass.Methods.AddAll(superclass.Methods)
			vm.pop()
		case chunk.OpMethod:
			vm.defineMethod(readString())

		case chunk.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.slots)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return ResultOK
			}
			vm.stackTop = frame.slots
			vm.push(result)
			frame = &vm.frames[vm.frameCount-1]
		}
	}
}

func (vm *VM) binaryNumberOp(op func(a, b float64) value.Value) Result {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("operands must be numbers")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	vm.push(op(a, b))
	return ResultOK
}

func (vm *VM) add() Result {
	if vm.peek(0).IsObj() && vm.peek(1).IsObj() {
		bs, bok := vm.peek(0).AsObj().(*value.ObjString)
		as, aok := vm.peek(1).AsObj().(*value.ObjString)
		if aok && bok {
			vm.pop()
			vm.pop()
			result := vm.heap.Concatenate(as, bs)
			vm.push(value.ObjValue(result))
			return ResultOK
		}
	}
	if vm.peek(0).IsNumber() && vm.peek(1).IsNumber() {
		b := vm.pop().AsNumber()
		a := vm.pop().AsNumber()
		vm.push(value.NumberValue(a + b))
		return ResultOK
	}
	return vm.runtimeError("operands must be two numbers or two strings")
}

func (vm *VM) defineMethod(name *value.ObjString) {
	method := vm.peek(0)
	class := vm.peek(1).AsObj().(*object.Class)
	class.Methods.Set(name, method)
	vm.pop()
}

func (vm *VM) bindMethod(class *object.Class, name *value.ObjString) bool {
	method, ok := class.Methods.Get(name)
	if !ok {
		vm.runtimeError("undefined property '%s'", name.Chars)
		return false
	}
	bound := vm.heap.NewBoundMethod(vm.peek(0), method.AsObj())
	vm.pop()
	vm.push(value.ObjValue(bound))
	return true
}

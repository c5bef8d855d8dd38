package vm

import (
	"github.com/kristofer/loxvm/internal/object"
	"github.com/kristofer/loxvm/internal/value"
)

// callValue dispatches a call to whatever callee actually is: a closure or
// a bare function (one that captures nothing) starts a new frame, a native
// runs immediately, a class constructs an instance (invoking init if
// present), and a bound method rebinds the receiver before calling through
// to its underlying closure or function (spec.md 4.4).
func (vm *VM) callValue(callee value.Value, argCount int) bool {
	if callee.IsObj() {
		switch c := callee.AsObj().(type) {
		case *object.Closure:
			return vm.callClosure(c, argCount)
		case *object.Function:
			return vm.callClosure(vm.heap.NewClosure(c), argCount)
		case *object.Native:
			return vm.callNative(c, argCount)
		case *object.Class:
			return vm.instantiate(c, argCount)
		case *object.BoundMethod:
			vm.stack[vm.stackTop-argCount-1] = c.Receiver
			switch m := c.Method.(type) {
			case *object.Closure:
				return vm.callClosure(m, argCount)
			case *object.Function:
				return vm.callClosure(vm.heap.NewClosure(m), argCount)
			}
			vm.runtimeError("can only call functions and classes")
			return false
		}
	}
	vm.runtimeError("can only call functions and classes")
	return false
}

func (vm *VM) callClosure(closure *object.Closure, argCount int) bool {
	if argCount != closure.Function.Arity {
		vm.runtimeError("expected %d arguments but got %d", closure.Function.Arity, argCount)
		return false
	}
	if vm.frameCount == FramesMax {
		vm.runtimeError("stack overflow")
		return false
	}
	frame := &vm.frames[vm.frameCount]
	frame.closure = closure
	frame.ip = 0
	frame.slots = vm.stackTop - argCount - 1
	vm.frameCount++
	return true
}

func (vm *VM) callNative(native *object.Native, argCount int) bool {
	if argCount != native.Arity {
		vm.runtimeError("expected %d arguments but got %d", native.Arity, argCount)
		return false
	}
	args := vm.stack[vm.stackTop-argCount : vm.stackTop]
	result, err := native.Fn(args)
	if err != nil {
		vm.runtimeError("%s", err.Error())
		return false
	}
	vm.stackTop -= argCount + 1
	vm.push(result)
	return true
}

// instantiate handles calling a class like a constructor: allocate a fresh
// Instance, replace the callee slot with it (so "this" sees it inside
// init), and run init if the class defines one (spec.md's "class as
// callable" supplemented semantics — see SPEC_FULL.md).
func (vm *VM) instantiate(class *object.Class, argCount int) bool {
	instance := vm.heap.NewInstance(class)
	vm.stack[vm.stackTop-argCount-1] = value.ObjValue(instance)

	if initializer, ok := class.Methods.Get(vm.initName); ok {
		switch init := initializer.AsObj().(type) {
		case *object.Closure:
			return vm.callClosure(init, argCount)
		case *object.Function:
			return vm.callClosure(vm.heap.NewClosure(init), argCount)
		}
		vm.runtimeError("initializer is not callable")
		return false
	}

	if argCount != 0 {
		vm.runtimeError("expected 0 arguments but got %d", argCount)
		return false
	}
	return true
}

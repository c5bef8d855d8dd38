package vm

import (
	"fmt"
	"time"

	"github.com/kristofer/loxvm/internal/value"
)

// defineNatives registers the host functions every VM starts with. print
// is implemented as a native rather than its own opcode (SPEC_FULL.md
// "print-as-native": one fewer bytecode instruction, and it composes with
// ordinary call argument-count checking instead of needing its own arity
// handling in the compiler).
func (vm *VM) defineNatives() {
	vm.DefineNative("clock", 0, nativeClock)
	vm.DefineNative("print", 1, vm.nativePrint)
}

func nativeClock(args []value.Value) (value.Value, error) {
	return value.NumberValue(float64(time.Now().UnixNano()) / 1e9), nil
}

func (vm *VM) nativePrint(args []value.Value) (value.Value, error) {
	fmt.Fprintln(vm.stdout(), args[0].String())
	return value.NilValue(), nil
}

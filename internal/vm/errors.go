package vm

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

var traceColor = color.New(color.FgYellow)

// StackFrame is one line of a runtime error's trace: the source line the
// call was at and the function name running there (empty for the implicit
// top-level frame, which Error renders as "script"), mirroring the teacher's RuntimeError/StackFrame
// reporting style.
type StackFrame struct {
	Name       string
	SourceLine int
}

// RuntimeError is what a failed Interpret reports: the formatted message
// plus the call stack at the moment of failure, innermost frame first.
type RuntimeError struct {
	Message    string
	StackTrace []StackFrame
}

func (e *RuntimeError) Error() string {
	s := e.Message
	for _, frame := range e.StackTrace {
		if frame.Name == "" {
			s += fmt.Sprintf("\n[line %d] in script", frame.SourceLine)
		} else {
			s += fmt.Sprintf("\n[line %d] in %s()", frame.SourceLine, frame.Name)
		}
	}
	return s
}

// LastError holds the RuntimeError from the most recent failed Interpret
// call, so the driver can print or inspect it after the fact.
func (vm *VM) LastError() *RuntimeError { return vm.lastErr }

// runtimeError builds a RuntimeError from the current call-frame stack,
// prints it to stderr, resets the VM's stacks, and returns
// ResultRuntimeError for the caller to propagate (spec.md 4.4/7).
func (vm *VM) runtimeError(format string, args ...interface{}) Result {
	message := fmt.Sprintf(format, args...)

	trace := make([]StackFrame, 0, vm.frameCount)
	for i := vm.frameCount - 1; i >= 0; i-- {
		frame := vm.frames[i]
		fn := frame.closure.Function
		line := 0
		if frame.ip-1 >= 0 && frame.ip-1 < len(fn.Chunk.Lines) {
			line = fn.Chunk.Lines[frame.ip-1]
		}
		name := ""
		if fn.Name != nil {
			name = fn.Name.Chars
		}
		trace = append(trace, StackFrame{Name: name, SourceLine: line})
	}

	err := &RuntimeError{Message: message, StackTrace: trace}
	vm.lastErr = err
	traceColor.Fprintln(os.Stderr, err.Error())
	vm.resetStack()
	return ResultRuntimeError
}

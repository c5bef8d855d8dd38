package compiler

import (
	"testing"

	"github.com/kristofer/loxvm/internal/chunk"
	"github.com/kristofer/loxvm/internal/gc"
	"github.com/kristofer/loxvm/internal/object"
)

func TestCompile_SimpleExpressionStatement(t *testing.T) {
	fn, ok := Compile(gc.New(false, nil), `1 + 2;`)
	if !ok {
		t.Fatal("expected compilation to succeed")
	}

	want := []chunk.OpCode{chunk.OpConstant, chunk.OpConstant, chunk.OpAdd, chunk.OpPop, chunk.OpNil, chunk.OpReturn}
	assertOpcodes(t, fn.Chunk, want)
}

func TestCompile_PrintIsACallToTheNativeFunction(t *testing.T) {
	// spec.md's print is implemented as a native function, not its own
	// opcode (see SPEC_FULL.md) — so `print(1);` compiles like any other
	// call expression followed by OP_POP, not a dedicated OP_PRINT.
	fn, ok := Compile(gc.New(false, nil), `print(1);`)
	if !ok {
		t.Fatal("expected compilation to succeed")
	}

	for _, b := range fn.Chunk.Code {
		if chunk.OpCode(b) == chunk.OpCall {
			return
		}
	}
	t.Fatalf("expected an OP_CALL in compiled code, got %v", fn.Chunk.Code)
}

func TestCompile_VariableDeclarationAndGlobalAccess(t *testing.T) {
	fn, ok := Compile(gc.New(false, nil), `var x = 1; print(x);`)
	if !ok {
		t.Fatal("expected compilation to succeed")
	}

	var sawDefine, sawGet bool
	for _, b := range fn.Chunk.Code {
		switch chunk.OpCode(b) {
		case chunk.OpDefineGlobal:
			sawDefine = true
		case chunk.OpGetGlobal:
			sawGet = true
		}
	}
	if !sawDefine || !sawGet {
		t.Fatalf("expected OP_DEFINE_GLOBAL and OP_GET_GLOBAL, code=%v", fn.Chunk.Code)
	}
}

func TestCompile_LocalsUseGetSetLocalNotGlobal(t *testing.T) {
	fn, ok := Compile(gc.New(false, nil), `{ var x = 1; x = 2; }`)
	if !ok {
		t.Fatal("expected compilation to succeed")
	}

	for _, b := range fn.Chunk.Code {
		if chunk.OpCode(b) == chunk.OpDefineGlobal || chunk.OpCode(b) == chunk.OpGetGlobal {
			t.Fatalf("block-scoped local leaked into a global opcode, code=%v", fn.Chunk.Code)
		}
	}
}

func TestCompile_FunctionDeclarationNestsAClosure(t *testing.T) {
	// A function that captures nothing is loaded with OP_CONSTANT; inner
	// captures outer's local x, so outer's code must build it with OP_CLOSURE.
	fn, ok := Compile(gc.New(false, nil), `fun outer() { var x = 1; fun inner() { return x; } return inner; }`)
	if !ok {
		t.Fatal("expected compilation to succeed")
	}

	var outer *object.Function
	for _, v := range fn.Chunk.Constants {
		if f, isFn := v.AsObj().(*object.Function); v.IsObj() && isFn {
			outer = f
		}
	}
	if outer == nil {
		t.Fatalf("expected outer's Function among the script's constants, constants=%v", fn.Chunk.Constants)
	}

	var sawClosure bool
	for _, b := range outer.Chunk.Code {
		if chunk.OpCode(b) == chunk.OpClosure {
			sawClosure = true
		}
	}
	if !sawClosure {
		t.Fatalf("expected OP_CLOSURE for a function declaration that captures a local, code=%v", outer.Chunk.Code)
	}
}

func TestCompile_ClassDeclarationEmitsClassAndMethod(t *testing.T) {
	fn, ok := Compile(gc.New(false, nil), `class A { greet() { return "hi"; } }`)
	if !ok {
		t.Fatal("expected compilation to succeed")
	}

	var sawClass, sawMethod bool
	for _, b := range fn.Chunk.Code {
		switch chunk.OpCode(b) {
		case chunk.OpClass:
			sawClass = true
		case chunk.OpMethod:
			sawMethod = true
		}
	}
	if !sawClass || !sawMethod {
		t.Fatalf("expected OP_CLASS and OP_METHOD, code=%v", fn.Chunk.Code)
	}
}

func TestCompile_InheritanceEmitsInherit(t *testing.T) {
	fn, ok := Compile(gc.New(false, nil), `class A {} class B < A {}`)
	if !ok {
		t.Fatal("expected compilation to succeed")
	}

	for _, b := range fn.Chunk.Code {
		if chunk.OpCode(b) == chunk.OpInherit {
			return
		}
	}
	t.Fatalf("expected OP_INHERIT, code=%v", fn.Chunk.Code)
}

func TestCompile_SyntaxErrorReportsFailure(t *testing.T) {
	_, ok := Compile(gc.New(false, nil), `var = 1;`)
	if ok {
		t.Fatal("expected compilation to fail on a missing identifier")
	}
}

func TestCompile_SuperOutsideSubclassIsAnError(t *testing.T) {
	_, ok := Compile(gc.New(false, nil), `class A { greet() { return super.greet(); } }`)
	if ok {
		t.Fatal("expected an error using super in a class with no superclass")
	}
}

func TestCompile_ReturnFromTopLevelScriptIsAnError(t *testing.T) {
	_, ok := Compile(gc.New(false, nil), `return 1;`)
	if ok {
		t.Fatal("expected an error returning a value from the top-level script")
	}
}

func assertOpcodes(t *testing.T, c *chunk.Chunk, want []chunk.OpCode) {
	t.Helper()
	i := 0
	for _, b := range c.Code {
		if i >= len(want) {
			break
		}
		if chunk.OpCode(b) == want[i] {
			i++
		}
	}
	if i != len(want) {
		t.Fatalf("expected opcodes %v in order within %v", want, c.Code)
	}
}

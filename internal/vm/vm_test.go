package vm

import (
	"bytes"
	"strings"
	"testing"
)

func runAndCapture(t *testing.T, source string) (string, Result) {
	t.Helper()
	var out bytes.Buffer
	m := New(false, nil)
	m.SetOutput(&out)
	result := m.Interpret(source)
	return out.String(), result
}

func TestInterpret_ArithmeticAndPrint(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{`print(1 + 2);`, "3\n"},
		{`print(2 * (3 + 4));`, "14\n"},
		{`print(10 / 4);`, "2.5\n"},
		{`print(-5);`, "-5\n"},
		{`print(!true);`, "false\n"},
		{`print("hello" + " " + "world");`, "hello world\n"},
	}

	for _, tt := range tests {
		out, result := runAndCapture(t, tt.source)
		if result != ResultOK {
			t.Fatalf("source %q: Interpret returned %v, want ResultOK", tt.source, result)
		}
		if out != tt.want {
			t.Errorf("source %q: output = %q, want %q", tt.source, out, tt.want)
		}
	}
}

func TestInterpret_VariablesAndGlobals(t *testing.T) {
	source := `
var a = 1;
var b = 2;
a = a + b;
print(a);
`
	out, result := runAndCapture(t, source)
	if result != ResultOK {
		t.Fatalf("Interpret returned %v, want ResultOK", result)
	}
	if out != "3\n" {
		t.Fatalf("output = %q, want \"3\\n\"", out)
	}
}

func TestInterpret_IfElseAndWhile(t *testing.T) {
	source := `
var i = 0;
var sum = 0;
while (i < 5) {
  sum = sum + i;
  i = i + 1;
}
if (sum > 0) {
  print(sum);
} else {
  print("nope");
}
`
	out, result := runAndCapture(t, source)
	if result != ResultOK {
		t.Fatalf("Interpret returned %v, want ResultOK", result)
	}
	if out != "10\n" {
		t.Fatalf("output = %q, want \"10\\n\"", out)
	}
}

func TestInterpret_FunctionsAndClosures(t *testing.T) {
	source := `
fun makeCounter() {
  var count = 0;
  fun counter() {
    count = count + 1;
    return count;
  }
  return counter;
}

var counter = makeCounter();
print(counter());
print(counter());
print(counter());
`
	out, result := runAndCapture(t, source)
	if result != ResultOK {
		t.Fatalf("Interpret returned %v, want ResultOK", result)
	}
	if out != "1\n2\n3\n" {
		t.Fatalf("output = %q, want \"1\\n2\\n3\\n\"", out)
	}
}

func TestInterpret_Recursion(t *testing.T) {
	source := `
fun fib(n) {
  if (n < 2) return n;
  return fib(n - 1) + fib(n - 2);
}
print(fib(10));
`
	out, result := runAndCapture(t, source)
	if result != ResultOK {
		t.Fatalf("Interpret returned %v, want ResultOK", result)
	}
	if out != "55\n" {
		t.Fatalf("output = %q, want \"55\\n\"", out)
	}
}

func TestInterpret_ClassesMethodsAndThis(t *testing.T) {
	source := `
class Counter {
  init() {
    this.count = 0;
  }
  increment() {
    this.count = this.count + 1;
    return this.count;
  }
}

var c = Counter();
print(c.increment());
print(c.increment());
`
	out, result := runAndCapture(t, source)
	if result != ResultOK {
		t.Fatalf("Interpret returned %v, want ResultOK", result)
	}
	if out != "1\n2\n" {
		t.Fatalf("output = %q, want \"1\\n2\\n\"", out)
	}
}

func TestInterpret_Inheritance(t *testing.T) {
	source := `
class Animal {
  speak() {
    return "...";
  }
  describe() {
    return "An animal says " + this.speak();
  }
}

class Dog < Animal {
  speak() {
    return "Woof";
  }
}

var d = Dog();
print(d.describe());
`
	out, result := runAndCapture(t, source)
	if result != ResultOK {
		t.Fatalf("Interpret returned %v, want ResultOK", result)
	}
	if out != "An animal says Woof\n" {
		t.Fatalf("output = %q, want %q", out, "An animal says Woof\n")
	}
}

func TestInterpret_SuperCall(t *testing.T) {
	source := `
class A {
  greet() {
    return "A";
  }
}
class B < A {
  greet() {
    return super.greet() + "B";
  }
}
print(B().greet());
`
	out, result := runAndCapture(t, source)
	if result != ResultOK {
		t.Fatalf("Interpret returned %v, want ResultOK", result)
	}
	if out != "AB\n" {
		t.Fatalf("output = %q, want \"AB\\n\"", out)
	}
}

func TestInterpret_CompileErrorReturnsResultCompileError(t *testing.T) {
	_, result := runAndCapture(t, `var = ;`)
	if result != ResultCompileError {
		t.Fatalf("Interpret returned %v, want ResultCompileError", result)
	}
}

func TestInterpret_RuntimeErrorOnTypeMismatch(t *testing.T) {
	var out bytes.Buffer
	m := New(false, nil)
	m.SetOutput(&out)

	result := m.Interpret(`print("a" + 1);`)
	if result != ResultRuntimeError {
		t.Fatalf("Interpret returned %v, want ResultRuntimeError", result)
	}

	err := m.LastError()
	if err == nil {
		t.Fatal("expected LastError to be populated")
	}
	if !strings.Contains(err.Message, "Operand") && !strings.Contains(err.Message, "operand") {
		t.Errorf("unexpected runtime error message: %q", err.Message)
	}
}

func TestInterpret_UndefinedVariableIsRuntimeError(t *testing.T) {
	_, result := runAndCapture(t, `print(nope);`)
	if result != ResultRuntimeError {
		t.Fatalf("Interpret returned %v, want ResultRuntimeError", result)
	}
}

func TestInterpret_NativeClockReturnsNumber(t *testing.T) {
	out, result := runAndCapture(t, `print(clock() >= 0);`)
	if result != ResultOK {
		t.Fatalf("Interpret returned %v, want ResultOK", result)
	}
	if out != "true\n" {
		t.Fatalf("output = %q, want \"true\\n\"", out)
	}
}

func TestInterpret_StackResetsAfterRuntimeError(t *testing.T) {
	m := New(false, nil)
	m.SetOutput(&bytes.Buffer{})

	m.Interpret(`print(1 + "a");`)
	if m.stackTop != 0 {
		t.Fatalf("expected stack to be reset after a runtime error, stackTop=%d", m.stackTop)
	}

	var out bytes.Buffer
	m.SetOutput(&out)
	result := m.Interpret(`print(2 + 2);`)
	if result != ResultOK {
		t.Fatalf("Interpret after reset returned %v, want ResultOK", result)
	}
	if out.String() != "4\n" {
		t.Fatalf("output after reset = %q, want \"4\\n\"", out.String())
	}
}

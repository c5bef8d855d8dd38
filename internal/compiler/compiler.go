// Package compiler implements the single-pass Pratt compiler: scanner
// tokens are turned directly into bytecode as they're parsed, with no
// intermediate AST (spec.md 4.2).
package compiler

import (
	"os"
	"strconv"

	"github.com/fatih/color"

	"github.com/kristofer/loxvm/internal/chunk"
	"github.com/kristofer/loxvm/internal/gc"
	"github.com/kristofer/loxvm/internal/object"
	"github.com/kristofer/loxvm/internal/scanner"
	"github.com/kristofer/loxvm/internal/value"
)

const sentinelDepth = -1

var errColor = color.New(color.FgRed)

// MaxLocals, MaxUpvalues and MaxParams are the 255-ish limits spec.md 6
// requires; the slot 0 reservation (receiver/this) brings the usable
// count to 255 named locals per function.
const (
	MaxLocals   = 256
	MaxUpvalues = 256
	MaxParams   = 255
)

type funcType int

const (
	typeFunction funcType = iota
	typeInitializer
	typeMethod
	typeScript
)

type local struct {
	name       scanner.Token
	depth      int
	isCaptured bool
}

type upvalueRef struct {
	index   byte
	isLocal bool
}

// funcCompiler is the nested, per-function compilation context. Compiling
// a nested function or method pushes a new funcCompiler whose enclosing
// points back at the one compiling its containing scope.
type funcCompiler struct {
	enclosing  *funcCompiler
	function   *object.Function
	kind       funcType
	locals     []local
	upvalues   []upvalueRef
	scopeDepth int
}

type classCompiler struct {
	enclosing      *classCompiler
	hasSuperclass  bool
}

// Compiler drives a single compilation of one source string into a root
// Function (the implicit top-level script).
type Compiler struct {
	heap *gc.Heap
	scan *scanner.Scanner

	current  scanner.Token
	previous scanner.Token

	hadError  bool
	panicMode bool
	errOut    *os.File

	fc    *funcCompiler
	class *classCompiler
}

// Compile compiles source and returns the top-level script Function. ok is
// false if any compile error was reported, in which case the returned
// function is nil (spec.md 7: "compile returns a sentinel if had_error").
func Compile(heap *gc.Heap, source string) (fn *object.Function, ok bool) {
	c := &Compiler{heap: heap, scan: scanner.New(source), errOut: os.Stderr}
	heap.SetActiveCompiler(c)
	defer heap.SetActiveCompiler(nil)

	c.pushFuncCompiler(typeScript, "")
	c.advance()
	for !c.match(scanner.EOF) {
		c.declaration()
	}
	fn, _ = c.endFuncCompiler()
	if c.hadError {
		return nil, false
	}
	return fn, true
}

// MarkCompilerRoots implements gc.CompilerRootMarker: it walks every
// nested function compiler still on the chain and roots its in-progress
// Function object.
func (c *Compiler) MarkCompilerRoots(mark func(value.Obj)) {
	for fc := c.fc; fc != nil; fc = fc.enclosing {
		mark(fc.function)
	}
}

func (c *Compiler) pushFuncCompiler(kind funcType, name string) {
	fn := c.heap.NewFunction()
	if name != "" {
		fn.Name = c.heap.InternString(name)
	}
	fc := &funcCompiler{enclosing: c.fc, function: fn, kind: kind}
	// Slot 0 is reserved: the receiver for methods, empty for everything
	// else (spec.md 3, Compiler state).
	receiver := ""
	if kind == typeMethod || kind == typeInitializer {
		receiver = "this"
	}
	fc.locals = append(fc.locals, local{name: scanner.Token{Lexeme: receiver}, depth: 0})
	c.fc = fc
}

func (c *Compiler) endFuncCompiler() (*object.Function, []upvalueRef) {
	c.emitReturn()
	fn := c.fc.function
	fn.UpvalueCount = len(c.fc.upvalues)
	upvalues := c.fc.upvalues
	c.fc = c.fc.enclosing
	return fn, upvalues
}

func (c *Compiler) chunk() *chunk.Chunk { return c.fc.function.Chunk }

// --- token plumbing -------------------------------------------------

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.scan.ScanToken()
		if c.current.Type != scanner.Error {
			break
		}
		c.errorAtCurrent(c.current.Lexeme)
	}
}

func (c *Compiler) check(t scanner.TokenType) bool { return c.current.Type == t }

func (c *Compiler) match(t scanner.TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t scanner.TokenType, message string) {
	if c.current.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

// --- error reporting --------------------------------------------------

func (c *Compiler) errorAtCurrent(message string) { c.errorAt(c.current, message) }
func (c *Compiler) error(message string)          { c.errorAt(c.previous, message) }

func (c *Compiler) errorAt(tok scanner.Token, message string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	errColor.Fprintf(c.errOut, "[line %d] Error", tok.Line)
	switch tok.Type {
	case scanner.EOF:
		errColor.Fprint(c.errOut, " at end")
	case scanner.Error:
		// lexeme already is the message
	default:
		errColor.Fprintf(c.errOut, " at '%s'", tok.Lexeme)
	}
	errColor.Fprintf(c.errOut, ": %s\n", message)
	c.hadError = true
}

func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.current.Type != scanner.EOF {
		if c.previous.Type == scanner.Semicolon {
			return
		}
		switch c.current.Type {
		case scanner.Class, scanner.Fun, scanner.Var, scanner.For,
			scanner.If, scanner.While, scanner.Return:
			return
		}
		c.advance()
	}
}

// --- emission helpers ---------------------------------------------------

func (c *Compiler) emitByte(b byte) { c.chunk().Write(b, c.previous.Line) }

func (c *Compiler) emitOp(op chunk.OpCode) { c.chunk().WriteOp(op, c.previous.Line) }

func (c *Compiler) emitOpByte(op chunk.OpCode, operand byte) {
	c.emitOp(op)
	c.emitByte(operand)
}

func (c *Compiler) emitReturn() {
	if c.fc.kind == typeInitializer {
		c.emitOpByte(chunk.OpGetLocal, 0)
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.emitOp(chunk.OpReturn)
}

func (c *Compiler) makeConstant(v value.Value) byte {
	idx, err := c.chunk().AddConstant(v)
	if err != nil {
		c.error(err.Error())
		return 0
	}
	return byte(idx)
}

func (c *Compiler) emitConstant(v value.Value) {
	c.emitOpByte(chunk.OpConstant, c.makeConstant(v))
}

// emitJump writes op followed by a two-byte placeholder offset and
// returns the offset of the first placeholder byte, for patchJump.
func (c *Compiler) emitJump(op chunk.OpCode) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return len(c.chunk().Code) - 2
}

func (c *Compiler) patchJump(offset int) {
	jump := len(c.chunk().Code) - offset - 2
	if jump > 0xffff {
		c.error("too much code to jump over")
		return
	}
	c.chunk().Code[offset] = byte(jump>>8) & 0xff
	c.chunk().Code[offset+1] = byte(jump) & 0xff
}

func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(chunk.OpLoop)
	offset := len(c.chunk().Code) - loopStart + 2
	if offset > 0xffff {
		c.error("too much code to loop over")
		return
	}
	c.emitByte(byte(offset>>8) & 0xff)
	c.emitByte(byte(offset) & 0xff)
}

// --- identifier / constant helpers --------------------------------------

func (c *Compiler) identifierConstant(tok scanner.Token) byte {
	return c.makeConstant(value.ObjValue(c.heap.InternString(tok.Lexeme)))
}

func identifiersEqual(a, b scanner.Token) bool { return a.Lexeme == b.Lexeme }

func syntheticToken(name string) scanner.Token { return scanner.Token{Lexeme: name} }

// numberLiteral parses the previous token's lexeme as a float64.
func numberLiteral(lexeme string) float64 {
	n, _ := strconv.ParseFloat(lexeme, 64)
	return n
}

package compiler

import (
	"github.com/kristofer/loxvm/internal/chunk"
	"github.com/kristofer/loxvm/internal/scanner"
	"github.com/kristofer/loxvm/internal/value"
)

func (c *Compiler) declaration() {
	switch {
	case c.match(scanner.Class):
		c.classDeclaration()
	case c.match(scanner.Fun):
		c.funDeclaration()
	case c.match(scanner.Var):
		c.varDeclaration()
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) statement() {
	switch {
	case c.match(scanner.Return):
		c.returnStatement()
	case c.match(scanner.If):
		c.ifStatement()
	case c.match(scanner.While):
		c.whileStatement()
	case c.match(scanner.For):
		c.forStatement()
	case c.match(scanner.LeftBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) block() {
	for !c.check(scanner.RightBrace) && !c.check(scanner.EOF) {
		c.declaration()
	}
	c.consume(scanner.RightBrace, "expect '}' after block")
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(scanner.Semicolon, "expect ';' after expression")
	c.emitOp(chunk.OpPop)
}

func (c *Compiler) ifStatement() {
	c.consume(scanner.LeftParen, "expect '(' after 'if'")
	c.expression()
	c.consume(scanner.RightParen, "expect ')' after condition")

	thenJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()

	elseJump := c.emitJump(chunk.OpJump)
	c.patchJump(thenJump)
	c.emitOp(chunk.OpPop)

	if c.match(scanner.Else) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := len(c.chunk().Code)
	c.consume(scanner.LeftParen, "expect '(' after 'while'")
	c.expression()
	c.consume(scanner.RightParen, "expect ')' after condition")

	exitJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(chunk.OpPop)
}

func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(scanner.LeftParen, "expect '(' after 'for'")
	switch {
	case c.match(scanner.Semicolon):
		// no initializer
	case c.match(scanner.Var):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := len(c.chunk().Code)
	exitJump := -1
	if !c.match(scanner.Semicolon) {
		c.expression()
		c.consume(scanner.Semicolon, "expect ';' after loop condition")
		exitJump = c.emitJump(chunk.OpJumpIfFalse)
		c.emitOp(chunk.OpPop)
	}

	if !c.match(scanner.RightParen) {
		bodyJump := c.emitJump(chunk.OpJump)
		incrementStart := len(c.chunk().Code)
		c.expression()
		c.emitOp(chunk.OpPop)
		c.consume(scanner.RightParen, "expect ')' after for clauses")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	}

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(chunk.OpPop)
	}
	c.endScope()
}

func (c *Compiler) returnStatement() {
	if c.fc.kind == typeScript {
		c.error("can't return from top-level code")
	}
	if c.match(scanner.Semicolon) {
		c.emitReturn()
		return
	}
	if c.fc.kind == typeInitializer {
		c.error("can't return a value from an initializer")
	}
	c.expression()
	c.consume(scanner.Semicolon, "expect ';' after return value")
	c.emitOp(chunk.OpReturn)
}

// --- variable declaration -------------------------------------------------

func (c *Compiler) varDeclaration() {
	global := c.parseVariable("expect variable name")

	if c.match(scanner.Equal) {
		c.expression()
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.consume(scanner.Semicolon, "expect ';' after variable declaration")
	c.defineVariable(global)
}

func (c *Compiler) parseVariable(message string) byte {
	c.consume(scanner.Identifier, message)
	c.declareVariable()
	if c.fc.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.previous)
}

func (c *Compiler) declareVariable() {
	if c.fc.scopeDepth == 0 {
		return
	}
	name := c.previous
	for i := len(c.fc.locals) - 1; i >= 0; i-- {
		l := c.fc.locals[i]
		if l.depth != sentinelDepth && l.depth < c.fc.scopeDepth {
			break
		}
		if identifiersEqual(name, l.name) {
			c.error("a variable with this name already exists in this scope")
		}
	}
	c.addLocal(name)
}

func (c *Compiler) addLocal(name scanner.Token) {
	if len(c.fc.locals) >= MaxLocals {
		c.error("too many local variables in function")
		return
	}
	c.fc.locals = append(c.fc.locals, local{name: name, depth: sentinelDepth})
}

func (c *Compiler) markInitialized() {
	if c.fc.scopeDepth == 0 {
		return
	}
	c.fc.locals[len(c.fc.locals)-1].depth = c.fc.scopeDepth
}

func (c *Compiler) defineVariable(global byte) {
	if c.fc.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOpByte(chunk.OpDefineGlobal, global)
}

// --- scopes ---------------------------------------------------------------

func (c *Compiler) beginScope() { c.fc.scopeDepth++ }

func (c *Compiler) endScope() {
	c.fc.scopeDepth--
	for len(c.fc.locals) > 0 && c.fc.locals[len(c.fc.locals)-1].depth > c.fc.scopeDepth {
		if c.fc.locals[len(c.fc.locals)-1].isCaptured {
			c.emitOp(chunk.OpCloseUpvalue)
		} else {
			c.emitOp(chunk.OpPop)
		}
		c.fc.locals = c.fc.locals[:len(c.fc.locals)-1]
	}
}

// --- functions and classes --------------------------------------------

func (c *Compiler) funDeclaration() {
	global := c.parseVariable("expect function name")
	c.markInitialized()
	c.function(typeFunction, c.previous.Lexeme)
	c.defineVariable(global)
}

func (c *Compiler) function(kind funcType, name string) {
	c.pushFuncCompiler(kind, name)
	c.beginScope()

	c.consume(scanner.LeftParen, "expect '(' after function name")
	if !c.check(scanner.RightParen) {
		for {
			c.fc.function.Arity++
			if c.fc.function.Arity > MaxParams {
				c.errorAtCurrent("can't have more than 255 parameters")
			}
			constant := c.parseVariable("expect parameter name")
			c.defineVariable(constant)
			if !c.match(scanner.Comma) {
				break
			}
		}
	}
	c.consume(scanner.RightParen, "expect ')' after parameters")
	c.consume(scanner.LeftBrace, "expect '{' before function body")
	c.block()

	fn, upvalues := c.endFuncCompiler()
	if len(upvalues) > 0 {
		idx := c.makeConstant(value.ObjValue(fn))
		c.emitOpByte(chunk.OpClosure, idx)
		for _, uv := range upvalues {
			if uv.isLocal {
				c.emitByte(1)
			} else {
				c.emitByte(0)
			}
			c.emitByte(uv.index)
		}
	} else {
		c.emitConstant(value.ObjValue(fn))
	}
}

func (c *Compiler) method() {
	c.consume(scanner.Identifier, "expect method name")
	name := c.previous
	constant := c.identifierConstant(name)

	kind := typeMethod
	if name.Lexeme == "init" {
		kind = typeInitializer
	}
	c.function(kind, name.Lexeme)
	c.emitOpByte(chunk.OpMethod, constant)
}

func (c *Compiler) classDeclaration() {
	c.consume(scanner.Identifier, "expect class name")
	className := c.previous
	nameConstant := c.identifierConstant(className)
	c.declareVariable()

	c.emitOpByte(chunk.OpClass, nameConstant)
	c.defineVariable(nameConstant)

	cc := &classCompiler{enclosing: c.class}
	c.class = cc

	if c.match(scanner.Less) {
		c.consume(scanner.Identifier, "expect superclass name")
		c.variable(false)
		if identifiersEqual(className, c.previous) {
			c.error("a class can't inherit from itself")
		}

		c.beginScope()
		c.addLocal(syntheticToken("super"))
		c.defineVariable(0)

		c.namedVariable(className, false)
		c.emitOp(chunk.OpInherit)
		cc.hasSuperclass = true
	}

	c.namedVariable(className, false)
	c.consume(scanner.LeftBrace, "expect '{' before class body")
	for !c.check(scanner.RightBrace) && !c.check(scanner.EOF) {
		c.method()
	}
	c.consume(scanner.RightBrace, "expect '}' after class body")
	c.emitOp(chunk.OpPop)

	if cc.hasSuperclass {
		c.endScope()
	}
	c.class = c.class.enclosing
}

package compiler

import (
	"github.com/kristofer/loxvm/internal/chunk"
	"github.com/kristofer/loxvm/internal/scanner"
	"github.com/kristofer/loxvm/internal/value"
)

// precedence orders from loosest to tightest binding (spec.md 4.2).
type precedence int

const (
	precNone       precedence = iota
	precAssignment            // =
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < > <= >=
	precTerm                  // + -
	precFactor                // * /
	precUnary                 // ! -
	precCall                  // . ()
	precPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

var rules map[scanner.TokenType]parseRule

func init() {
	rules = map[scanner.TokenType]parseRule{
		scanner.LeftParen:    {prefix: (*Compiler).grouping, infix: (*Compiler).call, precedence: precCall},
		scanner.Dot:          {infix: (*Compiler).dot, precedence: precCall},
		scanner.Minus:        {prefix: (*Compiler).unary, infix: (*Compiler).binary, precedence: precTerm},
		scanner.Plus:         {infix: (*Compiler).binary, precedence: precTerm},
		scanner.Slash:        {infix: (*Compiler).binary, precedence: precFactor},
		scanner.Star:         {infix: (*Compiler).binary, precedence: precFactor},
		scanner.Bang:         {prefix: (*Compiler).unary},
		scanner.BangEqual:    {infix: (*Compiler).binary, precedence: precEquality},
		scanner.EqualEqual:   {infix: (*Compiler).binary, precedence: precEquality},
		scanner.Greater:      {infix: (*Compiler).binary, precedence: precComparison},
		scanner.GreaterEqual: {infix: (*Compiler).binary, precedence: precComparison},
		scanner.Less:         {infix: (*Compiler).binary, precedence: precComparison},
		scanner.LessEqual:    {infix: (*Compiler).binary, precedence: precComparison},
		scanner.Identifier:   {prefix: (*Compiler).variable},
		scanner.String:       {prefix: (*Compiler).stringLiteral},
		scanner.Number:       {prefix: (*Compiler).numberExpr},
		scanner.And:          {infix: (*Compiler).and_, precedence: precAnd},
		scanner.Or:           {infix: (*Compiler).or_, precedence: precOr},
		scanner.False:        {prefix: (*Compiler).literal},
		scanner.Nil:          {prefix: (*Compiler).literal},
		scanner.True:         {prefix: (*Compiler).literal},
		scanner.Super:        {prefix: (*Compiler).super_},
		scanner.This:         {prefix: (*Compiler).this_},
	}
}

func getRule(t scanner.TokenType) parseRule {
	if r, ok := rules[t]; ok {
		return r
	}
	return parseRule{}
}

func (c *Compiler) expression() {
	c.parsePrecedence(precAssignment)
}

func (c *Compiler) parsePrecedence(prec precedence) {
	c.advance()
	prefixRule := getRule(c.previous.Type).prefix
	if prefixRule == nil {
		c.error("expect expression")
		return
	}
	canAssign := prec <= precAssignment
	prefixRule(c, canAssign)

	for prec <= getRule(c.current.Type).precedence {
		c.advance()
		infixRule := getRule(c.previous.Type).infix
		infixRule(c, canAssign)
	}

	if canAssign && c.match(scanner.Equal) {
		c.error("invalid assignment target")
	}
}

func (c *Compiler) numberExpr(canAssign bool) {
	c.emitConstant(value.NumberValue(numberLiteral(c.previous.Lexeme)))
}

func (c *Compiler) stringLiteral(canAssign bool) {
	raw := c.previous.Lexeme
	text := raw[1 : len(raw)-1] // strip the surrounding quotes
	c.emitConstant(value.ObjValue(c.heap.InternString(text)))
}

func (c *Compiler) literal(canAssign bool) {
	switch c.previous.Type {
	case scanner.False:
		c.emitOp(chunk.OpFalse)
	case scanner.Nil:
		c.emitOp(chunk.OpNil)
	case scanner.True:
		c.emitOp(chunk.OpTrue)
	}
}

func (c *Compiler) grouping(canAssign bool) {
	c.expression()
	c.consume(scanner.RightParen, "expect ')' after expression")
}

func (c *Compiler) unary(canAssign bool) {
	opType := c.previous.Type
	c.parsePrecedence(precUnary)
	switch opType {
	case scanner.Bang:
		c.emitOp(chunk.OpNot)
	case scanner.Minus:
		c.emitOp(chunk.OpNegate)
	}
}

func (c *Compiler) binary(canAssign bool) {
	opType := c.previous.Type
	rule := getRule(opType)
	c.parsePrecedence(rule.precedence + 1)

	switch opType {
	case scanner.BangEqual:
		c.emitOp(chunk.OpEqual)
		c.emitOp(chunk.OpNot)
	case scanner.EqualEqual:
		c.emitOp(chunk.OpEqual)
	case scanner.Greater:
		c.emitOp(chunk.OpGreater)
	case scanner.GreaterEqual:
		c.emitOp(chunk.OpLess)
		c.emitOp(chunk.OpNot)
	case scanner.Less:
		c.emitOp(chunk.OpLess)
	case scanner.LessEqual:
		c.emitOp(chunk.OpGreater)
		c.emitOp(chunk.OpNot)
	case scanner.Plus:
		c.emitOp(chunk.OpAdd)
	case scanner.Minus:
		c.emitOp(chunk.OpSubtract)
	case scanner.Star:
		c.emitOp(chunk.OpMultiply)
	case scanner.Slash:
		c.emitOp(chunk.OpDivide)
	}
}

func (c *Compiler) and_(canAssign bool) {
	endJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or_(canAssign bool) {
	elseJump := c.emitJump(chunk.OpJumpIfFalse)
	endJump := c.emitJump(chunk.OpJump)

	c.patchJump(elseJump)
	c.emitOp(chunk.OpPop)

	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func (c *Compiler) call(canAssign bool) {
	argCount := c.argumentList()
	c.emitOpByte(chunk.OpCall, argCount)
}

func (c *Compiler) argumentList() byte {
	var count int
	if !c.check(scanner.RightParen) {
		for {
			c.expression()
			if count == 255 {
				c.error("can't have more than 255 arguments")
			}
			count++
			if !c.match(scanner.Comma) {
				break
			}
		}
	}
	c.consume(scanner.RightParen, "expect ')' after arguments")
	return byte(count)
}

func (c *Compiler) dot(canAssign bool) {
	c.consume(scanner.Identifier, "expect property name after '.'")
	name := c.identifierConstant(c.previous)

	if canAssign && c.match(scanner.Equal) {
		c.expression()
		c.emitOpByte(chunk.OpSetProperty, name)
		return
	}
	c.emitOpByte(chunk.OpGetProperty, name)
}

func (c *Compiler) this_(canAssign bool) {
	if c.class == nil {
		c.error("can't use 'this' outside of a class")
		return
	}
	c.variable(false)
}

func (c *Compiler) super_(canAssign bool) {
	if c.class == nil {
		c.error("can't use 'super' outside of a class")
	} else if !c.class.hasSuperclass {
		c.error("can't use 'super' in a class with no superclass")
	}
	c.consume(scanner.Dot, "expect '.' after 'super'")
	c.consume(scanner.Identifier, "expect superclass method name")
	name := c.identifierConstant(c.previous)

	c.namedVariable(syntheticToken("this"), false)
	c.namedVariable(syntheticToken("super"), false)
	c.emitOpByte(chunk.OpGetSuper, name)
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.previous, canAssign)
}

func (c *Compiler) namedVariable(name scanner.Token, canAssign bool) {
	var getOp, setOp chunk.OpCode
	arg, ok := c.resolveLocal(c.fc, name)
	if ok {
		getOp, setOp = chunk.OpGetLocal, chunk.OpSetLocal
	} else if arg, ok = c.resolveUpvalue(c.fc, name); ok {
		getOp, setOp = chunk.OpGetUpvalue, chunk.OpSetUpvalue
	} else {
		arg = int(c.identifierConstant(name))
		getOp, setOp = chunk.OpGetGlobal, chunk.OpSetGlobal
	}

	if canAssign && c.match(scanner.Equal) {
		c.expression()
		c.emitOpByte(setOp, byte(arg))
	} else {
		c.emitOpByte(getOp, byte(arg))
	}
}

func (c *Compiler) resolveLocal(fc *funcCompiler, name scanner.Token) (int, bool) {
	for i := len(fc.locals) - 1; i >= 0; i-- {
		l := fc.locals[i]
		if identifiersEqual(name, l.name) {
			if l.depth == sentinelDepth {
				c.error("can't read local variable in its own initializer")
			}
			return i, true
		}
	}
	return 0, false
}

func (c *Compiler) resolveUpvalue(fc *funcCompiler, name scanner.Token) (int, bool) {
	if fc.enclosing == nil {
		return 0, false
	}
	if local, ok := c.resolveLocal(fc.enclosing, name); ok {
		fc.enclosing.locals[local].isCaptured = true
		return c.addUpvalue(fc, byte(local), true), true
	}
	if up, ok := c.resolveUpvalue(fc.enclosing, name); ok {
		return c.addUpvalue(fc, byte(up), false), true
	}
	return 0, false
}

func (c *Compiler) addUpvalue(fc *funcCompiler, index byte, isLocal bool) int {
	for i, uv := range fc.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(fc.upvalues) >= MaxUpvalues {
		c.error("too many closure variables in function")
		return 0
	}
	fc.upvalues = append(fc.upvalues, upvalueRef{index: index, isLocal: isLocal})
	return len(fc.upvalues) - 1
}

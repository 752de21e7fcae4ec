// Package expr evaluates C-style integer constant expressions for #if and
// #elif directives. The caller is expected to have rewritten defined(NAME)
// forms and macro-expanded the text already; this evaluator performs no
// identifier lookup.
package expr

import (
	"strings"

	"cpre/internal/textscan"
)

// Code identifies an evaluation failure.
type Code int

const (
	InvalidDigit Code = iota + 1
	UnexpectedChar
	MissingParen
	MissingColon
	DivideByZero
)

// Error is the typed evaluation error. Pos is the byte offset at which the
// failure was detected.
type Error struct {
	Code Code
	Pos  int
}

func (e *Error) Error() string {
	switch e.Code {
	case InvalidDigit:
		return "invalid digit"
	case UnexpectedChar:
		return "unexpected character"
	case MissingParen:
		return "missing closing parenthesis"
	case MissingColon:
		return "missing ':' in ternary expression"
	case DivideByZero:
		return "division by zero"
	}
	return "expression error"
}

// Eval parses and evaluates expression text. All arithmetic is int64.
// On failure the first error encountered is returned; the failed subterm
// contributes 0 to the surrounding computation.
func Eval(s string) (int64, error) {
	p := &parser{s: s}
	v := p.ternary()
	p.ws()
	if p.pos < len(p.s) {
		p.fail(UnexpectedChar)
	}
	if p.err != nil {
		return 0, p.err
	}
	return v, nil
}

type parser struct {
	s   string
	pos int
	err *Error

	// dead counts enclosing short-circuited contexts. Syntax is still
	// parsed there, but value errors (division by zero) are not raised.
	dead int
}

func (p *parser) fail(c Code) {
	if p.err == nil {
		p.err = &Error{Code: c, Pos: p.pos}
	}
}

func (p *parser) failValue(c Code) {
	if p.dead == 0 {
		p.fail(c)
	}
}

func (p *parser) ws() {
	p.pos = textscan.SkipSpaces(p.s, p.pos)
}

func (p *parser) peek() byte {
	if p.pos < len(p.s) {
		return p.s[p.pos]
	}
	return 0
}

// have consumes op when the remaining input starts with it.
func (p *parser) have(op string) bool {
	if strings.HasPrefix(p.s[p.pos:], op) {
		p.pos += len(op)
		return true
	}
	return false
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// ternary is the lowest, right-associative level. The arm not chosen by the
// condition is parsed with evaluation suppressed.
func (p *parser) ternary() int64 {
	cond := p.lor()
	p.ws()
	if p.peek() != '?' {
		return cond
	}
	p.pos++
	var whenTrue, whenFalse int64
	if cond != 0 {
		whenTrue = p.ternary()
	} else {
		p.dead++
		p.ternary()
		p.dead--
	}
	p.ws()
	if p.peek() != ':' {
		p.fail(MissingColon)
		return 0
	}
	p.pos++
	if cond == 0 {
		whenFalse = p.ternary()
	} else {
		p.dead++
		p.ternary()
		p.dead--
	}
	if cond != 0 {
		return whenTrue
	}
	return whenFalse
}

func (p *parser) lor() int64 {
	v := p.land()
	for {
		p.ws()
		if !p.have("||") {
			return v
		}
		if v != 0 {
			p.dead++
			p.land()
			p.dead--
			v = 1
			continue
		}
		v = b2i(p.land() != 0)
	}
}

func (p *parser) land() int64 {
	v := p.bitOr()
	for {
		p.ws()
		if !p.have("&&") {
			return v
		}
		if v == 0 {
			p.dead++
			p.bitOr()
			p.dead--
			continue
		}
		v = b2i(p.bitOr() != 0)
	}
}

func (p *parser) bitOr() int64 {
	v := p.bitXor()
	for {
		p.ws()
		if p.peek() != '|' || strings.HasPrefix(p.s[p.pos:], "||") {
			return v
		}
		p.pos++
		v |= p.bitXor()
	}
}

func (p *parser) bitXor() int64 {
	v := p.bitAnd()
	for {
		p.ws()
		if p.peek() != '^' {
			return v
		}
		p.pos++
		v ^= p.bitAnd()
	}
}

func (p *parser) bitAnd() int64 {
	v := p.equality()
	for {
		p.ws()
		if p.peek() != '&' || strings.HasPrefix(p.s[p.pos:], "&&") {
			return v
		}
		p.pos++
		v &= p.equality()
	}
}

func (p *parser) equality() int64 {
	v := p.relational()
	for {
		p.ws()
		switch {
		case p.have("=="):
			v = b2i(v == p.relational())
		case p.have("!="):
			v = b2i(v != p.relational())
		default:
			return v
		}
	}
}

func (p *parser) relational() int64 {
	v := p.shift()
	for {
		p.ws()
		switch {
		case p.have("<="):
			v = b2i(v <= p.shift())
		case p.have(">="):
			v = b2i(v >= p.shift())
		case p.peek() == '<' && !strings.HasPrefix(p.s[p.pos:], "<<"):
			p.pos++
			v = b2i(v < p.shift())
		case p.peek() == '>' && !strings.HasPrefix(p.s[p.pos:], ">>"):
			p.pos++
			v = b2i(v > p.shift())
		default:
			return v
		}
	}
}

func (p *parser) shift() int64 {
	v := p.additive()
	for {
		p.ws()
		switch {
		case p.have("<<"):
			v <<= uint64(p.additive())
		case p.have(">>"):
			v >>= uint64(p.additive())
		default:
			return v
		}
	}
}

func (p *parser) additive() int64 {
	v := p.multiplicative()
	for {
		p.ws()
		switch {
		case p.peek() == '+':
			p.pos++
			v += p.multiplicative()
		case p.peek() == '-':
			p.pos++
			v -= p.multiplicative()
		default:
			return v
		}
	}
}

func (p *parser) multiplicative() int64 {
	v := p.unary()
	for {
		p.ws()
		switch {
		case p.peek() == '*':
			p.pos++
			v *= p.unary()
		case p.peek() == '/':
			p.pos++
			rhs := p.unary()
			if rhs == 0 {
				p.failValue(DivideByZero)
				v = 0
				continue
			}
			if rhs == -1 {
				// MinInt64 / -1 would panic
				v = -v
				continue
			}
			v /= rhs
		case p.peek() == '%':
			p.pos++
			rhs := p.unary()
			if rhs == 0 {
				p.failValue(DivideByZero)
				v = 0
				continue
			}
			if rhs == -1 {
				v = 0
				continue
			}
			v %= rhs
		default:
			return v
		}
	}
}

func (p *parser) unary() int64 {
	p.ws()
	switch p.peek() {
	case '+':
		p.pos++
		return p.unary()
	case '-':
		p.pos++
		return -p.unary()
	case '!':
		// "!=" never reaches here: equality consumes it first
		p.pos++
		return b2i(p.unary() == 0)
	case '~':
		p.pos++
		return ^p.unary()
	}
	return p.primary()
}

func (p *parser) primary() int64 {
	p.ws()
	c := p.peek()
	switch {
	case c == '(':
		p.pos++
		v := p.ternary()
		p.ws()
		if p.peek() != ')' {
			p.fail(MissingParen)
			return 0
		}
		p.pos++
		return v
	case textscan.IsDigit(c):
		return p.number()
	case c == '\'':
		return p.charConstant()
	}
	p.fail(UnexpectedChar)
	return 0
}

// number parses an integer literal: 0x/0X hex, 0b/0B binary, other leading
// zero octal, else decimal. A single trailing u/U/l/L suffix is consumed
// and ignored.
func (p *parser) number() int64 {
	base := int64(10)
	if p.peek() == '0' {
		p.pos++
		switch p.peek() {
		case 'x', 'X':
			base = 16
			p.pos++
		case 'b', 'B':
			base = 2
			p.pos++
		default:
			base = 8
		}
	}
	var v int64
	for p.pos < len(p.s) && isHexDigit(p.s[p.pos]) {
		var digit int64
		c := p.s[p.pos]
		if textscan.IsDigit(c) {
			digit = int64(c - '0')
		} else {
			digit = int64(lower(c)-'a') + 10
		}
		if digit >= base {
			p.fail(InvalidDigit)
			return 0
		}
		v = v*base + digit
		p.pos++
	}
	switch p.peek() {
	case 'u', 'U', 'l', 'L':
		p.pos++
	}
	return v
}

func (p *parser) charConstant() int64 {
	p.pos++ // opening quote
	var v int64
	if p.peek() == '\\' {
		p.pos++
		e, ok := escapeValue(p.peek())
		if !ok {
			p.fail(UnexpectedChar)
			return 0
		}
		v = e
		p.pos++
	} else {
		if p.pos >= len(p.s) {
			p.fail(UnexpectedChar)
			return 0
		}
		v = int64(p.s[p.pos])
		p.pos++
	}
	if p.peek() != '\'' {
		p.fail(UnexpectedChar)
		return 0
	}
	p.pos++
	return v
}

func escapeValue(c byte) (int64, bool) {
	switch c {
	case 'n':
		return '\n', true
	case 't':
		return '\t', true
	case 'v':
		return '\v', true
	case 'b':
		return '\b', true
	case 'r':
		return '\r', true
	case 'f':
		return '\f', true
	case 'a':
		return '\a', true
	case '\\':
		return '\\', true
	case '\'':
		return '\'', true
	case '"':
		return '"', true
	case '?':
		return '?', true
	case '0':
		return 0, true
	}
	return 0, false
}

func isHexDigit(c byte) bool {
	return textscan.IsDigit(c) || (lower(c) >= 'a' && lower(c) <= 'f')
}

func lower(c byte) byte {
	return c | 0x20
}

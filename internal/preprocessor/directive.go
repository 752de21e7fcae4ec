package preprocessor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cpre/internal/expr"
	"cpre/internal/textscan"
)

// Structure errors of the conditional nesting.
var (
	ErrDanglingElse  = errors.New("#else without matching #if")
	ErrDanglingElif  = errors.New("#elif without matching #if")
	ErrDanglingEndif = errors.New("#endif without matching #if")
	ErrElseAfterElse = errors.New("directive after #else in the same conditional")
)

// directive dispatches one "#..." line. Conditional directives are handled
// even while skipping; everything else only when active. A bare "#" and
// unknown keywords are accepted and inert.
func (p *Processor) directive(line string) error {
	kw, arg := splitDirective(line)
	switch kw {
	case "if":
		return p.doIf(arg, func(s string) (bool, error) { return p.evalCondition(s) })
	case "ifdef":
		return p.doIf(arg, func(s string) (bool, error) { return p.macros.IsDefined(firstIdent(s)), nil })
	case "ifndef":
		return p.doIf(arg, func(s string) (bool, error) { return !p.macros.IsDefined(firstIdent(s)), nil })
	case "elif":
		return p.doElif(arg)
	case "else":
		return p.doElse()
	case "endif":
		return p.doEndif()
	}

	if !p.active {
		return nil
	}
	switch kw {
	case "include":
		return p.doInclude(arg)
	case "define":
		if err := p.macros.Define(arg); err != nil {
			// malformed defines abort only this directive, not the run
			p.diag(fmt.Sprintf("%v: #define %s", err, arg))
		}
		return nil
	case "undef":
		p.macros.Undef(firstIdent(arg))
		return nil
	case "line":
		return p.doLine(arg)
	case "error":
		p.diag("#error " + arg)
		return nil
	case "pragma":
		// passed through unrecognized
		if arg == "" {
			return p.emit("#pragma")
		}
		return p.emit("#pragma " + arg)
	}
	return nil
}

// splitDirective strips the '#', optional blanks and the keyword, returning
// the keyword and the trimmed remainder.
func splitDirective(line string) (kw, arg string) {
	i := textscan.SkipSpaces(line, 1)
	j := textscan.ScanIdent(line, i)
	return line[i:j], strings.Trim(line[j:], " \t")
}

func firstIdent(s string) string {
	i := textscan.SkipSpaces(s, 0)
	return s[i:textscan.ScanIdent(s, i)]
}

func (p *Processor) top() *frame {
	if len(p.frames) == 0 {
		return nil
	}
	return &p.frames[len(p.frames)-1]
}

// doIf opens a conditional. Inside a skipped region the condition is not
// evaluated at all; the innermost skipped frame just counts the nesting.
func (p *Processor) doIf(arg string, cond func(string) (bool, error)) error {
	if !p.active {
		p.top().skip++
		return nil
	}
	v, err := cond(arg)
	if err != nil {
		return err
	}
	p.frames = append(p.frames, frame{state: inIf, result: v})
	p.active = v
	return nil
}

// doElif reactivates a so-far-false chain. Deriving the new activity from
// the negated stored result covers both arms: after a taken branch the
// expression is skipped unevaluated, after a false one it is evaluated and
// recorded.
func (p *Processor) doElif(arg string) error {
	top := p.top()
	if top == nil {
		return ErrDanglingElif
	}
	if top.skip > 0 {
		return nil
	}
	if top.state == inElse {
		return ErrElseAfterElse
	}
	p.active = !top.result
	if !p.active {
		return nil
	}
	v, err := p.evalCondition(arg)
	if err != nil {
		return err
	}
	p.active = v
	top.result = v
	return nil
}

func (p *Processor) doElse() error {
	top := p.top()
	if top == nil {
		return ErrDanglingElse
	}
	if top.skip > 0 {
		return nil
	}
	if top.state == inElse {
		return ErrElseAfterElse
	}
	p.active = !top.result
	top.state = inElse
	return nil
}

// doEndif pops the innermost frame. The unconditional active=true matches
// the original dispatcher: frames are only ever pushed while active, and
// conditionals nested in a skipped region are absorbed by the skip count,
// so the reset cannot reactivate a skipped outer branch.
func (p *Processor) doEndif() error {
	top := p.top()
	if top == nil {
		return ErrDanglingEndif
	}
	if top.skip > 0 {
		top.skip--
		return nil
	}
	p.frames = p.frames[:len(p.frames)-1]
	p.active = true
	return nil
}

// evalCondition turns #if/#elif text into a boolean: defined(...) forms are
// rewritten to 1/0, the rest is macro-expanded in conditional-expression
// mode, then handed to the evaluator. Any evaluator error is a hard error.
func (p *Processor) evalCondition(text string) (bool, error) {
	rewritten, err := p.rewriteDefined(text)
	if err != nil {
		return false, err
	}
	expanded, err := p.expander(true).Expand(rewritten)
	if err != nil {
		return false, err
	}
	v, err := expr.Eval(expanded)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// rewriteDefined replaces every defined(NAME) / defined NAME occurrence
// with the literal 1 or 0 before any macro expansion can touch the operand.
func (p *Processor) rewriteDefined(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '"':
			j := textscan.SkipString(s, i)
			b.WriteString(s[i:j])
			i = j
		case c == '\'':
			j := textscan.SkipCharLit(s, i)
			b.WriteString(s[i:j])
			i = j
		case textscan.IsDigit(c):
			j := textscan.SkipNumber(s, i)
			b.WriteString(s[i:j])
			i = j
		case textscan.IsIdentStart(c):
			j := textscan.ScanIdent(s, i)
			if s[i:j] != "defined" {
				b.WriteString(s[i:j])
				i = j
				continue
			}
			name, rest, err := parseDefinedOperand(s, j)
			if err != nil {
				return "", err
			}
			if p.macros.IsDefined(name) {
				b.WriteByte('1')
			} else {
				b.WriteByte('0')
			}
			i = rest
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

// parseDefinedOperand consumes "(NAME)" or "NAME" after the defined
// keyword, tolerating interior whitespace.
func parseDefinedOperand(s string, i int) (name string, rest int, err error) {
	i = textscan.SkipSpaces(s, i)
	paren := i < len(s) && s[i] == '('
	if paren {
		i = textscan.SkipSpaces(s, i+1)
	}
	j := textscan.ScanIdent(s, i)
	if j == i {
		return "", 0, errors.New("missing macro name after defined")
	}
	name = s[i:j]
	j = textscan.SkipSpaces(s, j)
	if paren {
		if j >= len(s) || s[j] != ')' {
			return "", 0, errors.New("missing ')' after defined")
		}
		j++
	}
	return name, j, nil
}

// doInclude macro-expands the remainder, then opens the named file as a new
// input stream. The quoted form searches the including file's directory
// first.
func (p *Processor) doInclude(arg string) error {
	expanded, err := p.expander(false).Expand(arg)
	if err != nil {
		return err
	}
	name, quoted, err := parseIncludeName(expanded)
	if err != nil {
		return err
	}
	return p.in.Open(name, quoted)
}

func parseIncludeName(s string) (name string, quoted bool, err error) {
	s = strings.Trim(s, " \t")
	switch {
	case len(s) >= 2 && s[0] == '"':
		if end := strings.IndexByte(s[1:], '"'); end >= 0 {
			return s[1 : 1+end], true, nil
		}
	case len(s) >= 2 && s[0] == '<':
		if end := strings.IndexByte(s, '>'); end > 0 {
			return s[1:end], false, nil
		}
	}
	return "", false, fmt.Errorf("bad #include syntax: %q", s)
}

// doLine updates the current stream's reported position and optionally
// re-emits the directive for downstream consumers.
func (p *Processor) doLine(arg string) error {
	expanded, err := p.expander(false).Expand(arg)
	if err != nil {
		return err
	}
	n, file, err := parseLineArgs(expanded)
	if err != nil {
		return err
	}
	p.in.SetLine(n, file)
	if p.opts.EmitLineDirectives {
		if file != "" {
			return p.emit(fmt.Sprintf("#line %d %q", n, file))
		}
		return p.emit(fmt.Sprintf("#line %d", n))
	}
	return nil
}

// parseLineArgs splits "#line N" / `#line N "file"` text. The filename is
// scanned as a string literal so embedded spaces survive.
func parseLineArgs(s string) (n int, file string, err error) {
	i := textscan.SkipSpaces(s, 0)
	j := i
	for j < len(s) && textscan.IsDigit(s[j]) {
		j++
	}
	if j == i {
		return 0, "", fmt.Errorf("bad #line syntax: %q", s)
	}
	n, err = strconv.Atoi(s[i:j])
	if err != nil {
		return 0, "", fmt.Errorf("bad #line number: %q", s[i:j])
	}
	rest := strings.Trim(s[j:], " \t")
	if rest == "" {
		return n, "", nil
	}
	if rest[0] != '"' {
		return 0, "", fmt.Errorf("bad #line filename: %q", rest)
	}
	end := textscan.SkipString(rest, 0)
	if end < 2 || rest[end-1] != '"' {
		return 0, "", fmt.Errorf("bad #line filename: %q", rest)
	}
	return n, rest[1 : end-1], nil
}

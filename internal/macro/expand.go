package macro

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cpre/internal/textscan"
)

// Hard errors raised during substitution. Each aborts processing of the
// current line.
var (
	ErrArity          = errors.New("macro argument count mismatch")
	ErrUnterminated   = errors.New("unterminated macro argument list")
	ErrBufferCapacity = errors.New("macro expansion exceeds buffer capacity")
)

const (
	// maxRestarts bounds rescans per Expand call so self-referential
	// definitions terminate.
	maxRestarts = 100

	// DefaultMaxExpand caps the expanded size of a single logical line.
	DefaultMaxExpand = 1 << 16
)

// Expander performs macro substitution over one buffer at a time. CondMode
// selects conditional-expression mode, in which unexpandable identifiers
// become 0 instead of being left untouched. Line and File feed the
// __LINE__ and __FILE__ builtins from the expansion site.
type Expander struct {
	Table     *Table
	CondMode  bool
	Line      int
	File      string
	MaxExpand int
}

// Expand substitutes every macro occurrence in buf and returns the result.
// After each substitution scanning restarts at the beginning of the
// substituted span, up to maxRestarts times, so chained expansions resolve
// fully; past the cap the scan advances instead.
func (e *Expander) Expand(buf string) (string, error) {
	max := e.MaxExpand
	if max == 0 {
		max = DefaultMaxExpand
	}
	restarts := 0
	i := 0
	for i < len(buf) {
		c := buf[i]
		switch {
		case c == '"':
			i = textscan.SkipString(buf, i)
		case c == '\'':
			i = textscan.SkipCharLit(buf, i)
		case textscan.IsDigit(c):
			i = textscan.SkipNumber(buf, i)
		case textscan.IsIdentStart(c):
			out, next, expanded, err := e.substitute(buf, i)
			if err != nil {
				return "", err
			}
			if len(out) > max {
				return "", ErrBufferCapacity
			}
			buf = out
			if expanded && restarts < maxRestarts {
				restarts++
				// rescan from the start of the substituted span
			} else {
				i = next
			}
		default:
			i++
		}
	}
	return buf, nil
}

// substitute handles the identifier beginning at buf[i]: builtin macros,
// undefined names (zeroed in CondMode), object-like and function-like
// table entries. It returns the updated buffer, the offset just past the
// substituted (or skipped) span, and whether an expansion occurred.
func (e *Expander) substitute(buf string, i int) (out string, next int, expanded bool, err error) {
	j := textscan.ScanIdent(buf, i)
	name := buf[i:j]

	if repl, ok := e.builtin(name); ok {
		out = buf[:i] + repl + buf[j:]
		return out, i + len(repl), true, nil
	}

	m, ok := e.Table.Lookup(name)
	if !ok {
		if e.CondMode {
			// undefined names are always zero in conditional
			// expressions; an undefined call zeroes the whole span
			end := j
			if j < len(buf) && buf[j] == '(' {
				if pe, closed := textscan.SkipParens(buf, j); closed {
					end = pe
				}
			}
			out = buf[:i] + "0" + buf[end:]
			return out, i + 1, false, nil
		}
		// scanning continues into any argument list so macros inside
		// a call to an unknown name still expand
		return buf, j, false, nil
	}

	if !m.FuncLike {
		repl := m.Body
		if e.CondMode && repl == "" {
			repl = "0"
		}
		out = buf[:i] + repl + buf[j:]
		return out, i + len(repl), true, nil
	}

	// Function-like: the '(' must be adjacent; a bare use of the name is
	// left alone.
	if j >= len(buf) || buf[j] != '(' {
		return buf, j, false, nil
	}
	args, argsEnd, err := scanArgs(buf, j)
	if err != nil {
		return "", 0, false, err
	}
	if err := checkArity(m, args); err != nil {
		return "", 0, false, err
	}
	repl, err := e.substituteBody(m, args)
	if err != nil {
		return "", 0, false, err
	}
	out = buf[:i] + repl + buf[argsEnd:]
	return out, i + len(repl), true, nil
}

func (e *Expander) builtin(name string) (string, bool) {
	switch name {
	case "__LINE__":
		return strconv.Itoa(e.Line), true
	case "__FILE__":
		return `"` + e.File + `"`, true
	}
	return "", false
}

// scanArgs parses the actual-argument list starting at the '(' at buf[i].
// Arguments split on top-level commas only: nested parentheses and string
// literals are opaque. Each argument is bound as raw text with surrounding
// blanks trimmed.
func scanArgs(buf string, i int) (args []string, end int, err error) {
	depth := 1
	i++
	start := i
	for i < len(buf) {
		switch buf[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				args = append(args, strings.Trim(buf[start:i], " \t"))
				return args, i + 1, nil
			}
		case ',':
			if depth == 1 {
				args = append(args, strings.Trim(buf[start:i], " \t"))
				start = i + 1
			}
		case '"':
			i = textscan.SkipString(buf, i) - 1
		case '\'':
			i = textscan.SkipCharLit(buf, i) - 1
		}
		i++
	}
	return nil, 0, ErrUnterminated
}

// checkArity enforces exact arity. A zero-parameter function-like macro
// accepts exactly an empty argument list; any non-empty argument is an
// error.
func checkArity(m *Macro, args []string) error {
	if len(m.Params) == 0 {
		if len(args) == 1 && args[0] == "" {
			return nil
		}
		return fmt.Errorf("%w: %s takes no arguments", ErrArity, m.Name)
	}
	if len(args) == 1 && args[0] == "" {
		args = nil
	}
	if len(args) != len(m.Params) {
		return fmt.Errorf("%w: %s takes %d arguments, got %d", ErrArity, m.Name, len(m.Params), len(args))
	}
	return nil
}

func paramIndex(params []string, name string) (int, bool) {
	for i, p := range params {
		if p == name {
			return i, true
		}
	}
	return 0, false
}

// substituteBody builds the replacement span for one function-like
// invocation: stringification of "#param", ordinary parameter substitution
// with the raw argument text, then token pasting. Substituted argument text
// is not rescanned for parameter names.
func (e *Expander) substituteBody(m *Macro, args []string) (string, error) {
	body := m.Body
	var b strings.Builder
	for i := 0; i < len(body); {
		c := body[i]
		switch {
		case c == '"':
			j := textscan.SkipString(body, i)
			b.WriteString(body[i:j])
			i = j
		case c == '\'':
			j := textscan.SkipCharLit(body, i)
			b.WriteString(body[i:j])
			i = j
		case c == '#' && i+1 < len(body) && body[i+1] == '#':
			b.WriteString("##")
			i += 2
		case c == '#':
			j := textscan.ScanIdent(body, i+1)
			if k, ok := paramIndex(m.Params, body[i+1:j]); ok {
				b.WriteString(e.stringify(args[k]))
				i = j
				continue
			}
			b.WriteByte('#')
			i++
		case textscan.IsIdentStart(c):
			j := textscan.ScanIdent(body, i)
			if k, ok := paramIndex(m.Params, body[i:j]); ok {
				b.WriteString(args[k])
			} else {
				b.WriteString(body[i:j])
			}
			i = j
		case textscan.IsDigit(c):
			j := textscan.SkipNumber(body, i)
			b.WriteString(body[i:j])
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return pasteTokens(b.String()), nil
}

// stringify converts an argument to a quoted string literal. The argument
// is macro-expanded first; if expansion fails the raw text is used.
func (e *Expander) stringify(arg string) string {
	sub := Expander{Table: e.Table, Line: e.Line, File: e.File, MaxExpand: e.MaxExpand}
	text, err := sub.Expand(arg)
	if err != nil {
		text = arg
	}
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(text); i++ {
		if text[i] == '"' || text[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(text[i])
	}
	b.WriteByte('"')
	return b.String()
}

// pasteTokens resolves every ## in s by merging the adjacent tokens.
// String literals absorb the pasted token into their content instead of
// producing adjacent quote characters.
func pasteTokens(s string) string {
	for {
		op := findPasteOp(s)
		if op < 0 {
			return s
		}
		s = pasteAt(s, op)
	}
}

// findPasteOp locates the next ## outside string and character literals.
func findPasteOp(s string) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			i = textscan.SkipString(s, i) - 1
		case '\'':
			i = textscan.SkipCharLit(s, i) - 1
		case '#':
			if i+1 < len(s) && s[i+1] == '#' {
				return i
			}
		}
	}
	return -1
}

// pasteAt merges the tokens around the ## at s[op:op+2].
func pasteAt(s string, op int) string {
	l := op
	for l > 0 && textscan.IsBlank(s[l-1]) {
		l--
	}
	r := op + 2
	for r < len(s) && textscan.IsBlank(s[r]) {
		r++
	}

	leftStr := l > 0 && s[l-1] == '"'
	rightStr := r < len(s) && s[r] == '"'
	switch {
	case leftStr && rightStr:
		// "abc" ## "def" -> "abcdef"
		return s[:l-1] + s[r+1:]
	case leftStr:
		// "abc" ## def -> "abcdef"
		re := tokenEnd(s, r)
		return s[:l-1] + s[r:re] + `"` + s[re:]
	case rightStr:
		// abc ## "def" -> "abcdef"
		ls := tokenStart(s, l)
		return s[:ls] + `"` + s[ls:l] + s[r+1:]
	default:
		return s[:l] + s[r:]
	}
}

// tokenEnd returns the offset just past the token starting at i:
// identifiers and preprocessing numbers (including trailing alphanumerics
// and dots) span their full run, anything else is a single byte.
func tokenEnd(s string, i int) int {
	if i >= len(s) {
		return i
	}
	switch {
	case textscan.IsIdentStart(s[i]):
		return textscan.ScanIdent(s, i)
	case textscan.IsDigit(s[i]):
		return textscan.SkipNumber(s, i)
	}
	return i + 1
}

// tokenStart returns the offset of the first byte of the token ending just
// before i.
func tokenStart(s string, i int) int {
	j := i
	for j > 0 && (textscan.IsIdentPart(s[j-1]) || s[j-1] == '.') {
		j--
	}
	if j == i && i > 0 {
		return i - 1
	}
	return j
}

// Package macro owns macro definitions and performs in-buffer macro
// substitution, including parameter binding, stringification, token pasting
// and bounded recursive rescanning.
package macro

import (
	"errors"
	"strings"

	"cpre/internal/textscan"
)

// ErrBadDefine reports a syntactically malformed macro definition. No table
// entry is created when it is returned.
var ErrBadDefine = errors.New("malformed macro definition")

// Macro is one entry of the table. FuncLike distinguishes NAME() (function-
// like with zero parameters) from a plain object-like NAME: an object-like
// macro always has FuncLike == false and Params == nil.
type Macro struct {
	Name     string
	FuncLike bool
	Params   []string
	Body     string
}

// Table maps macro names to definitions and tracks names banned from being
// redefined. It is single-owner state; callers construct one per run.
type Table struct {
	macros map[string]*Macro
	order  []string
	banned map[string]struct{}
}

func NewTable() *Table {
	return &Table{
		macros: make(map[string]*Macro),
		banned: make(map[string]struct{}),
	}
}

// Define parses the raw text following "#define" and installs the macro.
// A definition of a banned name succeeds as a silent no-op. Redefinition
// replaces the previous entry without comparing bodies.
func (t *Table) Define(raw string) error {
	m, err := parseDefine(raw)
	if err != nil {
		return err
	}
	if _, ok := t.banned[m.Name]; ok {
		return nil
	}
	if _, ok := t.macros[m.Name]; !ok {
		t.order = append(t.order, m.Name)
	}
	t.macros[m.Name] = m
	return nil
}

// DefineArg installs a command-line style definition "NAME" or "NAME=value",
// defaulting the body to "1" as cpp does for -D.
func (t *Table) DefineArg(def string) error {
	name, value := def, "1"
	if i := strings.IndexByte(def, '='); i >= 0 {
		name, value = def[:i], def[i+1:]
	}
	return t.Define(name + " " + value)
}

// Undef removes name from the table. The return value distinguishes
// found from not-found; neither is an error.
func (t *Table) Undef(name string) bool {
	if _, ok := t.macros[name]; !ok {
		return false
	}
	delete(t.macros, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// Ban removes any current definition of name and blocks future defines of
// it. Idempotent.
func (t *Table) Ban(name string) {
	t.Undef(name)
	t.banned[name] = struct{}{}
}

func (t *Table) IsDefined(name string) bool {
	_, ok := t.macros[name]
	return ok
}

func (t *Table) Lookup(name string) (*Macro, bool) {
	m, ok := t.macros[name]
	return m, ok
}

// Names returns the currently defined macro names in definition order.
func (t *Table) Names() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// parseDefine splits a defect-free "#define" body into name, optional
// parameter list and verbatim replacement text. The '(' of a function-like
// macro must be adjacent to the name; a '(' after whitespace belongs to the
// replacement text.
func parseDefine(raw string) (*Macro, error) {
	i := textscan.SkipSpaces(raw, 0)
	j := textscan.ScanIdent(raw, i)
	if j == i {
		return nil, ErrBadDefine
	}
	m := &Macro{Name: raw[i:j]}
	if j < len(raw) && !textscan.IsBlank(raw[j]) && raw[j] != '(' {
		return nil, ErrBadDefine
	}

	rest := raw[j:]
	if strings.HasPrefix(rest, "(") {
		m.FuncLike = true
		var err error
		rest, err = parseParams(m, rest[1:])
		if err != nil {
			return nil, err
		}
	}
	m.Body = strings.TrimRight(rest[textscan.SkipSpaces(rest, 0):], " \t")
	return m, nil
}

// parseParams consumes a comma-separated formal parameter list up to the
// closing ')' and returns the remainder of the buffer. An empty list keeps
// Params == nil but the macro stays function-like.
func parseParams(m *Macro, s string) (string, error) {
	i := textscan.SkipSpaces(s, 0)
	if i < len(s) && s[i] == ')' {
		return s[i+1:], nil
	}
	for {
		i = textscan.SkipSpaces(s, i)
		j := textscan.ScanIdent(s, i)
		if j == i {
			return "", ErrBadDefine
		}
		m.Params = append(m.Params, s[i:j])
		i = textscan.SkipSpaces(s, j)
		if i >= len(s) {
			return "", ErrBadDefine
		}
		switch s[i] {
		case ')':
			return s[i+1:], nil
		case ',':
			i++
		default:
			return "", ErrBadDefine
		}
	}
}

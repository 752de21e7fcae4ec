// Package preprocessor drives directive dispatch and conditional
// compilation over a stack of input streams, delegating macro substitution
// to internal/macro and #if arithmetic to internal/expr.
package preprocessor

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"cpre/internal/input"
	"cpre/internal/macro"
)

// Options configures one Processor.
type Options struct {
	// EmitLineDirectives re-emits #line directives so a downstream stage
	// keeps accurate positions.
	EmitLineDirectives bool
	// MaxExpand caps the expanded size of one logical line; 0 means the
	// macro package default.
	MaxExpand int
	// Diag receives non-fatal diagnostics (#error, malformed defines).
	// nil discards them.
	Diag func(file string, line int, msg string)
}

type branchState int

const (
	inIf branchState = iota
	inElse
)

// frame is one open conditional level. result records whether the chosen
// if/elif branch was true; skip counts nested conditionals seen while this
// frame is being skipped, so their directives pass without evaluation.
type frame struct {
	state  branchState
	result bool
	skip   int
}

// Processor owns the condition stack and the currently-active flag and
// processes logical lines one at a time.
type Processor struct {
	opts   Options
	macros *macro.Table
	in     *input.Stack
	out    *bufio.Writer

	frames []frame
	active bool
}

func New(macros *macro.Table, in *input.Stack, out io.Writer, opts Options) *Processor {
	return &Processor{
		opts:   opts,
		macros: macros,
		in:     in,
		out:    bufio.NewWriter(out),
		active: true,
	}
}

// Process runs src through a fresh processor and returns the output text.
// Convenience wrapper for tests and one-shot callers.
func Process(src string, macros *macro.Table, opts Options) (string, error) {
	st := &input.Stack{}
	st.OpenReader("<input>", strings.NewReader(src))
	var out bytes.Buffer
	p := New(macros, st, &out, opts)
	if err := p.Run(); err != nil {
		return "", err
	}
	return out.String(), nil
}

// Run processes every line of the input chain. The first hard error stops
// the run with file:line context.
func (p *Processor) Run() error {
	for {
		line, err := p.in.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := p.processLine(line); err != nil {
			return p.errorf(err)
		}
	}
	if len(p.frames) != 0 {
		return errors.New("unterminated conditional at end of input")
	}
	return p.out.Flush()
}

func (p *Processor) processLine(line string) error {
	if strings.HasPrefix(line, "#") {
		return p.directive(line)
	}
	if !p.active {
		return nil
	}
	expanded, err := p.expander(false).Expand(line)
	if err != nil {
		return err
	}
	return p.emit(expanded)
}

func (p *Processor) emit(line string) error {
	if _, err := p.out.WriteString(line); err != nil {
		return err
	}
	return p.out.WriteByte('\n')
}

func (p *Processor) expander(condMode bool) *macro.Expander {
	e := &macro.Expander{
		Table:     p.macros,
		CondMode:  condMode,
		MaxExpand: p.opts.MaxExpand,
	}
	if s := p.in.Current(); s != nil {
		e.Line = s.Line()
		e.File = s.Name()
	}
	return e
}

func (p *Processor) errorf(err error) error {
	if s := p.in.Current(); s != nil {
		return fmt.Errorf("%s:%d: %w", s.Name(), s.Line(), err)
	}
	return err
}

func (p *Processor) diag(msg string) {
	if p.opts.Diag == nil {
		return
	}
	file, line := "", 0
	if s := p.in.Current(); s != nil {
		file, line = s.Name(), s.Line()
	}
	p.opts.Diag(file, line, msg)
}

// Package input delivers comment-stripped, continuation-folded logical
// lines from a stack of nested include streams, and tracks the position
// information behind __LINE__, __FILE__ and error reporting.
package input

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cpre/internal/textscan"
)

// Stream is one open input file. Streams nest: including a file pushes a
// new stream whose parent is the includer.
type Stream struct {
	parent *Stream
	path   string // filesystem path actually opened
	name   string // reported filename, overridable by #line
	closer io.Closer
	r      *bufio.Reader

	line     int // physical line of the read cursor, 1-based
	reported int // line number reported for the current logical line
	eof      bool

	// literal tracking: comments and continuations are not recognized
	// inside string or character literals
	quote   byte
	escaped bool
}

// Name returns the filename reported for the current logical line.
func (s *Stream) Name() string { return s.name }

// Line returns the line number reported for the current logical line.
func (s *Stream) Line() int { return s.reported }

// Stack owns the chain of open streams and the include search path.
type Stack struct {
	// SearchDirs are -I directories, in order.
	SearchDirs []string
	// UseEnvPath enables the $CPATH fallback after SearchDirs.
	UseEnvPath bool

	cur *Stream
}

// Current returns the innermost open stream, or nil.
func (st *Stack) Current() *Stream { return st.cur }

// OpenReader pushes a stream over r, used for stdin and tests.
func (st *Stack) OpenReader(name string, r io.Reader) {
	st.push(&Stream{path: name, name: name, r: bufio.NewReader(r)})
}

// Open resolves name against the search path and pushes it. With
// searchCurrent set (quoted includes and the main file) the directory of
// the including file and the path as given are tried first.
func (st *Stack) Open(name string, searchCurrent bool) error {
	path, err := st.resolve(name, searchCurrent)
	if err != nil {
		return err
	}
	for s := st.cur; s != nil; s = s.parent {
		if s.path == path {
			return fmt.Errorf("include cycle detected at %q", path)
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	st.push(&Stream{path: path, name: path, closer: f, r: bufio.NewReader(f)})
	return nil
}

func (st *Stack) push(s *Stream) {
	s.parent = st.cur
	s.line = 1
	s.reported = 1
	st.cur = s
}

// Release pops and closes the innermost stream.
func (st *Stack) Release() {
	s := st.cur
	if s == nil {
		return
	}
	if s.closer != nil {
		s.closer.Close()
	}
	st.cur = s.parent
}

// Close releases every open stream.
func (st *Stack) Close() {
	for st.cur != nil {
		st.Release()
	}
}

// SetLine implements #line: the next logical line of the current stream
// reports line n, and file, when non-empty, replaces the reported name.
func (st *Stack) SetLine(n int, file string) {
	if st.cur == nil {
		return
	}
	st.cur.line = n
	if file != "" {
		st.cur.name = file
	}
}

func (st *Stack) resolve(name string, searchCurrent bool) (string, error) {
	var dirs []string
	if searchCurrent {
		if st.cur != nil && st.cur.path != "" && st.cur.path != "-" {
			dirs = append(dirs, filepath.Dir(st.cur.path))
		}
		dirs = append(dirs, ".")
	}
	dirs = append(dirs, st.SearchDirs...)
	if st.UseEnvPath {
		for _, d := range filepath.SplitList(os.Getenv("CPATH")) {
			if d != "" {
				dirs = append(dirs, d)
			}
		}
	}
	if filepath.IsAbs(name) {
		dirs = []string{""}
	}
	for _, d := range dirs {
		cand := name
		if d != "" {
			cand = filepath.Join(d, name)
		}
		if fi, err := os.Stat(cand); err == nil && !fi.IsDir() {
			return filepath.Clean(cand), nil
		}
	}
	return "", fmt.Errorf("file not found: %s", name)
}

// ReadLine returns the next non-empty logical line. Reaching the end of an
// included stream pops back to its parent; io.EOF means the whole chain is
// exhausted. The returned line has comments stripped, continuations folded
// and whitespace runs collapsed.
func (st *Stack) ReadLine() (string, error) {
	for {
		s := st.cur
		if s == nil {
			return "", io.EOF
		}
		line, err := s.readLogical()
		if err == io.EOF {
			st.Release()
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%s: %w", s.name, err)
		}
		return line, nil
	}
}

// readLogical accumulates one logical line. Blank lines are suppressed;
// the reported line number is fixed at the first retained byte.
func (s *Stream) readLogical() (string, error) {
	var b strings.Builder
	pendingSpace := false
	for {
		c, err := s.cooked()
		if err != nil {
			if err == io.EOF && b.Len() > 0 {
				return b.String(), nil
			}
			return "", err
		}
		if c == '\n' {
			if b.Len() > 0 {
				return b.String(), nil
			}
			pendingSpace = false
			continue
		}
		if textscan.IsBlank(c) && s.quote == 0 {
			if b.Len() > 0 {
				pendingSpace = true
			}
			continue
		}
		if b.Len() == 0 {
			s.reported = s.line
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteByte(c)
	}
}

// cooked returns the next byte with comments stripped and backslash-newline
// folded away. String and character literals are opaque: nothing inside
// them is interpreted as a comment or continuation.
func (s *Stream) cooked() (byte, error) {
	c, err := s.raw()
	if err != nil {
		return 0, err
	}
	if s.quote != 0 {
		switch {
		case s.escaped:
			s.escaped = false
		case c == '\\':
			s.escaped = true
		case c == s.quote:
			s.quote = 0
		case c == '\n':
			// literals do not span lines
			s.quote = 0
			s.escaped = false
		}
		return c, nil
	}
	switch c {
	case '"', '\'':
		s.quote = c
		return c, nil
	case '/':
		d, err := s.raw()
		if err != nil {
			return c, nil
		}
		switch d {
		case '/':
			for {
				d, err = s.raw()
				if err != nil {
					return 0, err
				}
				if d == '\n' {
					return d, nil
				}
			}
		case '*':
			if err := s.skipBlockComment(); err != nil {
				return 0, err
			}
			return ' ', nil
		default:
			s.unread(d)
			return c, nil
		}
	case '\\':
		d, err := s.raw()
		if err != nil {
			return c, nil
		}
		if d == '\n' {
			// continuation: fold into one logical line
			return ' ', nil
		}
		s.unread(d)
		return c, nil
	}
	return c, nil
}

func (s *Stream) skipBlockComment() error {
	var last byte
	for {
		c, err := s.raw()
		if err != nil {
			if err == io.EOF {
				return fmt.Errorf("unterminated block comment")
			}
			return err
		}
		if last == '*' && c == '/' {
			return nil
		}
		last = c
	}
}

func (s *Stream) raw() (byte, error) {
	if s.eof {
		return 0, io.EOF
	}
	c, err := s.r.ReadByte()
	if err != nil {
		if err == io.EOF {
			s.eof = true
		}
		return 0, err
	}
	if c == '\n' {
		s.line++
	}
	return c, nil
}

func (s *Stream) unread(c byte) {
	if c == '\n' {
		s.line--
	}
	s.r.UnreadByte()
}

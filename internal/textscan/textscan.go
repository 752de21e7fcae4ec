// Package textscan provides the low-level byte classification and literal
// skipping shared by the macro engine, the expression evaluator and the
// directive dispatcher. All functions operate on byte offsets into a string;
// none of them allocate.
package textscan

// IsIdentStart reports whether b can begin an identifier.
func IsIdentStart(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

// IsIdentPart reports whether b can continue an identifier.
func IsIdentPart(b byte) bool {
	return IsIdentStart(b) || (b >= '0' && b <= '9')
}

// IsIdent reports whether b is valid at position idx of an identifier.
func IsIdent(b byte, idx int) bool {
	if idx > 0 {
		return IsIdentPart(b)
	}
	return IsIdentStart(b)
}

// IsBlank reports whether b is horizontal whitespace.
func IsBlank(b byte) bool {
	return b == ' ' || b == '\t' || b == '\v' || b == '\f' || b == '\r'
}

func IsDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// SkipSpaces returns the offset of the first non-blank byte at or after i.
func SkipSpaces(s string, i int) int {
	for i < len(s) && IsBlank(s[i]) {
		i++
	}
	return i
}

// ScanIdent returns the offset just past the identifier starting at i,
// or i itself if s[i] cannot start one.
func ScanIdent(s string, i int) int {
	if i >= len(s) || !IsIdentStart(s[i]) {
		return i
	}
	j := i + 1
	for j < len(s) && IsIdentPart(s[j]) {
		j++
	}
	return j
}

// SkipString expects s[i] == '"' and returns the offset just past the
// closing quote. Backslash escapes do not terminate the literal. An
// unterminated string consumes the rest of the buffer.
func SkipString(s string, i int) int {
	i++
	for i < len(s) {
		switch s[i] {
		case '\\':
			i += 2
			continue
		case '"':
			return i + 1
		}
		i++
	}
	return i
}

// SkipCharLit expects s[i] == '\'' and returns the offset just past the
// closing quote, with the same escape handling as SkipString.
func SkipCharLit(s string, i int) int {
	i++
	for i < len(s) {
		switch s[i] {
		case '\\':
			i += 2
			continue
		case '\'':
			return i + 1
		}
		i++
	}
	return i
}

// SkipNumber expects a digit at s[i] and returns the offset just past the
// preprocessing number: a digit followed by any run of alphanumerics,
// underscores and dots. This deliberately swallows trailing letters (0x1F,
// 10UL, 1.5e3) so that no macro name is recognized inside a numeric literal.
func SkipNumber(s string, i int) int {
	j := i + 1
	for j < len(s) && (IsIdentPart(s[j]) || s[j] == '.') {
		j++
	}
	return j
}

// SkipParens expects s[i] == '(' and returns the offset just past the
// matching ')'. Nested parentheses and string/char literals are opaque.
// ok is false when the buffer ends before the parenthesis closes.
func SkipParens(s string, i int) (end int, ok bool) {
	depth := 0
	for i < len(s) {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		case '"':
			i = SkipString(s, i) - 1
		case '\'':
			i = SkipCharLit(s, i) - 1
		}
		i++
	}
	return i, false
}

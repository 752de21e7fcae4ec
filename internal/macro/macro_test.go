package macro

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefine(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		macro    string
		funcLike bool
		params   []string
		body     string
	}{
		{"object", "PI 3.14159", "PI", false, nil, "3.14159"},
		{"object no body", "FLAG", "FLAG", false, nil, ""},
		{"object leading space", "  MAX  100", "MAX", false, nil, "100"},
		{"function", "ADD(a, b) a + b", "ADD", true, []string{"a", "b"}, "a + b"},
		{"function zero params", "F() 123", "F", true, nil, "123"},
		{"space before paren is body", "A (x) y", "A", false, nil, "(x) y"},
		{"body kept verbatim", "S(x) #x ## x", "S", true, []string{"x"}, "#x ## x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := NewTable()
			if err := tbl.Define(tt.raw); err != nil {
				t.Fatalf("Define(%q): %v", tt.raw, err)
			}
			m, ok := tbl.Lookup(tt.macro)
			if !ok {
				t.Fatalf("macro %q not defined", tt.macro)
			}
			if m.FuncLike != tt.funcLike {
				t.Errorf("FuncLike = %v, want %v", m.FuncLike, tt.funcLike)
			}
			if diff := cmp.Diff(tt.params, m.Params); diff != "" {
				t.Errorf("params mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.body, m.Body); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDefineMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"   ",
		"123 x",
		"+x 1",
		"F(a,) 1",
		"F(a b) 1",
		"F(a, 1) x",
		"F(a, b x",
		"F( , ) x",
	} {
		tbl := NewTable()
		if err := tbl.Define(raw); !errors.Is(err, ErrBadDefine) {
			t.Errorf("Define(%q) = %v, want ErrBadDefine", raw, err)
		}
		if got := tbl.Names(); len(got) != 0 {
			t.Errorf("Define(%q) created entries %v", raw, got)
		}
	}
}

func TestRedefinitionReplaces(t *testing.T) {
	tbl := NewTable()
	if err := tbl.Define("A 1"); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Define("A 2"); err != nil {
		t.Fatal(err)
	}
	m, _ := tbl.Lookup("A")
	if m.Body != "2" {
		t.Errorf("body = %q, want %q", m.Body, "2")
	}
	if diff := cmp.Diff([]string{"A"}, tbl.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestUndef(t *testing.T) {
	tbl := NewTable()
	if err := tbl.Define("A 1"); err != nil {
		t.Fatal(err)
	}
	if !tbl.Undef("A") {
		t.Error("Undef(A) = false, want true")
	}
	if tbl.Undef("A") {
		t.Error("second Undef(A) = true, want false")
	}
	if tbl.IsDefined("A") {
		t.Error("A still defined after undef")
	}
}

func TestBan(t *testing.T) {
	tbl := NewTable()
	if err := tbl.Define("DEBUG 1"); err != nil {
		t.Fatal(err)
	}
	tbl.Ban("DEBUG")
	if tbl.IsDefined("DEBUG") {
		t.Error("ban did not remove existing definition")
	}
	// a define of a banned name is silently a no-op
	if err := tbl.Define("DEBUG 2"); err != nil {
		t.Errorf("Define on banned name: %v, want nil", err)
	}
	if tbl.IsDefined("DEBUG") {
		t.Error("banned name was redefined")
	}
	tbl.Ban("DEBUG") // idempotent
}

func TestDefineArg(t *testing.T) {
	tbl := NewTable()
	if err := tbl.DefineArg("VERSION=42"); err != nil {
		t.Fatal(err)
	}
	if err := tbl.DefineArg("FLAG"); err != nil {
		t.Fatal(err)
	}
	m, _ := tbl.Lookup("VERSION")
	if m.Body != "42" {
		t.Errorf("VERSION body = %q, want %q", m.Body, "42")
	}
	m, _ = tbl.Lookup("FLAG")
	if m.Body != "1" {
		t.Errorf("FLAG body = %q, want %q", m.Body, "1")
	}
}

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runApp(t *testing.T, args ...string) error {
	t.Helper()
	return newApp().Run(append([]string{"cpre"}, args...))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestDefineFlag(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.txt", "#if VERSION >= 2\nnew\n#else\nold\n#endif\n")
	out := filepath.Join(dir, "out.txt")

	require.NoError(t, runApp(t, "-D", "VERSION=3", in, out))
	assert.Equal(t, "new\n", readFile(t, out))
}

func TestDefineFlagDefaultsToOne(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.txt", "DEBUG\n")
	out := filepath.Join(dir, "out.txt")

	require.NoError(t, runApp(t, "-D", "DEBUG", in, out))
	assert.Equal(t, "1\n", readFile(t, out))
}

func TestUndefineBeatsLaterDefines(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.txt", "#define X 5\n#ifdef X\nno\n#else\nyes\n#endif\n")
	out := filepath.Join(dir, "out.txt")

	require.NoError(t, runApp(t, "-D", "X=1", "-U", "X", in, out))
	assert.Equal(t, "yes\n", readFile(t, out))
}

func TestIncludeSearchPath(t *testing.T) {
	dir := t.TempDir()
	incdir := filepath.Join(dir, "inc")
	require.NoError(t, os.Mkdir(incdir, 0o755))
	writeFile(t, incdir, "defs.h", "#define FROM_HEADER 42\n")
	in := writeFile(t, dir, "in.txt", "#include <defs.h>\nFROM_HEADER\n")
	out := filepath.Join(dir, "out.txt")

	require.NoError(t, runApp(t, "-I", incdir, in, out))
	assert.Equal(t, "42\n", readFile(t, out))
}

func TestPreIncludeOrder(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.h", "first\n#define X 1\n")
	b := writeFile(t, dir, "b.h", "second\n")
	in := writeFile(t, dir, "in.txt", "X\n")
	out := filepath.Join(dir, "out.txt")

	require.NoError(t, runApp(t, "-include", a, "-include", b, in, out))
	assert.Equal(t, "first\nsecond\n1\n", readFile(t, out))
}

func TestLineDirectiveFlag(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.txt", "#line 50\n__LINE__\n")
	out := filepath.Join(dir, "out.txt")

	require.NoError(t, runApp(t, "-line", in, out))
	assert.Equal(t, "#line 50\n50\n", readFile(t, out))

	require.NoError(t, runApp(t, in, out))
	assert.Equal(t, "50\n", readFile(t, out))
}

func TestHardErrorReported(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.txt", "#endif\n")
	out := filepath.Join(dir, "out.txt")

	err := runApp(t, in, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "#endif without matching #if")
	assert.NoFileExists(t, out)
}

func TestBadDefineFlag(t *testing.T) {
	err := runApp(t, "-D", "123=x", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed macro definition")
}

func TestTooManyArguments(t *testing.T) {
	err := runApp(t, "a", "b", "c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at most two arguments")
}

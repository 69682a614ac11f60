package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	extractJSON = false
	coursesDir = ""

	dir := t.TempDir()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(dir, "none.json"), "--env", filepath.Join(dir, "none.env")}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

func TestExtract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "step.mdx")
	writeFile(t, path, "Intro.\n\n```exercise title=\"Sum\"\nAdd two numbers.\n<hint>\nUse +.\n</hint>\n```\n")

	out, err := run(t, "extract", path)
	require.NoError(t, err)
	assert.Contains(t, out, "exercise 1: Sum")
	assert.Contains(t, out, "Add two numbers.")
	assert.Contains(t, out, "hint: yes  solution: no")

	out, err = run(t, "extract", "--json", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"kind": "exercise"`)
}

func TestExtract_NoExercises(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.md")
	writeFile(t, path, "Just text.\n")

	out, err := run(t, "extract", path)
	require.NoError(t, err)
	assert.Contains(t, out, "no exercises found")
}

func TestExtract_MissingFile(t *testing.T) {
	_, err := run(t, "extract", filepath.Join(t.TempDir(), "nope.md"))
	assert.Error(t, err)
}

func TestCourses(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go", "course.md"), "---\ntitle: Go\n---\n")
	writeFile(t, filepath.Join(root, "go", "lessons", "basics", "lesson.md"), "---\ntitle: Basics\n---\n")
	writeFile(t, filepath.Join(root, "go", "lessons", "basics", "steps", "hello", "step.md"),
		"---\ntitle: Hello\n---\n```exercise\nPrint hello.\n```\n")

	out, err := run(t, "courses", "--dir", root)
	require.NoError(t, err)
	assert.Contains(t, out, "go Go")
	assert.Contains(t, out, "basics [lesson] Basics")
	assert.Contains(t, out, "hello  Hello (1 exercises)")
}

func TestToken(t *testing.T) {
	t.Setenv("AUTH_SECRET", "cli-secret")

	out, err := run(t, "token", "alice")
	require.NoError(t, err)

	raw := strings.TrimSpace(out)
	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return []byte("cli-secret"), nil })
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
}

func TestToken_NoSecret(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	_, err := run(t, "token", "alice")
	assert.Error(t, err)
}

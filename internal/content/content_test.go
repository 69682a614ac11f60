package content

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/atinyakov/learncode/internal/exercise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

// buildTree lays out two courses: learning-c (order 1, two items) and
// advanced-c (order 2, one project).
func buildTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "learning-c", "course.mdx"), "---\ntitle: Learning C\ndescription: Basics\norder: 1\n---\n\nWelcome.\n")
	writeFile(t, filepath.Join(root, "learning-c", "lessons", "pointers", "lesson.mdx"), "---\ntitle: Pointers\norder: 2\n---\n")
	writeFile(t, filepath.Join(root, "learning-c", "lessons", "pointers", "steps", "intro", "step.mdx"), "---\ntitle: Intro to pointers\norder: 1\n---\nA pointer holds an address.\n")
	writeFile(t, filepath.Join(root, "learning-c", "lessons", "hello", "lesson.md"), "---\ntitle: Hello\norder: 1\ntype: lesson\n---\n")
	writeFile(t, filepath.Join(root, "learning-c", "lessons", "hello", "steps", "b-run", "step.mdx"), "---\ntitle: Run it\norder: 2\n---\nRun the program.\n")
	writeFile(t, filepath.Join(root, "learning-c", "lessons", "hello", "steps", "a-write", "step.mdx"),
		"---\ntitle: Write it\norder: 1\n---\nWrite main.\n\n```exercise title=\"Print\"\nPrint hello.\n<hint>\nUse printf.\n</hint>\n```\n")
	writeFile(t, filepath.Join(root, "learning-c", "lessons", "hello", "steps", "c-more", "step.mdx"), "---\ntitle: More\norder: 3\n---\nDone.\n")
	// a step directory without step.mdx is ignored
	require.NoError(t, os.MkdirAll(filepath.Join(root, "learning-c", "lessons", "hello", "steps", "draft"), 0o755))

	writeFile(t, filepath.Join(root, "advanced-c", "course.md"), "---\ntitle: Advanced C\norder: 2\n---\n")
	writeFile(t, filepath.Join(root, "advanced-c", "lessons", "shell", "lesson.mdx"), "---\ntitle: Build a shell\ntype: project\n---\n")

	// not a course: no course file
	require.NoError(t, os.MkdirAll(filepath.Join(root, "scratch"), 0o755))
	return root
}

func TestLoad_Tree(t *testing.T) {
	lib, err := Load(context.Background(), buildTree(t))
	require.NoError(t, err)

	courses := lib.Courses()
	require.Len(t, courses, 2)
	assert.Equal(t, "learning-c", courses[0].ID)
	assert.Equal(t, "Learning C", courses[0].Title)
	assert.Equal(t, "Basics", courses[0].Description)
	assert.Equal(t, "advanced-c", courses[1].ID)

	items := courses[0].Items
	require.Len(t, items, 2)
	assert.Equal(t, "hello", items[0].ID)
	assert.Equal(t, "pointers", items[1].ID)
	assert.Equal(t, ItemLesson, items[0].Type)

	steps := items[0].Steps
	require.Len(t, steps, 3)
	assert.Equal(t, []string{"a-write", "b-run", "c-more"}, []string{steps[0].ID, steps[1].ID, steps[2].ID})
	assert.Equal(t, "Run the program.", steps[1].Content)

	assert.Equal(t, ItemProject, courses[1].Items[0].Type)
	assert.Empty(t, courses[1].Items[0].Steps)
}

func TestLibrary_Step(t *testing.T) {
	lib, err := Load(context.Background(), buildTree(t))
	require.NoError(t, err)

	view, err := lib.Step("learning-c", "hello", "b-run")
	require.NoError(t, err)
	assert.Equal(t, 2, view.Position)
	assert.Equal(t, 3, view.Total)
	require.NotNil(t, view.Prev)
	require.NotNil(t, view.Next)
	assert.Equal(t, StepLink{ID: "a-write", Title: "Write it"}, *view.Prev)
	assert.Equal(t, "c-more", view.Next.ID)

	first, err := lib.Step("learning-c", "hello", "a-write")
	require.NoError(t, err)
	assert.Nil(t, first.Prev)
	require.Len(t, first.Exercises, 1)
	assert.Equal(t, "Print", first.Exercises[0].Title)
	require.NotNil(t, first.Exercises[0].Hint)
	assert.Equal(t, "Use printf.", *first.Exercises[0].Hint)
	assert.Equal(t, exercise.KindMarkdown, first.Segments[0].Kind)

	last, err := lib.Step("learning-c", "hello", "c-more")
	require.NoError(t, err)
	assert.Nil(t, last.Next)
}

func TestLibrary_NotFound(t *testing.T) {
	lib, err := Load(context.Background(), buildTree(t))
	require.NoError(t, err)

	_, err = lib.Course("cobol")
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = lib.Item("learning-c", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = lib.Step("learning-c", "hello", "draft")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "broken", "course.mdx"), "---\ntitle: [unclosed\n---\n")
	_, err = Load(context.Background(), root)
	assert.Error(t, err)
}

func TestParseDocument(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantTitle string
		wantBody  string
		wantErr   bool
	}{
		{"no frontmatter", "# Title\n\nBody\n", "", "# Title\n\nBody", false},
		{"frontmatter", "---\ntitle: Hi\norder: 3\n---\n\nBody text\n", "Hi", "Body text", false},
		{"crlf", "---\r\ntitle: Hi\r\n---\r\nBody\r\n", "Hi", "Body", false},
		{"dashes inside body", "---\ntitle: T\n---\nabove\n---\nbelow\n", "T", "above\n---\nbelow", false},
		{"empty body", "---\ntitle: T\n---", "T", "", false},
		{"unclosed", "---\ntitle: T\nbody\n", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := parseDocument([]byte(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTitle, doc.meta.Title)
			assert.Equal(t, tt.wantBody, doc.body)
		})
	}
}

func TestCatalog_ReloadKeepsOldOnError(t *testing.T) {
	root := buildTree(t)
	cat, err := NewCatalog(context.Background(), root, zap.NewNop())
	require.NoError(t, err)
	before := cat.Library()

	writeFile(t, filepath.Join(root, "learning-c", "course.mdx"), "---\ntitle: [broken\n---\n")
	assert.Error(t, cat.Reload(context.Background()))
	assert.Same(t, before, cat.Library())
}

func TestCatalog_Watch(t *testing.T) {
	root := buildTree(t)
	cat, err := NewCatalog(context.Background(), root, zap.NewNop())
	require.NoError(t, err)
	cat.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cat.Watch(ctx) }()

	coursePath := filepath.Join(root, "advanced-c", "course.md")
	assert.Eventually(t, func() bool {
		// rewrite on every tick so the change lands after the watch is set up
		writeFile(t, coursePath, "---\ntitle: Advanced C, revised\norder: 2\n---\n")
		c, err := cat.Library().Course("advanced-c")
		return err == nil && c.Title == "Advanced C, revised"
	}, 3*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Watch did not stop")
	}
}

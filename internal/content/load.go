package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

const (
	courseFile = "course"
	lessonFile = "lesson"
	stepFile   = "step"
	lessonsDir = "lessons"
	stepsDir   = "steps"
)

// frontmatter is the YAML header every content file may carry.
type frontmatter struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Order       int    `yaml:"order"`
	Type        string `yaml:"type"`
}

// document is a parsed content file.
type document struct {
	meta frontmatter
	body string
}

// parseDocument splits an optional "---" delimited YAML header from the
// Markdown body. The body is trimmed.
func parseDocument(data []byte) (document, error) {
	var doc document

	if !bytes.HasPrefix(data, []byte("---\n")) && !bytes.HasPrefix(data, []byte("---\r\n")) {
		doc.body = strings.TrimSpace(string(data))
		return doc, nil
	}

	rest := data[bytes.IndexByte(data, '\n')+1:]
	end := -1
	for off := 0; off <= len(rest); {
		nl := bytes.IndexByte(rest[off:], '\n')
		line := rest[off:]
		if nl >= 0 {
			line = rest[off : off+nl]
		}
		if string(bytes.TrimRight(line, " \t\r")) == "---" {
			end = off
			break
		}
		if nl < 0 {
			break
		}
		off += nl + 1
	}
	if end < 0 {
		return doc, errors.New("frontmatter started but no closing delimiter found")
	}

	if err := yaml.Unmarshal(rest[:end], &doc.meta); err != nil {
		return doc, fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	body := rest[end:]
	if nl := bytes.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = nil
	}
	doc.body = strings.TrimSpace(string(body))
	return doc, nil
}

// readDocument reads <dir>/<name>.mdx, falling back to <name>.md.
// ok is false when neither exists.
func readDocument(dir, name string) (doc document, ok bool, err error) {
	for _, ext := range []string{".mdx", ".md"} {
		path := filepath.Join(dir, name+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return doc, false, fmt.Errorf("read %s: %w", path, err)
		}
		doc, err := parseDocument(data)
		if err != nil {
			return doc, false, fmt.Errorf("%s: %w", path, err)
		}
		return doc, true, nil
	}
	return doc, false, nil
}

// subdirs lists the directory names under dir. A missing dir is empty.
func subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Load reads every course under root. Courses are loaded concurrently.
// Directories without their course/lesson/step file are skipped.
func Load(ctx context.Context, root string) (*Library, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("content dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content dir %s is not a directory", root)
	}

	ids, err := subdirs(root)
	if err != nil {
		return nil, err
	}

	loaded := make([]*Course, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c, err := loadCourse(filepath.Join(root, id), id)
			if err != nil {
				return err
			}
			loaded[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	courses := make([]Course, 0, len(loaded))
	for _, c := range loaded {
		if c != nil {
			courses = append(courses, *c)
		}
	}
	sort.SliceStable(courses, func(i, j int) bool {
		return less(courses[i].Order, courses[i].ID, courses[j].Order, courses[j].ID)
	})
	return newLibrary(courses), nil
}

func loadCourse(dir, id string) (*Course, error) {
	doc, ok, err := readDocument(dir, courseFile)
	if err != nil || !ok {
		return nil, err
	}

	c := &Course{
		ID:          id,
		Title:       orDefault(doc.meta.Title, id),
		Description: doc.meta.Description,
		Order:       doc.meta.Order,
		Items:       []Item{},
	}

	itemIDs, err := subdirs(filepath.Join(dir, lessonsDir))
	if err != nil {
		return nil, err
	}
	for _, itemID := range itemIDs {
		item, err := loadItem(filepath.Join(dir, lessonsDir, itemID), itemID)
		if err != nil {
			return nil, err
		}
		if item != nil {
			c.Items = append(c.Items, *item)
		}
	}
	sort.SliceStable(c.Items, func(i, j int) bool {
		return less(c.Items[i].Order, c.Items[i].ID, c.Items[j].Order, c.Items[j].ID)
	})
	return c, nil
}

func loadItem(dir, id string) (*Item, error) {
	doc, ok, err := readDocument(dir, lessonFile)
	if err != nil || !ok {
		return nil, err
	}

	item := &Item{
		ID:          id,
		Title:       orDefault(doc.meta.Title, id),
		Description: doc.meta.Description,
		Type:        ItemLesson,
		Order:       doc.meta.Order,
		Steps:       []Step{},
	}
	if ItemType(doc.meta.Type) == ItemProject {
		item.Type = ItemProject
	}

	stepIDs, err := subdirs(filepath.Join(dir, stepsDir))
	if err != nil {
		return nil, err
	}
	for _, stepID := range stepIDs {
		sd, ok, err := readDocument(filepath.Join(dir, stepsDir, stepID), stepFile)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		item.Steps = append(item.Steps, Step{
			ID:      stepID,
			Title:   orDefault(sd.meta.Title, stepID),
			Order:   sd.meta.Order,
			Content: sd.body,
		})
	}
	sort.SliceStable(item.Steps, func(i, j int) bool {
		return less(item.Steps[i].Order, item.Steps[i].ID, item.Steps[j].Order, item.Steps[j].ID)
	})
	return item, nil
}

// less orders by the frontmatter order key, then by directory name.
func less(oi int, idi string, oj int, idj string) bool {
	if oi != oj {
		return oi < oj
	}
	return idi < idj
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

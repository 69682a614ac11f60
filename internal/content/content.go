// Package content loads the course tree (courses, lessons/projects, steps)
// from Markdown files with YAML frontmatter and serves lookups over it.
//
// Layout on disk:
//
//	<root>/<course>/course.mdx
//	<root>/<course>/lessons/<item>/lesson.mdx
//	<root>/<course>/lessons/<item>/steps/<step>/step.mdx
//
// ".md" is accepted wherever ".mdx" is.
package content

import (
	"errors"
	"fmt"

	"github.com/atinyakov/learncode/internal/exercise"
)

// ErrNotFound is returned when a course, item or step does not exist.
var ErrNotFound = errors.New("content not found")

// ItemType distinguishes guided lessons from open projects.
type ItemType string

const (
	ItemLesson  ItemType = "lesson"
	ItemProject ItemType = "project"
)

// Step is a single page of course content.
type Step struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Order   int    `json:"order"`
	Content string `json:"content"`
}

// Item is a lesson or a project made of ordered steps.
type Item struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Type        ItemType `json:"type"`
	Order       int      `json:"order"`
	Steps       []Step   `json:"steps"`
}

// Course is the top of the content tree.
type Course struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Order       int    `json:"order"`
	Items       []Item `json:"items"`
}

// StepLink points at a neighbouring step.
type StepLink struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// StepView is a step resolved inside its course and item, with navigation.
type StepView struct {
	CourseID    string              `json:"courseId"`
	CourseTitle string              `json:"courseTitle"`
	ItemID      string              `json:"itemId"`
	ItemTitle   string              `json:"itemTitle"`
	ItemType    ItemType            `json:"itemType"`
	Step        Step                `json:"step"`
	Segments    []exercise.Segment  `json:"segments"`
	Exercises   []exercise.Exercise `json:"exercises"`
	Position    int                 `json:"position"`
	Total       int                 `json:"total"`
	Prev        *StepLink           `json:"prev"`
	Next        *StepLink           `json:"next"`
}

// Library is an immutable snapshot of the content tree.
type Library struct {
	courses []Course
	byID    map[string]int
}

func newLibrary(courses []Course) *Library {
	lib := &Library{courses: courses, byID: make(map[string]int, len(courses))}
	for i, c := range courses {
		lib.byID[c.ID] = i
	}
	return lib
}

// Courses returns all courses ordered by their order key.
func (l *Library) Courses() []Course {
	return l.courses
}

// Course returns the course with the given ID.
func (l *Library) Course(id string) (*Course, error) {
	i, ok := l.byID[id]
	if !ok {
		return nil, fmt.Errorf("course %q: %w", id, ErrNotFound)
	}
	return &l.courses[i], nil
}

// Item returns an item of a course.
func (l *Library) Item(courseID, itemID string) (*Course, *Item, error) {
	c, err := l.Course(courseID)
	if err != nil {
		return nil, nil, err
	}
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return c, &c.Items[i], nil
		}
	}
	return nil, nil, fmt.Errorf("item %q in course %q: %w", itemID, courseID, ErrNotFound)
}

// Step resolves a step, extracts its exercise blocks and links it to its
// neighbours inside the same item.
func (l *Library) Step(courseID, itemID, stepID string) (*StepView, error) {
	c, item, err := l.Item(courseID, itemID)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range item.Steps {
		if item.Steps[i].ID == stepID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("step %q in %s/%s: %w", stepID, courseID, itemID, ErrNotFound)
	}

	step := item.Steps[idx]
	segments := exercise.Extract(step.Content)
	view := &StepView{
		CourseID:    c.ID,
		CourseTitle: c.Title,
		ItemID:      item.ID,
		ItemTitle:   item.Title,
		ItemType:    item.Type,
		Step:        step,
		Segments:    segments,
		Exercises:   exercise.Exercises(segments),
		Position:    idx + 1,
		Total:       len(item.Steps),
	}
	if idx > 0 {
		p := item.Steps[idx-1]
		view.Prev = &StepLink{ID: p.ID, Title: p.Title}
	}
	if idx < len(item.Steps)-1 {
		n := item.Steps[idx+1]
		view.Next = &StepLink{ID: n.ID, Title: n.Title}
	}
	return view, nil
}

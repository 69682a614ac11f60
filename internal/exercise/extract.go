// Package exercise splits step content into plain Markdown segments and
// parsed exercise blocks.
//
// An exercise block is a fenced block whose opening line is "```exercise",
// optionally followed by a title attribute:
//
//	```exercise title="Sum an array"
//	Write a function that returns the sum of an int array.
//	<hint>
//	Keep a running total.
//	</hint>
//	<solution>
//	```c
//	int sum(int *a, int n) { ... }
//	```
//	</solution>
//	```
//
// Extraction never fails: anything that does not parse as an exercise is
// returned as plain Markdown.
package exercise

import (
	"regexp"
	"strings"
)

// Kind tags a Segment.
type Kind string

const (
	// KindMarkdown marks a segment rendered as Markdown verbatim.
	KindMarkdown Kind = "markdown"
	// KindExercise marks a parsed exercise block.
	KindExercise Kind = "exercise"
)

// DefaultTitle is used when the opening line carries no title.
const DefaultTitle = "Exercise"

const (
	fence      = "```"
	openMarker = fence + "exercise"

	hintOpen      = "<hint>"
	hintClose     = "</hint>"
	solutionOpen  = "<solution>"
	solutionClose = "</solution>"
)

var titleAttr = regexp.MustCompile(`title="([^"]*)"`)

// Exercise is one parsed exercise block. Hint and Solution are nil when the
// block has no content for them.
type Exercise struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Hint        *string `json:"hint"`
	Solution    *string `json:"solution"`
}

// Segment is one element of an extracted document. Text is set for
// KindMarkdown, Exercise for KindExercise.
type Segment struct {
	Kind     Kind      `json:"kind"`
	Text     string    `json:"text,omitempty"`
	Exercise *Exercise `json:"exercise,omitempty"`
}

// Extract splits document into segments in document order.
//
// An empty document yields a single empty Markdown segment. An opening marker
// without a closing fence turns the rest of the document, marker included,
// into one Markdown segment and stops further exercise parsing.
func Extract(document string) []Segment {
	if document == "" {
		return []Segment{{Kind: KindMarkdown}}
	}

	segments := make([]Segment, 0, 4)
	pos := 0
	for pos < len(document) {
		start := findOpener(document, pos)
		if start < 0 {
			segments = append(segments, markdown(document[pos:]))
			break
		}
		if start > pos {
			segments = append(segments, markdown(document[pos:start]))
		}

		headerEnd, bodyStart := lineBounds(document, start)
		header := document[start+len(openMarker) : headerEnd]

		closeStart, closeEnd, ok := findClose(document, bodyStart)
		if !ok {
			segments = append(segments, markdown(document[start:]))
			break
		}

		if ex, ok := parseBody(document[bodyStart:closeStart]); ok {
			ex.Title = parseTitle(header)
			segments = append(segments, Segment{Kind: KindExercise, Exercise: &ex})
		}
		pos = closeEnd
	}
	return segments
}

// Exercises returns the exercise payloads of segments in order.
func Exercises(segments []Segment) []Exercise {
	var out []Exercise
	for _, s := range segments {
		if s.Kind == KindExercise && s.Exercise != nil {
			out = append(out, *s.Exercise)
		}
	}
	return out
}

// Count returns the number of exercises Extract finds in document.
func Count(document string) int {
	return len(Exercises(Extract(document)))
}

func markdown(text string) Segment {
	return Segment{Kind: KindMarkdown, Text: text}
}

// findOpener returns the offset of the first opening marker at or after from
// that starts a line and is followed by whitespace or the end of the line.
func findOpener(doc string, from int) int {
	for from < len(doc) {
		i := strings.Index(doc[from:], openMarker)
		if i < 0 {
			return -1
		}
		at := from + i
		after := at + len(openMarker)
		if atLineStart(doc, at) && (after == len(doc) || isSpace(doc[after])) {
			return at
		}
		from = after
	}
	return -1
}

// findClose scans lines from bodyStart for a line made only of the fence
// token that is not inside an unclosed <solution> span. It returns the offset
// of that line and the offset just past it (newline included).
func findClose(doc string, bodyStart int) (int, int, bool) {
	ls := bodyStart
	for ls < len(doc) {
		le, next := lineBounds(doc, ls)
		if strings.TrimRight(doc[ls:le], " \t\r") == fence && !insideSolution(doc[bodyStart:ls]) {
			return ls, next, true
		}
		ls = next
	}
	return 0, 0, false
}

// insideSolution compares the last opening and closing solution tags seen in
// body. Several solution regions in one body can defeat this check.
func insideSolution(body string) bool {
	open := strings.LastIndex(body, solutionOpen)
	return open >= 0 && open > strings.LastIndex(body, solutionClose)
}

// lineBounds returns the end of the line containing offset (excluding the
// newline) and the start of the following line.
func lineBounds(doc string, offset int) (int, int) {
	nl := strings.IndexByte(doc[offset:], '\n')
	if nl < 0 {
		return len(doc), len(doc)
	}
	return offset + nl, offset + nl + 1
}

func atLineStart(doc string, i int) bool {
	return i == 0 || doc[i-1] == '\n'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func parseTitle(header string) string {
	m := titleAttr.FindStringSubmatch(header)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return DefaultTitle
	}
	return strings.TrimSpace(m[1])
}

package exercise

import "strings"

type section int

const (
	sectionNone section = iota
	sectionDescription
	sectionHint
	sectionSolution
)

// regionSep joins repeated regions of the same section.
const regionSep = "\n"

// bodyParser accumulates the lines of an exercise body per section.
type bodyParser struct {
	current section
	buf     []string
	parts   map[section][]string
}

// parseBody splits an exercise body into description, hint and solution.
// It reports false when all three come out empty.
func parseBody(body string) (Exercise, bool) {
	p := &bodyParser{parts: make(map[section][]string)}
	for _, line := range strings.Split(body, "\n") {
		p.line(line)
	}
	p.flush()

	ex := Exercise{
		Description: p.text(sectionDescription),
		Hint:        optional(p.text(sectionHint)),
		Solution:    optional(p.text(sectionSolution)),
	}
	return ex, ex.Description != "" || ex.Hint != nil || ex.Solution != nil
}

func (p *bodyParser) line(line string) {
	trimmed := strings.TrimSpace(line)

	switch {
	case strings.HasPrefix(trimmed, hintOpen):
		p.openTag(sectionHint, strings.TrimPrefix(trimmed, hintOpen), hintClose)
	case strings.HasPrefix(trimmed, solutionOpen):
		p.openTag(sectionSolution, strings.TrimPrefix(trimmed, solutionOpen), solutionClose)
	case trimmed == hintClose, trimmed == solutionClose:
		// any closing tag ends the current section, matching or not
		p.switchTo(sectionNone)
	case p.current == sectionNone:
		if trimmed == "" {
			return
		}
		p.switchTo(sectionDescription)
		p.buf = append(p.buf, line)
	default:
		p.buf = append(p.buf, line)
	}
}

// openTag enters s. Text after the tag on the same line belongs to s, and a
// closing tag on that same line closes it again.
func (p *bodyParser) openTag(s section, rest, closeTag string) {
	p.switchTo(s)
	rest = strings.TrimSpace(rest)
	closed := strings.HasSuffix(rest, closeTag)
	if closed {
		rest = strings.TrimSpace(strings.TrimSuffix(rest, closeTag))
	}
	if rest != "" {
		p.buf = append(p.buf, rest)
	}
	if closed {
		p.switchTo(sectionNone)
	}
}

func (p *bodyParser) switchTo(s section) {
	p.flush()
	p.current = s
}

func (p *bodyParser) flush() {
	if len(p.buf) == 0 {
		return
	}
	text := strings.TrimSpace(strings.Join(p.buf, "\n"))
	p.buf = p.buf[:0]
	if text == "" || p.current == sectionNone {
		return
	}
	p.parts[p.current] = append(p.parts[p.current], text)
}

func (p *bodyParser) text(s section) string {
	return strings.Join(p.parts[s], regionSep)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package hosts

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSectionNotFound is returned when neither sentinel of a section exists.
	ErrSectionNotFound = errors.New("section not found")
	// ErrMalformedSection is returned when a section's sentinels are inconsistent.
	ErrMalformedSection = errors.New("malformed section")
)

// MalformedSectionError describes why a section could not be located.
type MalformedSectionError struct {
	Section string
	Reason  string
}

func (e *MalformedSectionError) Error() string {
	return fmt.Sprintf("malformed section %q: %s", e.Section, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformedSection.
func (e *MalformedSectionError) Unwrap() error {
	return ErrMalformedSection
}

// Span locates a section. Start is the index of the start sentinel, End the index
// of the end sentinel.
type Span struct {
	Start int
	End   int
}

// Contents returns the lines strictly between the sentinels.
func (s Span) Contents(lines []Line) []Line {
	return lines[s.Start+1 : s.End]
}

// StartMarker returns the sentinel line opening a managed section.
func StartMarker(name string) string {
	return "## " + name + " ##"
}

// EndMarker returns the sentinel line closing a managed section.
func EndMarker(name string) string {
	return "## " + name + " - End ##"
}

// FindSection locates the named section.
func FindSection(lines []Line, name string) (Span, error) {
	start, end := -1, -1
	startMarker, endMarker := StartMarker(name), EndMarker(name)

	for i, line := range lines {
		raw, ok := line.(Raw)
		if !ok {
			continue
		}
		switch strings.TrimSpace(raw.Text) {
		case startMarker:
			if start != -1 {
				return Span{}, &MalformedSectionError{Section: name, Reason: "duplicate start marker"}
			}
			start = i
		case endMarker:
			if end != -1 {
				return Span{}, &MalformedSectionError{Section: name, Reason: "duplicate end marker"}
			}
			end = i
		}
	}

	switch {
	case start == -1 && end == -1:
		return Span{}, fmt.Errorf("%w: %s", ErrSectionNotFound, name)
	case start == -1:
		return Span{}, &MalformedSectionError{Section: name, Reason: "end marker without start marker"}
	case end == -1:
		return Span{}, &MalformedSectionError{Section: name, Reason: "start marker without end marker"}
	case end < start:
		return Span{}, &MalformedSectionError{Section: name, Reason: "end marker precedes start marker"}
	}

	return Span{Start: start, End: end}, nil
}

// InsertInSection returns a copy of lines with line placed just before the end
// marker of the named section. A missing section is appended to the end.
func InsertInSection(lines []Line, name string, line Line) ([]Line, error) {
	span, err := FindSection(lines, name)
	if errors.Is(err, ErrSectionNotFound) {
		out := make([]Line, 0, len(lines)+3)
		out = append(out, lines...)
		return append(out, Raw{Text: StartMarker(name)}, line, Raw{Text: EndMarker(name)}), nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]Line, 0, len(lines)+1)
	out = append(out, lines[:span.End]...)
	out = append(out, line)
	return append(out, lines[span.End:]...), nil
}

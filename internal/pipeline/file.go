package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// Position is a 1-based line and column in the Markdown source.
type Position struct {
	Line   int
	Column int
}

// IsZero reports whether the position is unknown.
func (p Position) IsZero() bool { return p.Line == 0 }

// String formats the position as "line:column".
func (p Position) String() string {
	return strconv.Itoa(p.Line) + ":" + strconv.Itoa(p.Column)
}

// ParsePosition parses a "line:column" value as written to data-sourcepos.
// Returns the zero Position when s is malformed.
func ParsePosition(s string) Position {
	line, col, ok := strings.Cut(s, ":")
	if !ok {
		return Position{}
	}
	l, err := strconv.Atoi(line)
	if err != nil || l <= 0 {
		return Position{}
	}
	c, err := strconv.Atoi(col)
	if err != nil || c <= 0 {
		return Position{}
	}
	return Position{Line: l, Column: c}
}

// Message is a non-fatal diagnostic recorded against a document.
type Message struct {
	Reason    string
	Ancestors []*html.Node // root first, failing element last
	Cause     error
	Place     Position
	Source    string
	File      string
}

// String formats the message as "file:line:col: reason: cause [source]".
func (m Message) String() string {
	var b strings.Builder
	if m.File != "" {
		b.WriteString(m.File)
		b.WriteString(":")
	}
	if !m.Place.IsZero() {
		b.WriteString(m.Place.String())
		b.WriteString(":")
	}
	if b.Len() > 0 {
		b.WriteString(" ")
	}
	b.WriteString(m.Reason)
	if m.Cause != nil {
		fmt.Fprintf(&b, ": %v", m.Cause)
	}
	if m.Source != "" {
		fmt.Fprintf(&b, " [%s]", m.Source)
	}
	return b.String()
}

// File collects the diagnostics of one document-processing run.
// Report is safe for concurrent use.
type File struct {
	Path string

	mu       sync.Mutex
	messages []Message
}

// NewFile returns an empty sink for path.
func NewFile(path string) *File {
	return &File{Path: path}
}

// Report appends m, filling File from the sink when empty.
func (f *File) Report(m Message) {
	if m.File == "" {
		m.File = f.Path
	}
	f.mu.Lock()
	f.messages = append(f.messages, m)
	f.mu.Unlock()
}

// Messages returns a copy of the recorded diagnostics in report order.
func (f *File) Messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, len(f.messages))
	copy(out, f.messages)
	return out
}

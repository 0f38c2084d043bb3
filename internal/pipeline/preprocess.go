package pipeline

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/alnah/go-notesite/internal/yamlutil"
)

// ErrFrontMatter indicates the front matter block is not valid YAML.
var ErrFrontMatter = errors.New("invalid front matter")

var crlfOrCR = regexp.MustCompile(`\r\n?`)

// FrontMatter holds the metadata block at the top of a note.
// Unknown keys are ignored.
type FrontMatter struct {
	Title           string   `yaml:"title"`
	Description     string   `yaml:"description"`
	SidebarPosition int      `yaml:"sidebar_position"`
	Tags            []string `yaml:"tags"`
	LastUpdate      string   `yaml:"last_update"`
	Draft           bool     `yaml:"draft"`
}

// Note is a Markdown note ready for conversion.
type Note struct {
	Meta FrontMatter
	Body string
}

// Preprocess normalizes line endings and splits off the front matter.
// The body keeps its original line numbering so diagnostics point at the
// author's source lines.
func Preprocess(content string) (*Note, error) {
	content = normalizeLineEndings(content)

	meta, body, ok := yamlutil.SplitFrontMatter(content)
	note := &Note{Body: body}
	if !ok || len(meta) == 0 {
		return note, nil
	}
	if err := yamlutil.Unmarshal(meta, &note.Meta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFrontMatter, err)
	}
	return note, nil
}

// normalizeLineEndings converts \r\n and \r to \n.
func normalizeLineEndings(content string) string {
	return crlfOrCR.ReplaceAllString(content, "\n")
}

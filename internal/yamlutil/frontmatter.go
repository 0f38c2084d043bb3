package yamlutil

import "strings"

const frontMatterFence = "---"

// SplitFrontMatter separates a leading YAML block delimited by "---" lines
// from a Markdown document. The returned body keeps one empty line for every
// line of the block so source positions stay valid. ok is false when content
// has no front matter; body is then content unchanged.
func SplitFrontMatter(content string) (meta []byte, body string, ok bool) {
	first, rest, found := strings.Cut(content, "\n")
	if !found || strings.TrimRight(first, " \t\r") != frontMatterFence {
		return nil, content, false
	}

	lines := 1
	offset := len(first) + 1
	for {
		line, tail, more := strings.Cut(rest, "\n")
		trimmed := strings.TrimRight(line, " \t\r")
		if trimmed == frontMatterFence || trimmed == "..." {
			meta := content[len(first)+1 : offset]
			if !more {
				tail = ""
			}
			return []byte(meta), strings.Repeat("\n", lines+1) + tail, true
		}
		if !more {
			return nil, content, false
		}
		lines++
		offset += len(line) + 1
		rest = tail
	}
}

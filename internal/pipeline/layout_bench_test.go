//go:build bench

package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// BenchmarkSanitizeCSS benchmarks stylesheet escaping, run once per page.
func BenchmarkSanitizeCSS(b *testing.B) {
	inputs := []struct {
		name string
		css  string
	}{
		{"clean", strings.Repeat(".a { color: red; }\n", 200)},
		{"with_closers", strings.Repeat(".a { color: red; } /* </style> */\n", 200)},
	}

	for _, input := range inputs {
		b.Run(input.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = sanitizeCSS(input.css)
			}
		})
	}
}

// BenchmarkBuildTOC benchmarks heading extraction plus TOC generation.
func BenchmarkBuildTOC(b *testing.B) {
	for _, count := range []int{10, 100} {
		root, _, err := ParseHTML(generateHTMLWithHeadings(count))
		if err != nil {
			b.Fatal(err)
		}
		b.Run(fmt.Sprintf("headings_%d", count), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = BuildTOC(root, TOCOptions{Title: "Contents", MinDepth: 1, MaxDepth: 3})
			}
		})
	}
}

// BenchmarkGenerateNumberedTOC benchmarks TOC markup generation alone.
func BenchmarkGenerateNumberedTOC(b *testing.B) {
	for _, count := range []int{5, 50} {
		headings := generateHeadingInfos(count)
		b.Run(fmt.Sprintf("headings_%d", count), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = generateNumberedTOC(headings, "Contents")
			}
		})
	}
}

// BenchmarkLayoutRender benchmarks executing the page layout.
func BenchmarkLayoutRender(b *testing.B) {
	layout, err := NewLayout(`<html><head><style>{{.Style}}</style></head><body>{{.TOC}}{{.Content}}</body></html>`)
	if err != nil {
		b.Fatal(err)
	}
	data := &PageData{
		Style:   StyleSheet(strings.Repeat(".a { color: red; }\n", 100)),
		Content: "<p>text</p>",
	}
	ctx := context.Background()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := layout.Render(ctx, data); err != nil {
			b.Fatal(err)
		}
	}
}

func generateHTMLWithHeadings(count int) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head><title>Test</title></head>\n<body>\n")
	for i := 0; i < count; i++ {
		level := (i % 6) + 1
		fmt.Fprintf(&sb, `<h%d id="heading-%d">Heading %d</h%d>`, level, i, i+1, level)
		sb.WriteString("\n<p>Some content under this heading.</p>\n")
	}
	sb.WriteString("</body>\n</html>")
	return sb.String()
}

func generateHeadingInfos(count int) []headingInfo {
	headings := make([]headingInfo, count)
	for i := 0; i < count; i++ {
		headings[i] = headingInfo{
			Level: (i % 3) + 1,
			ID:    fmt.Sprintf("heading-%d", i),
			Text:  fmt.Sprintf("Heading Number %d", i+1),
		}
	}
	return headings
}

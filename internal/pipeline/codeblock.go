package pipeline

import (
	"bytes"

	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/util"
)

const codeBlockClass = "code-block"

// codeBlockWrapper wraps every fenced code block in a div that keeps the fence
// language. Highlighted output drops the language class, and later passes
// such as the playground launcher need it.
func codeBlockWrapper(w util.BufWriter, ctx highlighting.CodeBlockContext, entering bool) {
	lang, _ := ctx.Language()
	lang = bytes.TrimSpace(lang)

	if entering {
		_, _ = w.WriteString(`<div class="` + codeBlockClass + `"`)
		if len(lang) > 0 {
			_, _ = w.WriteString(` data-language="`)
			_, _ = w.Write(util.EscapeHTML(lang))
			_ = w.WriteByte('"')
		}
		_ = w.WriteByte('>')

		if !ctx.Highlighted() {
			_, _ = w.WriteString("<pre><code")
			if len(lang) > 0 {
				_, _ = w.WriteString(` class="language-`)
				_, _ = w.Write(util.EscapeHTML(lang))
				_ = w.WriteByte('"')
			}
			_ = w.WriteByte('>')
		}
		return
	}

	if !ctx.Highlighted() {
		_, _ = w.WriteString("</code></pre>")
	}
	_, _ = w.WriteString("</div>\n")
}

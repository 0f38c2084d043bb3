package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/alnah/go-notesite/internal/fileutil"
)

// ErrBrokenLink is the cause of diagnostics about missing link targets.
var ErrBrokenLink = errors.New("no such note")

const (
	brokenLinkReason = "Link target does not exist"
	linkSource       = "notesite-links"
)

// LinkRewriter points relative links to Markdown notes at their built pages
// ("guide/intro.md#setup" becomes "guide/intro.html#setup").
//
// When Root is set, links are also checked against the notes on disk and a
// diagnostic is reported for each missing target under Root. Targets that
// escape Root are neither checked nor reported.
type LinkRewriter struct {
	Root string
}

// Compile-time interface check.
var _ TreeTransformer = (*LinkRewriter)(nil)

// Transform implements TreeTransformer.
func (l *LinkRewriter) Transform(ctx context.Context, root *html.Node, file *File) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	links := findAll(root, func(n *html.Node) bool {
		return isElement(n, atom.A)
	})
	for _, a := range links {
		href, ok := getAttr(a, "href")
		if !ok || !isRelativePath(href) {
			continue
		}
		u, err := url.Parse(href)
		if err != nil || !fileutil.IsMarkdown(u.Path) {
			continue
		}

		l.check(a, u.Path, file)

		u.Path = strings.TrimSuffix(u.Path, path.Ext(u.Path)) + ".html"
		setAttr(a, "href", u.String())
	}
	return nil
}

// check reports a missing link target, resolved against the note's directory.
func (l *LinkRewriter) check(a *html.Node, target string, file *File) {
	if l.Root == "" || file == nil || file.Path == "" {
		return
	}
	absRoot, err := filepath.Abs(l.Root)
	if err != nil {
		return
	}
	noteDir := filepath.Dir(filepath.Join(absRoot, file.Path))
	resolved := filepath.Join(noteDir, filepath.FromSlash(target))

	if !isPathUnderDir(resolved, absRoot) || fileutil.FileExists(resolved) {
		return
	}
	file.Report(Message{
		Reason:    brokenLinkReason,
		Ancestors: ancestors(a),
		Cause:     fmt.Errorf("%w: %s", ErrBrokenLink, target),
		Source:    linkSource,
	})
}

// isRelativePath returns true if the reference points into the site.
func isRelativePath(ref string) bool {
	if ref == "" || strings.HasPrefix(ref, "#") {
		return false
	}
	if fileutil.IsURL(ref) || strings.HasPrefix(ref, "file://") {
		return false
	}
	return !strings.HasPrefix(ref, "/") && !filepath.IsAbs(ref)
}

// isPathUnderDir checks if absPath is under dir (prevents path traversal).
func isPathUnderDir(absPath, dir string) bool {
	cleanPath := filepath.Clean(absPath)
	cleanDir := filepath.Clean(dir)

	if !strings.HasSuffix(cleanDir, string(filepath.Separator)) {
		cleanDir += string(filepath.Separator)
	}
	return strings.HasPrefix(cleanPath+string(filepath.Separator), cleanDir)
}

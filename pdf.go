package notesite

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/alnah/go-notesite/internal/process"
)

// Page size names.
const (
	PageSizeLetter = "letter"
	PageSizeA4     = "a4"
	PageSizeLegal  = "legal"
)

// Margin bounds in inches.
const (
	MinMargin     = 0.25
	MaxMargin     = 3.0
	DefaultMargin = 0.5
)

// paperSizes maps page size names to width and height in inches.
var paperSizes = map[string][2]float64{
	PageSizeLetter: {8.5, 11},
	PageSizeA4:     {8.27, 11.69},
	PageSizeLegal:  {8.5, 14},
}

// PDFOptions configures PDF export.
type PDFOptions struct {
	Size    string        // letter, a4 or legal (default a4)
	Margin  float64       // inches; zero means DefaultMargin
	Timeout time.Duration // per page load; zero means 30s
}

// Validate checks the page size and margin.
func (o *PDFOptions) Validate() error {
	if o == nil {
		return nil
	}
	if o.Size != "" {
		if _, ok := paperSizes[strings.ToLower(o.Size)]; !ok {
			return fmt.Errorf("%w: %q", ErrInvalidPageSize, o.Size)
		}
	}
	if o.Margin != 0 && (o.Margin < MinMargin || o.Margin > MaxMargin) {
		return fmt.Errorf("%w: %.2f (must be between %.2f and %.2f)", ErrInvalidMargin, o.Margin, MinMargin, MaxMargin)
	}
	return nil
}

// withDefaults fills zero fields.
func (o PDFOptions) withDefaults() PDFOptions {
	if o.Size == "" {
		o.Size = PageSizeA4
	}
	o.Size = strings.ToLower(o.Size)
	if o.Margin == 0 {
		o.Margin = DefaultMargin
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return o
}

// pdfRenderer renders a built HTML file to PDF.
type pdfRenderer interface {
	RenderFromFile(ctx context.Context, filePath string) ([]byte, error)
	Close() error
}

// Compile-time interface check.
var _ pdfRenderer = (*rodRenderer)(nil)

// rodRenderer implements pdfRenderer using go-rod.
// Rod downloads Chromium on first run if none is found.
type rodRenderer struct {
	opts     PDFOptions
	launcher *launcher.Launcher
	browser  *rod.Browser
}

func newRodRenderer(opts PDFOptions) *rodRenderer {
	return &rodRenderer{opts: opts.withDefaults()}
}

// ensureBrowser lazily launches and connects to the browser.
func (r *rodRenderer) ensureBrowser() error {
	if r.browser != nil {
		return nil
	}

	l := launcher.New()

	// Pre-installed browser (Docker/containerized environments)
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		l = l.Bin(bin)
	}

	// NoSandbox required for CI and containerized environments
	if os.Getenv("CI") == "true" || os.Getenv("ROD_NO_SANDBOX") == "1" || os.Getenv("ROD_BROWSER_BIN") != "" {
		l = l.NoSandbox(true)
	}

	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}
	r.launcher = l

	r.browser = rod.New().ControlURL(u)
	if err := r.browser.Connect(); err != nil {
		r.browser = nil
		r.killBrowser()
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}
	return nil
}

// Close releases browser resources, killing Chrome's helper processes too.
func (r *rodRenderer) Close() error {
	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	r.killBrowser()
	return err
}

func (r *rodRenderer) killBrowser() {
	if r.launcher == nil {
		return
	}
	process.KillProcessGroup(r.launcher.PID())
	r.launcher.Kill()
	r.launcher.Cleanup()
	r.launcher = nil
}

// RenderFromFile opens a local HTML file in headless Chrome and prints it.
// The file is opened in place so relative images and links resolve.
func (r *rodRenderer) RenderFromFile(ctx context.Context, filePath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.ensureBrowser(); err != nil {
		return nil, err
	}

	page, err := r.browser.Page(proto.TargetCreateTarget{URL: fileURL(filePath)})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageCreate, err)
	}
	defer func() { _ = page.Close() }()

	timeout := r.opts.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, context.DeadlineExceeded
		}
	}

	if err := page.Context(ctx).Timeout(timeout).WaitLoad(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}

	reader, err := page.PDF(buildPDFOptions(r.opts))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPDFGeneration, err)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading PDF stream: %v", ErrPDFGeneration, err)
	}
	return data, nil
}

// buildPDFOptions constructs proto.PagePrintToPDF from validated options.
func buildPDFOptions(opts PDFOptions) *proto.PagePrintToPDF {
	opts = opts.withDefaults()
	size, ok := paperSizes[opts.Size]
	if !ok {
		size = paperSizes[PageSizeA4]
	}

	return &proto.PagePrintToPDF{
		PaperWidth:      floatPtr(size[0]),
		PaperHeight:     floatPtr(size[1]),
		MarginTop:       floatPtr(opts.Margin),
		MarginBottom:    floatPtr(opts.Margin),
		MarginLeft:      floatPtr(opts.Margin),
		MarginRight:     floatPtr(opts.Margin),
		PrintBackground: true,
	}
}

// fileURL turns a local path into a file:// URL.
func fileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	if !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path // Windows drive letters
	}
	return u.String()
}

// floatPtr returns a pointer to a float64 value.
func floatPtr(v float64) *float64 {
	return &v
}

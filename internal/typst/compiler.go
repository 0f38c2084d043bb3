package typst

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// Sentinel errors for compiler operations.
var (
	ErrCompilerNotFound = errors.New("typst compiler not found")
	ErrCompile          = errors.New("typst compilation failed")
	ErrNilDocument      = errors.New("nil typst document")
	ErrNoPages          = errors.New("typst produced no pages")
	ErrQuery            = errors.New("typst query failed")
	ErrInvalidSVG       = errors.New("invalid SVG output")
	ErrClosed           = errors.New("compiler is closed")
)

// Compiler compiles Typst sources and renders or queries the result.
// Implementations must be safe for concurrent use.
type Compiler interface {
	// Compile compiles a standalone main file. On failure the returned error
	// is a *CompileError carrying the diagnostics.
	Compile(ctx context.Context, mainFileContent string) (*Document, error)

	// SVG renders a compiled document to SVG markup. The root element carries
	// data-width and data-height attributes in points.
	SVG(ctx context.Context, doc *Document) (string, error)

	// Query evaluates a selector (e.g. "<label>") against a compiled document.
	Query(ctx context.Context, doc *Document, selector string) ([]QueryResult, error)

	// EvictCache drops cached documents until at most maxEntries remain.
	EvictCache(maxEntries int)
}

// Document is a compiled Typst document.
type Document struct {
	key    string
	source string
	svg    string

	mu      sync.Mutex
	queries map[string][]QueryResult
}

// NewDocument builds a Document from already rendered SVG.
// Used by alternative Compiler implementations and tests.
func NewDocument(source, svg string) *Document {
	return &Document{key: sourceKey(source), source: source, svg: svg}
}

// Source returns the main file content the document was compiled from.
func (d *Document) Source() string { return d.source }

func (d *Document) cachedQuery(selector string) ([]QueryResult, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res, ok := d.queries[selector]
	return res, ok
}

func (d *Document) storeQuery(selector string, res []QueryResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.queries == nil {
		d.queries = make(map[string][]QueryResult)
	}
	d.queries[selector] = res
}

// QueryResult is one element matched by a query.
// Value holds the element's value field; strings are unquoted, other JSON
// values are kept raw.
type QueryResult struct {
	Func  string `json:"func"`
	Label string `json:"label,omitempty"`
	Value string `json:"value"`
}

// Diagnostic is a single compiler message.
type Diagnostic struct {
	Path     string   `json:"path,omitempty"`
	Severity string   `json:"severity"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
	Message  string   `json:"message"`
	Hints    []string `json:"hints,omitempty"`
}

// CompileError reports a failed compilation.
type CompileError struct {
	Diagnostics []Diagnostic
}

// Error returns the diagnostics as indented JSON, the format authors see in
// the rendered fallback block.
func (e *CompileError) Error() string {
	data, err := json.MarshalIndent(e.Diagnostics, "", "  ")
	if err != nil {
		return ErrCompile.Error()
	}
	return string(data)
}

// Unwrap lets callers match compile failures with errors.Is(err, ErrCompile).
func (e *CompileError) Unwrap() error { return ErrCompile }

// CompileArgs configures how the typst binary is invoked.
type CompileArgs struct {
	Binary    string            // executable name or path (default "typst")
	Root      string            // project root for imports (empty = workspace only)
	FontPaths []string          // extra font directories
	Inputs    map[string]string // sys.inputs key/value pairs
	MaxProcs  int               // concurrent typst processes (0 = GOMAXPROCS)
}

package typst

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/alnah/go-notesite/internal/process"
)

const (
	defaultBinary = "typst"
	mainFileName  = "main.typ"
	pageTemplate  = "page-{0p}.svg"
	pageGlob      = "page-*.svg"

	filePermissions = 0o600
)

// runner executes the typst binary inside dir.
type runner func(ctx context.Context, dir, bin string, args ...string) (stdout, stderr []byte, err error)

func execRunner(ctx context.Context, dir, bin string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...) // #nosec G204 -- binary comes from configuration
	cmd.Dir = dir
	process.Detach(cmd)
	cmd.Cancel = func() error {
		process.KillProcessGroup(cmd.Process.Pid)
		return nil
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// CLICompiler implements Compiler with the typst command line tool.
// A single instance is meant to be shared by every document of a build.
type CLICompiler struct {
	args  CompileArgs
	bin   string
	work  string
	run   runner
	cache *documentCache
	procs *semaphore.Weighted

	flight singleflight.Group

	mu     sync.Mutex
	closed bool
}

// Compile-time interface check.
var _ Compiler = (*CLICompiler)(nil)

// NewCLICompiler locates the typst binary and prepares a workspace directory.
// Returns ErrCompilerNotFound if the binary cannot be found.
func NewCLICompiler(args CompileArgs) (*CLICompiler, error) {
	name := args.Binary
	if name == "" {
		name = defaultBinary
	}
	bin, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompilerNotFound, err)
	}
	return newCLICompiler(args, bin, execRunner)
}

func newCLICompiler(args CompileArgs, bin string, run runner) (*CLICompiler, error) {
	// Sources must live under the project root for typst to accept them.
	parent := ""
	if args.Root != "" {
		root, err := filepath.Abs(args.Root)
		if err != nil {
			return nil, fmt.Errorf("resolving typst root: %w", err)
		}
		args.Root = root
		parent = root
	}

	work, err := os.MkdirTemp(parent, ".notesite-typst-*")
	if err != nil {
		return nil, fmt.Errorf("creating typst workspace: %w", err)
	}

	procs := args.MaxProcs
	if procs <= 0 {
		procs = runtime.GOMAXPROCS(0)
	}

	return &CLICompiler{
		args:  args,
		bin:   bin,
		work:  work,
		run:   run,
		cache: newDocumentCache(),
		procs: semaphore.NewWeighted(int64(procs)),
	}, nil
}

// Compile compiles mainFileContent to SVG. Identical sources compiled
// concurrently share one typst process; compiled documents are cached until
// evicted.
func (c *CLICompiler) Compile(ctx context.Context, mainFileContent string) (*Document, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	key := sourceKey(mainFileContent)
	if doc, ok := c.cache.get(key); ok {
		return doc, nil
	}

	v, err, _ := c.flight.Do(key, func() (any, error) {
		doc, err := c.compile(ctx, key, mainFileContent)
		if err != nil {
			return nil, err
		}
		c.cache.put(doc)
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Document), nil
}

func (c *CLICompiler) compile(ctx context.Context, key, source string) (*Document, error) {
	dir, cleanup, err := c.workspace(source)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if err := c.procs.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.procs.Release(1)

	args := c.commandArgs("compile", "--format", "svg", "--diagnostic-format", "short", mainFileName, pageTemplate)
	_, stderr, err := c.run(ctx, dir, c.bin, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		diags := parseDiagnostics(string(stderr))
		if errs := errorsOnly(diags); len(errs) > 0 {
			diags = errs
		}
		if len(diags) == 0 {
			return nil, fmt.Errorf("%w: %v", ErrCompile, err)
		}
		return nil, &CompileError{Diagnostics: diags}
	}

	pages, err := readPages(dir)
	if err != nil {
		return nil, err
	}
	svg, err := stackPages(pages)
	if err != nil {
		return nil, err
	}

	return &Document{key: key, source: source, svg: svg}, nil
}

// SVG returns the rendered markup of a compiled document.
func (c *CLICompiler) SVG(_ context.Context, doc *Document) (string, error) {
	if doc == nil {
		return "", ErrNilDocument
	}
	return doc.svg, nil
}

// Query runs `typst query` for selector. Results are memoized per document.
func (c *CLICompiler) Query(ctx context.Context, doc *Document, selector string) ([]QueryResult, error) {
	if doc == nil {
		return nil, ErrNilDocument
	}
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if res, ok := doc.cachedQuery(selector); ok {
		return res, nil
	}

	dir, cleanup, err := c.workspace(doc.source)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if err := c.procs.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.procs.Release(1)

	args := c.commandArgs("query", "--diagnostic-format", "short", mainFileName, selector)
	stdout, stderr, err := c.run(ctx, dir, c.bin, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("%w: %s", ErrQuery, msg)
	}

	res, err := parseQueryResults(stdout)
	if err != nil {
		return nil, err
	}
	doc.storeQuery(selector, res)
	return res, nil
}

// EvictCache keeps at most maxEntries compiled documents.
func (c *CLICompiler) EvictCache(maxEntries int) {
	c.cache.evict(maxEntries)
}

// Close removes the workspace directory. The compiler is unusable afterwards.
func (c *CLICompiler) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.cache.evict(0)
	return os.RemoveAll(c.work)
}

func (c *CLICompiler) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// workspace writes source to a fresh directory and returns a cleanup func.
func (c *CLICompiler) workspace(source string) (string, func(), error) {
	dir, err := os.MkdirTemp(c.work, "doc-*")
	if err != nil {
		return "", nil, fmt.Errorf("creating typst workspace: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	if err := os.WriteFile(filepath.Join(dir, mainFileName), []byte(source), filePermissions); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("writing typst source: %w", err)
	}
	return dir, cleanup, nil
}

// commandArgs prepends the subcommand and the shared options.
func (c *CLICompiler) commandArgs(sub string, rest ...string) []string {
	args := []string{sub}
	if c.args.Root != "" {
		args = append(args, "--root", c.args.Root)
	}
	for _, p := range c.args.FontPaths {
		args = append(args, "--font-path", p)
	}

	keys := make([]string, 0, len(c.args.Inputs))
	for k := range c.args.Inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--input", k+"="+c.args.Inputs[k])
	}

	return append(args, rest...)
}

// readPages loads the exported page files in page order.
func readPages(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, pageGlob))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, ErrNoPages
	}
	sort.Strings(paths)

	pages := make([]string, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p) // #nosec G304 -- path produced by our own glob
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", filepath.Base(p), err)
		}
		pages = append(pages, string(data))
	}
	return pages, nil
}

// parseQueryResults decodes the JSON array printed by `typst query`.
func parseQueryResults(data []byte) ([]QueryResult, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON output", ErrQuery)
	}
	parsed := gjson.ParseBytes(data)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("%w: expected a JSON array", ErrQuery)
	}

	results := make([]QueryResult, 0, len(parsed.Array()))
	parsed.ForEach(func(_, v gjson.Result) bool {
		results = append(results, QueryResult{
			Func:  v.Get("func").String(),
			Label: v.Get("label").String(),
			Value: v.Get("value").String(),
		})
		return true
	})
	return results, nil
}

// Package notesite builds a static HTML site from a directory of Markdown
// notes.
//
// # Quick Start
//
// Create a builder, build, and close when done:
//
//	b, err := notesite.NewBuilder("docs", "build",
//	    notesite.WithSiteTitle("Notes"),
//	    notesite.WithTOC("Contents", 2, 3),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close()
//
//	report, err := b.Build(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, m := range report.Messages() {
//	    log.Println(m)
//	}
//
// Every Markdown note becomes an HTML page at the same relative path. Other
// files are copied unchanged so relative images keep working. Notes marked
// draft in their front matter are skipped.
//
// # Page Pipeline
//
//  1. Front matter split and line ending normalization
//  2. Markdown to HTML via goldmark (GFM, highlighting, admonitions,
//     alphaTex blocks, typst tagging)
//  3. Tree passes: typst rendering, link rewriting, image figures,
//     ==highlight== marks, playground buttons
//  4. Page layout with stylesheet, table of contents and last updated date
//  5. Optional PDF printing via headless Chrome (go-rod)
//
// Passes never fail a page for a bad formula or a broken link; they record
// pipeline.Message values, returned in the Report.
//
// # Typst
//
// Formulas are compiled only when a compiler is supplied:
//
//	compiler, err := typst.NewCLICompiler(typst.CompileArgs{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer compiler.Close()
//
//	b, err := notesite.NewBuilder("docs", "build", notesite.WithCompiler(compiler))
//
// The caller owns the compiler and closes it after the builder.
//
// # Incremental Builds
//
// Rebuild processes a set of changed source paths; the preview server calls
// it from its file watcher. Builder methods are safe for concurrent use.
package notesite

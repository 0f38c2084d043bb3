// Package typst wraps the Typst typesetting compiler behind a small
// compile, render and query interface.
//
// The Compiler interface is the only contract the document pipeline relies
// on. CLICompiler implements it by driving the typst binary: every compile
// runs in a throwaway workspace, rendered pages are kept in memory, and a
// bounded LRU cache keyed by the source text lets repeated formulas skip the
// process spawn entirely. EvictCache trims that cache; callers rendering many
// small documents call it after each render to cap memory.
//
// Compile failures are reported as *CompileError, whose message is the
// indented JSON encoding of the compiler diagnostics.
package typst

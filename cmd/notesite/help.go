package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: notesite <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  build       Build a markdown notes directory into a static site")
	fmt.Fprintln(w, "  serve       Build, serve and rebuild on change with live reload")
	fmt.Fprintln(w, "  doctor      Check typst, Chrome and the environment")
	fmt.Fprintln(w, "  completion  Generate shell completion script")
	fmt.Fprintln(w, "  version     Show version information")
	fmt.Fprintln(w, "  help        Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'notesite help <command>' for details on a specific command.")
}

// printBuildUsage prints usage for the build command.
func printBuildUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: notesite build [input] [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Build every note of a directory into HTML pages.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Arguments:")
	fmt.Fprintln(w, "  input    Notes directory (default: input.defaultDir, \"docs\")")
	fmt.Fprintln(w)
	printSharedFlags(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Checks:")
	fmt.Fprintln(w, "      --strict              Exit 5 when a formula fails to compile")
	fmt.Fprintln(w)
	printOutputControl(w)
}

// printServeUsage prints usage for the serve command.
func printServeUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: notesite serve [input] [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Build the site, serve it and rebuild changed notes. Open pages")
	fmt.Fprintln(w, "reload after every rebuild.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Arguments:")
	fmt.Fprintln(w, "  input    Notes directory (default: input.defaultDir, \"docs\")")
	fmt.Fprintln(w)
	printSharedFlags(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Server:")
	fmt.Fprintln(w, "      --addr <host:port>    Listen address (default: 127.0.0.1:3000)")
	fmt.Fprintln(w, "      --no-watch            Serve without rebuilding on change")
	fmt.Fprintln(w)
	printOutputControl(w)
}

// printSharedFlags prints the flags of build and serve.
func printSharedFlags(w io.Writer) {
	fmt.Fprintln(w, "Input/Output:")
	fmt.Fprintln(w, "  -o, --output <dir>        Output directory (default: build)")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "  -w, --workers <n>         Parallel workers (0 = auto)")
	fmt.Fprintln(w, "      --drafts              Build notes marked draft")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Site:")
	fmt.Fprintln(w, "      --title <s>           Site title appended to page titles")
	fmt.Fprintln(w, "      --lang <s>            html lang attribute (default: en)")
	fmt.Fprintln(w, "      --date-format <s>     Last update format")
	fmt.Fprintln(w, "                            Tokens: YYYY, YY, MMMM, MMM, MM, M, DD, D")
	fmt.Fprintln(w, "                            Presets (case-insensitive): iso, european, us, long")
	fmt.Fprintln(w, "                            Use [text] to escape literals: [Date]: YYYY")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Table of Contents:")
	fmt.Fprintln(w, "      --toc-title <s>       TOC heading text")
	fmt.Fprintln(w, "      --toc-min-depth <n>   Min heading depth (1-6, default: 2)")
	fmt.Fprintln(w, "      --toc-max-depth <n>   Max heading depth (1-6, default: 3)")
	fmt.Fprintln(w, "      --no-toc              Disable table of contents")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Formulas:")
	fmt.Fprintln(w, "      --typst-bin <path>    typst executable (default: typst from PATH)")
	fmt.Fprintln(w, "      --typst-root <dir>    Project root for #import")
	fmt.Fprintln(w, "      --font-path <dir>     Extra font directory (repeatable)")
	fmt.Fprintln(w, "      --typst-error-color <s>  Heading color of error blocks")
	fmt.Fprintln(w, "      --no-typst            Keep formulas as code")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "PDF:")
	fmt.Fprintln(w, "      --pdf                 Also print every page to PDF")
	fmt.Fprintln(w, "  -p, --page-size <s>       Page size: letter, a4, legal")
	fmt.Fprintln(w, "      --margin <f>          Margin in inches (0.25-3.0)")
	fmt.Fprintln(w, "  -t, --timeout <d>         Page load timeout (e.g., 30s, 2m)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Styling:")
	fmt.Fprintln(w, "      --style <name|path>   CSS style name or file (\"none\" disables)")
	fmt.Fprintln(w, "      --asset-path <dir>    Custom styles/templates directory")
}

func printOutputControl(w io.Writer) {
	fmt.Fprintln(w, "Output Control:")
	fmt.Fprintln(w, "  -q, --quiet               Only show errors")
	fmt.Fprintln(w, "  -v, --verbose             Show detailed logs")
}

// printDoctorUsage prints usage for the doctor command.
func printDoctorUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: notesite doctor [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Check that typst and Chrome are available and the system can build.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "      --json                Output as JSON")
	fmt.Fprintln(w, "      --typst-bin <path>    typst executable to check")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
}

// runHelp prints help for a specific command.
func runHelp(args []string, env *Environment) {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return
	}

	switch args[0] {
	case cmdBuild:
		printBuildUsage(env.Stdout)
	case cmdServe:
		printServeUsage(env.Stdout)
	case cmdDoctor:
		printDoctorUsage(env.Stdout)
	case cmdCompletion:
		printCompletionUsage(env.Stdout)
	case cmdVersion:
		fmt.Fprintln(env.Stdout, "Usage: notesite version")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show version information.")
	case cmdHelp:
		fmt.Fprintln(env.Stdout, "Usage: notesite help [command]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show help for a command.")
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", args[0])
		printUsage(env.Stderr)
	}
}

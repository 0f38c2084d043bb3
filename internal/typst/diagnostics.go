package typst

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

// Short diagnostic format emitted by `typst compile --diagnostic-format short`:
//
//	main.typ:3:5: error: unknown variable: foo
//	error: file not found (searched at /tmp/x.typ)
//	hint: ...
var (
	locatedDiagnostic   = regexp.MustCompile(`^(.+?):(\d+):(\d+): (error|warning): (.*)$`)
	unlocatedDiagnostic = regexp.MustCompile(`^(error|warning): (.*)$`)
	hintLine            = regexp.MustCompile(`^(?:.+?:\d+:\d+: )?hint: (.*)$`)
)

// parseDiagnostics extracts diagnostics from compiler stderr.
// Lines that match no known shape are ignored; if nothing matches at all, the
// whole output becomes a single error so no failure is silent.
func parseDiagnostics(stderr string) []Diagnostic {
	var diags []Diagnostic

	scanner := bufio.NewScanner(strings.NewReader(stderr))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if line == "" {
			continue
		}

		if m := hintLine.FindStringSubmatch(line); m != nil {
			if len(diags) > 0 {
				last := &diags[len(diags)-1]
				last.Hints = append(last.Hints, m[1])
			}
			continue
		}

		if m := locatedDiagnostic.FindStringSubmatch(line); m != nil {
			lineNo, _ := strconv.Atoi(m[2])
			col, _ := strconv.Atoi(m[3])
			diags = append(diags, Diagnostic{
				Path:     m[1],
				Severity: m[4],
				Line:     lineNo,
				Column:   col,
				Message:  m[5],
			})
			continue
		}

		if m := unlocatedDiagnostic.FindStringSubmatch(line); m != nil {
			diags = append(diags, Diagnostic{Severity: m[1], Message: m[2]})
		}
	}

	if len(diags) == 0 {
		if msg := strings.TrimSpace(stderr); msg != "" {
			diags = append(diags, Diagnostic{Severity: "error", Message: msg})
		}
	}
	return diags
}

// errorsOnly keeps diagnostics with error severity.
func errorsOnly(diags []Diagnostic) []Diagnostic {
	out := diags[:0:0]
	for _, d := range diags {
		if d.Severity == "error" {
			out = append(out, d)
		}
	}
	return out
}

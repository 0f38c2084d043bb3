package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-rod/rod/lib/launcher"
	flag "github.com/spf13/pflag"

	"github.com/alnah/go-notesite/internal/config"
)

const defaultTypstBinary = "typst"

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status   string     `json:"status"` // "ready", "warnings", "errors"
	Typst    typstInfo  `json:"typst"`
	Chrome   chromeInfo `json:"chrome"`
	Config   configInfo `json:"config"`
	Env      envInfo    `json:"environment"`
	System   systemInfo `json:"system"`
	Warnings []string   `json:"warnings,omitempty"`
	Errors   []string   `json:"errors,omitempty"`
}

// typstInfo holds typst detection results.
type typstInfo struct {
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
}

// chromeInfo holds Chrome/Chromium detection results.
type chromeInfo struct {
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	Sandbox bool   `json:"sandbox"`
}

// configInfo holds config file results.
type configInfo struct {
	Path   string `json:"path,omitempty"`
	Loaded bool   `json:"loaded"`
	Output string `json:"output_dir"`
}

// envInfo holds environment detection results.
type envInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
	NoSandbox     string `json:"rod_no_sandbox"`
	BrowserBin    string `json:"rod_browser_bin"`
}

// systemInfo holds system check results.
type systemInfo struct {
	TempWritable   bool `json:"temp_writable"`
	OutputWritable bool `json:"output_writable"`
}

// doctorFlags holds flags for the doctor command.
type doctorFlags struct {
	json     bool
	typstBin string
	config   string
}

// runDoctorCmd executes the doctor command and returns an exit code.
// Exit codes: 0 = OK (including warnings), 1 = errors found, 2 = bad flags.
func runDoctorCmd(args []string, env *Environment) int {
	f := &doctorFlags{}
	fs := newDoctorFlagSet(f, env.Stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		return ExitUsage
	}

	result := runDoctor(f)

	if f.json {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == "errors" {
		return ExitGeneral
	}
	return ExitSuccess
}

// newDoctorFlagSet creates the flag set of the doctor command.
func newDoctorFlagSet(f *doctorFlags, usage io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(cmdDoctor, flag.ContinueOnError)
	fs.SetOutput(usage)
	fs.BoolVar(&f.json, "json", false, "output as JSON")
	fs.StringVar(&f.typstBin, "typst-bin", "", "typst executable to check")
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.Usage = func() { printDoctorUsage(usage) }
	return fs
}

// runDoctor performs all diagnostic checks.
func runDoctor(f *doctorFlags) *doctorResult {
	result := &doctorResult{
		Status: "ready",
		Env: envInfo{
			OS:         runtime.GOOS,
			Arch:       runtime.GOARCH,
			NoSandbox:  os.Getenv("ROD_NO_SANDBOX"),
			BrowserBin: os.Getenv("ROD_BROWSER_BIN"),
		},
	}

	cfg := checkConfig(result, f.config)
	bin := f.typstBin
	if bin == "" {
		bin = cfg.Typst.Binary
	}
	checkTypst(result, bin, cfg.Typst.Disabled)
	checkChrome(result, cfg.PDF.Enabled)
	checkEnvironment(result)
	checkSystem(result, cfg.Output.DefaultDir)

	// Determine final status
	if len(result.Errors) > 0 {
		result.Status = "errors"
	} else if len(result.Warnings) > 0 {
		result.Status = "warnings"
	}

	return result
}

// checkConfig loads the named config, or the default one when it exists.
// Falls back to DefaultConfig so the other checks can run.
func checkConfig(result *doctorResult, name string) *config.Config {
	if name == "" {
		name = os.Getenv("NOTESITE_CONFIG")
	}
	explicit := name != ""
	if !explicit {
		name = config.DefaultName
	}

	cfg, err := config.LoadConfig(name)
	switch {
	case err == nil:
		result.Config.Path = name
		result.Config.Loaded = true
	case errors.Is(err, config.ErrConfigNotFound) && !explicit:
		cfg = config.DefaultConfig()
	default:
		result.Errors = append(result.Errors, fmt.Sprintf("Config: %v", err))
		cfg = config.DefaultConfig()
	}
	result.Config.Output = cfg.Output.DefaultDir
	return cfg
}

// checkTypst detects the typst binary. Missing typst is an error unless
// formulas are disabled.
func checkTypst(result *doctorResult, bin string, disabled bool) {
	if bin == "" {
		bin = defaultTypstBinary
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		msg := fmt.Sprintf("typst not found (%s). Install typst or set --typst-bin", bin)
		if disabled {
			result.Warnings = append(result.Warnings, msg)
		} else {
			result.Errors = append(result.Errors, msg)
		}
		return
	}

	result.Typst.Found = true
	result.Typst.Path = path

	out, err := exec.Command(path, "--version").Output() // #nosec G204 -- binary from flag or config
	if err == nil {
		result.Typst.Version = strings.TrimSpace(string(out))
	} else {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Could not get typst version: %v", err))
	}
}

// checkChrome detects Chrome/Chromium. Chrome is only needed for PDF export,
// so a missing browser is an error only when PDF is enabled.
func checkChrome(result *doctorResult, pdfEnabled bool) {
	report := func(msg string) {
		if pdfEnabled {
			result.Errors = append(result.Errors, msg)
		} else {
			result.Warnings = append(result.Warnings, msg+" (needed for --pdf)")
		}
	}

	chromePath := result.Env.BrowserBin
	if chromePath == "" {
		// Use rod's launcher to locate Chrome
		var found bool
		chromePath, found = launcher.LookPath()
		if !found {
			report("Chrome/Chromium not found. Install Chrome or set ROD_BROWSER_BIN")
			return
		}
	}

	if _, err := os.Stat(chromePath); err != nil {
		report(fmt.Sprintf("Chrome not found at %s", chromePath))
		return
	}

	result.Chrome.Found = true
	result.Chrome.Path = chromePath

	out, err := exec.Command(chromePath, "--version").Output() // #nosec G204 -- path from launcher or env
	if err == nil {
		result.Chrome.Version = strings.TrimSpace(string(out))
	} else {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Could not get Chrome version: %v", err))
	}

	// Sandbox status: disabled if ROD_NO_SANDBOX=1
	result.Chrome.Sandbox = result.Env.NoSandbox != "1"
}

// checkEnvironment detects container and CI environments.
func checkEnvironment(result *doctorResult) {
	result.Env.Container, result.Env.ContainerHint = isContainer()

	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"}
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			result.Env.CI = true
			break
		}
	}

	if result.Chrome.Found && (result.Env.Container || result.Env.CI) && result.Env.NoSandbox != "1" {
		result.Warnings = append(result.Warnings,
			"Container/CI detected but ROD_NO_SANDBOX not set. Set ROD_NO_SANDBOX=1")
	}
}

// isContainer detects if running in a container environment.
// Returns (isContainer, hint) where hint indicates which signal was detected.
func isContainer() (bool, string) {
	if os.Getenv("NOTESITE_CONTAINER") == "1" {
		return true, "NOTESITE_CONTAINER=1"
	}
	// Docker
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true, "/.dockerenv"
	}
	// Podman / systemd-nspawn
	if v := os.Getenv("container"); v != "" {
		return true, "container=" + v
	}
	// Kubernetes
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

// checkSystem verifies the temp directory and the output directory (or its
// nearest existing parent) are writable.
func checkSystem(result *doctorResult, output string) {
	tmpDir := os.TempDir()
	if writable(tmpDir) {
		result.System.TempWritable = true
	} else {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Temp directory not writable: %s", tmpDir))
	}

	dir := existingParent(output)
	if writable(dir) {
		result.System.OutputWritable = true
	} else {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Output directory not writable: %s", dir))
	}
}

// writable creates and removes a probe file in dir.
func writable(dir string) bool {
	f, err := os.CreateTemp(dir, ".notesite-doctor-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}

// existingParent returns dir, or the closest ancestor that exists.
func existingParent(dir string) string {
	if dir == "" {
		dir = "."
	}
	dir = filepath.Clean(dir)
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "notesite doctor")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Typst")
	if r.Typst.Found {
		fmt.Fprintf(w, "  [OK] Found at %s\n", r.Typst.Path)
		if r.Typst.Version != "" {
			fmt.Fprintf(w, "  [OK] Version: %s\n", r.Typst.Version)
		}
	} else {
		fmt.Fprintln(w, "  [ERROR] Not found")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Chrome/Chromium")
	if r.Chrome.Found {
		fmt.Fprintf(w, "  [OK] Found at %s\n", r.Chrome.Path)
		if r.Chrome.Version != "" {
			fmt.Fprintf(w, "  [OK] Version: %s\n", r.Chrome.Version)
		}
		if r.Chrome.Sandbox {
			fmt.Fprintln(w, "  [OK] Sandbox: enabled")
		} else {
			fmt.Fprintln(w, "  [OK] Sandbox: disabled (ROD_NO_SANDBOX=1)")
		}
	} else {
		fmt.Fprintln(w, "  [WARN] Not found")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Config")
	if r.Config.Loaded {
		fmt.Fprintf(w, "  [OK] Loaded %s\n", r.Config.Path)
	} else {
		fmt.Fprintln(w, "  [OK] Using defaults")
	}
	fmt.Fprintf(w, "  [OK] Output directory: %s\n", r.Config.Output)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment")
	fmt.Fprintf(w, "  [OK] Platform: %s/%s\n", r.Env.OS, r.Env.Arch)
	if r.Env.Container {
		fmt.Fprintf(w, "  [OK] Container: detected (%s)\n", r.Env.ContainerHint)
	}
	if r.Env.CI {
		fmt.Fprintln(w, "  [OK] CI: detected")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "System")
	if r.System.TempWritable {
		fmt.Fprintln(w, "  [OK] Temp directory: writable")
	} else {
		fmt.Fprintln(w, "  [ERROR] Temp directory: not writable")
	}
	if r.System.OutputWritable {
		fmt.Fprintln(w, "  [OK] Output directory: writable")
	} else {
		fmt.Fprintln(w, "  [ERROR] Output directory: not writable")
	}
	fmt.Fprintln(w)

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  [WARN] %s\n", warn)
		}
		fmt.Fprintln(w)
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, err := range r.Errors {
			fmt.Fprintf(w, "  [ERROR] %s\n", err)
		}
		fmt.Fprintln(w)
	}

	switch r.Status {
	case "ready":
		fmt.Fprintln(w, "Status: Ready to build")
	case "warnings":
		fmt.Fprintln(w, "Status: Ready with warnings")
	case "errors":
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}

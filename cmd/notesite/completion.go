package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	flag "github.com/spf13/pflag"
)

// Shell represents a supported shell for completion generation.
type Shell string

// Supported shells for completion.
const (
	ShellBash       Shell = "bash"
	ShellZsh        Shell = "zsh"
	ShellFish       Shell = "fish"
	ShellPowerShell Shell = "powershell"
)

const programName = "notesite"

// ErrUnsupportedShell is returned when an unknown shell is requested.
var ErrUnsupportedShell = errors.New("unsupported shell")

// flagType represents the completion type for a flag.
type flagType int

const (
	flagString flagType = iota // default
	flagBool
	flagInt
	flagFloat
	flagEnum // has predefined values
	flagFile // file with glob pattern
	flagDir  // directory
)

// flagDef describes a flag for completion purposes.
type flagDef struct {
	Long     string   // --output
	Short    string   // -o (empty if none)
	Type     flagType // completion type
	Desc     string   // help text
	Values   []string // for enum flags
	FileGlob string   // for file flags, comma separated
}

// commandDef describes a command for completion.
type commandDef struct {
	Name     string
	Desc     string
	Flags    []flagDef
	TakesDir bool     // accepts a directory argument
	Args     []string // fixed positional values
}

// completionMeta holds completion-specific metadata for flags.
// Flag names, types, and descriptions come from the FlagSet.
type completionMeta struct {
	Values   []string // enum values
	FileGlob string   // file glob pattern
	IsDir    bool     // directory completion
}

// flagCompletionMeta maps flag names to their completion metadata.
var flagCompletionMeta = map[string]completionMeta{
	// Enum flags
	"page-size":   {Values: []string{"letter", "a4", "legal"}},
	"date-format": {Values: []string{"iso", "european", "us", "long"}},

	// File flags with glob patterns
	"config": {FileGlob: "*.yaml,*.yml"},
	"style":  {FileGlob: "*.css"},

	// Directory flags
	"output":     {IsDir: true},
	"asset-path": {IsDir: true},
	"typst-root": {IsDir: true},
	"font-path":  {IsDir: true},
}

var supportedShells = []string{string(ShellBash), string(ShellZsh), string(ShellFish), string(ShellPowerShell)}

// extractFlagsFromFlagSet extracts flag definitions from a pflag.FlagSet.
// Enriches with completion metadata from flagCompletionMeta.
func extractFlagsFromFlagSet(fs *flag.FlagSet) []flagDef {
	var flags []flagDef

	fs.VisitAll(func(f *flag.Flag) {
		fd := flagDef{
			Long:  f.Name,
			Short: f.Shorthand,
			Desc:  f.Usage,
		}

		switch f.Value.Type() {
		case "bool":
			fd.Type = flagBool
		case "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64":
			fd.Type = flagInt
		case "float32", "float64":
			fd.Type = flagFloat
		default:
			fd.Type = flagString
		}

		if meta, ok := flagCompletionMeta[f.Name]; ok {
			switch {
			case len(meta.Values) > 0:
				fd.Type = flagEnum
				fd.Values = meta.Values
			case meta.FileGlob != "":
				fd.Type = flagFile
				fd.FileGlob = meta.FileGlob
			case meta.IsDir:
				fd.Type = flagDir
			}
		}

		flags = append(flags, fd)
	})

	return flags
}

// getCommands returns the command registry for completion.
// Flags are extracted from the actual FlagSets.
func getCommands() []commandDef {
	buildFS := newFlagSet(cmdBuild, &buildFlags{}, io.Discard)
	serveFS := newFlagSet(cmdServe, &buildFlags{}, io.Discard)
	doctorFS := newDoctorFlagSet(&doctorFlags{}, io.Discard)

	commands := []commandDef{
		{Name: cmdBuild, Desc: "Build a notes directory into a static site", Flags: extractFlagsFromFlagSet(buildFS), TakesDir: true},
		{Name: cmdServe, Desc: "Serve the site and rebuild on change", Flags: extractFlagsFromFlagSet(serveFS), TakesDir: true},
		{Name: cmdDoctor, Desc: "Check typst, Chrome and the environment", Flags: extractFlagsFromFlagSet(doctorFS)},
		{Name: cmdCompletion, Desc: "Generate shell completion script", Args: supportedShells},
		{Name: cmdVersion, Desc: "Show version information"},
		{Name: cmdHelp, Desc: "Show help for a command"},
	}

	// help completes command names
	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = c.Name
	}
	commands[len(commands)-1].Args = names
	return commands
}

// GenerateCompletion writes shell completion script to w.
// Returns error if shell is unsupported or write fails.
func GenerateCompletion(w io.Writer, shell Shell) error {
	var b strings.Builder
	commands := getCommands()

	switch shell {
	case ShellBash:
		generateBash(&b, commands)
	case ShellZsh:
		generateZsh(&b, commands)
	case ShellFish:
		generateFish(&b, commands)
	case ShellPowerShell:
		generatePowerShell(&b, commands)
	default:
		return fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedShell, shell, strings.Join(supportedShells, ", "))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// flagNames returns "--long" and "-s" spellings of f.
func flagNames(f flagDef) []string {
	names := []string{"--" + f.Long}
	if f.Short != "" {
		names = append(names, "-"+f.Short)
	}
	return names
}

// globs splits a comma separated FileGlob.
func globs(f flagDef) []string {
	return strings.Split(f.FileGlob, ",")
}

// takesValue reports whether f consumes the next word.
func takesValue(f flagDef) bool {
	return f.Type != flagBool
}

// ---------------------------------------------------------------------------
// Bash
// ---------------------------------------------------------------------------

func generateBash(b *strings.Builder, commands []commandDef) {
	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = c.Name
	}

	fmt.Fprintf(b, "# bash completion for %s\n", programName)
	fmt.Fprintf(b, "_%s_completions() {\n", programName)
	b.WriteString("    local cur prev cmd\n")
	b.WriteString("    cur=\"${COMP_WORDS[COMP_CWORD]}\"\n")
	b.WriteString("    prev=\"${COMP_WORDS[COMP_CWORD-1]}\"\n")
	b.WriteString("    cmd=\"${COMP_WORDS[1]}\"\n\n")
	b.WriteString("    if [[ ${COMP_CWORD} -eq 1 ]]; then\n")
	fmt.Fprintf(b, "        COMPREPLY=( $(compgen -W %q -- \"${cur}\") )\n", strings.Join(names, " "))
	b.WriteString("        return\n")
	b.WriteString("    fi\n\n")
	b.WriteString("    case \"${cmd}\" in\n")

	for _, c := range commands {
		fmt.Fprintf(b, "        %s)\n", c.Name)

		var valued []flagDef
		var all []string
		for _, f := range c.Flags {
			all = append(all, flagNames(f)...)
			if takesValue(f) {
				valued = append(valued, f)
			}
		}

		if len(valued) > 0 {
			b.WriteString("            case \"${prev}\" in\n")
			for _, f := range valued {
				fmt.Fprintf(b, "                %s)\n", strings.Join(flagNames(f), "|"))
				switch f.Type {
				case flagEnum:
					fmt.Fprintf(b, "                    COMPREPLY=( $(compgen -W %q -- \"${cur}\") )\n", strings.Join(f.Values, " "))
				case flagDir:
					b.WriteString("                    COMPREPLY=( $(compgen -d -- \"${cur}\") )\n")
				case flagFile:
					b.WriteString("                    COMPREPLY=( $(compgen -f -- \"${cur}\") )\n")
				default:
					b.WriteString("                    COMPREPLY=()\n")
				}
				b.WriteString("                    return\n")
				b.WriteString("                    ;;\n")
			}
			b.WriteString("            esac\n")
		}

		switch {
		case len(all) > 0:
			b.WriteString("            if [[ ${cur} == -* ]]; then\n")
			fmt.Fprintf(b, "                COMPREPLY=( $(compgen -W %q -- \"${cur}\") )\n", strings.Join(all, " "))
			if c.TakesDir {
				b.WriteString("            else\n")
				b.WriteString("                COMPREPLY=( $(compgen -d -- \"${cur}\") )\n")
			}
			b.WriteString("            fi\n")
		case len(c.Args) > 0:
			b.WriteString("            if [[ ${COMP_CWORD} -eq 2 ]]; then\n")
			fmt.Fprintf(b, "                COMPREPLY=( $(compgen -W %q -- \"${cur}\") )\n", strings.Join(c.Args, " "))
			b.WriteString("            fi\n")
		}
		b.WriteString("            ;;\n")
	}

	b.WriteString("    esac\n")
	b.WriteString("}\n\n")
	fmt.Fprintf(b, "complete -F _%s_completions %s\n", programName, programName)
}

// ---------------------------------------------------------------------------
// Zsh
// ---------------------------------------------------------------------------

func zshEscape(s string) string {
	r := strings.NewReplacer(`'`, `'\''`, `[`, `\[`, `]`, `\]`, `:`, `\:`)
	return r.Replace(s)
}

// zshAction returns the _arguments action of a valued flag.
func zshAction(f flagDef) string {
	switch f.Type {
	case flagEnum:
		return ":value:(" + strings.Join(f.Values, " ") + ")"
	case flagDir:
		return ":directory:_files -/"
	case flagFile:
		return `:file:_files -g "` + strings.Join(globs(f), " ") + `"`
	case flagBool:
		return ""
	default:
		return ":value:"
	}
}

func zshFlagSpec(f flagDef) string {
	desc := "[" + zshEscape(f.Desc) + "]"
	action := zshAction(f)
	if f.Short == "" {
		return "'--" + f.Long + desc + action + "'"
	}
	return "'(-" + f.Short + " --" + f.Long + ")'{-" + f.Short + ",--" + f.Long + "}'" + desc + action + "'"
}

func generateZsh(b *strings.Builder, commands []commandDef) {
	fmt.Fprintf(b, "#compdef %s\n\n", programName)
	fmt.Fprintf(b, "_%s() {\n", programName)
	b.WriteString("    local -a commands\n")
	b.WriteString("    commands=(\n")
	for _, c := range commands {
		fmt.Fprintf(b, "        '%s:%s'\n", c.Name, zshEscape(c.Desc))
	}
	b.WriteString("    )\n\n")
	b.WriteString("    if (( CURRENT == 2 )); then\n")
	b.WriteString("        _describe 'command' commands\n")
	b.WriteString("        return\n")
	b.WriteString("    fi\n\n")
	b.WriteString("    local cmd=\"${words[2]}\"\n")
	b.WriteString("    shift words\n")
	b.WriteString("    (( CURRENT-- ))\n\n")
	b.WriteString("    case \"${cmd}\" in\n")

	for _, c := range commands {
		fmt.Fprintf(b, "        %s)\n", c.Name)
		switch {
		case len(c.Flags) > 0:
			b.WriteString("            _arguments")
			for _, f := range c.Flags {
				b.WriteString(" \\\n                " + zshFlagSpec(f))
			}
			if c.TakesDir {
				b.WriteString(" \\\n                '1:directory:_files -/'")
			}
			b.WriteString("\n")
		case len(c.Args) > 0:
			fmt.Fprintf(b, "            _values 'argument' %s\n", strings.Join(c.Args, " "))
		}
		b.WriteString("            ;;\n")
	}

	b.WriteString("    esac\n")
	b.WriteString("}\n\n")
	fmt.Fprintf(b, "compdef _%s %s\n", programName, programName)
}

// ---------------------------------------------------------------------------
// Fish
// ---------------------------------------------------------------------------

func fishEscape(s string) string {
	return strings.ReplaceAll(s, `'`, `\'`)
}

func generateFish(b *strings.Builder, commands []commandDef) {
	needs := "__fish_" + programName + "_needs_command"
	using := "__fish_" + programName + "_using_command"

	fmt.Fprintf(b, "# fish completion for %s\n\n", programName)
	fmt.Fprintf(b, "function %s\n", needs)
	b.WriteString("    set -l cmd (commandline -opc)\n")
	b.WriteString("    test (count $cmd) -eq 1\n")
	b.WriteString("end\n\n")
	fmt.Fprintf(b, "function %s\n", using)
	b.WriteString("    set -l cmd (commandline -opc)\n")
	b.WriteString("    test (count $cmd) -gt 1; and test $cmd[2] = $argv[1]\n")
	b.WriteString("end\n\n")
	fmt.Fprintf(b, "complete -c %s -f\n\n", programName)

	for _, c := range commands {
		fmt.Fprintf(b, "complete -c %s -n %s -a %s -d '%s'\n", programName, needs, c.Name, fishEscape(c.Desc))
	}
	b.WriteString("\n")

	for _, c := range commands {
		cond := fmt.Sprintf("'%s %s'", using, c.Name)
		if c.TakesDir {
			fmt.Fprintf(b, "complete -c %s -n %s -a '(__fish_complete_directories)'\n", programName, cond)
		}
		if len(c.Args) > 0 {
			fmt.Fprintf(b, "complete -c %s -n %s -a '%s'\n", programName, cond, strings.Join(c.Args, " "))
		}
		for _, f := range c.Flags {
			fmt.Fprintf(b, "complete -c %s -n %s", programName, cond)
			if f.Short != "" {
				fmt.Fprintf(b, " -s %s", f.Short)
			}
			fmt.Fprintf(b, " -l %s", f.Long)
			switch f.Type {
			case flagEnum:
				fmt.Fprintf(b, " -x -a '%s'", strings.Join(f.Values, " "))
			case flagDir:
				b.WriteString(" -x -a '(__fish_complete_directories)'")
			case flagFile:
				b.WriteString(" -r -F")
			case flagBool:
			default:
				b.WriteString(" -x")
			}
			fmt.Fprintf(b, " -d '%s'\n", fishEscape(f.Desc))
		}
	}
}

// ---------------------------------------------------------------------------
// PowerShell
// ---------------------------------------------------------------------------

func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func psArray(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = psQuote(s)
	}
	return "@(" + strings.Join(quoted, ", ") + ")"
}

func generatePowerShell(b *strings.Builder, commands []commandDef) {
	values := make(map[string][]string)

	fmt.Fprintf(b, "# powershell completion for %s\n", programName)
	fmt.Fprintf(b, "Register-ArgumentCompleter -Native -CommandName %s -ScriptBlock {\n", programName)
	b.WriteString("    param($wordToComplete, $commandAst, $cursorPosition)\n\n")
	b.WriteString("    $elements = @($commandAst.CommandElements | ForEach-Object { $_.ToString() })\n\n")

	b.WriteString("    $commands = [ordered]@{\n")
	for _, c := range commands {
		fmt.Fprintf(b, "        %s = %s\n", psQuote(c.Name), psQuote(c.Desc))
	}
	b.WriteString("    }\n\n")

	b.WriteString("    $flags = @{\n")
	for _, c := range commands {
		var names []string
		for _, f := range c.Flags {
			names = append(names, flagNames(f)...)
			if f.Type == flagEnum {
				for _, n := range flagNames(f) {
					values[n] = f.Values
				}
			}
		}
		names = append(names, c.Args...)
		fmt.Fprintf(b, "        %s = %s\n", psQuote(c.Name), psArray(names))
	}
	b.WriteString("    }\n\n")

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteString("    $values = @{\n")
	for _, k := range keys {
		fmt.Fprintf(b, "        %s = %s\n", psQuote(k), psArray(values[k]))
	}
	b.WriteString("    }\n\n")

	b.WriteString("    if ($elements.Count -lt 2 -or ($elements.Count -eq 2 -and $wordToComplete -ne '')) {\n")
	b.WriteString("        $commands.GetEnumerator() | Where-Object { $_.Key -like \"$wordToComplete*\" } | ForEach-Object {\n")
	b.WriteString("            [System.Management.Automation.CompletionResult]::new($_.Key, $_.Key, 'ParameterValue', $_.Value)\n")
	b.WriteString("        }\n")
	b.WriteString("        return\n")
	b.WriteString("    }\n\n")
	b.WriteString("    $cmd = $elements[1]\n")
	b.WriteString("    $prev = if ($wordToComplete -eq '') { $elements[-1] } else { $elements[-2] }\n")
	b.WriteString("    if ($values.ContainsKey($prev)) {\n")
	b.WriteString("        $values[$prev] | Where-Object { $_ -like \"$wordToComplete*\" } | ForEach-Object {\n")
	b.WriteString("            [System.Management.Automation.CompletionResult]::new($_, $_, 'ParameterValue', $_)\n")
	b.WriteString("        }\n")
	b.WriteString("        return\n")
	b.WriteString("    }\n")
	b.WriteString("    if ($flags.ContainsKey($cmd)) {\n")
	b.WriteString("        $flags[$cmd] | Where-Object { $_ -like \"$wordToComplete*\" } | ForEach-Object {\n")
	b.WriteString("            [System.Management.Automation.CompletionResult]::new($_, $_, 'ParameterName', $_)\n")
	b.WriteString("        }\n")
	b.WriteString("    }\n")
	b.WriteString("}\n")
}

// runCompletion handles the completion command.
func runCompletion(args []string, env *Environment) error {
	if len(args) == 0 {
		printCompletionUsage(env.Stdout)
		return nil
	}

	return GenerateCompletion(env.Stdout, Shell(args[0]))
}

// printCompletionUsage prints help for the completion command.
func printCompletionUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: notesite completion <shell>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Generate shell completion script for the specified shell.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Supported shells:")
	fmt.Fprintln(w, "  bash        Bash completion script")
	fmt.Fprintln(w, "  zsh         Zsh completion script")
	fmt.Fprintln(w, "  fish        Fish completion script")
	fmt.Fprintln(w, "  powershell  PowerShell completion script")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Installation:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Bash:")
	fmt.Fprintln(w, "    # Add to ~/.bashrc:")
	fmt.Fprintln(w, "    eval \"$(notesite completion bash)\"")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Zsh:")
	fmt.Fprintln(w, "    # Add to ~/.zshrc (after compinit):")
	fmt.Fprintln(w, "    eval \"$(notesite completion zsh)\"")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Fish:")
	fmt.Fprintln(w, "    notesite completion fish > ~/.config/fish/completions/notesite.fish")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  PowerShell:")
	fmt.Fprintln(w, "    # Add to $PROFILE:")
	fmt.Fprintln(w, "    notesite completion powershell | Out-String | Invoke-Expression")
}

// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/logmine/internal/errors"
)

// completionCommand describes one subcommand for the completion scripts.
type completionCommand struct {
	name  string
	desc  string
	flags []string
	// values completes the first positional argument.
	values []string
}

var globalCompletionFlags = []string{"--version", "--config", "--env-file", "--json", "--quiet", "--no-color", "--debug"}

var mineCompletionFlags = []string{"--language", "--framework", "--source", "--seed", "--metrics-addr", "--show", "--templates", "--jsonl"}

var completionCommands = []completionCommand{
	{name: "init", desc: "Create .logmine/project.yaml and the project database",
		flags: []string{"--force", "--yes", "--project-id", "--language", "--framework", "--db"}},
	{name: "mine", desc: "Mine a local checkout or git URL",
		flags: mineCompletionFlags},
	{name: "sample", desc: "Sample and mine a GitHub repository",
		flags: append(append([]string{}, mineCompletionFlags...), "--file-count")},
	{name: "add", desc: "Queue repositories for mining",
		flags: []string{"--language", "--framework", "--languages", "--fetch-info"}},
	{name: "run", desc: "Drain the repository queue",
		flags: []string{"--metrics-addr", "--seed", "--fresh"}},
	{name: "status", desc: "Show queue and template counts",
		flags: []string{"--json"}},
	{name: "templates", desc: "List stored templates of a repository",
		flags: []string{"--limit", "--jsonl"}},
	{name: "query", desc: "Run a read-only SQL query",
		flags: []string{"--limit", "--timeout"}},
	{name: "completion", desc: "Generate shell completion scripts",
		values: []string{"bash", "zsh", "fish"}},
}

func completionCommandNames() string {
	names := make([]string, len(completionCommands))
	for i, c := range completionCommands {
		names[i] = c.name
	}
	return strings.Join(names, " ")
}

func writeBashCompletion(w io.Writer) {
	var b strings.Builder
	b.WriteString(`# Bash completion for logmine
#   source <(logmine completion bash)

_logmine_completion() {
    local cur="${COMP_WORDS[COMP_CWORD]}"
`)
	fmt.Fprintf(&b, "    local commands=%q\n\n", completionCommandNames())
	fmt.Fprintf(&b, `    if [ $COMP_CWORD -eq 1 ]; then
        if [[ ${cur} == -* ]]; then
            COMPREPLY=( $(compgen -W %q -- "${cur}") )
        else
            COMPREPLY=( $(compgen -W "${commands}" -- "${cur}") )
        fi
        return 0
    fi

    case "${COMP_WORDS[1]}" in
`, strings.Join(globalCompletionFlags, " "))
	for _, c := range completionCommands {
		fmt.Fprintf(&b, "        %s)\n", c.name)
		if len(c.flags) > 0 {
			fmt.Fprintf(&b, "            [[ ${cur} == -* ]] && COMPREPLY=( $(compgen -W %q -- \"${cur}\") )\n", strings.Join(c.flags, " "))
		}
		if len(c.values) > 0 {
			fmt.Fprintf(&b, "            [ $COMP_CWORD -eq 2 ] && COMPREPLY=( $(compgen -W %q -- \"${cur}\") )\n", strings.Join(c.values, " "))
		}
		b.WriteString("            ;;\n")
	}
	b.WriteString(`    esac
}

complete -o default -F _logmine_completion logmine
`)
	_, _ = io.WriteString(w, b.String())
}

func writeZshCompletion(w io.Writer) {
	var b strings.Builder
	b.WriteString(`#compdef logmine
# Zsh completion for logmine
#   logmine completion zsh > "${fpath[1]}/_logmine"

_logmine() {
    local -a commands
    commands=(
`)
	for _, c := range completionCommands {
		fmt.Fprintf(&b, "        '%s:%s'\n", c.name, c.desc)
	}
	b.WriteString(`    )

    if (( CURRENT == 2 )); then
        _describe 'command' commands
        return
    fi

    case "${words[2]}" in
`)
	for _, c := range completionCommands {
		fmt.Fprintf(&b, "        %s)\n", c.name)
		if len(c.flags) > 0 {
			fmt.Fprintf(&b, "            compadd -- %s\n", strings.Join(c.flags, " "))
		}
		if len(c.values) > 0 {
			fmt.Fprintf(&b, "            (( CURRENT == 3 )) && compadd -- %s\n", strings.Join(c.values, " "))
		}
		b.WriteString("            ;;\n")
	}
	b.WriteString(`    esac
}

_logmine "$@"
`)
	_, _ = io.WriteString(w, b.String())
}

func writeFishCompletion(w io.Writer) {
	var b strings.Builder
	b.WriteString("# Fish completion for logmine\n#   logmine completion fish | source\n\n")
	b.WriteString("complete -c logmine -f\n")
	for _, f := range globalCompletionFlags {
		fmt.Fprintf(&b, "complete -c logmine -n __fish_use_subcommand -l %s\n", strings.TrimPrefix(f, "--"))
	}
	for _, c := range completionCommands {
		fmt.Fprintf(&b, "complete -c logmine -n __fish_use_subcommand -a %s -d '%s'\n", c.name, c.desc)
		for _, f := range c.flags {
			fmt.Fprintf(&b, "complete -c logmine -n '__fish_seen_subcommand_from %s' -l %s\n", c.name, strings.TrimPrefix(f, "--"))
		}
		if len(c.values) > 0 {
			fmt.Fprintf(&b, "complete -c logmine -n '__fish_seen_subcommand_from %s' -a '%s'\n", c.name, strings.Join(c.values, " "))
		}
	}
	_, _ = io.WriteString(w, b.String())
}

var completionWriters = map[string]func(io.Writer){
	"bash": writeBashCompletion,
	"zsh":  writeZshCompletion,
	"fish": writeFishCompletion,
}

// runCompletion prints the completion script for one shell.
func runCompletion(args []string) {
	fs := flag.NewFlagSet("completion", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: logmine completion <bash|zsh|fish>

Bash:
  source <(logmine completion bash)
  echo 'source <(logmine completion bash)' >> ~/.bashrc

Zsh:
  logmine completion zsh > "${fpath[1]}/_logmine"

Fish:
  logmine completion fish > ~/.config/fish/completions/logmine.fish
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		errors.FatalError(errors.NewInputError(
			"Invalid arguments",
			"The completion command requires exactly one argument: the shell name",
			"Run 'logmine completion bash', 'logmine completion zsh', or 'logmine completion fish'",
		), false)
	}

	write, ok := completionWriters[fs.Arg(0)]
	if !ok {
		errors.FatalError(errors.NewInputError(
			"Unsupported shell",
			fmt.Sprintf("Shell '%s' is not supported. Valid options: bash, zsh, fish", fs.Arg(0)),
			"Run 'logmine completion bash', 'logmine completion zsh', or 'logmine completion fish'",
		), false)
	}
	write(os.Stdout)
}

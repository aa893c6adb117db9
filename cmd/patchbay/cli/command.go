// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command is one node of the patchbay command tree. A node either
// dispatches to Subcommands, runs its own Run, or both: with both set,
// a first argument that is not a subcommand name (a flag, or nothing)
// goes to Run.
type Command struct {
	// Name is the word typed to select the command ("profile", "apply").
	Name string

	// Summary is the one-line text shown in the parent's command list.
	Summary string

	// Description is the longer text at the top of the command's own
	// help. Summary is used when it is empty.
	Description string

	// Usage overrides the synthesized usage line, for example
	// "patchbay pair <source> <destination> [flags]".
	Usage string

	Examples []Example

	// Flags builds a fresh flag set for each parse, usually with
	// [FlagsFromParams] over a params struct that Run closes over.
	// Nil means the command takes no flags.
	Flags func() *pflag.FlagSet

	Subcommands []*Command

	// Run receives the positional arguments left after flag parsing.
	Run func(ctx context.Context, args []string, logger *slog.Logger) error

	// HelpOutput receives help text. Unset nodes inherit it from their
	// parent; the root defaults to stderr.
	HelpOutput io.Writer

	// parent is recorded during dispatch for help paths.
	parent *Command
}

// Example is one sample invocation in a command's help.
type Example struct {
	Description string
	Command     string
}

// Execute resolves args against the tree rooted at c and runs the
// selected command. Unknown commands and flags become Validation
// errors carrying a "did you mean" suggestion when one is close.
func (c *Command) Execute(ctx context.Context, args []string, logger *slog.Logger) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.PrintHelp(c.helpOutput())
		return nil
	}

	if len(c.Subcommands) > 0 && len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		if sub := c.subcommand(args[0]); sub != nil {
			sub.parent = c
			return sub.Execute(ctx, args[1:], logger)
		}
		return c.unknownCommand(args[0])
	}

	if c.Run == nil {
		c.PrintHelp(c.helpOutput())
		if len(c.Subcommands) == 0 {
			return fmt.Errorf("%s has nothing to run", c.fullName())
		}
		if len(args) == 0 {
			return Validation("subcommand required")
		}
		return Validation("subcommand required (got flag %q)", args[0])
	}

	positional, err := c.parseFlags(args)
	if err != nil {
		return err
	}
	return c.Run(ctx, positional, logger)
}

func (c *Command) subcommand(name string) *Command {
	for _, sub := range c.Subcommands {
		if sub.Name == name {
			return sub
		}
	}
	return nil
}

func (c *Command) unknownCommand(name string) error {
	if suggestion := suggestCommand(name, c.Subcommands); suggestion != "" {
		return Validation("unknown command %q (did you mean %q?)%s", name, suggestion, c.helpPointer())
	}
	return Validation("unknown command %q%s", name, c.helpPointer())
}

// parseFlags applies c.Flags to args and returns the positional rest.
// pflag's own error output is discarded in favor of the returned
// error.
func (c *Command) parseFlags(args []string) ([]string, error) {
	if c.Flags == nil {
		return args, nil
	}
	flagSet := c.Flags()
	flagSet.SetOutput(io.Discard)
	if err := flagSet.Parse(args); err != nil {
		message := err.Error()
		if strings.Contains(message, "unknown") {
			if suggestion := suggestFlag(args, flagSet); suggestion != "" {
				return nil, Validation("%s (did you mean %s?)%s", message, suggestion, c.helpPointer())
			}
		}
		return nil, Validation("%s%s", message, c.helpPointer())
	}
	return flagSet.Args(), nil
}

func (c *Command) helpPointer() string {
	return fmt.Sprintf("\n\nRun '%s --help' for usage.", c.fullName())
}

// PrintHelp writes the command's help: description, usage, the
// subcommand list, flags and examples, in that order.
func (c *Command) PrintHelp(w io.Writer) {
	switch {
	case c.Description != "":
		fmt.Fprintf(w, "%s\n\n", c.Description)
	case c.Summary != "":
		fmt.Fprintf(w, "%s\n\n", c.Summary)
	}
	fmt.Fprintf(w, "Usage:\n  %s\n", c.usage())

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nCommands:\n")
		table := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, sub := range c.Subcommands {
			fmt.Fprintf(table, "  %s\t%s\n", sub.Name, sub.Summary)
		}
		table.Flush()
	}

	if c.Flags != nil {
		var defaults strings.Builder
		flagSet := c.Flags()
		flagSet.SetOutput(&defaults)
		flagSet.PrintDefaults()
		if defaults.Len() > 0 {
			fmt.Fprintf(w, "\nFlags:\n%s", defaults.String())
		}
	}

	if len(c.Examples) > 0 {
		fmt.Fprintf(w, "\nExamples:\n")
		for i, example := range c.Examples {
			if i > 0 {
				fmt.Fprintln(w)
			}
			if example.Description != "" {
				fmt.Fprintf(w, "  # %s\n", example.Description)
			}
			fmt.Fprintf(w, "  %s\n", example.Command)
		}
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nRun '%s <command> --help' for details on a command.\n", c.fullName())
	}
}

func (c *Command) usage() string {
	switch {
	case c.Usage != "":
		return c.Usage
	case len(c.Subcommands) > 0:
		return c.fullName() + " <command> [flags]"
	default:
		return c.fullName() + " [flags]"
	}
}

func (c *Command) helpOutput() io.Writer {
	for command := c; command != nil; command = command.parent {
		if command.HelpOutput != nil {
			return command.HelpOutput
		}
	}
	return os.Stderr
}

// fullName is the space-separated path from the root, e.g.
// "patchbay profile apply".
func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

func isHelpFlag(arg string) bool {
	switch arg {
	case "-h", "--help", "help":
		return true
	}
	return false
}

// ExactArgs returns a Validation error unless there is exactly one
// argument per entry of names. names label the arguments in the
// message.
func ExactArgs(args []string, names ...string) error {
	switch {
	case len(args) > len(names):
		return Validation("unexpected argument: %s", args[len(names)])
	case len(args) < len(names):
		return Validation("missing argument <%s>", names[len(args)])
	}
	return nil
}

// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/rdx-project/patchbay/cmd/patchbay/cli"
	"github.com/rdx-project/patchbay/lib/patchbay"
	"github.com/rdx-project/patchbay/lib/protect"
)

func (o Options) protectCommand() *cli.Command {
	return &cli.Command{
		Name:    "protect",
		Summary: "Manage protected client pairs",
		Description: `A protected client pair ("source→destination") is left alone by
disconnect-all, emergency and switch-input, and can only be unpaired
with confirmation. Protection is stored on disk and survives restarts.`,
		Subcommands: []*cli.Command{
			o.protectChangeCommand("add", "Protect a client pair", true),
			o.protectChangeCommand("remove", "Stop protecting a client pair", false),
			o.protectListCommand(),
		},
	}
}

func (o Options) protectChangeCommand(name, summary string, add bool) *cli.Command {
	var params viewParams
	return &cli.Command{
		Name:    name,
		Summary: summary,
		Usage:   fmt.Sprintf("patchbay protect %s <source> <destination> [flags]", name),
		Examples: []cli.Example{
			{Command: fmt.Sprintf("patchbay protect %s stereo_tool liquidsoap", name)},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams(name, &params) },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.ExactArgs(args, "source", "destination"); err != nil {
				return err
			}
			a, err := o.open(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer a.close()

			key, err := submit[protect.Key](ctx, a, patchbay.ProtectRequest{
				Source:      args[0],
				Destination: args[1],
				Protect:     add,
			})
			if err != nil {
				return commandError(err)
			}
			if done, err := params.EmitJSON(a.out, map[string]any{"pair": key, "protected": add}); done {
				return err
			}
			if add {
				fmt.Fprintf(a.out, "protected %s\n", key)
			} else {
				fmt.Fprintf(a.out, "unprotected %s\n", key)
			}
			return nil
		},
	}
}

func (o Options) protectListCommand() *cli.Command {
	var params viewParams
	return &cli.Command{
		Name:    "list",
		Summary: "List protected client pairs",
		Usage:   "patchbay protect list [flags]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("list", &params) },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.ExactArgs(args); err != nil {
				return err
			}
			a, err := o.open(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			keys := a.protection.List()
			if done, err := params.EmitJSON(a.out, keys); done {
				return err
			}
			s := newStyles(a.out)
			if len(keys) == 0 {
				fmt.Fprintln(a.out, s.dim.Render("no protected pairs"))
			}
			for _, key := range keys {
				fmt.Fprintln(a.out, s.protected.Render(string(key)))
			}
			return nil
		},
	}
}

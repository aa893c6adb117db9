// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/rdx-project/patchbay/cmd/patchbay/cli"
	"github.com/rdx-project/patchbay/lib/version"
)

func (o Options) versionCommand() *cli.Command {
	var params cli.JSONOutput
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Usage:   "patchbay version [flags]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("version", &params) },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.ExactArgs(args); err != nil {
				return err
			}
			out := o.stdout()
			if done, err := params.EmitJSON(out, map[string]string{
				"version": version.Short(),
				"commit":  version.Commit(),
			}); done {
				return err
			}
			fmt.Fprintln(out, version.Full())
			return nil
		},
	}
}

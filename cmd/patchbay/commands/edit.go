// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/rdx-project/patchbay/cmd/patchbay/cli"
	"github.com/rdx-project/patchbay/lib/patch"
	"github.com/rdx-project/patchbay/lib/patchbay"
)

func (o Options) connectCommand() *cli.Command {
	var params viewParams
	return &cli.Command{
		Name:    "connect",
		Summary: "Connect two ports",
		Description: `Connect two ports by qualified name ("client:port"). The ports may be
given in either order. Connecting an existing edge succeeds.`,
		Usage: "patchbay connect <port> <port> [flags]",
		Examples: []cli.Example{
			{Command: "patchbay connect rivendell_0:playout_0L stereo_tool:in_1"},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("connect", &params) },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.ExactArgs(args, "port", "port"); err != nil {
				return err
			}
			a, err := o.open(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer a.close()

			_, err = submit[any](ctx, a, patchbay.ConnectRequest{Source: args[0], Destination: args[1]})
			if err != nil {
				return commandError(err)
			}
			if done, err := params.EmitJSON(a.out, map[string]string{"connected": args[0] + " -> " + args[1]}); done {
				return err
			}
			fmt.Fprintf(a.out, "connected %s -> %s\n", args[0], args[1])
			return nil
		},
	}
}

func (o Options) disconnectCommand() *cli.Command {
	var params viewParams
	return &cli.Command{
		Name:    "disconnect",
		Summary: "Disconnect two ports",
		Description: `Remove the edge between two ports, given in either order. Removing an
edge that does not exist succeeds.`,
		Usage: "patchbay disconnect <port> <port> [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("disconnect", &params) },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.ExactArgs(args, "port", "port"); err != nil {
				return err
			}
			a, err := o.open(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer a.close()

			_, err = submit[any](ctx, a, patchbay.DisconnectRequest{Source: args[0], Destination: args[1]})
			if err != nil {
				return commandError(err)
			}
			if done, err := params.EmitJSON(a.out, map[string]string{"disconnected": args[0] + " -> " + args[1]}); done {
				return err
			}
			fmt.Fprintf(a.out, "disconnected %s -> %s\n", args[0], args[1])
			return nil
		},
	}
}

// emitPair writes a stereo result, whether or not the operation
// succeeded, and returns the categorized error.
func emitPair(a *app, output cli.JSONOutput, verb string, result patch.PairResult, err error) error {
	if done, writeErr := output.EmitJSON(a.out, result); done {
		if writeErr != nil {
			return writeErr
		}
		return commandError(err)
	}
	renderPair(a.out, newStyles(a.out), verb, result)
	return commandError(err)
}

func (o Options) pairCommand() *cli.Command {
	var params struct {
		viewParams
		Protect bool `flag:"protect,p" desc:"protect the client pair from sweeps"`
	}
	return &cli.Command{
		Name:    "pair",
		Summary: "Connect two clients' stereo pairs",
		Description: `Connect the left and right outputs of <source> to the left and right
inputs of <destination>. The left leg is attempted first; the right
leg is attempted even when the left one fails, and the result shows
each leg.

With --protect the client pair is added to the protected set, so
disconnect-all, emergency and switch-input leave it alone.`,
		Usage: "patchbay pair <source> <destination> [flags]",
		Examples: []cli.Example{
			{Description: "Feed the processor from the playout system", Command: "patchbay pair rivendell_0 stereo_tool"},
			{Description: "Protect the on-air chain", Command: "patchbay pair stereo_tool liquidsoap --protect"},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("pair", &params) },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.ExactArgs(args, "source", "destination"); err != nil {
				return err
			}
			a, err := o.open(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := submit[patch.PairResult](ctx, a, patchbay.StereoPairRequest{
				Source:      args[0],
				Destination: args[1],
				Protect:     params.Protect,
			})
			return emitPair(a, params.JSONOutput, "paired", result, err)
		},
	}
}

func (o Options) unpairCommand() *cli.Command {
	var params struct {
		viewParams
		Yes bool `flag:"yes,y" desc:"confirm unpairing a protected pair"`
	}
	return &cli.Command{
		Name:    "unpair",
		Summary: "Disconnect two clients' stereo pairs",
		Description: `Remove the left and right edges between <source> and <destination>.
A protected pair is only unpaired with --yes, and stays protected.`,
		Usage: "patchbay unpair <source> <destination> [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("unpair", &params) },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.ExactArgs(args, "source", "destination"); err != nil {
				return err
			}
			a, err := o.open(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := submit[patch.PairResult](ctx, a, patchbay.UnpairRequest{
				Source:      args[0],
				Destination: args[1],
				Confirmed:   params.Yes,
			})
			if err != nil && patchbay.Classify(err) == patchbay.FailureConfirmation {
				return cli.Validation("%w", err).WithHint("run again with --yes to unpair it")
			}
			return emitPair(a, params.JSONOutput, "unpaired", result, err)
		},
	}
}

func (o Options) monoCommand() *cli.Command {
	var params viewParams
	return &cli.Command{
		Name:    "mono",
		Summary: "Feed one output port to both stereo inputs of a client",
		Description: `Connect a single output port (a microphone, a mono feed) to both the
left and right inputs of <destination>.`,
		Usage: "patchbay mono <port> <destination> [flags]",
		Examples: []cli.Example{
			{Command: "patchbay mono system:capture_1 stereo_tool"},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("mono", &params) },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.ExactArgs(args, "port", "destination"); err != nil {
				return err
			}
			a, err := o.open(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := submit[patch.PairResult](ctx, a, patchbay.MonoToBothRequest{Source: args[0], Destination: args[1]})
			return emitPair(a, params.JSONOutput, "connected", result, err)
		},
	}
}

// emitSweep writes a sweep report and fails when any edge could not be
// removed.
func emitSweep(a *app, output cli.JSONOutput, report patch.SweepReport, err error) error {
	if err != nil {
		return commandError(err)
	}
	if done, writeErr := output.EmitJSON(a.out, report); done {
		if writeErr != nil {
			return writeErr
		}
	} else {
		renderSweep(a.out, newStyles(a.out), report)
	}
	if len(report.Failed) > 0 {
		return &cli.ExitError{Code: 1}
	}
	return nil
}

func (o Options) disconnectAllCommand() *cli.Command {
	var params viewParams
	return &cli.Command{
		Name:    "disconnect-all",
		Summary: "Remove every unprotected connection of a client",
		Description: `Remove every edge with an end on <client>, except edges inside a
protected client pair.`,
		Usage: "patchbay disconnect-all <client> [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("disconnect-all", &params) },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.ExactArgs(args, "client"); err != nil {
				return err
			}
			a, err := o.open(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := submit[patch.SweepReport](ctx, a, patchbay.DisconnectAllRequest{Client: args[0]})
			return emitSweep(a, params.JSONOutput, report, err)
		},
	}
}

func (o Options) emergencyCommand() *cli.Command {
	var params struct {
		viewParams
		Yes bool `flag:"yes,y" desc:"confirm the emergency disconnect"`
	}
	return &cli.Command{
		Name:    "emergency",
		Summary: "Remove every unprotected connection in the graph",
		Description: `Disconnect everything except protected client pairs. Requires --yes.
Use this to silence a feed quickly while keeping the protected on-air
chain intact.`,
		Usage: "patchbay emergency --yes [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("emergency", &params) },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.ExactArgs(args); err != nil {
				return err
			}
			if !params.Yes {
				return cli.Validation("emergency disconnect needs confirmation").
					WithHint("run again with --yes to remove every unprotected connection")
			}
			a, err := o.open(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := submit[patch.SweepReport](ctx, a, patchbay.EmergencyDisconnectRequest{Confirmed: true})
			return emitSweep(a, params.JSONOutput, report, err)
		},
	}
}

func (o Options) switchInputCommand() *cli.Command {
	var params viewParams
	return &cli.Command{
		Name:    "switch-input",
		Summary: "Replace whatever feeds a client's stereo inputs",
		Description: `Disconnect every unprotected source from <target>'s stereo inputs,
then pair <source> into them. Legs already fed by <source> are kept.`,
		Usage: "patchbay switch-input <source> <target> [flags]",
		Examples: []cli.Example{
			{Description: "Put the desktop media player on air", Command: "patchbay switch-input vlc rivendell_0"},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("switch-input", &params) },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.ExactArgs(args, "source", "target"); err != nil {
				return err
			}
			a, err := o.open(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := submit[patch.SwitchReport](ctx, a, patchbay.SwitchInputRequest{Source: args[0], Target: args[1]})
			if done, writeErr := params.EmitJSON(a.out, report); done {
				if writeErr != nil {
					return writeErr
				}
				return commandError(err)
			}
			renderSwitch(a.out, newStyles(a.out), report)
			return commandError(err)
		},
	}
}

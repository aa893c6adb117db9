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
	"github.com/rdx-project/patchbay/lib/profile"
)

func (o Options) profileCommand() *cli.Command {
	return &cli.Command{
		Name:    "profile",
		Summary: "Save, inspect and apply connection profiles",
		Description: `A profile is a named list of connections captured from the live graph.
Applying a profile connects each of its pairs whose ports exist; it
never disconnects anything, so applying the same profile twice is
harmless.`,
		Subcommands: []*cli.Command{
			o.profileSaveCommand(),
			o.profileApplyCommand(),
			o.profileListCommand(),
			o.profileShowCommand(),
			o.profileDeleteCommand(),
			o.profileRenameCommand(),
			o.profileSuggestCommand(),
		},
	}
}

func (o Options) profileSaveCommand() *cli.Command {
	var params viewParams
	return &cli.Command{
		Name:    "save",
		Summary: "Capture every current connection as a profile",
		Usage:   "patchbay profile save <name> [flags]",
		Examples: []cli.Example{
			{Command: `patchbay profile save "Morning Show"`},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("save", &params) },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.ExactArgs(args, "name"); err != nil {
				return err
			}
			a, err := o.open(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer a.close()

			saved, err := submit[profile.Profile](ctx, a, patchbay.SaveProfileRequest{Profile: args[0]})
			if err != nil {
				return commandError(err)
			}
			if done, err := params.EmitJSON(a.out, profileSummaryOf(saved)); done {
				return err
			}
			fmt.Fprintf(a.out, "saved %q: %d connections (%s)\n", saved.Name, len(saved.Pairs), shortFingerprint(saved))
			return nil
		},
	}
}

func (o Options) profileApplyCommand() *cli.Command {
	var params viewParams
	return &cli.Command{
		Name:    "apply",
		Summary: "Connect every available pair of a profile",
		Description: `Connect each pair of the profile whose ports are present. Pairs naming
a missing port are skipped. Exits 1 when any available pair failed to
connect.`,
		Usage: "patchbay profile apply <name> [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("apply", &params) },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.ExactArgs(args, "name"); err != nil {
				return err
			}
			a, err := o.open(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := submit[profile.ApplyReport](ctx, a, patchbay.ApplyProfileRequest{Profile: args[0]})
			if err != nil {
				return commandError(err)
			}
			if done, err := params.EmitJSON(a.out, report); done {
				if err != nil {
					return err
				}
			} else {
				renderApply(a.out, newStyles(a.out), report)
			}
			if len(report.Failed) > 0 {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

// profileSummary is the JSON form of a profile in listings.
type profileSummary struct {
	Name        string `json:"name"`
	Pairs       int    `json:"pairs"`
	Fingerprint string `json:"fingerprint"`

	// Live is set when the profile's pair set equals the current graph.
	Live bool `json:"live"`
}

func profileSummaryOf(p profile.Profile) profileSummary {
	return profileSummary{Name: p.Name, Pairs: len(p.Pairs), Fingerprint: p.Fingerprint()}
}

func shortFingerprint(p profile.Profile) string {
	fingerprint := p.Fingerprint()
	if len(fingerprint) > 12 {
		return fingerprint[:12]
	}
	return fingerprint
}

func (o Options) profileListCommand() *cli.Command {
	var params viewParams
	return &cli.Command{
		Name:    "list",
		Summary: "List stored profiles",
		Description: `List stored profiles with their connection counts. When the JACK
server is reachable, the profile matching the live graph exactly is
marked.`,
		Usage: "patchbay profile list [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("list", &params) },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.ExactArgs(args); err != nil {
				return err
			}
			a, err := o.open(params.GlobalParams, logger)
			if err != nil {
				return err
			}

			live := ""
			if snapshot, err := a.core.Refresh(ctx); err == nil {
				live = profile.Fingerprint(profile.PairsOf(snapshot))
			} else {
				logger.Debug("graph unavailable for live comparison", "error", err)
			}

			summaries := make([]profileSummary, 0)
			for _, name := range a.profiles.List() {
				stored, _ := a.profiles.Get(name)
				summary := profileSummaryOf(stored)
				summary.Live = live != "" && summary.Fingerprint == live
				summaries = append(summaries, summary)
			}

			if done, err := params.EmitJSON(a.out, summaries); done {
				return err
			}
			s := newStyles(a.out)
			if len(summaries) == 0 {
				fmt.Fprintln(a.out, s.dim.Render("no profiles"))
			}
			for _, summary := range summaries {
				line := fmt.Sprintf("%-24s %3d connections", summary.Name, summary.Pairs)
				if summary.Live {
					line += " " + s.good.Render("(live)")
				}
				fmt.Fprintln(a.out, line)
			}
			return nil
		},
	}
}

// profileDetail is the JSON form of "patchbay profile show".
type profileDetail struct {
	profileSummary
	Comparison *profile.Comparison `json:"comparison,omitempty"`
	Pairs      []profile.Pair      `json:"connections"`
}

func (o Options) profileShowCommand() *cli.Command {
	var params viewParams
	return &cli.Command{
		Name:    "show",
		Summary: "Show a profile and compare it with the live graph",
		Usage:   "patchbay profile show <name> [flags]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("show", &params) },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.ExactArgs(args, "name"); err != nil {
				return err
			}
			a, err := o.open(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			stored, ok := a.profiles.Get(args[0])
			if !ok {
				return commandError(fmt.Errorf("%w: %q", profile.ErrNotFound, args[0]))
			}

			detail := profileDetail{profileSummary: profileSummaryOf(stored), Pairs: stored.Pairs}
			if snapshot, err := a.core.Refresh(ctx); err == nil {
				comparison := stored.Compare(snapshot)
				detail.Comparison = &comparison
				detail.Live = detail.Fingerprint == profile.Fingerprint(profile.PairsOf(snapshot))
			}

			if done, err := params.EmitJSON(a.out, detail); done {
				return err
			}
			s := newStyles(a.out)
			fmt.Fprintf(a.out, "%s %s\n", s.heading.Render(stored.Name), s.dim.Render(shortFingerprint(stored)))
			if detail.Comparison == nil {
				renderPairs(a.out, s, "connections", stored.Pairs)
				return nil
			}
			renderPairs(a.out, s, s.good.Render("connected"), detail.Comparison.Present)
			renderPairs(a.out, s, s.protected.Render("missing"), detail.Comparison.Missing)
			renderPairs(a.out, s, s.dim.Render("unavailable"), detail.Comparison.Unavailable)
			return nil
		},
	}
}

func (o Options) profileDeleteCommand() *cli.Command {
	var params cli.GlobalParams
	return &cli.Command{
		Name:    "delete",
		Summary: "Delete a stored profile",
		Usage:   "patchbay profile delete <name> [flags]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("delete", &params) },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.ExactArgs(args, "name"); err != nil {
				return err
			}
			a, err := o.open(params, logger)
			if err != nil {
				return err
			}
			if err := a.profiles.Delete(args[0]); err != nil {
				return commandError(err)
			}
			fmt.Fprintf(a.out, "deleted %q\n", args[0])
			return nil
		},
	}
}

func (o Options) profileRenameCommand() *cli.Command {
	var params cli.GlobalParams
	return &cli.Command{
		Name:    "rename",
		Summary: "Rename a stored profile",
		Usage:   "patchbay profile rename <from> <to> [flags]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("rename", &params) },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.ExactArgs(args, "from", "to"); err != nil {
				return err
			}
			a, err := o.open(params, logger)
			if err != nil {
				return err
			}
			if err := a.profiles.Rename(args[0], args[1]); err != nil {
				return commandError(err)
			}
			fmt.Fprintf(a.out, "renamed %q to %q\n", args[0], args[1])
			return nil
		},
	}
}

func (o Options) profileSuggestCommand() *cli.Command {
	var params struct {
		viewParams
		Save  string `flag:"save" desc:"store the suggestion under this name"`
		Apply bool   `flag:"apply" desc:"store the suggestion and apply it (name defaults to Suggested)"`
	}
	return &cli.Command{
		Name:    "suggest",
		Summary: "Suggest a broadcast chain from the clients present",
		Description: `Build a profile from the recognized clients: player to processor,
processor to encoder and to hardware playback. Without a processor
the player feeds the encoder and playback directly.`,
		Usage: "patchbay profile suggest [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("suggest", &params) },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.ExactArgs(args); err != nil {
				return err
			}
			a, err := o.open(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			defer a.close()

			snapshot, err := a.snapshot(ctx)
			if err != nil {
				return err
			}
			suggested := profile.GenerateSuggested(snapshot, a.config.Matchers())
			if params.Save != "" {
				suggested.Name = params.Save
			}

			if len(suggested.Pairs) == 0 {
				return cli.NotFound("no recognized clients to suggest a chain from").
					WithHint("check 'patchbay status' for the roles patchbay recognizes")
			}

			if params.Save == "" && !params.Apply {
				if done, err := params.EmitJSON(a.out, suggested); done {
					return err
				}
				renderPairs(a.out, newStyles(a.out), "suggested", suggested.Pairs)
				return nil
			}

			if err := a.profiles.Put(suggested); err != nil {
				return commandError(err)
			}
			if !params.Apply {
				if done, err := params.EmitJSON(a.out, profileSummaryOf(suggested)); done {
					return err
				}
				fmt.Fprintf(a.out, "saved %q: %d connections\n", suggested.Name, len(suggested.Pairs))
				return nil
			}

			report, err := submit[profile.ApplyReport](ctx, a, patchbay.ApplyProfileRequest{Profile: suggested.Name})
			if err != nil {
				return commandError(err)
			}
			if done, err := params.EmitJSON(a.out, report); done {
				return err
			}
			renderApply(a.out, newStyles(a.out), report)
			if len(report.Failed) > 0 {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/rdx-project/patchbay/cmd/patchbay/cli"
	"github.com/rdx-project/patchbay/lib/watcher"
)

func (o Options) watchCommand() *cli.Command {
	var params struct {
		viewParams
		Once          bool   `flag:"once" desc:"run a single reconciliation tick and print its report"`
		MetricsListen string `flag:"metrics-listen" desc:"serve Prometheus metrics on this address (overrides metrics.listen)"`
	}
	return &cli.Command{
		Name:    "watch",
		Summary: "Keep the player's inputs fed automatically",
		Description: `Run the reconciliation loop. Every interval the graph is scanned and,
for each rule, a free source (hardware capture first, then a desktop
media player) is paired into the destination's stereo inputs when
nothing feeds them. Existing connections are never replaced.

The loop runs until interrupted. The toggle written by "patchbay watch
enable" and "patchbay watch disable" is re-read before every tick;
SIGHUP re-reads it at once.`,
		Usage: "patchbay watch [enable | disable | status] [flags]",
		Examples: []cli.Example{
			{Description: "Run under systemd with metrics", Command: "patchbay watch --metrics-listen 127.0.0.1:9477"},
			{Description: "Preview one tick", Command: "patchbay watch --once --json"},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("watch", &params) },
		Subcommands: []*cli.Command{
			o.watchToggleCommand("enable", "Turn automatic reconnection on", true),
			o.watchToggleCommand("disable", "Turn automatic reconnection off", false),
			o.watchStatusCommand(),
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.ExactArgs(args); err != nil {
				return err
			}
			a, err := o.open(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			w := a.watcher()

			if params.Once {
				report := w.Tick(ctx)
				if done, err := params.EmitJSON(a.out, report); done {
					return err
				}
				renderTick(a.out, newStyles(a.out), report)
				return nil
			}

			listen := params.MetricsListen
			if listen == "" {
				listen = a.config.Metrics.Listen
			}

			group, groupContext := errgroup.WithContext(ctx)
			group.Go(func() error {
				w.Run(groupContext)
				return nil
			})
			group.Go(func() error {
				reloadOnHangup(groupContext, w, logger)
				return nil
			})
			if listen != "" {
				group.Go(func() error {
					return a.metrics.Serve(groupContext, listen, logger)
				})
			}
			if err := group.Wait(); err != nil {
				return cli.Internal("%w", err)
			}
			return nil
		},
	}
}

// reloadOnHangup re-reads the watcher toggle on every SIGHUP until ctx
// is done.
func reloadOnHangup(ctx context.Context, w *watcher.Watcher, logger *slog.Logger) {
	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, unix.SIGHUP)
	defer signal.Stop(hangup)

	for {
		select {
		case <-hangup:
			if err := w.Reload(); err != nil {
				logger.Warn("watcher settings not reloaded", "error", err)
				continue
			}
			logger.Info("watcher settings reloaded", "enabled", w.Enabled())
		case <-ctx.Done():
			return
		}
	}
}

// watchStatus is the JSON form of "patchbay watch status".
type watchStatus struct {
	Enabled  bool           `json:"enabled"`
	Interval string         `json:"interval"`
	Rules    []watcher.Rule `json:"rules"`
}

func (o Options) watchToggleCommand(name, summary string, enabled bool) *cli.Command {
	var params viewParams
	return &cli.Command{
		Name:    name,
		Summary: summary,
		Description: summary + `. The setting is stored on disk; a running
"patchbay watch" picks it up before its next tick.`,
		Usage: fmt.Sprintf("patchbay watch %s [flags]", name),
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams(name, &params) },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.ExactArgs(args); err != nil {
				return err
			}
			a, err := o.open(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			if err := a.watcher().SetEnabled(enabled); err != nil {
				return commandError(err)
			}
			if done, err := params.EmitJSON(a.out, map[string]bool{"enabled": enabled}); done {
				return err
			}
			if enabled {
				fmt.Fprintln(a.out, "auto-reconnect enabled")
			} else {
				fmt.Fprintln(a.out, "auto-reconnect disabled")
			}
			return nil
		},
	}
}

func (o Options) watchStatusCommand() *cli.Command {
	var params viewParams
	return &cli.Command{
		Name:    "status",
		Summary: "Show the reconnection toggle and rules",
		Usage:   "patchbay watch status [flags]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("status", &params) },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.ExactArgs(args); err != nil {
				return err
			}
			a, err := o.open(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			w := a.watcher()
			status := watchStatus{Enabled: w.Enabled(), Interval: w.Interval().String(), Rules: w.Rules()}
			if done, err := params.EmitJSON(a.out, status); done {
				return err
			}

			s := newStyles(a.out)
			state := s.dim.Render("disabled")
			if status.Enabled {
				state = s.good.Render("enabled")
			}
			fmt.Fprintf(a.out, "auto-reconnect: %s (every %s)\n", state, status.Interval)
			for _, rule := range status.Rules {
				fmt.Fprintf(a.out, "  %s: %v -> %s\n", rule.Name, rule.Sources, rule.Destination)
			}
			return nil
		},
	}
}

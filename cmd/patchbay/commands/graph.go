// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"

	"github.com/rdx-project/patchbay/cmd/patchbay/cli"
	"github.com/rdx-project/patchbay/lib/jack"
	"github.com/rdx-project/patchbay/lib/protect"
	"github.com/rdx-project/patchbay/lib/roles"
	"github.com/rdx-project/patchbay/lib/stereo"
)

type viewParams struct {
	cli.GlobalParams
	cli.JSONOutput
}

// statusView is the JSON form of "patchbay status".
type statusView struct {
	Reachable   bool                    `json:"reachable"`
	Error       string                  `json:"error,omitempty"`
	Clients     int                     `json:"clients"`
	Connections int                     `json:"connections"`
	Dropped     int                     `json:"dropped"`
	Protected   []protect.Key           `json:"protected"`
	Profiles    []string                `json:"profiles"`
	Watcher     bool                    `json:"watcher_enabled"`
	Roles       map[string][]roles.Role `json:"roles,omitempty"`
}

func (o Options) statusCommand() *cli.Command {
	var params viewParams
	return &cli.Command{
		Name:    "status",
		Summary: "Show whether the JACK server is up and summarize the graph",
		Description: `Scan the JACK server and summarize the graph: client and connection
counts, the role each recognized client plays, protected pairs, stored
profiles and whether automatic input reconnection is enabled.

Exits 1 when the server is not reachable.`,
		Usage: "patchbay status [flags]",
		Examples: []cli.Example{
			{Description: "Check the server from a script", Command: "patchbay status --json"},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("status", &params) },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.ExactArgs(args); err != nil {
				return err
			}
			a, err := o.open(params.GlobalParams, logger)
			if err != nil {
				return err
			}

			view := statusView{
				Protected: a.protection.List(),
				Profiles:  a.profiles.List(),
				Watcher:   a.watcher().Enabled(),
			}
			snapshot, scanErr := a.core.Refresh(ctx)
			if scanErr == nil {
				matchers := a.config.Matchers()
				view.Reachable = true
				view.Clients = len(snapshot.Clients)
				view.Connections = len(snapshot.Connections)
				view.Dropped = len(snapshot.Dropped)
				view.Roles = make(map[string][]roles.Role)
				for _, name := range snapshot.ClientNames() {
					if clientRoles := matchers.RolesOf(name); len(clientRoles) > 0 {
						view.Roles[name] = clientRoles
					}
				}
			} else {
				view.Error = scanErr.Error()
			}

			if done, err := params.EmitJSON(a.out, view); done {
				if err == nil && !view.Reachable {
					return &cli.ExitError{Code: 1}
				}
				return err
			}

			s := newStyles(a.out)
			if !view.Reachable {
				fmt.Fprintf(a.out, "JACK server: %s\n", s.bad.Render("not reachable"))
				fmt.Fprintf(a.out, "  %v\n", scanErr)
				return &cli.ExitError{Code: 1}
			}
			fmt.Fprintf(a.out, "JACK server: %s\n", s.good.Render("running"))
			fmt.Fprintf(a.out, "clients: %d  connections: %d", view.Clients, view.Connections)
			if view.Dropped > 0 {
				fmt.Fprintf(a.out, "  %s", s.dim.Render(fmt.Sprintf("(ignored %d inconsistent)", view.Dropped)))
			}
			fmt.Fprintln(a.out)
			for _, name := range snapshot.ClientNames() {
				if clientRoles, ok := view.Roles[name]; ok {
					fmt.Fprintf(a.out, "  %-24s %s\n", name, s.dim.Render(joinRoles(clientRoles)))
				}
			}
			watcherState := s.dim.Render("disabled")
			if view.Watcher {
				watcherState = s.good.Render("enabled")
			}
			fmt.Fprintf(a.out, "auto-reconnect: %s\n", watcherState)
			fmt.Fprintf(a.out, "protected pairs: %d  profiles: %d\n", len(view.Protected), len(view.Profiles))
			return nil
		},
	}
}

func joinRoles(clientRoles []roles.Role) string {
	names := make([]string, len(clientRoles))
	for i, role := range clientRoles {
		names[i] = string(role)
	}
	return strings.Join(names, ", ")
}

// clientView is the JSON form of one client in "patchbay ports".
type clientView struct {
	jack.ClientPortSet
	Roles     []roles.Role `json:"roles,omitempty"`
	StereoOut []jack.Port  `json:"stereo_outputs,omitempty"`
	StereoIn  []jack.Port  `json:"stereo_inputs,omitempty"`
}

func (o Options) portsCommand() *cli.Command {
	var params viewParams
	return &cli.Command{
		Name:    "ports",
		Summary: "List clients and their ports",
		Description: `List every JACK client with its output and input ports. The ports
patchbay would use for a stereo connection are marked L and R.`,
		Usage: "patchbay ports [client...] [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("ports", &params) },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			a, err := o.open(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			snapshot, err := a.snapshot(ctx)
			if err != nil {
				return err
			}

			names := snapshot.ClientNames()
			if len(args) > 0 {
				for _, name := range args {
					if _, ok := snapshot.Client(name); !ok {
						return cli.NotFound("unknown client %q", name)
					}
				}
				names = args
			}

			matchers := a.config.Matchers()
			views := make([]clientView, 0, len(names))
			for _, name := range names {
				set := snapshot.Clients[name]
				view := clientView{ClientPortSet: set, Roles: matchers.RolesOf(name)}
				if picked := stereo.PickFor(set, jack.Output); stereo.Capable(picked) {
					view.StereoOut = picked
				}
				if picked := stereo.PickFor(set, jack.Input); stereo.Capable(picked) {
					view.StereoIn = picked
				}
				views = append(views, view)
			}

			if done, err := params.EmitJSON(a.out, views); done {
				return err
			}

			s := newStyles(a.out)
			for _, view := range views {
				header := s.heading.Render(view.Client)
				if len(view.Roles) > 0 {
					header += " " + s.dim.Render("["+joinRoles(view.Roles)+"]")
				}
				fmt.Fprintln(a.out, header)
				renderPortList(a.out, s, "out", view.Outputs, view.StereoOut)
				renderPortList(a.out, s, "in ", view.Inputs, view.StereoIn)
			}
			return nil
		},
	}
}

func renderPortList(w io.Writer, s styles, label string, ports, pair []jack.Port) {
	for _, port := range ports {
		marker := "  "
		if len(pair) == 2 && port == pair[0] {
			marker = s.good.Render("L ")
		} else if len(pair) == 2 && port == pair[1] {
			marker = s.good.Render("R ")
		}
		fmt.Fprintf(w, "  %s %s%s\n", s.dim.Render(label), marker, port.Name)
	}
}

func (o Options) connectionsCommand() *cli.Command {
	var params viewParams
	return &cli.Command{
		Name:    "connections",
		Summary: "List every connection",
		Description: `List every edge in the graph as "output -> input". Edges inside a
protected client pair are marked. Pairs from the server's listing that
could not be matched to known ports are shown as ignored.`,
		Usage: "patchbay connections [client] [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("connections", &params) },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 1 {
				return cli.Validation("unexpected argument: %s", args[1])
			}
			a, err := o.open(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			snapshot, err := a.snapshot(ctx)
			if err != nil {
				return err
			}
			connections := snapshot.Connections
			if len(args) == 1 {
				if _, ok := snapshot.Client(args[0]); !ok {
					return cli.NotFound("unknown client %q", args[0])
				}
				connections = snapshot.ConnectionsOf(args[0])
			}

			if done, err := params.EmitJSON(a.out, connections); done {
				return err
			}
			filtered := *snapshot
			filtered.Connections = connections
			if len(args) == 1 {
				filtered.Dropped = nil
			}
			renderConnections(a.out, newStyles(a.out), &filtered, a.protection)
			return nil
		},
	}
}

func (o Options) matrixCommand() *cli.Command {
	var params viewParams
	return &cli.Command{
		Name:    "matrix",
		Summary: "Show client-to-client connection counts",
		Description: `Show a matrix of edge counts between clients. Rows are clients with
output ports and columns are clients with input ports.`,
		Usage: "patchbay matrix [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("matrix", &params) },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.ExactArgs(args); err != nil {
				return err
			}
			a, err := o.open(params.GlobalParams, logger)
			if err != nil {
				return err
			}
			snapshot, err := a.snapshot(ctx)
			if err != nil {
				return err
			}
			matrix := jack.Matrix(snapshot)
			if done, err := params.EmitJSON(a.out, matrix); done {
				return err
			}
			renderMatrix(a.out, newStyles(a.out), matrix)
			return nil
		},
	}
}

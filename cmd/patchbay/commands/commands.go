// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands assembles the patchbay command tree. Each command
// loads configuration, builds the stack it needs (registry, stores,
// controller, core) and routes graph changes through the core's
// request queue.
package commands

import "github.com/rdx-project/patchbay/cmd/patchbay/cli"

// Root returns the top-level "patchbay" command.
func Root(options Options) *cli.Command {
	return &cli.Command{
		Name:    "patchbay",
		Summary: "JACK connection manager for radio automation",
		Description: `patchbay manages the JACK audio graph of a radio station: stereo
pairing between clients, protected on-air chains, profiles that
restore a known routing, and a watcher that keeps the playout
system's inputs fed.

Every command accepts --config, --verbose and, where it prints data,
--json.`,
		Subcommands: []*cli.Command{
			options.statusCommand(),
			options.portsCommand(),
			options.connectionsCommand(),
			options.matrixCommand(),
			options.connectCommand(),
			options.disconnectCommand(),
			options.pairCommand(),
			options.unpairCommand(),
			options.monoCommand(),
			options.disconnectAllCommand(),
			options.emergencyCommand(),
			options.switchInputCommand(),
			options.protectCommand(),
			options.profileCommand(),
			options.watchCommand(),
			options.versionCommand(),
		},
	}
}

// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the patchbay
// CLI.
//
// The central type is [Command], a named subcommand with optional
// nested [Command.Subcommands], a params struct whose tagged fields
// become flags (see [BindFlags]), and a Run function. Commands are
// assembled into a tree in cmd/patchbay/commands and dispatched via
// [Command.Execute], which handles flag parsing, subcommand routing
// and help output with examples.
//
// When a user types an unknown subcommand or flag, the framework
// computes Levenshtein edit distance against all known names and
// suggests the closest match (threshold: distance <= 3).
//
// Commands report failures as categorized [ToolError] values and
// handled non-zero exits as [ExitError].
package cli

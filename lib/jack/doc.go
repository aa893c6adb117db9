// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

// Package jack models the JACK audio server's port graph and reads it
// through the standard JACK command-line tools.
//
// The package has three layers:
//
//   - Value types: [Port], [ClientPortSet], [Connection] and
//     [GraphSnapshot]. A snapshot is built once per scan and never
//     mutated afterwards; callers that want newer state scan again.
//   - Parsers: [ParsePortListing] and [ParseConnectionListing] turn the
//     text printed by "jack_lsp -p" and "jack_lsp -c" into ports and raw
//     connection pairs. [BuildSnapshot] joins the two, orienting every
//     edge from an output to an input and dropping any pair whose
//     endpoints are unknown or misdirected. Parsing is indentation
//     agnostic: any leading whitespace marks a continuation line.
//   - Tools: the [Tools] interface is the boundary to the external
//     server. [CommandTools] implements it by running the JACK binaries
//     with a timeout on every call. [Registry] combines a Tools value
//     with the parsers to produce snapshots.
//
// Errors from the tools are classified so callers can tell the
// operator what to do: [ErrServerDown] (start the server),
// [ErrTimeout] (retry), or a [*ToolError] carrying the tool's stderr
// for a rejected mutation.
package jack

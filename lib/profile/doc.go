// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

// Package profile stores named sets of literal port-to-port connections
// and replays them.
//
// A profile captured today may be applied tomorrow against a different
// set of running clients, so replay never fails on a missing port: it
// skips the pair and reports it in the [ApplyReport]. [GenerateSuggested]
// builds a proposed broadcast chain from the role table without
// touching the graph; callers show it to the operator before saving or
// applying it.
package profile

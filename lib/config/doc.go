// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for patchbay.
//
// Configuration comes from a single file named by the --config flag
// (via [LoadFile]) or the PATCHBAY_CONFIG environment variable (via
// [Load]). When neither is set, [Load] returns [Default]. There is no
// file discovery and no environment variable overrides individual
// values.
//
// Values in the file are merged over the defaults, so a file only
// needs the keys it changes. Path fields are expanded after loading:
// ${HOME}, ${PATCHBAY_STATE} (the resolved paths.state) and
// ${VAR:-default} patterns.
//
// Key exports:
//
//   - [Config] -- paths, tools, timeouts, watcher, roles, metrics
//   - [Default] -- a Config for the stock JACK tools
//   - [Load] and [LoadFile] -- the two entry points for loading
package config

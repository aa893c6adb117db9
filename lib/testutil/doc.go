// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides helpers shared by patchbay tests that
// coordinate goroutines: bounded channel receives, close waits and
// condition polling. Each helper fails the test instead of hanging it.
package testutil

// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint error path used before the
// structured logger exists.
package process

import (
	"fmt"
	"os"
)

// Fatal writes "patchbay: err" to stderr and exits with code 1.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "patchbay: %v\n", err)
	os.Exit(1)
}

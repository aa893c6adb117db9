// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package jack

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrTimeout means an external tool did not finish within its
	// deadline. The server's control socket stalls under load; the
	// operation may succeed if retried.
	ErrTimeout = errors.New("jack: timed out")

	// ErrServerDown means the server could not be reached: the query
	// tool exited non-zero, refused the connection, or is not
	// installed.
	ErrServerDown = errors.New("jack: server not running")
)

// ToolError describes a failed invocation of an external JACK tool.
// Stderr is kept for diagnostics only; its wording differs across JACK
// versions and is never parsed.
type ToolError struct {
	Command string
	Args    []string

	// ExitCode is the process exit status, or -1 when the process did
	// not exit normally (not found, killed on timeout).
	ExitCode int
	Stderr   string

	// Timeout is the deadline that applied to the call. Set only when
	// Err is ErrTimeout.
	Timeout time.Duration

	Err error
}

func (e *ToolError) Error() string {
	invocation := strings.TrimSpace(e.Command + " " + strings.Join(e.Args, " "))
	if errors.Is(e.Err, ErrTimeout) {
		return fmt.Sprintf("%s: timed out after %v", invocation, e.Timeout)
	}
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %v (stderr: %s)", invocation, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", invocation, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

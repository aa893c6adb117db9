// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package jack

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Tools is the boundary to the external JACK server. Every method is a
// blocking call that returns once the underlying operation finishes or
// its deadline passes. Port arguments are qualified "client:name"
// strings.
type Tools interface {
	// Status returns nil when the server is reachable.
	Status(ctx context.Context) error

	// ListPorts returns the port listing with per-port properties
	// (the text printed by "jack_lsp -p").
	ListPorts(ctx context.Context) (string, error)

	// ListConnections returns the connection listing (the text printed
	// by "jack_lsp -c").
	ListConnections(ctx context.Context) (string, error)

	// Connect asks the server to connect source to destination.
	Connect(ctx context.Context, source, destination string) error

	// Disconnect asks the server to remove the edge source→destination.
	Disconnect(ctx context.Context, source, destination string) error
}

// Default deadlines for external calls. Listing and status calls are
// short because they sit on UI refresh and watcher paths; mutations get
// longer because the server serializes them behind its process cycle.
const (
	DefaultListTimeout   = 500 * time.Millisecond
	DefaultMutateTimeout = 2 * time.Second
)

// waitDelay bounds how long a killed tool may keep its output pipes
// open (a shell wrapper's children can outlive it).
const waitDelay = 100 * time.Millisecond

// CommandTools implements Tools by running the JACK command-line
// utilities. Each command is an argv slice so wrappers (for example
// "pw-jack jack_lsp") can be configured without a shell.
type CommandTools struct {
	StatusCommand      []string
	PortsCommand       []string
	ConnectionsCommand []string
	ConnectCommand     []string
	DisconnectCommand  []string

	ListTimeout   time.Duration
	MutateTimeout time.Duration

	// Environment entries ("KEY=value") appended to the inherited
	// environment, e.g. JACK_DEFAULT_SERVER for a named server.
	Environment []string
}

// NewCommandTools returns CommandTools configured for the stock JACK
// utilities and the default deadlines.
func NewCommandTools() *CommandTools {
	return &CommandTools{
		StatusCommand:      []string{"jack_lsp"},
		PortsCommand:       []string{"jack_lsp", "-p"},
		ConnectionsCommand: []string{"jack_lsp", "-c"},
		ConnectCommand:     []string{"jack_connect"},
		DisconnectCommand:  []string{"jack_disconnect"},
		ListTimeout:        DefaultListTimeout,
		MutateTimeout:      DefaultMutateTimeout,
	}
}

func (t *CommandTools) Status(ctx context.Context) error {
	_, err := t.run(ctx, t.listTimeout(), t.StatusCommand)
	return err
}

func (t *CommandTools) ListPorts(ctx context.Context) (string, error) {
	return t.run(ctx, t.listTimeout(), t.PortsCommand)
}

func (t *CommandTools) ListConnections(ctx context.Context) (string, error) {
	return t.run(ctx, t.listTimeout(), t.ConnectionsCommand)
}

func (t *CommandTools) Connect(ctx context.Context, source, destination string) error {
	_, err := t.run(ctx, t.mutateTimeout(), t.ConnectCommand, source, destination)
	return err
}

func (t *CommandTools) Disconnect(ctx context.Context, source, destination string) error {
	_, err := t.run(ctx, t.mutateTimeout(), t.DisconnectCommand, source, destination)
	return err
}

func (t *CommandTools) listTimeout() time.Duration {
	if t.ListTimeout > 0 {
		return t.ListTimeout
	}
	return DefaultListTimeout
}

func (t *CommandTools) mutateTimeout() time.Duration {
	if t.MutateTimeout > 0 {
		return t.MutateTimeout
	}
	return DefaultMutateTimeout
}

// run executes argv plus extra arguments under timeout and returns
// stdout. Stderr is captured separately and attached to the returned
// *ToolError. Cancellation of the parent context is returned as the
// context's own error; expiry of the per-call deadline becomes a
// ToolError wrapping ErrTimeout.
func (t *CommandTools) run(ctx context.Context, timeout time.Duration, argv []string, extra ...string) (string, error) {
	if len(argv) == 0 {
		return "", &ToolError{ExitCode: -1, Err: errors.New("no command configured")}
	}
	args := append(append([]string(nil), argv[1:]...), extra...)

	callContext, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(callContext, argv[0], args...)
	command.Stdout = &stdout
	command.Stderr = &stderr
	command.WaitDelay = waitDelay
	if len(t.Environment) > 0 {
		command.Env = append(os.Environ(), t.Environment...)
	}

	err := command.Run()
	if err == nil {
		return stdout.String(), nil
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return "", ctx.Err()
	}
	if errors.Is(callContext.Err(), context.DeadlineExceeded) {
		return "", &ToolError{
			Command:  argv[0],
			Args:     args,
			ExitCode: -1,
			Stderr:   strings.TrimSpace(stderr.String()),
			Timeout:  timeout,
			Err:      ErrTimeout,
		}
	}

	exitCode := -1
	var exitError *exec.ExitError
	if errors.As(err, &exitError) {
		exitCode = exitError.ExitCode()
	}
	return "", &ToolError{
		Command:  argv[0],
		Args:     args,
		ExitCode: exitCode,
		Stderr:   strings.TrimSpace(stderr.String()),
		Err:      err,
	}
}

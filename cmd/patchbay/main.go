// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

// patchbay manages the JACK connection graph of a radio station from
// the command line. Run "patchbay --help" for the command list.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"

	"github.com/rdx-project/patchbay/cmd/patchbay/cli"
	"github.com/rdx-project/patchbay/cmd/patchbay/commands"
	"github.com/rdx-project/patchbay/lib/process"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own report (profile apply, status)
		// return an ExitError with the desired code. Don't print a
		// redundant error line for those.
		// Match ExitError itself: a wrapped *exec.ExitError from a JACK
		// tool also has an ExitCode method.
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		process.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	logger, level := cli.NewCommandLogger()
	return commands.Root(commands.Options{Level: level}).Execute(ctx, os.Args[1:], logger)
}

// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/rdx-project/patchbay/cmd/patchbay/cli"
	"github.com/rdx-project/patchbay/lib/clock"
	"github.com/rdx-project/patchbay/lib/config"
	"github.com/rdx-project/patchbay/lib/jack"
	"github.com/rdx-project/patchbay/lib/metrics"
	"github.com/rdx-project/patchbay/lib/patch"
	"github.com/rdx-project/patchbay/lib/patchbay"
	"github.com/rdx-project/patchbay/lib/profile"
	"github.com/rdx-project/patchbay/lib/protect"
	"github.com/rdx-project/patchbay/lib/watcher"
)

// Options configures the command tree. The zero value selects the
// production behavior: stdout, exec-backed JACK tools, the wall clock.
type Options struct {
	// Stdout receives command output. Default: os.Stdout.
	Stdout io.Writer

	// Level is lowered to Debug for --verbose. May be nil.
	Level *slog.LevelVar

	// Tools replaces the configured JACK utilities.
	Tools jack.Tools

	Clock clock.Clock
}

func (o Options) stdout() io.Writer {
	if o.Stdout != nil {
		return o.Stdout
	}
	return os.Stdout
}

// app is the wired stack one command invocation works against.
type app struct {
	config     *config.Config
	metrics    *metrics.Metrics
	registry   *jack.Registry
	protection *protect.Store
	profiles   *profile.Store
	controller *patch.Controller
	core       *patchbay.Core
	clock      clock.Clock
	logger     *slog.Logger
	out        io.Writer

	serveOnce sync.Once
	cancel    context.CancelFunc
}

// open loads configuration and builds the stack. State directories
// are created on demand.
func (o Options) open(global cli.GlobalParams, logger *slog.Logger) (*app, error) {
	if global.Verbose && o.Level != nil {
		o.Level.Set(slog.LevelDebug)
	}

	var cfg *config.Config
	var err error
	if global.ConfigPath != "" {
		cfg, err = config.LoadFile(global.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, cli.Validation("%w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, cli.Validation("invalid configuration:\n%w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, cli.Internal("%w", err)
	}

	clk := o.Clock
	if clk == nil {
		clk = clock.Real()
	}
	var tools jack.Tools = cfg.CommandTools()
	if o.Tools != nil {
		tools = o.Tools
	}

	a := &app{
		config:  cfg,
		metrics: metrics.New(),
		clock:   clk,
		logger:  logger,
		out:     o.stdout(),
	}
	a.registry = jack.NewRegistry(tools, clk, logger)
	a.protection = protect.Open(cfg.Paths.Protected, logger)
	a.profiles = profile.Open(cfg.Paths.Profiles, logger)
	a.controller = patch.New(patch.Config{
		Registry:   a.registry,
		Protection: a.protection,
		Metrics:    a.metrics,
		Clock:      clk,
		Logger:     logger,
	})
	a.core = patchbay.New(patchbay.Config{
		Controller: a.controller,
		Protection: a.protection,
		Profiles:   a.profiles,
		Matchers:   cfg.Matchers(),
		Logger:     logger,
	})
	return a, nil
}

// watcher builds the reconciliation watcher over the app's
// controller. Its snapshots feed the core.
func (a *app) watcher() *watcher.Watcher {
	return watcher.New(watcher.Config{
		Controller:   a.controller,
		Matchers:     a.config.Matchers(),
		Rules:        a.config.Rules(),
		Interval:     a.config.Watcher.Interval,
		SettingsPath: a.config.Paths.WatcherSettings,
		Enabled:      a.config.Watcher.Enabled,
		Observe:      a.core.Publish,
		Clock:        a.clock,
		Metrics:      a.metrics,
		Logger:       a.logger,
	})
}

// submit runs one request through the core's queue and returns the
// typed result. The first call starts the core's request loop under
// ctx; close stops it.
func submit[T any](ctx context.Context, a *app, request patchbay.Request) (T, error) {
	a.serveOnce.Do(func() {
		serveContext, cancel := context.WithCancel(ctx)
		a.cancel = cancel
		go a.core.Serve(serveContext)
	})

	result, err := a.core.Submit(ctx, request)
	typed, _ := result.(T)
	return typed, err
}

// close stops the request loop, if it was started, and waits for it.
func (a *app) close() {
	if a.cancel == nil {
		return
	}
	a.cancel()
	<-a.core.Stopped()
}

// snapshot scans the graph through the core.
func (a *app) snapshot(ctx context.Context) (*jack.GraphSnapshot, error) {
	snapshot, err := a.core.Refresh(ctx)
	if err != nil {
		return nil, commandError(err)
	}
	return snapshot, nil
}

// commandError categorizes a core error and attaches the operator
// advice for its class. Errors that are already categorized pass
// through.
func commandError(err error) error {
	if err == nil {
		return nil
	}
	var toolErr *cli.ToolError
	if errors.As(err, &toolErr) {
		return err
	}

	var categorized *cli.ToolError
	switch patchbay.Classify(err) {
	case patchbay.FailureServerDown, patchbay.FailureTimeout:
		categorized = cli.Transient("%w", err)
	case patchbay.FailureConfirmation:
		categorized = cli.Validation("%w", err)
	case patchbay.FailureRejected:
		switch {
		case errors.Is(err, patch.ErrUnknownPort), errors.Is(err, patch.ErrUnknownClient), errors.Is(err, profile.ErrNotFound):
			categorized = cli.NotFound("%w", err)
		case errors.Is(err, profile.ErrExists):
			categorized = cli.Conflict("%w", err)
		default:
			categorized = cli.Validation("%w", err)
		}
	case patchbay.FailureStorage:
		categorized = cli.Internal("%w", err)
	default:
		categorized = cli.Internal("%w", err)
	}
	return categorized.WithHint(patchbay.Describe(err))
}

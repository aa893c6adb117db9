// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

// Package watcher periodically enforces a small set of "should be
// connected" rules without fighting the operator.
//
// Each tick scans the graph, resolves every [Rule] to a source and a
// destination client by role, and connects the destination's first two
// inputs only when both are empty. "First two" means the pair the
// stereo engine picks from the destination's inputs, which for ordinary
// port names are its first two input ports. A destination input that
// already has any source, from any client, makes the tick skip that
// rule. The watcher never disconnects anything. Scan failures skip the
// tick quietly and connect failures are logged; the next tick retries.
//
// The enabled toggle is persisted to a small JSON settings file. Each
// tick re-reads it, so a change written by another process takes
// effect before the next tick. A tick already in flight runs to
// completion so a pair is never left half connected by the toggle.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rdx-project/patchbay/lib/clock"
	"github.com/rdx-project/patchbay/lib/jack"
	"github.com/rdx-project/patchbay/lib/metrics"
	"github.com/rdx-project/patchbay/lib/patch"
	"github.com/rdx-project/patchbay/lib/roles"
)

// DefaultInterval is the tick period when Config.Interval is zero.
const DefaultInterval = 2 * time.Second

// State is the watcher's position in its cycle.
type State int

const (
	Disabled State = iota
	Idle
	Probing
	Applying
)

func (s State) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case Idle:
		return "idle"
	case Probing:
		return "scanning"
	case Applying:
		return "applying"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Tick outcomes, also used as the metrics label.
const (
	OutcomeDisabled    = "disabled"
	OutcomeScanFailed  = "scan_failed"
	OutcomeNoop        = "noop"
	OutcomeApplied     = "applied"
	OutcomeFailed      = "failed"
)

// Action is what a tick did for one rule.
type Action string

const (
	ActionNoDestination Action = "no_destination"
	ActionNoSource      Action = "no_source"
	ActionOccupied      Action = "occupied"
	ActionConnected     Action = "connected"
	ActionFailed        Action = "failed"
)

// RuleOutcome reports one rule's evaluation within a tick.
type RuleOutcome struct {
	Rule        string             `json:"rule"`
	Action      Action             `json:"action"`
	Source      string             `json:"source,omitempty"`
	Destination string             `json:"destination,omitempty"`
	Connected   []jack.Connection  `json:"connected,omitempty"`
	Failed      []patch.FailedEdge `json:"failed,omitempty"`
}

// TickReport summarizes one tick.
type TickReport struct {
	Outcome string          `json:"outcome"`
	Clients jack.ClientDiff `json:"clients"`
	Rules   []RuleOutcome   `json:"rules,omitempty"`

	// ScanError is set when the tick was skipped because the graph
	// could not be read.
	ScanError error `json:"-"`
}

// Config holds a Watcher's collaborators and settings. Controller,
// Matchers and Logger are required.
type Config struct {
	Controller *patch.Controller
	Matchers   roles.Matchers

	// Rules defaults to DefaultRules when nil.
	Rules []Rule

	Interval time.Duration

	// SettingsPath is the persisted toggle. Empty keeps the toggle in
	// memory only.
	SettingsPath string

	// Enabled is the toggle used when SettingsPath holds no file yet.
	Enabled bool

	// Observe, when set, receives every snapshot a tick scans.
	Observe func(*jack.GraphSnapshot)

	Clock   clock.Clock
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Watcher runs reconciliation ticks.
type Watcher struct {
	controller   *patch.Controller
	matchers     roles.Matchers
	rules        []Rule
	interval     time.Duration
	settingsPath string
	observe      func(*jack.GraphSnapshot)
	clock        clock.Clock
	metrics      *metrics.Metrics
	logger       *slog.Logger

	enabled atomic.Bool

	// settingsMu guards persisted, the toggle last read from or written
	// to SettingsPath. Reload applies the file only when it differs from
	// persisted, so a failed write does not get undone by the stale file.
	settingsMu sync.Mutex
	persisted  bool

	// tickMu serializes ticks and guards previous.
	tickMu   sync.Mutex
	previous *jack.GraphSnapshot

	stateMu sync.Mutex
	state   State
}

// New returns a Watcher. The persisted toggle is read from
// SettingsPath; an unreadable settings file is logged and the
// configured default applies.
func New(config Config) *Watcher {
	rules := config.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	interval := config.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}

	w := &Watcher{
		controller:   config.Controller,
		matchers:     config.Matchers,
		rules:        rules,
		interval:     interval,
		settingsPath: config.SettingsPath,
		observe:      config.Observe,
		clock:        clk,
		metrics:      config.Metrics,
		logger:       config.Logger,
	}

	enabled, err := loadSettings(config.SettingsPath, config.Enabled)
	if err != nil {
		w.logger.Warn("ignoring unreadable watcher settings", "path", config.SettingsPath, "error", err)
	}
	w.enabled.Store(enabled)
	w.persisted = enabled
	w.state = Idle
	if !enabled {
		w.state = Disabled
	}
	w.metrics.SetWatcherEnabled(enabled)
	return w
}

// Interval returns the tick period.
func (w *Watcher) Interval() time.Duration { return w.interval }

// Rules returns the configured rules.
func (w *Watcher) Rules() []Rule { return append([]Rule(nil), w.rules...) }

// Enabled reports the toggle.
func (w *Watcher) Enabled() bool { return w.enabled.Load() }

// State returns the current cycle state.
func (w *Watcher) State() State {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	return w.state
}

// SetEnabled flips the toggle. The change applies to the next tick
// immediately; a tick in flight finishes first. The setting is then
// written to SettingsPath. A write failure is returned but the
// in-memory toggle stays in effect.
func (w *Watcher) SetEnabled(enabled bool) error {
	w.settingsMu.Lock()
	defer w.settingsMu.Unlock()

	w.toggle(enabled)
	if err := saveSettings(w.settingsPath, enabled); err != nil {
		w.logger.Warn("watcher setting not persisted", "path", w.settingsPath, "error", err)
		return err
	}
	w.persisted = enabled
	return nil
}

// Reload re-reads the persisted toggle so a change written by another
// process takes effect. Every tick calls it first. A missing file
// leaves the toggle alone; an unreadable one is returned as an error
// and also leaves it alone.
func (w *Watcher) Reload() error {
	w.settingsMu.Lock()
	defer w.settingsMu.Unlock()

	enabled, err := loadSettings(w.settingsPath, w.persisted)
	if err != nil {
		return err
	}
	if enabled == w.persisted {
		return nil
	}
	w.persisted = enabled
	if enabled != w.Enabled() {
		w.toggle(enabled)
	}
	return nil
}

func (w *Watcher) toggle(enabled bool) {
	w.enabled.Store(enabled)
	w.metrics.SetWatcherEnabled(enabled)

	w.stateMu.Lock()
	switch {
	case !enabled:
		if w.state == Idle {
			w.state = Disabled
		}
	case w.state == Disabled:
		w.state = Idle
	}
	w.stateMu.Unlock()

	w.logger.Info("reconciliation toggled", "enabled", enabled)
}

func (w *Watcher) setState(state State) {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	w.state = state
}

// settle returns to Idle, or to Disabled when the toggle went off
// during the tick.
func (w *Watcher) settle() {
	if w.enabled.Load() {
		w.setState(Idle)
	} else {
		w.setState(Disabled)
	}
}

// Run ticks every Interval until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("watcher started",
		"interval", w.interval,
		"enabled", w.Enabled(),
		"rules", len(w.rules),
	)
	for {
		select {
		case <-ticker.C:
			w.Tick(ctx)
		case <-ctx.Done():
			w.logger.Info("watcher stopped")
			return
		}
	}
}

// Tick runs one reconciliation pass. It never returns an error: a
// failed scan skips the tick and connect failures are recorded in the
// report. The persisted toggle is re-read before anything else.
func (w *Watcher) Tick(ctx context.Context) TickReport {
	w.tickMu.Lock()
	defer w.tickMu.Unlock()

	if err := w.Reload(); err != nil {
		w.logger.Warn("watcher settings not reloaded", "path", w.settingsPath, "error", err)
	}
	if !w.enabled.Load() {
		w.metrics.CountTick(OutcomeDisabled)
		return TickReport{Outcome: OutcomeDisabled}
	}

	w.setState(Probing)
	defer w.settle()

	snapshot, err := w.controller.Scan(ctx)
	if err != nil {
		w.logger.Debug("skipping reconciliation tick", "error", err)
		w.metrics.CountTick(OutcomeScanFailed)
		return TickReport{Outcome: OutcomeScanFailed, ScanError: err}
	}
	if w.observe != nil {
		w.observe(snapshot)
	}

	report := TickReport{Clients: jack.DiffClients(w.previous, snapshot)}
	if w.previous != nil && !report.Clients.Empty() {
		w.logger.Info("jack clients changed",
			"added", report.Clients.Added,
			"removed", report.Clients.Removed,
		)
	}
	w.previous = snapshot

	w.setState(Applying)
	connected, failed := false, false
	for _, rule := range w.rules {
		outcome := w.apply(ctx, snapshot, rule)
		switch outcome.Action {
		case ActionConnected:
			connected = true
		case ActionFailed:
			failed = true
		}
		report.Rules = append(report.Rules, outcome)
	}

	switch {
	case failed:
		report.Outcome = OutcomeFailed
	case connected:
		report.Outcome = OutcomeApplied
	default:
		report.Outcome = OutcomeNoop
	}
	w.metrics.CountTick(report.Outcome)
	return report
}

// apply evaluates one rule against snapshot and connects the
// destination's stereo inputs when neither has a source.
func (w *Watcher) apply(ctx context.Context, snapshot *jack.GraphSnapshot, rule Rule) RuleOutcome {
	outcome := RuleOutcome{Rule: rule.Name}

	destination, ok := resolveDestination(w.matchers, rule.Destination, snapshot)
	if !ok {
		outcome.Action = ActionNoDestination
		return outcome
	}
	outcome.Destination = destination.client

	source, ok := resolveSource(w.matchers, rule.Sources, destination.client, snapshot)
	if !ok {
		outcome.Action = ActionNoSource
		return outcome
	}
	outcome.Source = source.client

	for _, input := range destination.ports {
		if len(snapshot.SourcesOf(input.String())) > 0 {
			outcome.Action = ActionOccupied
			return outcome
		}
	}

	for i, input := range destination.ports {
		connection := jack.Connection{Source: source.ports[i], Destination: input}
		if err := w.controller.Connect(ctx, connection.Source, connection.Destination); err != nil {
			w.logger.Warn("reconciliation connect failed",
				"rule", rule.Name,
				"source", connection.Source.String(),
				"destination", connection.Destination.String(),
				"error", err,
			)
			outcome.Failed = append(outcome.Failed, patch.FailedEdge{Connection: connection, Error: err.Error()})
			if errors.Is(err, context.Canceled) {
				break
			}
			continue
		}
		outcome.Connected = append(outcome.Connected, connection)
	}

	if len(outcome.Failed) > 0 {
		outcome.Action = ActionFailed
	} else {
		outcome.Action = ActionConnected
		w.logger.Info("reconciliation connected pair",
			"rule", rule.Name,
			"source", source.client,
			"destination", destination.client,
		)
	}
	return outcome
}

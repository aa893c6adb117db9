// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package watcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rdx-project/patchbay/lib/clock"
	"github.com/rdx-project/patchbay/lib/jack"
	"github.com/rdx-project/patchbay/lib/jack/jacktest"
	"github.com/rdx-project/patchbay/lib/metrics"
	"github.com/rdx-project/patchbay/lib/patch"
	"github.com/rdx-project/patchbay/lib/protect"
	"github.com/rdx-project/patchbay/lib/roles"
	"github.com/rdx-project/patchbay/lib/testutil"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	server  *jacktest.Server
	clock   *clock.FakeClock
	metrics *metrics.Metrics
	config  Config
}

// newHarness wires a watcher config against a fake server holding the
// usual studio clients. Callers adjust config before calling New.
func newHarness(t *testing.T) *harness {
	t.Helper()
	server := jacktest.New()
	server.AddClient("system", []string{"capture_1", "capture_2"}, []string{"playback_1", "playback_2"})
	server.AddClient("rivendell_0", []string{"playout_0L", "playout_0R"}, []string{"record_0L", "record_0R"})
	server.AddClient("vlc", []string{"out_0", "out_1"}, nil)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.Fake(epoch)
	m := metrics.New()
	controller := patch.New(patch.Config{
		Registry:   jack.NewRegistry(server, clk, logger),
		Protection: protect.Open(filepath.Join(t.TempDir(), "protected.json"), logger),
		Metrics:    m,
		Clock:      clk,
		Logger:     logger,
	})
	return &harness{
		server:  server,
		clock:   clk,
		metrics: m,
		config: Config{
			Controller:   controller,
			Matchers:     roles.Default(),
			SettingsPath: filepath.Join(t.TempDir(), "watcher.json"),
			Enabled:      true,
			Interval:     time.Second,
			Clock:        clk,
			Metrics:      m,
			Logger:       logger,
		},
	}
}

// tickCount reads patchbay_watcher_ticks_total for outcome.
func tickCount(t *testing.T, registry *prometheus.Registry, outcome string) float64 {
	t.Helper()
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != "patchbay_watcher_ticks_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == outcome {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestTickConnectsEmptyInputs(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	w := New(h.config)

	report := w.Tick(context.Background())
	if report.Outcome != OutcomeApplied {
		t.Fatalf("Outcome = %q, want %q (rules %+v)", report.Outcome, OutcomeApplied, report.Rules)
	}
	if len(report.Rules) != 1 || report.Rules[0].Source != "system" || report.Rules[0].Destination != "rivendell_0" {
		t.Errorf("rule outcome = %+v, want system -> rivendell_0", report.Rules)
	}
	if !h.server.HasEdge("system:capture_1", "rivendell_0:record_0L") || !h.server.HasEdge("system:capture_2", "rivendell_0:record_0R") {
		t.Errorf("capture not connected to record inputs:\n%s", h.server)
	}
	if w.State() != Idle {
		t.Errorf("State after tick = %v, want idle", w.State())
	}
	if got := tickCount(t, h.metrics.Registry(), OutcomeApplied); got != 1 {
		t.Errorf("applied ticks = %v, want 1", got)
	}

	second := w.Tick(context.Background())
	if second.Outcome != OutcomeNoop || second.Rules[0].Action != ActionOccupied {
		t.Errorf("second tick = %q/%q, want noop/occupied", second.Outcome, second.Rules[0].Action)
	}
}

func TestTickNeverOverridesExistingSources(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.server.AddClient("src", []string{"capture_1", "capture_2"}, nil)
	h.server.AddClient("dst", nil, []string{"input_1", "input_2"})
	h.server.Link("src:capture_1", "dst:input_1")
	h.server.Link("src:capture_2", "dst:input_2")
	h.config.Matchers = roles.Matchers{
		roles.Capture: {{Kind: roles.Exact, Value: "src"}},
		roles.Player:  {{Kind: roles.Exact, Value: "dst"}},
	}
	w := New(h.config)

	report := w.Tick(context.Background())
	if report.Rules[0].Action != ActionOccupied {
		t.Fatalf("Action = %q, want occupied", report.Rules[0].Action)
	}
	if calls := h.server.CountCalls(jacktest.OpConnect) + h.server.CountCalls(jacktest.OpDisconnect); calls != 0 {
		t.Errorf("tick issued %d mutations, want 0", calls)
	}
	if len(h.server.Edges()) != 2 {
		t.Errorf("edges changed: %v", h.server.Edges())
	}
}

func TestTickSkipsWhenOneInputOccupied(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.server.Link("vlc:out_0", "rivendell_0:record_0L")
	w := New(h.config)

	report := w.Tick(context.Background())
	if report.Rules[0].Action != ActionOccupied {
		t.Fatalf("Action = %q, want occupied", report.Rules[0].Action)
	}
	if h.server.HasEdge("system:capture_2", "rivendell_0:record_0R") {
		t.Error("empty leg filled while its sibling was occupied")
	}
}

func TestTickFallsBackToLowerPrioritySource(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.server.RemoveClient("system")
	w := New(h.config)

	report := w.Tick(context.Background())
	if report.Rules[0].Source != "vlc" {
		t.Fatalf("Source = %q, want vlc", report.Rules[0].Source)
	}
	if !h.server.HasEdge("vlc:out_0", "rivendell_0:record_0L") || !h.server.HasEdge("vlc:out_1", "rivendell_0:record_0R") {
		t.Errorf("media player not connected:\n%s", h.server)
	}
}

func TestTickWithoutMatchingClients(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.server.RemoveClient("rivendell_0")
	w := New(h.config)

	report := w.Tick(context.Background())
	if report.Outcome != OutcomeNoop || report.Rules[0].Action != ActionNoDestination {
		t.Errorf("tick = %q/%q, want noop/no_destination", report.Outcome, report.Rules[0].Action)
	}
}

func TestTickSwallowsConnectFailures(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.server.Reject("system:capture_1", "rivendell_0:record_0L")
	w := New(h.config)

	report := w.Tick(context.Background())
	if report.Outcome != OutcomeFailed {
		t.Fatalf("Outcome = %q, want failed", report.Outcome)
	}
	rule := report.Rules[0]
	if len(rule.Failed) != 1 || len(rule.Connected) != 1 {
		t.Errorf("failed %d, connected %d; want 1, 1", len(rule.Failed), len(rule.Connected))
	}
	if !h.server.HasEdge("system:capture_2", "rivendell_0:record_0R") {
		t.Error("right leg not attempted after the left leg failed")
	}
}

func TestTickSkipsWhenServerDown(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.server.SetDown(true)
	w := New(h.config)

	report := w.Tick(context.Background())
	if report.Outcome != OutcomeScanFailed {
		t.Fatalf("Outcome = %q, want scan_failed", report.Outcome)
	}
	if !errors.Is(report.ScanError, jack.ErrServerDown) {
		t.Errorf("ScanError = %v, want ErrServerDown", report.ScanError)
	}
	if w.State() != Idle {
		t.Errorf("State = %v, want idle", w.State())
	}
}

func TestDisabledTickDoesNothing(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	w := New(h.config)
	if err := w.SetEnabled(false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}

	report := w.Tick(context.Background())
	if report.Outcome != OutcomeDisabled {
		t.Fatalf("Outcome = %q, want disabled", report.Outcome)
	}
	if len(h.server.Calls()) != 0 {
		t.Errorf("disabled tick called the server: %v", h.server.Calls())
	}
	if w.State() != Disabled {
		t.Errorf("State = %v, want disabled", w.State())
	}

	if err := w.SetEnabled(true); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if report := w.Tick(context.Background()); report.Outcome != OutcomeApplied {
		t.Errorf("Outcome after re-enable = %q, want applied", report.Outcome)
	}
}

func TestSetEnabledPersists(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	w := New(h.config)
	if err := w.SetEnabled(false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}

	data, err := os.ReadFile(h.config.SettingsPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `"enabled": false`) {
		t.Errorf("settings file = %s", data)
	}

	restarted := New(h.config)
	if restarted.Enabled() {
		t.Error("toggle not restored from the settings file")
	}
	if restarted.State() != Disabled {
		t.Errorf("State = %v, want disabled", restarted.State())
	}
}

func TestReloadPicksUpOtherProcess(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	running := New(h.config)
	if err := running.Reload(); err != nil {
		t.Fatalf("Reload without a settings file: %v", err)
	}
	if !running.Enabled() {
		t.Fatal("Reload without a settings file changed the toggle")
	}

	if err := New(h.config).SetEnabled(false); err != nil {
		t.Fatalf("SetEnabled from a second watcher: %v", err)
	}
	if err := running.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if running.Enabled() || running.State() != Disabled {
		t.Errorf("after Reload: enabled = %v, state = %v; want disabled", running.Enabled(), running.State())
	}

	if err := os.WriteFile(h.config.SettingsPath, []byte("{enabled"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := running.Reload(); err == nil {
		t.Error("Reload of a malformed file returned nil")
	}
	if running.Enabled() {
		t.Error("malformed file changed the toggle")
	}
}

func TestTickFollowsToggleFromOtherProcess(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	running := New(h.config)
	other := New(h.config)

	if err := other.SetEnabled(false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if report := running.Tick(context.Background()); report.Outcome != OutcomeDisabled {
		t.Fatalf("Outcome after disable from another watcher = %q, want disabled", report.Outcome)
	}
	if h.server.HasEdge("system:capture_1", "rivendell_0:record_0L") {
		t.Fatal("disabled watcher connected the capture ports")
	}
	if running.State() != Disabled {
		t.Errorf("State = %v, want disabled", running.State())
	}

	if err := other.SetEnabled(true); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if report := running.Tick(context.Background()); report.Outcome != OutcomeApplied {
		t.Errorf("Outcome after enable from another watcher = %q, want applied", report.Outcome)
	}
}

func TestTickKeepsToggleWhenWriteFails(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	if err := os.WriteFile(h.config.SettingsPath, []byte(`{"enabled": true}`), 0o600); err != nil {
		t.Fatal(err)
	}
	// A directory where the lock file belongs makes every write fail
	// while the settings file stays readable.
	if err := os.Mkdir(h.config.SettingsPath+".lock", 0o755); err != nil {
		t.Fatal(err)
	}
	w := New(h.config)

	if err := w.SetEnabled(false); err == nil {
		t.Fatal("SetEnabled returned nil with an unwritable settings file")
	}
	if report := w.Tick(context.Background()); report.Outcome != OutcomeDisabled {
		t.Errorf("Outcome = %q, want disabled: the stale file must not undo the toggle", report.Outcome)
	}
}

func TestMalformedSettingsUseDefault(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	if err := os.WriteFile(h.config.SettingsPath, []byte("{enabled"), 0o600); err != nil {
		t.Fatal(err)
	}
	w := New(h.config)
	if !w.Enabled() {
		t.Error("malformed settings file did not fall back to the configured default")
	}
}

func TestTickReportsClientChanges(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	w := New(h.config)

	first := w.Tick(context.Background())
	if len(first.Clients.Added) != 3 {
		t.Errorf("first tick added = %v, want every client", first.Clients.Added)
	}

	h.server.AddClient("liquidsoap", nil, []string{"in_0", "in_1"})
	h.server.RemoveClient("vlc")
	second := w.Tick(context.Background())
	if len(second.Clients.Added) != 1 || second.Clients.Added[0] != "liquidsoap" {
		t.Errorf("added = %v, want [liquidsoap]", second.Clients.Added)
	}
	if len(second.Clients.Removed) != 1 || second.Clients.Removed[0] != "vlc" {
		t.Errorf("removed = %v, want [vlc]", second.Clients.Removed)
	}
}

func TestRunTicksOnInterval(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	observed := make(chan *jack.GraphSnapshot, 4)
	h.config.Observe = func(snapshot *jack.GraphSnapshot) { observed <- snapshot }
	w := New(h.config)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	h.clock.WaitForWaiters(1)
	h.clock.Advance(time.Second)
	snapshot := testutil.RequireReceive(t, observed, 5*time.Second, "waiting for first tick")
	if _, ok := snapshot.Client("rivendell_0"); !ok {
		t.Errorf("observed snapshot lacks rivendell_0: %v", snapshot.ClientNames())
	}

	testutil.Eventually(t, 5*time.Second, func() bool {
		return h.server.HasEdge("system:capture_2", "rivendell_0:record_0R")
	}, "waiting for the tick to connect the rule")

	cancel()
	testutil.RequireClosed(t, done, 5*time.Second, "waiting for Run to return")
}

func TestRuleValidate(t *testing.T) {
	t.Parallel()
	for _, rule := range DefaultRules() {
		if err := rule.Validate(); err != nil {
			t.Errorf("default rule %q: %v", rule.Name, err)
		}
	}
	if err := (Rule{Name: "empty"}).Validate(); err == nil {
		t.Error("rule without roles validated")
	}
}

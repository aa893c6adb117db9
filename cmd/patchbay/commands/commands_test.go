// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/rdx-project/patchbay/cmd/patchbay/cli"
	"github.com/rdx-project/patchbay/lib/jack/jacktest"
	"github.com/rdx-project/patchbay/lib/patch"
	"github.com/rdx-project/patchbay/lib/protect"
	"github.com/rdx-project/patchbay/lib/roles"
	"github.com/rdx-project/patchbay/lib/watcher"
)

type harness struct {
	server     *jacktest.Server
	configPath string
	stdout     bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithConfig(t, "")
}

// newHarnessWithConfig writes a config whose state lives in a temp
// directory, followed by extra YAML.
func newHarnessWithConfig(t *testing.T, extra string) *harness {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "patchbay.yaml")
	text := "paths:\n  state: " + filepath.Join(dir, "state") + "\n" + extra
	if err := os.WriteFile(configPath, []byte(text), 0o600); err != nil {
		t.Fatal(err)
	}

	server := jacktest.New()
	server.AddClient("system", []string{"capture_1", "capture_2"}, []string{"playback_1", "playback_2"})
	server.AddClient("rivendell_0", []string{"playout_0L", "playout_0R"}, []string{"record_0L", "record_0R"})
	server.AddClient("stereo_tool", []string{"out_l", "out_r"}, []string{"in_1", "in_2"})
	server.AddClient("vlc", []string{"out_0", "out_1"}, nil)
	return &harness{server: server, configPath: configPath}
}

// run executes one command line and returns what it printed.
func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	h.stdout.Reset()
	root := Root(Options{Stdout: &h.stdout, Tools: h.server})
	root.HelpOutput = io.Discard
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := root.Execute(context.Background(), append(args, "--config", h.configPath), logger)
	return h.stdout.String(), err
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	output, err := h.run(t, args...)
	if err != nil {
		t.Fatalf("patchbay %s: %v\noutput:\n%s", strings.Join(args, " "), err, output)
	}
	return output
}

func decode[T any](t *testing.T, output string) T {
	t.Helper()
	var value T
	if err := json.Unmarshal([]byte(output), &value); err != nil {
		t.Fatalf("decoding %q: %v", output, err)
	}
	return value
}

func requireCategory(t *testing.T, err error, category cli.ErrorCategory) *cli.ToolError {
	t.Helper()
	var toolErr *cli.ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("error = %v (%T), want a ToolError", err, err)
	}
	if toolErr.Category != category {
		t.Fatalf("category = %q, want %q (error: %v)", toolErr.Category, category, err)
	}
	return toolErr
}

func TestStatusJSON(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.server.Link("rivendell_0:playout_0L", "stereo_tool:in_1")

	status := decode[statusView](t, h.mustRun(t, "status", "--json"))
	if !status.Reachable {
		t.Fatalf("status = %+v, want reachable", status)
	}
	if status.Clients != 4 || status.Connections != 1 {
		t.Errorf("clients = %d, connections = %d; want 4 and 1", status.Clients, status.Connections)
	}
	if !slices.Contains(status.Roles["rivendell_0"], roles.Player) {
		t.Errorf("rivendell_0 roles = %v, want player", status.Roles["rivendell_0"])
	}
	if !status.Watcher {
		t.Error("watcher not enabled by default")
	}
}

func TestStatusServerDown(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.server.SetDown(true)

	output, err := h.run(t, "status")
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Fatalf("error = %v, want exit code 1", err)
	}
	if !strings.Contains(output, "not reachable") {
		t.Errorf("output = %q", output)
	}
}

func TestServerDownIsTransient(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.server.SetDown(true)

	_, err := h.run(t, "connections")
	toolErr := requireCategory(t, err, cli.CategoryTransient)
	if !strings.Contains(toolErr.Hint, "start the server") {
		t.Errorf("hint = %q", toolErr.Hint)
	}
}

func TestPairProtectAndConnections(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	result := decode[patch.PairResult](t, h.mustRun(t, "pair", "rivendell_0", "stereo_tool", "--protect", "--json"))
	if !result.Protected {
		t.Error("pair --protect did not report protection")
	}
	for _, edge := range [][2]string{
		{"rivendell_0:playout_0L", "stereo_tool:in_1"},
		{"rivendell_0:playout_0R", "stereo_tool:in_2"},
	} {
		if !h.server.HasEdge(edge[0], edge[1]) {
			t.Errorf("edge %s -> %s missing", edge[0], edge[1])
		}
	}

	output := h.mustRun(t, "connections")
	if !strings.Contains(output, "rivendell_0:playout_0L -> stereo_tool:in_1 [protected]") {
		t.Errorf("connections output:\n%s", output)
	}
	if !strings.Contains(h.mustRun(t, "protect", "list"), string(protect.NewKey("rivendell_0", "stereo_tool"))) {
		t.Error("protect list does not show the pair")
	}
}

func TestUnpairProtectedNeedsYes(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.mustRun(t, "pair", "rivendell_0", "stereo_tool", "--protect")

	_, err := h.run(t, "unpair", "rivendell_0", "stereo_tool")
	toolErr := requireCategory(t, err, cli.CategoryValidation)
	if !strings.Contains(toolErr.Hint, "--yes") {
		t.Errorf("hint = %q, want --yes advice", toolErr.Hint)
	}
	if !h.server.HasEdge("rivendell_0:playout_0L", "stereo_tool:in_1") {
		t.Fatal("unconfirmed unpair removed an edge")
	}

	h.mustRun(t, "unpair", "rivendell_0", "stereo_tool", "--yes")
	if h.server.HasEdge("rivendell_0:playout_0L", "stereo_tool:in_1") {
		t.Error("confirmed unpair left the left edge")
	}
}

func TestEmergencyRequiresYes(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.server.Link("system:capture_1", "rivendell_0:record_0L")
	h.mustRun(t, "pair", "rivendell_0", "stereo_tool", "--protect")
	h.server.ResetCalls()

	_, err := h.run(t, "emergency")
	requireCategory(t, err, cli.CategoryValidation)
	if calls := h.server.CountCalls(jacktest.OpDisconnect); calls != 0 {
		t.Fatalf("unconfirmed emergency made %d disconnect calls", calls)
	}

	report := decode[patch.SweepReport](t, h.mustRun(t, "emergency", "--yes", "--json"))
	if len(report.Removed) != 1 || len(report.Preserved) != 2 {
		t.Errorf("removed %d, preserved %d; want 1 and 2", len(report.Removed), len(report.Preserved))
	}
	if h.server.HasEdge("system:capture_1", "rivendell_0:record_0L") {
		t.Error("unprotected edge survived")
	}
}

func TestConnectErrors(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, err := h.run(t, "connect", "ghost:out", "stereo_tool:in_1")
	requireCategory(t, err, cli.CategoryNotFound)

	_, err = h.run(t, "connect", "system:capture_1", "vlc:out_0")
	requireCategory(t, err, cli.CategoryValidation)

	_, err = h.run(t, "connect", "system:capture_1")
	requireCategory(t, err, cli.CategoryValidation)

	// Either order is accepted.
	h.mustRun(t, "connect", "stereo_tool:in_1", "vlc:out_0")
	if !h.server.HasEdge("vlc:out_0", "stereo_tool:in_1") {
		t.Error("reversed connect did not create the edge")
	}
	h.mustRun(t, "disconnect", "vlc:out_0", "stereo_tool:in_1")
	if h.server.HasEdge("vlc:out_0", "stereo_tool:in_1") {
		t.Error("disconnect left the edge")
	}
}

func TestProfileSaveApplyShow(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.server.Link("rivendell_0:playout_0L", "stereo_tool:in_1")
	h.server.Link("rivendell_0:playout_0R", "stereo_tool:in_2")

	if output := h.mustRun(t, "profile", "save", "Morning Show"); !strings.Contains(output, `saved "Morning Show": 2 connections`) {
		t.Errorf("save output = %q", output)
	}
	summaries := decode[[]profileSummary](t, h.mustRun(t, "profile", "list", "--json"))
	if len(summaries) != 1 || !summaries[0].Live || summaries[0].Pairs != 2 {
		t.Fatalf("profile list = %+v, want one live profile of 2 pairs", summaries)
	}

	h.mustRun(t, "emergency", "--yes")
	detail := decode[profileDetail](t, h.mustRun(t, "profile", "show", "Morning Show", "--json"))
	if detail.Live || detail.Comparison == nil || len(detail.Comparison.Missing) != 2 {
		t.Fatalf("profile show after emergency = %+v", detail)
	}

	output := h.mustRun(t, "profile", "apply", "Morning Show")
	if !strings.Contains(output, "2 of 2 connected") {
		t.Errorf("apply output = %q", output)
	}
	if !h.server.HasEdge("rivendell_0:playout_0R", "stereo_tool:in_2") {
		t.Error("apply did not restore the right edge")
	}

	_, err := h.run(t, "profile", "apply", "Evening Show")
	requireCategory(t, err, cli.CategoryNotFound)
}

func TestProfileRenameAndDelete(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.mustRun(t, "profile", "save", "A")
	h.mustRun(t, "profile", "save", "B")

	_, err := h.run(t, "profile", "rename", "A", "B")
	requireCategory(t, err, cli.CategoryConflict)

	h.mustRun(t, "profile", "rename", "A", "C")
	h.mustRun(t, "profile", "delete", "B")
	summaries := decode[[]profileSummary](t, h.mustRun(t, "profile", "list", "--json"))
	if len(summaries) != 1 || summaries[0].Name != "C" {
		t.Errorf("profiles = %+v, want only C", summaries)
	}

	_, err = h.run(t, "profile", "delete", "B")
	requireCategory(t, err, cli.CategoryNotFound)
}

func TestProfileSuggestApply(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	output := h.mustRun(t, "profile", "suggest")
	if !strings.Contains(output, "rivendell_0:playout_0L -> stereo_tool:in_1") {
		t.Errorf("suggestion:\n%s", output)
	}
	h.mustRun(t, "profile", "suggest", "--apply")
	if !h.server.HasEdge("rivendell_0:playout_0L", "stereo_tool:in_1") {
		t.Error("suggest --apply did not connect player to processor")
	}
	if !h.server.HasEdge("stereo_tool:out_r", "system:playback_2") {
		t.Error("suggest --apply did not connect processor to playback")
	}
}

func TestSwitchInput(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.server.Link("system:capture_1", "rivendell_0:record_0L")
	h.server.Link("system:capture_2", "rivendell_0:record_0R")

	report := decode[patch.SwitchReport](t, h.mustRun(t, "switch-input", "vlc", "rivendell_0", "--json"))
	if len(report.Cleared) != 2 {
		t.Errorf("cleared %d edges, want 2", len(report.Cleared))
	}
	if !h.server.HasEdge("vlc:out_0", "rivendell_0:record_0L") || !h.server.HasEdge("vlc:out_1", "rivendell_0:record_0R") {
		t.Errorf("vlc not switched in: %v", h.server.Edges())
	}
}

func TestWatchOnceAndToggle(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	report := decode[watcher.TickReport](t, h.mustRun(t, "watch", "--once", "--json"))
	if report.Outcome != watcher.OutcomeApplied {
		t.Fatalf("outcome = %q, want applied", report.Outcome)
	}
	if !h.server.HasEdge("system:capture_1", "rivendell_0:record_0L") {
		t.Error("watch --once did not feed the player's inputs")
	}

	h.mustRun(t, "watch", "disable")
	status := decode[watchStatus](t, h.mustRun(t, "watch", "status", "--json"))
	if status.Enabled {
		t.Error("watch status reports enabled after disable")
	}
	report = decode[watcher.TickReport](t, h.mustRun(t, "watch", "--once", "--json"))
	if report.Outcome != watcher.OutcomeDisabled {
		t.Errorf("outcome = %q, want disabled", report.Outcome)
	}
}

func TestMatrix(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.server.Link("rivendell_0:playout_0L", "stereo_tool:in_1")
	h.server.Link("rivendell_0:playout_0R", "stereo_tool:in_2")

	output := h.mustRun(t, "matrix")
	lines := strings.Split(output, "\n")
	var row string
	for _, line := range lines {
		if strings.HasPrefix(line, "rivendell_0") {
			row = line
		}
	}
	if !strings.Contains(row, "2") {
		t.Errorf("rivendell_0 row = %q in:\n%s", row, output)
	}
}

func TestInvalidConfig(t *testing.T) {
	t.Parallel()
	h := newHarnessWithConfig(t, "watcher:\n  interval: -1s\n")

	_, err := h.run(t, "status")
	toolErr := requireCategory(t, err, cli.CategoryValidation)
	if !strings.Contains(toolErr.Error(), "watcher.interval") {
		t.Errorf("error = %v", toolErr)
	}
}

func TestUnknownCommandSuggestion(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	_, err := h.run(t, "staus")
	if err == nil || !strings.Contains(err.Error(), `did you mean "status"?`) {
		t.Errorf("error = %v", err)
	}
}

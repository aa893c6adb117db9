// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package patch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rdx-project/patchbay/lib/clock"
	"github.com/rdx-project/patchbay/lib/jack"
	"github.com/rdx-project/patchbay/lib/jack/jacktest"
	"github.com/rdx-project/patchbay/lib/protect"
)

type fixture struct {
	server     *jacktest.Server
	protection *protect.Store
	controller *Controller
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, filepath.Join(t.TempDir(), "protected.json"))
}

func newFixtureWithStore(t *testing.T, protectionPath string) *fixture {
	t.Helper()
	server := jacktest.New()
	server.AddClient("system", []string{"capture_1", "capture_2"}, []string{"playback_1", "playback_2"})
	server.AddClient("rivendell_0", []string{"playout_0L", "playout_0R"}, []string{"record_0L", "record_0R"})
	server.AddClient("stereo_tool", []string{"out_l", "out_r"}, []string{"in_1", "in_2"})
	server.AddClient("vlc", []string{"out_0", "out_1"}, nil)
	server.AddClient("mic", []string{"capture"}, nil)

	logger := discardLogger()
	clk := clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	protection := protect.Open(protectionPath, logger)
	controller := New(Config{
		Registry:   jack.NewRegistry(server, clk, logger),
		Protection: protection,
		Clock:      clk,
		Logger:     logger,
	})
	return &fixture{server: server, protection: protection, controller: controller}
}

func port(qualified string, direction jack.Direction) jack.Port {
	client, name, _ := jack.SplitPortName(qualified)
	return jack.Port{Client: client, Name: name, Direction: direction}
}

func out(qualified string) jack.Port { return port(qualified, jack.Output) }
func in(qualified string) jack.Port  { return port(qualified, jack.Input) }

func TestConnectIsIdempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := f.controller.Connect(ctx, out("system:capture_1"), in("rivendell_0:record_0L")); err != nil {
			t.Fatalf("Connect #%d: %v", i+1, err)
		}
	}
	snapshot, err := f.controller.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	count := 0
	for _, connection := range snapshot.Connections {
		if connection.Key() == "system:capture_1 -> rivendell_0:record_0L" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("edge appears %d times, want 1", count)
	}
	if calls := f.server.CountCalls(jacktest.OpConnect); calls != 2 {
		t.Errorf("connect tool called %d times, want 2", calls)
	}
}

func TestConnectRejected(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.server.Reject("vlc:out_0", "rivendell_0:record_0L")

	err := f.controller.Connect(context.Background(), out("vlc:out_0"), in("rivendell_0:record_0L"))
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("Connect error = %v, want ErrRejected", err)
	}
	var connectErr *ConnectError
	if !errors.As(err, &connectErr) || connectErr.Source != "vlc:out_0" {
		t.Errorf("error is not a *ConnectError for vlc:out_0: %v", err)
	}
	var toolErr *jack.ToolError
	if !errors.As(err, &toolErr) || toolErr.ExitCode != 1 {
		t.Errorf("tool error not preserved: %v", err)
	}
	if errors.Is(err, jack.ErrTimeout) {
		t.Error("rejection classified as timeout")
	}
}

func TestConnectTimeout(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.server.Stall("vlc:out_0", "rivendell_0:record_0L")

	err := f.controller.Connect(context.Background(), out("vlc:out_0"), in("rivendell_0:record_0L"))
	if !errors.Is(err, jack.ErrTimeout) {
		t.Fatalf("Connect error = %v, want ErrTimeout", err)
	}
	if errors.Is(err, ErrRejected) {
		t.Error("timeout classified as rejection")
	}
}

func TestDisconnectIsSoft(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if err := f.controller.Disconnect(ctx, out("vlc:out_0"), in("system:playback_1")); err != nil {
		t.Errorf("Disconnect of an absent edge = %v, want nil", err)
	}

	f.server.Link("vlc:out_0", "system:playback_1")
	if err := f.controller.Disconnect(ctx, out("vlc:out_0"), in("system:playback_1")); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if f.server.HasEdge("vlc:out_0", "system:playback_1") {
		t.Error("edge still present")
	}

	f.server.Link("vlc:out_1", "system:playback_2")
	f.server.Stall("vlc:out_1", "system:playback_2")
	err := f.controller.Disconnect(ctx, out("vlc:out_1"), in("system:playback_2"))
	var disconnectErr *DisconnectError
	if !errors.As(err, &disconnectErr) || !errors.Is(err, jack.ErrTimeout) {
		t.Errorf("Disconnect timeout = %v, want *DisconnectError wrapping ErrTimeout", err)
	}
}

func TestConnectStereoPair(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	result, err := f.controller.ConnectStereoPair(context.Background(), "rivendell_0", "stereo_tool", true)
	if err != nil {
		t.Fatalf("ConnectStereoPair: %v", err)
	}
	if result.Left.Source.String() != "rivendell_0:playout_0L" || result.Left.Destination.String() != "stereo_tool:in_1" {
		t.Errorf("left leg = %s -> %s", result.Left.Source, result.Left.Destination)
	}
	if result.Right.Source.String() != "rivendell_0:playout_0R" || result.Right.Destination.String() != "stereo_tool:in_2" {
		t.Errorf("right leg = %s -> %s", result.Right.Source, result.Right.Destination)
	}
	if !f.server.HasEdge("rivendell_0:playout_0L", "stereo_tool:in_1") || !f.server.HasEdge("rivendell_0:playout_0R", "stereo_tool:in_2") {
		t.Errorf("edges not created:\n%s", f.server)
	}
	if !result.Protected || !f.controller.IsProtected(protect.NewKey("rivendell_0", "stereo_tool")) {
		t.Error("pair not protected after a successful protected connect")
	}
}

func TestConnectStereoPairRightLegRejected(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.server.Reject("rivendell_0:playout_0R", "stereo_tool:in_2")

	result, err := f.controller.ConnectStereoPair(context.Background(), "rivendell_0", "stereo_tool", true)
	var pairErr *PairError
	if !errors.As(err, &pairErr) {
		t.Fatalf("ConnectStereoPair error = %v, want *PairError", err)
	}
	if pairErr.Kind != PartialFailure || pairErr.Leg != Right {
		t.Errorf("PairError = %s on %s leg, want partial failure on right", pairErr.Kind, pairErr.Leg)
	}
	if !errors.Is(err, ErrRejected) {
		t.Errorf("PairError does not wrap the leg's rejection: %v", err)
	}
	if result.Left.Err != nil || result.Right.Err == nil {
		t.Errorf("leg errors = %v, %v; want nil, non-nil", result.Left.Err, result.Right.Err)
	}
	if !f.server.HasEdge("rivendell_0:playout_0L", "stereo_tool:in_1") {
		t.Error("left leg not connected")
	}
	if f.protection.IsProtected(protect.NewKey("rivendell_0", "stereo_tool")) || result.Protected {
		t.Error("partially connected pair was protected")
	}
}

func TestConnectStereoPairLeftFailureStillTriesRight(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.server.Reject("rivendell_0:playout_0L", "stereo_tool:in_1")

	_, err := f.controller.ConnectStereoPair(context.Background(), "rivendell_0", "stereo_tool", false)
	var pairErr *PairError
	if !errors.As(err, &pairErr) || pairErr.Kind != PartialFailure || pairErr.Leg != Left {
		t.Fatalf("error = %v, want partial failure on left", err)
	}
	if !f.server.HasEdge("rivendell_0:playout_0R", "stereo_tool:in_2") {
		t.Error("right leg not attempted after left failed")
	}
}

func TestConnectStereoPairBothFailed(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.server.Reject("rivendell_0:playout_0L", "stereo_tool:in_1")
	f.server.Stall("rivendell_0:playout_0R", "stereo_tool:in_2")

	_, err := f.controller.ConnectStereoPair(context.Background(), "rivendell_0", "stereo_tool", true)
	var pairErr *PairError
	if !errors.As(err, &pairErr) || pairErr.Kind != BothFailed {
		t.Fatalf("error = %v, want BothFailed", err)
	}
	if !errors.Is(err, ErrRejected) || !errors.Is(err, jack.ErrTimeout) {
		t.Errorf("joined error lost a leg cause: %v", err)
	}
}

func TestConnectStereoPairNotCapable(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	tests := []struct {
		name        string
		source      string
		destination string
	}{
		{"mono source", "mic", "rivendell_0"},
		{"no inputs", "system", "vlc"},
		{"unknown client", "ghost", "rivendell_0"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := f.controller.ConnectStereoPair(context.Background(), test.source, test.destination, false)
			var pairErr *PairError
			if !errors.As(err, &pairErr) || pairErr.Kind != NotStereoCapable {
				t.Errorf("error = %v, want NotStereoCapable", err)
			}
		})
	}
	if calls := f.server.CountCalls(jacktest.OpConnect); calls != 0 {
		t.Errorf("connect tool called %d times, want 0", calls)
	}
}

func TestConnectStereoPairAlreadyConnected(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.server.Link("vlc:out_0", "rivendell_0:record_0L")
	f.server.Link("vlc:out_1", "rivendell_0:record_0R")

	result, err := f.controller.ConnectStereoPair(context.Background(), "vlc", "rivendell_0", false)
	if err != nil {
		t.Fatalf("ConnectStereoPair: %v", err)
	}
	if !result.Left.Unchanged || !result.Right.Unchanged {
		t.Errorf("legs not reported unchanged: %+v", result)
	}
	if calls := f.server.CountCalls(jacktest.OpConnect); calls != 0 {
		t.Errorf("connect tool called %d times, want 0", calls)
	}
}

func TestConnectStereoPairProtectionWriteFailure(t *testing.T) {
	t.Parallel()
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	f := newFixtureWithStore(t, filepath.Join(blocker, "protected.json"))

	result, err := f.controller.ConnectStereoPair(context.Background(), "rivendell_0", "stereo_tool", true)
	if err != nil {
		t.Fatalf("ConnectStereoPair = %v, want success with a warning", err)
	}
	if result.Warning == "" {
		t.Error("no warning for an unsaved protection")
	}
	if !result.Protected {
		t.Error("in-memory protection not applied")
	}
}

func TestConnectStereoPairServerDown(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.server.SetDown(true)
	_, err := f.controller.ConnectStereoPair(context.Background(), "rivendell_0", "stereo_tool", false)
	if !errors.Is(err, jack.ErrServerDown) {
		t.Fatalf("error = %v, want ErrServerDown", err)
	}
}

func TestDisconnectStereoPair(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.controller.ConnectStereoPair(ctx, "rivendell_0", "stereo_tool", true); err != nil {
		t.Fatalf("ConnectStereoPair: %v", err)
	}

	result, err := f.controller.DisconnectStereoPair(ctx, "rivendell_0", "stereo_tool")
	if err != nil {
		t.Fatalf("DisconnectStereoPair: %v", err)
	}
	if f.server.HasEdge("rivendell_0:playout_0L", "stereo_tool:in_1") || f.server.HasEdge("rivendell_0:playout_0R", "stereo_tool:in_2") {
		t.Errorf("edges remain:\n%s", f.server)
	}
	if result.Protected || f.controller.IsProtected(protect.NewKey("rivendell_0", "stereo_tool")) {
		t.Error("protection kept after disconnecting the pair")
	}
}

func TestConnectMonoToBoth(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.controller.ConnectMonoToBoth(ctx, "mic:capture", "rivendell_0"); err != nil {
		t.Fatalf("ConnectMonoToBoth: %v", err)
	}
	if !f.server.HasEdge("mic:capture", "rivendell_0:record_0L") || !f.server.HasEdge("mic:capture", "rivendell_0:record_0R") {
		t.Errorf("mono source not fed to both inputs:\n%s", f.server)
	}

	if _, err := f.controller.ConnectMonoToBoth(ctx, "rivendell_0:record_0L", "system"); !errors.Is(err, ErrUnknownPort) {
		t.Errorf("input port as mono source = %v, want ErrUnknownPort", err)
	}
}

// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package protect

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rdx-project/patchbay/lib/atomicfile"
	"github.com/rdx-project/patchbay/lib/jack"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProtectionSurvivesRestart(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "protected.json")
	key := NewKey("rivendell_0", "stereo_tool")

	store := Open(path, discardLogger())
	if err := store.Add(key); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !store.IsProtected(key) {
		t.Fatal("IsProtected = false right after Add")
	}

	restarted := Open(path, discardLogger())
	if !restarted.IsProtected(key) {
		t.Fatal("IsProtected = false after reopening the store")
	}

	if err := restarted.Remove(key); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if Open(path, discardLogger()).IsProtected(key) {
		t.Error("removed key still protected after reopening")
	}
}

func TestOpenMissingFile(t *testing.T) {
	t.Parallel()
	store := Open(filepath.Join(t.TempDir(), "absent.json"), discardLogger())
	if len(store.List()) != 0 {
		t.Errorf("List() = %v, want empty", store.List())
	}
}

func TestOpenMalformedFileFailsSoft(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "protected.json")
	os.WriteFile(path, []byte(`{"pairs": "not a list"}`), 0o600)

	var logs bytes.Buffer
	store := Open(path, slog.New(slog.NewTextHandler(&logs, nil)))
	if len(store.List()) != 0 {
		t.Errorf("List() = %v, want empty", store.List())
	}
	if !strings.Contains(logs.String(), "ignoring unreadable protected pairs file") {
		t.Errorf("no warning logged: %q", logs.String())
	}
	if err := store.Load(); !errors.Is(err, atomicfile.ErrMalformed) {
		t.Errorf("Load() = %v, want ErrMalformed", err)
	}
}

func TestFileFormat(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "protected.json")
	store := Open(path, discardLogger())
	store.Add(NewKey("stereo_tool", "liquidsoap"))
	store.Add(NewKey("rivendell_0", "stereo_tool"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := "{\n  \"pairs\": [\n    \"rivendell_0→stereo_tool\",\n    \"stereo_tool→liquidsoap\"\n  ]\n}\n"
	if string(data) != want {
		t.Errorf("file = %q, want %q", data, want)
	}
}

func TestWriteFailureKeepsMemoryState(t *testing.T) {
	t.Parallel()
	blocker := filepath.Join(t.TempDir(), "blocker")
	os.WriteFile(blocker, nil, 0o600)
	store := Open(filepath.Join(blocker, "protected.json"), discardLogger())

	key := NewKey("a", "b")
	err := store.Add(key)
	if !errors.Is(err, atomicfile.ErrWriteFailed) {
		t.Fatalf("Add error = %v, want ErrWriteFailed", err)
	}
	if !store.IsProtected(key) {
		t.Error("in-memory set lost the key after a failed write")
	}
}

func TestParseKey(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    Key
		wantErr bool
	}{
		{"rivendell_0→stereo_tool", "rivendell_0→stereo_tool", false},
		{"rivendell_0 -> stereo_tool", "rivendell_0→stereo_tool", false},
		{"rivendell_0", "", true},
		{"→b", "", true},
	}
	for _, test := range tests {
		got, err := ParseKey(test.in)
		if (err != nil) != test.wantErr || got != test.want {
			t.Errorf("ParseKey(%q) = %q, %v; want %q, error %v", test.in, got, err, test.want, test.wantErr)
		}
	}
}

func TestCovers(t *testing.T) {
	t.Parallel()
	store := Open(filepath.Join(t.TempDir(), "p.json"), discardLogger())
	store.Add(NewKey("rivendell_0", "system"))
	source := jack.Port{Client: "rivendell_0", Name: "playout_0L", Direction: jack.Output}
	destination := jack.Port{Client: "system", Name: "playback_1", Direction: jack.Input}
	if !store.Covers(source, destination) {
		t.Error("Covers = false for a port edge inside a protected pair")
	}
	if store.Covers(jack.Port{Client: "vlc", Name: "out_0"}, destination) {
		t.Error("Covers = true for an unprotected pair")
	}
	sourceClient, destinationClient := NewKey("x", "y").Clients()
	if sourceClient != "x" || destinationClient != "y" {
		t.Errorf("Clients() = %q, %q", sourceClient, destinationClient)
	}
}

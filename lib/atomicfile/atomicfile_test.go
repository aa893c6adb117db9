// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package atomicfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

type state struct {
	Pairs []string `json:"pairs"`
}

func TestWriteJSONThenReadJSON(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "protected.json")
	if err := WriteJSON(path, state{Pairs: []string{"a→b"}}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != FileMode {
		t.Errorf("mode = %v, want %v", info.Mode().Perm(), os.FileMode(FileMode))
	}

	var loaded state
	found, err := ReadJSON(path, &loaded)
	if err != nil || !found {
		t.Fatalf("ReadJSON = %v, %v", found, err)
	}
	if len(loaded.Pairs) != 1 || loaded.Pairs[0] != "a→b" {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestReadJSONMissing(t *testing.T) {
	t.Parallel()
	var loaded state
	found, err := ReadJSON(filepath.Join(t.TempDir(), "absent.json"), &loaded)
	if found || err != nil {
		t.Fatalf("ReadJSON(missing) = %v, %v; want false, nil", found, err)
	}
}

func TestReadJSONMalformed(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte(`{"pairs": [`), 0o600)
	var loaded state
	found, err := ReadJSON(path, &loaded)
	if !found {
		t.Error("found = false for an existing file")
	}
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("ReadJSON error = %v, want ErrMalformed", err)
	}
}

func TestReadJSONAcceptsComments(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "edited.json")
	content := "{\n  // studio A\n  \"pairs\": [\"rivendell_0→liquidsoap\",],\n}\n"
	os.WriteFile(path, []byte(content), 0o600)
	var loaded state
	if _, err := ReadJSON(path, &loaded); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if len(loaded.Pairs) != 1 {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestWriteLeavesNoTemporaryFiles(t *testing.T) {
	t.Parallel()
	directory := t.TempDir()
	path := filepath.Join(directory, "profiles.json")
	for i := 0; i < 3; i++ {
		if err := WriteFile(path, []byte("{}\n")); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	entries, _ := os.ReadDir(directory)
	for _, entry := range entries {
		if strings.Contains(entry.Name(), ".tmp-") {
			t.Errorf("temporary file left behind: %s", entry.Name())
		}
	}
}

func TestWriteFailsIntoUnwritableDirectory(t *testing.T) {
	t.Parallel()
	// A regular file where the parent directory should be.
	blocker := filepath.Join(t.TempDir(), "blocker")
	os.WriteFile(blocker, nil, 0o600)
	err := WriteFile(filepath.Join(blocker, "state.json"), []byte("{}"))
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("WriteFile error = %v, want ErrWriteFailed", err)
	}
}

func TestConcurrentWritersProduceWholeFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state.json")
	var group sync.WaitGroup
	for i := 0; i < 8; i++ {
		group.Add(1)
		go func(i int) {
			defer group.Done()
			pairs := make([]string, 50)
			for j := range pairs {
				pairs[j] = strings.Repeat(string(rune('a'+i)), 20)
			}
			if err := WriteJSON(path, state{Pairs: pairs}); err != nil {
				t.Errorf("WriteJSON: %v", err)
			}
		}(i)
	}
	group.Wait()

	var loaded state
	if _, err := ReadJSON(path, &loaded); err != nil {
		t.Fatalf("ReadJSON after concurrent writes: %v", err)
	}
	if len(loaded.Pairs) != 50 {
		t.Fatalf("len(Pairs) = %d, want 50", len(loaded.Pairs))
	}
	for _, pair := range loaded.Pairs {
		if pair != loaded.Pairs[0] {
			t.Fatal("file mixes content from two writers")
		}
	}
}

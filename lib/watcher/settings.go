// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package watcher

import "github.com/rdx-project/patchbay/lib/atomicfile"

// settings is the persisted toggle file.
type settings struct {
	Enabled bool `json:"enabled"`
}

// loadSettings reads the toggle from path. A missing file, or an empty
// path, yields fallback.
func loadSettings(path string, fallback bool) (bool, error) {
	if path == "" {
		return fallback, nil
	}
	var loaded settings
	found, err := atomicfile.ReadJSON(path, &loaded)
	if err != nil || !found {
		return fallback, err
	}
	return loaded.Enabled, nil
}

func saveSettings(path string, enabled bool) error {
	if path == "" {
		return nil
	}
	return atomicfile.WriteJSON(path, settings{Enabled: enabled})
}

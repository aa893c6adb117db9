// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

// Package protect keeps the set of client pairs whose connections an
// operator has marked critical. A protected pair is not a lock: the
// JACK server knows nothing about it. It is a guard consulted by
// destructive operations, which either skip protected edges or require
// explicit confirmation before removing them.
//
// The set is persisted as {"pairs": ["src→dst", ...]} and written
// through on every change.
package protect

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/rdx-project/patchbay/lib/atomicfile"
	"github.com/rdx-project/patchbay/lib/jack"
)

// Separator joins the two client names of a Key.
const Separator = "→"

// Key identifies a protected pair at client level, "source→destination".
type Key string

// NewKey builds the key for a source client feeding a destination
// client.
func NewKey(sourceClient, destinationClient string) Key {
	return Key(sourceClient + Separator + destinationClient)
}

// KeyFor returns the key covering an edge between two ports.
func KeyFor(source, destination jack.Port) Key {
	return NewKey(source.Client, destination.Client)
}

// ParseKey accepts "src→dst" and the ASCII form "src->dst".
func ParseKey(text string) (Key, error) {
	source, destination, ok := strings.Cut(text, Separator)
	if !ok {
		source, destination, ok = strings.Cut(text, "->")
	}
	source, destination = strings.TrimSpace(source), strings.TrimSpace(destination)
	if !ok || source == "" || destination == "" {
		return "", fmt.Errorf("invalid protected pair %q (want SOURCE%sDESTINATION)", text, Separator)
	}
	return NewKey(source, destination), nil
}

// Clients splits the key into its source and destination clients.
func (k Key) Clients() (source, destination string) {
	source, destination, _ = strings.Cut(string(k), Separator)
	return source, destination
}

// file is the on-disk shape.
type file struct {
	Pairs []Key `json:"pairs"`
}

// Store is the persistent protected-pair set. It is safe for
// concurrent use. The in-memory set is authoritative for the life of
// the process; a failed save leaves it changed and returns the error.
type Store struct {
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	keys map[Key]struct{}
}

// Open loads the store at path. It never fails: a missing file yields
// an empty set, and an unreadable or malformed file is logged and
// yields an empty set, so a bad file cannot keep the process from
// starting.
func Open(path string, logger *slog.Logger) *Store {
	store := &Store{path: path, logger: logger, keys: make(map[Key]struct{})}
	if err := store.Load(); err != nil {
		logger.Warn("ignoring unreadable protected pairs file", "path", path, "error", err)
	}
	return store
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Load replaces the in-memory set with the file's content. A missing
// file loads as empty. On error the set is emptied and the error wraps
// atomicfile.ErrMalformed when the content did not decode.
func (s *Store) Load() error {
	var loaded file
	_, err := atomicfile.ReadJSON(s.path, &loaded)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = make(map[Key]struct{}, len(loaded.Pairs))
	if err != nil {
		return err
	}
	for _, key := range loaded.Pairs {
		if key != "" {
			s.keys[key] = struct{}{}
		}
	}
	return nil
}

// Save writes the current set.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if err := atomicfile.WriteJSON(s.path, file{Pairs: s.sortedLocked()}); err != nil {
		s.logger.Warn("protected pairs not persisted", "path", s.path, "error", err)
		return err
	}
	return nil
}

// IsProtected reports whether key is in the set.
func (s *Store) IsProtected(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

// Covers reports whether the edge source→destination belongs to a
// protected client pair.
func (s *Store) Covers(source, destination jack.Port) bool {
	return s.IsProtected(KeyFor(source, destination))
}

// Add inserts key and saves.
func (s *Store) Add(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = struct{}{}
	return s.saveLocked()
}

// Remove deletes key and saves.
func (s *Store) Remove(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return s.saveLocked()
}

// List returns the keys in sorted order.
func (s *Store) List() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

func (s *Store) sortedLocked() []Key {
	keys := make([]Key, 0, len(s.keys))
	for key := range s.keys {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

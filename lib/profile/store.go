// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/rdx-project/patchbay/lib/atomicfile"
	"github.com/rdx-project/patchbay/lib/jack"
)

var (
	// ErrNotFound is returned for operations on a profile name that
	// does not exist.
	ErrNotFound = errors.New("profile not found")

	// ErrExists is returned when a rename target is already taken.
	ErrExists = errors.New("profile already exists")
)

// Connector issues a single connection. The connection controller
// implements it.
type Connector interface {
	Connect(ctx context.Context, source, destination jack.Port) error
}

// Store is the persistent profile collection. The file is a JSON
// object mapping each profile name to its pair list. Every mutation is
// written through; a failed write returns an error wrapping
// atomicfile.ErrWriteFailed and leaves the in-memory change in place.
type Store struct {
	path   string
	logger *slog.Logger

	mu       sync.Mutex
	profiles map[string][]Pair
}

// Open loads the store at path, falling back to an empty collection
// (with a logged warning) when the file is unreadable or malformed.
func Open(path string, logger *slog.Logger) *Store {
	store := &Store{path: path, logger: logger, profiles: make(map[string][]Pair)}
	if err := store.Load(); err != nil {
		logger.Warn("ignoring unreadable profiles file", "path", path, "error", err)
	}
	return store
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Load replaces the collection with the file's content.
func (s *Store) Load() error {
	loaded := make(map[string][]Pair)
	_, err := atomicfile.ReadJSON(s.path, &loaded)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.profiles = make(map[string][]Pair)
		return err
	}
	s.profiles = loaded
	return nil
}

func (s *Store) saveLocked() error {
	if err := atomicfile.WriteJSON(s.path, s.profiles); err != nil {
		s.logger.Warn("profiles not persisted", "path", s.path, "error", err)
		return err
	}
	return nil
}

// List returns the profile names in sorted order.
func (s *Store) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a copy of the named profile.
func (s *Store) Get(name string) (Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pairs, ok := s.profiles[name]
	if !ok {
		return Profile{}, false
	}
	return Profile{Name: name, Pairs: append([]Pair(nil), pairs...)}, true
}

// Put stores profile under its name, replacing any existing profile.
func (s *Store) Put(profile Profile) error {
	if err := validateName(profile.Name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.Name] = append([]Pair(nil), profile.Pairs...)
	return s.saveLocked()
}

// SaveCurrent captures every connection in snapshot as the profile
// name, overwriting any profile of that name. The profile is returned
// even when the write fails.
func (s *Store) SaveCurrent(name string, snapshot *jack.GraphSnapshot) (Profile, error) {
	profile := Profile{Name: name, Pairs: PairsOf(snapshot)}
	return profile, s.Put(profile)
}

// Delete removes the named profile.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(s.profiles, name)
	return s.saveLocked()
}

// Rename moves a profile to a new name. The target must be free.
func (s *Store) Rename(from, to string) error {
	if err := validateName(to); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pairs, ok := s.profiles[from]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, from)
	}
	if from == to {
		return nil
	}
	if _, taken := s.profiles[to]; taken {
		return fmt.Errorf("%w: %q", ErrExists, to)
	}
	s.profiles[to] = pairs
	delete(s.profiles, from)
	return s.saveLocked()
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("profile name is empty")
	}
	return nil
}

// ApplyReport summarizes a profile replay.
type ApplyReport struct {
	Profile string `json:"profile"`

	// Applied counts pairs that are connected after the call,
	// including ones that already were.
	Applied int `json:"applied"`
	Total   int `json:"total"`

	// Skipped pairs name a port absent from the snapshot.
	Skipped []Pair `json:"skipped,omitempty"`

	// Failed pairs had both ports but the connect call failed.
	Failed []FailedPair `json:"failed,omitempty"`
}

// FailedPair records a connect failure during Apply.
type FailedPair struct {
	Pair  Pair   `json:"pair"`
	Error string `json:"error"`
}

// Apply replays the named profile against snapshot. Pairs whose ports
// both exist are connected through connector; the rest are skipped and
// reported. Individual connect failures are recorded in the report and
// do not stop the replay. The only error returned is ErrNotFound.
func (s *Store) Apply(ctx context.Context, name string, snapshot *jack.GraphSnapshot, connector Connector) (ApplyReport, error) {
	profile, ok := s.Get(name)
	if !ok {
		return ApplyReport{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return ApplyProfile(ctx, profile, snapshot, connector, s.logger), nil
}

// ApplyProfile replays a profile that need not be stored, such as a
// suggestion the operator accepted.
func ApplyProfile(ctx context.Context, profile Profile, snapshot *jack.GraphSnapshot, connector Connector, logger *slog.Logger) ApplyReport {
	report := ApplyReport{Profile: profile.Name, Total: len(profile.Pairs)}
	for _, pair := range profile.Pairs {
		source, sourceOK := snapshot.Port(pair.Source)
		destination, destinationOK := snapshot.Port(pair.Destination)
		if !sourceOK || !destinationOK {
			logger.Info("skipping profile pair with missing port",
				"profile", profile.Name,
				"source", pair.Source,
				"destination", pair.Destination,
			)
			report.Skipped = append(report.Skipped, pair)
			continue
		}
		if err := connector.Connect(ctx, source, destination); err != nil {
			logger.Warn("profile pair not connected",
				"profile", profile.Name,
				"source", pair.Source,
				"destination", pair.Destination,
				"error", err,
			)
			report.Failed = append(report.Failed, FailedPair{Pair: pair, Error: err.Error()})
			continue
		}
		report.Applied++
	}
	return report
}

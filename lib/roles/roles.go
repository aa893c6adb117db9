// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

// Package roles maps broadcast roles (playout system, audio processor,
// streaming encoder, hardware I/O) to JACK client names.
//
// Every heuristic that decides "is this client the player?" lives in
// one table, [Matchers], so the policy can be read, tested and
// extended from configuration without touching the code that uses it.
// Matching is case-insensitive.
package roles

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rdx-project/patchbay/lib/jack"
)

// Role names a function a client performs in the broadcast chain.
type Role string

const (
	// Player is the playout automation system (Rivendell).
	Player Role = "player"
	// Processor is an audio processor placed between player and
	// encoder.
	Processor Role = "processor"
	// Encoder is a streaming encoder that feeds an Icecast server.
	Encoder Role = "encoder"
	// Playback is the hardware output client.
	Playback Role = "playback"
	// Capture is the hardware input client.
	Capture Role = "capture"
	// Media is a desktop media player used as an ad-hoc source.
	Media Role = "media"
)

// All lists the built-in roles in chain order.
var All = []Role{Player, Processor, Encoder, Playback, Capture, Media}

// Kind selects how a Pattern compares against a client name.
type Kind string

const (
	Contains Kind = "contains"
	Prefix   Kind = "prefix"
	Exact    Kind = "exact"
)

// Pattern is one client-name test.
type Pattern struct {
	Kind  Kind   `yaml:"kind" json:"kind"`
	Value string `yaml:"value" json:"value"`
}

// Matches reports whether client satisfies the pattern.
func (p Pattern) Matches(client string) bool {
	name := strings.ToLower(client)
	value := strings.ToLower(p.Value)
	switch p.Kind {
	case Contains:
		return strings.Contains(name, value)
	case Prefix:
		return strings.HasPrefix(name, value)
	case Exact:
		return name == value
	default:
		return false
	}
}

func (p Pattern) String() string {
	return string(p.Kind) + " " + p.Value
}

// Validate rejects patterns with an unknown kind or an empty value.
func (p Pattern) Validate() error {
	switch p.Kind {
	case Contains, Prefix, Exact:
	default:
		return fmt.Errorf("pattern %q: unknown kind %q (want contains, prefix or exact)", p.Value, p.Kind)
	}
	if strings.TrimSpace(p.Value) == "" {
		return fmt.Errorf("pattern of kind %s has an empty value", p.Kind)
	}
	return nil
}

// Matchers is the role table: a client has a role when any of the
// role's patterns matches its name.
type Matchers map[Role][]Pattern

// Default returns the built-in table for a Rivendell broadcast chain.
// The hardware client "system" carries both capture and playback
// ports, so it appears under both roles.
func Default() Matchers {
	return Matchers{
		Player: {
			{Kind: Contains, Value: "rivendell"},
			{Kind: Prefix, Value: "rd"},
		},
		Processor: {
			{Kind: Contains, Value: "stereo_tool"},
			{Kind: Contains, Value: "jack_rack"},
			{Kind: Contains, Value: "carla"},
			{Kind: Contains, Value: "non_mixer"},
		},
		Encoder: {
			{Kind: Contains, Value: "liquidsoap"},
			{Kind: Contains, Value: "glasscoder"},
			{Kind: Contains, Value: "darkice"},
			{Kind: Contains, Value: "butt"},
			{Kind: Contains, Value: "icecast"},
		},
		Playback: {{Kind: Exact, Value: "system"}},
		Capture:  {{Kind: Exact, Value: "system"}},
		Media: {
			{Kind: Contains, Value: "vlc"},
			{Kind: Contains, Value: "mpv"},
		},
	}
}

// Match reports whether client has role.
func (m Matchers) Match(role Role, client string) bool {
	for _, pattern := range m[role] {
		if pattern.Matches(client) {
			return true
		}
	}
	return false
}

// RolesOf returns every role client has, in the order of All followed
// by any custom roles sorted by name.
func (m Matchers) RolesOf(client string) []Role {
	var result []Role
	for _, role := range m.Roles() {
		if m.Match(role, client) {
			result = append(result, role)
		}
	}
	return result
}

// Roles returns the built-in roles present in the table followed by
// custom roles in name order.
func (m Matchers) Roles() []Role {
	var result []Role
	builtin := make(map[Role]bool, len(All))
	for _, role := range All {
		builtin[role] = true
		if _, ok := m[role]; ok {
			result = append(result, role)
		}
	}
	var custom []Role
	for role := range m {
		if !builtin[role] {
			custom = append(custom, role)
		}
	}
	sort.Slice(custom, func(i, j int) bool { return custom[i] < custom[j] })
	return append(result, custom...)
}

// Find returns the snapshot's clients that have role, sorted by name.
func (m Matchers) Find(role Role, snapshot *jack.GraphSnapshot) []string {
	var clients []string
	for _, name := range snapshot.ClientNames() {
		if m.Match(role, name) {
			clients = append(clients, name)
		}
	}
	return clients
}

// Merge returns a copy of m with extra's patterns appended to each
// role. Roles absent from m are added.
func (m Matchers) Merge(extra Matchers) Matchers {
	merged := make(Matchers, len(m)+len(extra))
	for role, patterns := range m {
		merged[role] = append([]Pattern(nil), patterns...)
	}
	for role, patterns := range extra {
		merged[role] = append(merged[role], patterns...)
	}
	return merged
}

// Validate checks every pattern in the table.
func (m Matchers) Validate() error {
	for _, role := range m.Roles() {
		for _, pattern := range m[role] {
			if err := pattern.Validate(); err != nil {
				return fmt.Errorf("role %s: %w", role, err)
			}
		}
	}
	return nil
}

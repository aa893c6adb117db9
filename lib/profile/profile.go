// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package profile

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/rdx-project/patchbay/lib/jack"
)

// Pair is one literal connection, by qualified port name. It encodes
// in JSON as a two-element array, [source, destination].
type Pair struct {
	Source      string
	Destination string
}

func (p Pair) String() string {
	return p.Source + " -> " + p.Destination
}

func (p Pair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{p.Source, p.Destination})
}

func (p *Pair) UnmarshalJSON(data []byte) error {
	var fields []string
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if len(fields) != 2 {
		return fmt.Errorf("connection pair has %d elements, want 2", len(fields))
	}
	p.Source, p.Destination = fields[0], fields[1]
	return nil
}

// Profile is a named, ordered list of connections.
type Profile struct {
	Name  string `json:"name"`
	Pairs []Pair `json:"pairs"`
}

// PairsOf returns every connection of a snapshot, in snapshot order.
func PairsOf(snapshot *jack.GraphSnapshot) []Pair {
	pairs := make([]Pair, 0, len(snapshot.Connections))
	for _, connection := range snapshot.Connections {
		pairs = append(pairs, Pair{
			Source:      connection.Source.String(),
			Destination: connection.Destination.String(),
		})
	}
	return pairs
}

// Fingerprint returns the BLAKE3 digest, hex encoded, of the pair set.
// Order and duplicates do not affect it, so a profile and a live graph
// with the same edges have the same fingerprint.
func (p Profile) Fingerprint() string {
	return Fingerprint(p.Pairs)
}

// Fingerprint digests a pair set as described on Profile.Fingerprint.
func Fingerprint(pairs []Pair) string {
	lines := make([]string, 0, len(pairs))
	seen := make(map[Pair]struct{}, len(pairs))
	for _, pair := range pairs {
		if _, duplicate := seen[pair]; duplicate {
			continue
		}
		seen[pair] = struct{}{}
		lines = append(lines, pair.Source+"\x00"+pair.Destination+"\n")
	}
	sort.Strings(lines)

	hasher := blake3.New()
	for _, line := range lines {
		hasher.Write([]byte(line))
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// Comparison classifies a profile's pairs against a snapshot.
type Comparison struct {
	// Present pairs are connected now.
	Present []Pair `json:"present"`
	// Missing pairs have both ports available but are not connected.
	Missing []Pair `json:"missing"`
	// Unavailable pairs name at least one port that does not exist.
	Unavailable []Pair `json:"unavailable"`
}

// Compare reports which of the profile's pairs are live in snapshot.
func (p Profile) Compare(snapshot *jack.GraphSnapshot) Comparison {
	var comparison Comparison
	for _, pair := range p.Pairs {
		switch {
		case !snapshot.HasPort(pair.Source) || !snapshot.HasPort(pair.Destination):
			comparison.Unavailable = append(comparison.Unavailable, pair)
		case snapshot.HasConnection(pair.Source, pair.Destination):
			comparison.Present = append(comparison.Present, pair)
		default:
			comparison.Missing = append(comparison.Missing, pair)
		}
	}
	return comparison
}

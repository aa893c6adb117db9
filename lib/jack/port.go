// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package jack

import (
	"fmt"
	"strings"
)

// Direction is the signal direction of a port as seen by its owning
// client. Output ports produce audio; input ports consume it.
type Direction int

const (
	// DirectionUnknown marks a port whose direction could not be
	// determined. Such ports never appear in a snapshot.
	DirectionUnknown Direction = iota
	Output
	Input
)

func (d Direction) String() string {
	switch d {
	case Output:
		return "output"
	case Input:
		return "input"
	default:
		return "unknown"
	}
}

// MarshalText encodes the direction as its lowercase name.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText accepts "output" or "input".
func (d *Direction) UnmarshalText(text []byte) error {
	switch string(text) {
	case "output":
		*d = Output
	case "input":
		*d = Input
	default:
		return fmt.Errorf("unknown port direction %q", text)
	}
	return nil
}

// Port is a fully qualified JACK endpoint. Two ports are the same port
// when their qualified names (String) are equal.
type Port struct {
	Client    string    `json:"client"`
	Name      string    `json:"name"`
	Direction Direction `json:"direction"`
}

// String returns the qualified "client:name" form used by every JACK
// tool.
func (p Port) String() string {
	return p.Client + ":" + p.Name
}

// SplitPortName splits a qualified port name at its first colon. JACK
// port short names may themselves contain colons (a2j bridges do
// this), client names may not.
func SplitPortName(qualified string) (client, name string, ok bool) {
	client, name, ok = strings.Cut(qualified, ":")
	if !ok || client == "" || name == "" {
		return "", "", false
	}
	return client, name, true
}

// ClientOf returns the client part of a qualified port name, or the
// whole string when it has no colon.
func ClientOf(qualified string) string {
	client, _, ok := strings.Cut(qualified, ":")
	if !ok {
		return qualified
	}
	return client
}

// ClientPortSet holds one client's ports in listing order.
type ClientPortSet struct {
	Client  string `json:"client"`
	Outputs []Port `json:"outputs"`
	Inputs  []Port `json:"inputs"`
}

// Ports returns the ports of the given direction.
func (s ClientPortSet) Ports(direction Direction) []Port {
	switch direction {
	case Output:
		return s.Outputs
	case Input:
		return s.Inputs
	default:
		return nil
	}
}

// Connection is one observed edge, always oriented from an output port
// to an input port.
type Connection struct {
	Source      Port `json:"source"`
	Destination Port `json:"destination"`
}

// Key returns the "source -> destination" form used for logging and
// deduplication.
func (c Connection) Key() string {
	return c.Source.String() + " -> " + c.Destination.String()
}

// RawConnection is a pair of qualified port names as printed by the
// connection listing, before either end has been checked against the
// port listing.
type RawConnection struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

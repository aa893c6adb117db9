// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package jack

import (
	"sort"
	"time"
)

// GraphSnapshot is the registry state at one instant. It is built by
// [BuildSnapshot] and never modified afterwards. Every Connection
// refers to ports present in Clients: the source among some client's
// Outputs and the destination among some client's Inputs.
type GraphSnapshot struct {
	Clients     map[string]ClientPortSet `json:"clients"`
	Connections []Connection             `json:"connections"`

	// Dropped lists raw pairs from the connection listing that could
	// not be resolved against the port listing. A scan that races a
	// client appearing or disappearing produces these.
	Dropped []DroppedConnection `json:"dropped,omitempty"`

	TakenAt time.Time `json:"taken_at"`

	ports map[string]Port
	edges map[string]struct{}
}

// DroppedConnection is a raw pair that did not become a Connection.
type DroppedConnection struct {
	RawConnection
	Reason string `json:"reason"`
}

// Reasons recorded in DroppedConnection.Reason.
const (
	DropUnknownPort   = "unknown port"
	DropSameDirection = "both ends have the same direction"
)

// BuildSnapshot joins a port listing and a connection listing into a
// snapshot. Ports are grouped by client in listing order. Each raw pair
// is oriented output→input (pairs printed under an input port are
// flipped), duplicates are collapsed, and pairs naming an unknown port
// or two ports of the same direction are moved to Dropped.
func BuildSnapshot(ports []Port, raw []RawConnection, takenAt time.Time) *GraphSnapshot {
	snapshot := &GraphSnapshot{
		Clients: make(map[string]ClientPortSet),
		TakenAt: takenAt,
		ports:   make(map[string]Port, len(ports)),
		edges:   make(map[string]struct{}),
	}

	for _, port := range ports {
		if port.Direction != Output && port.Direction != Input {
			continue
		}
		qualified := port.String()
		if _, exists := snapshot.ports[qualified]; exists {
			continue
		}
		snapshot.ports[qualified] = port

		set := snapshot.Clients[port.Client]
		set.Client = port.Client
		if port.Direction == Output {
			set.Outputs = append(set.Outputs, port)
		} else {
			set.Inputs = append(set.Inputs, port)
		}
		snapshot.Clients[port.Client] = set
	}

	dropped := make(map[string]struct{})
	drop := func(pair RawConnection, reason string) {
		key := pair.Source + " -> " + pair.Destination
		if _, seen := dropped[key]; seen {
			return
		}
		dropped[key] = struct{}{}
		snapshot.Dropped = append(snapshot.Dropped, DroppedConnection{RawConnection: pair, Reason: reason})
	}

	for _, pair := range raw {
		first, firstKnown := snapshot.ports[pair.Source]
		second, secondKnown := snapshot.ports[pair.Destination]
		if !firstKnown || !secondKnown {
			drop(pair, DropUnknownPort)
			continue
		}

		var connection Connection
		switch {
		case first.Direction == Output && second.Direction == Input:
			connection = Connection{Source: first, Destination: second}
		case first.Direction == Input && second.Direction == Output:
			connection = Connection{Source: second, Destination: first}
		default:
			drop(pair, DropSameDirection)
			continue
		}

		key := connection.Key()
		if _, exists := snapshot.edges[key]; exists {
			continue
		}
		snapshot.edges[key] = struct{}{}
		snapshot.Connections = append(snapshot.Connections, connection)
	}

	return snapshot
}

// Client returns the port set of the named client.
func (s *GraphSnapshot) Client(name string) (ClientPortSet, bool) {
	set, ok := s.Clients[name]
	return set, ok
}

// ClientNames returns every client name in sorted order.
func (s *GraphSnapshot) ClientNames() []string {
	names := make([]string, 0, len(s.Clients))
	for name := range s.Clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Port looks up a port by qualified name.
func (s *GraphSnapshot) Port(qualified string) (Port, bool) {
	port, ok := s.ports[qualified]
	return port, ok
}

// HasPort reports whether the qualified port exists in this snapshot.
func (s *GraphSnapshot) HasPort(qualified string) bool {
	_, ok := s.ports[qualified]
	return ok
}

// HasConnection reports whether the edge source→destination exists.
func (s *GraphSnapshot) HasConnection(source, destination string) bool {
	_, ok := s.edges[source+" -> "+destination]
	return ok
}

// SourcesOf returns the output ports feeding destination, in
// connection order.
func (s *GraphSnapshot) SourcesOf(destination string) []Port {
	var sources []Port
	for _, connection := range s.Connections {
		if connection.Destination.String() == destination {
			sources = append(sources, connection.Source)
		}
	}
	return sources
}

// DestinationsOf returns the input ports fed by source, in connection
// order.
func (s *GraphSnapshot) DestinationsOf(source string) []Port {
	var destinations []Port
	for _, connection := range s.Connections {
		if connection.Source.String() == source {
			destinations = append(destinations, connection.Destination)
		}
	}
	return destinations
}

// ConnectionsOf returns every edge with at least one end on client.
func (s *GraphSnapshot) ConnectionsOf(client string) []Connection {
	var connections []Connection
	for _, connection := range s.Connections {
		if connection.Source.Client == client || connection.Destination.Client == client {
			connections = append(connections, connection)
		}
	}
	return connections
}

// ConnectionsBetween returns every edge from sourceClient to
// destinationClient.
func (s *GraphSnapshot) ConnectionsBetween(sourceClient, destinationClient string) []Connection {
	var connections []Connection
	for _, connection := range s.Connections {
		if connection.Source.Client == sourceClient && connection.Destination.Client == destinationClient {
			connections = append(connections, connection)
		}
	}
	return connections
}

// ClientDiff lists clients that appeared or disappeared between two
// snapshots. Both lists are sorted.
type ClientDiff struct {
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// Empty reports whether nothing changed.
func (d ClientDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// DiffClients compares the client sets of two snapshots. A nil
// previous snapshot reports every client in next as added.
func DiffClients(previous, next *GraphSnapshot) ClientDiff {
	var diff ClientDiff
	if next != nil {
		for _, name := range next.ClientNames() {
			if previous == nil {
				diff.Added = append(diff.Added, name)
				continue
			}
			if _, ok := previous.Clients[name]; !ok {
				diff.Added = append(diff.Added, name)
			}
		}
	}
	if previous != nil {
		for _, name := range previous.ClientNames() {
			if next == nil {
				diff.Removed = append(diff.Removed, name)
				continue
			}
			if _, ok := next.Clients[name]; !ok {
				diff.Removed = append(diff.Removed, name)
			}
		}
	}
	return diff
}

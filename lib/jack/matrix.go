// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package jack

// ClientMatrix counts edges between every ordered pair of clients.
// Sources index rows (clients with at least one output port) and
// Destinations index columns (clients with at least one input port),
// both sorted.
type ClientMatrix struct {
	Sources      []string `json:"sources"`
	Destinations []string `json:"destinations"`

	// Counts[i][j] is the number of edges from Sources[i] to
	// Destinations[j].
	Counts [][]int `json:"counts"`
}

// Matrix builds the client-level connection matrix of a snapshot.
func Matrix(snapshot *GraphSnapshot) ClientMatrix {
	var matrix ClientMatrix
	rows := make(map[string]int)
	columns := make(map[string]int)
	for _, name := range snapshot.ClientNames() {
		set := snapshot.Clients[name]
		if len(set.Outputs) > 0 {
			rows[name] = len(matrix.Sources)
			matrix.Sources = append(matrix.Sources, name)
		}
		if len(set.Inputs) > 0 {
			columns[name] = len(matrix.Destinations)
			matrix.Destinations = append(matrix.Destinations, name)
		}
	}

	matrix.Counts = make([][]int, len(matrix.Sources))
	for i := range matrix.Counts {
		matrix.Counts[i] = make([]int, len(matrix.Destinations))
	}
	for _, connection := range snapshot.Connections {
		row := rows[connection.Source.Client]
		column := columns[connection.Destination.Client]
		matrix.Counts[row][column]++
	}
	return matrix
}

// Count returns the number of edges from source to destination, or 0
// when either client is absent from the matrix.
func (m ClientMatrix) Count(source, destination string) int {
	for i, name := range m.Sources {
		if name != source {
			continue
		}
		for j, other := range m.Destinations {
			if other == destination {
				return m.Counts[i][j]
			}
		}
	}
	return 0
}

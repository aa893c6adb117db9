// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package jack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rdx-project/patchbay/lib/clock"
)

// Registry produces graph snapshots from a JACK server. It holds no
// graph state of its own: every Scan queries the server afresh.
type Registry struct {
	tools  Tools
	clock  clock.Clock
	logger *slog.Logger
}

// NewRegistry returns a Registry reading through tools. Snapshot
// timestamps come from clk.
func NewRegistry(tools Tools, clk clock.Clock, logger *slog.Logger) *Registry {
	return &Registry{tools: tools, clock: clk, logger: logger}
}

// Tools returns the tool boundary the registry queries.
func (r *Registry) Tools() Tools { return r.tools }

// Scan lists ports and connections and joins them into a snapshot.
// The returned error satisfies errors.Is for [ErrTimeout] when a
// listing exceeded its deadline and for [ErrServerDown] otherwise.
// Connections that do not resolve are kept out of the snapshot and
// logged; they never fail the scan.
func (r *Registry) Scan(ctx context.Context) (*GraphSnapshot, error) {
	portText, err := r.tools.ListPorts(ctx)
	if err != nil {
		return nil, classifyQuery("listing ports", err)
	}
	connectionText, err := r.tools.ListConnections(ctx)
	if err != nil {
		return nil, classifyQuery("listing connections", err)
	}

	snapshot := BuildSnapshot(
		ParsePortListing(portText),
		ParseConnectionListing(connectionText),
		r.clock.Now(),
	)
	for _, dropped := range snapshot.Dropped {
		r.logger.Warn("dropping inconsistent connection",
			"source", dropped.Source,
			"destination", dropped.Destination,
			"reason", dropped.Reason,
		)
	}
	return snapshot, nil
}

// Connections returns the raw connection listing without a port
// listing. The controller uses it to verify a single edge after a
// failed connect, where a full scan would double the cost.
func (r *Registry) Connections(ctx context.Context) ([]RawConnection, error) {
	text, err := r.tools.ListConnections(ctx)
	if err != nil {
		return nil, classifyQuery("listing connections", err)
	}
	return ParseConnectionListing(text), nil
}

// Reachable reports whether the status query succeeds.
func (r *Registry) Reachable(ctx context.Context) bool {
	if err := r.tools.Status(ctx); err != nil {
		r.logger.Debug("jack server unreachable", "error", err)
		return false
	}
	return true
}

// ContainsConnection reports whether raw holds the edge between source
// and destination, printed from either end.
func ContainsConnection(raw []RawConnection, source, destination string) bool {
	for _, pair := range raw {
		if pair.Source == source && pair.Destination == destination {
			return true
		}
		if pair.Source == destination && pair.Destination == source {
			return true
		}
	}
	return false
}

// classifyQuery maps a listing failure onto the scan error taxonomy.
// Cancellation of the caller's context passes through unchanged.
func classifyQuery(operation string, err error) error {
	switch {
	case errors.Is(err, ErrTimeout):
		return fmt.Errorf("%s: %w", operation, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%s: %w: %w", operation, ErrServerDown, err)
	}
}

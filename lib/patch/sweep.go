// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package patch

import (
	"context"
	"errors"
	"fmt"

	"github.com/rdx-project/patchbay/lib/jack"
)

// sweep disconnects every edge in connections that is not inside a
// protected client pair.
func (c *Controller) sweep(ctx context.Context, connections []jack.Connection) SweepReport {
	report := SweepReport{Removed: []jack.Connection{}, Preserved: []jack.Connection{}}
	for _, connection := range connections {
		if c.protection.Covers(connection.Source, connection.Destination) {
			c.logger.Info("keeping protected connection",
				"source", connection.Source.String(),
				"destination", connection.Destination.String(),
			)
			report.Preserved = append(report.Preserved, connection)
			continue
		}
		if err := c.Disconnect(ctx, connection.Source, connection.Destination); err != nil {
			report.Failed = append(report.Failed, FailedEdge{Connection: connection, Error: err.Error()})
			if errors.Is(err, context.Canceled) {
				return report
			}
			continue
		}
		report.Removed = append(report.Removed, connection)
	}
	return report
}

// DisconnectAllFrom removes every edge with an end on client, keeping
// edges inside protected pairs.
func (c *Controller) DisconnectAllFrom(ctx context.Context, client string) (SweepReport, error) {
	snapshot, err := c.Scan(ctx)
	if err != nil {
		return SweepReport{}, err
	}
	if _, ok := snapshot.Client(client); !ok {
		return SweepReport{}, fmt.Errorf("%w: %q", ErrUnknownClient, client)
	}
	return c.sweep(ctx, snapshot.ConnectionsOf(client)), nil
}

// EmergencyDisconnect removes every edge in the graph outside the
// protected pairs.
func (c *Controller) EmergencyDisconnect(ctx context.Context) (SweepReport, error) {
	snapshot, err := c.Scan(ctx)
	if err != nil {
		return SweepReport{}, err
	}
	c.logger.Warn("emergency disconnect", "connections", len(snapshot.Connections))
	return c.sweep(ctx, snapshot.Connections), nil
}

// SwitchInput makes newSource the only unprotected feed of target's
// stereo inputs. Every other source on those two inputs is cleared
// unless it belongs to a protected pair; then newSource's stereo
// outputs are connected left to left and right to right. Edges already
// in the requested state are left untouched.
func (c *Controller) SwitchInput(ctx context.Context, newSource, target string) (SwitchReport, error) {
	report := SwitchReport{
		Cleared:   []jack.Connection{},
		Preserved: []jack.Connection{},
		Pair:      PairResult{Source: newSource, Destination: target},
	}
	snapshot, err := c.Scan(ctx)
	if err != nil {
		return report, err
	}

	outputs, detail := stereoSide(snapshot, newSource, jack.Output)
	if outputs == nil {
		return report, &PairError{Kind: NotStereoCapable, Source: newSource, Destination: target, Detail: detail}
	}
	inputs, detail := stereoSide(snapshot, target, jack.Input)
	if inputs == nil {
		return report, &PairError{Kind: NotStereoCapable, Source: newSource, Destination: target, Detail: detail}
	}

	var stale []jack.Connection
	for i, input := range inputs {
		for _, source := range snapshot.SourcesOf(input.String()) {
			if source == outputs[i] {
				continue
			}
			stale = append(stale, jack.Connection{Source: source, Destination: input})
		}
	}
	swept := c.sweep(ctx, stale)
	report.Cleared = swept.Removed
	report.Preserved = swept.Preserved

	report.Pair.Left = LegResult{Source: outputs[0], Destination: inputs[0]}
	report.Pair.Right = LegResult{Source: outputs[1], Destination: inputs[1]}
	for _, leg := range report.Pair.legs() {
		c.connectLeg(ctx, snapshot, leg)
	}
	report.Pair.Protected = c.protection.IsProtected(protectKey(newSource, target))

	c.logger.Info("input switched",
		"source", newSource,
		"target", target,
		"cleared", len(report.Cleared),
		"preserved", len(report.Preserved),
	)
	return report, pairOutcome(&report.Pair)
}

// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

// Package patch is the only code that changes the JACK graph.
//
// A [Controller] wraps the server's connect and disconnect tools with
// the semantics the rest of the system relies on:
//
//   - Connect is idempotent. When the tool fails, a fresh connection
//     listing decides the outcome: an edge that exists is success
//     (jack_connect reports "already connected" as a failure on some
//     versions and not others).
//   - Disconnect is best effort. A non-zero exit usually means the edge
//     is already gone and is not an error.
//   - Multi-leg operations scan the graph first and never trust a
//     snapshot taken before the call. Stereo legs run left then right,
//     and the right leg is attempted even when the left leg fails.
//   - Sweeps (disconnect everything from a client, emergency
//     disconnect, input switching) leave edges inside protected client
//     pairs alone.
//
// The controller is stateless apart from the protection store it
// consults, so the interactive path and the reconciliation watcher may
// use it concurrently; the server serializes the underlying changes.
package patch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rdx-project/patchbay/lib/clock"
	"github.com/rdx-project/patchbay/lib/jack"
	"github.com/rdx-project/patchbay/lib/metrics"
	"github.com/rdx-project/patchbay/lib/protect"
	"github.com/rdx-project/patchbay/lib/stereo"
)

// Config holds a Controller's collaborators. Registry, Protection and
// Logger are required; Metrics may be nil and Clock defaults to the
// wall clock.
type Config struct {
	Registry   *jack.Registry
	Protection *protect.Store
	Metrics    *metrics.Metrics
	Clock      clock.Clock
	Logger     *slog.Logger
}

// Controller issues connection changes against a JACK server.
type Controller struct {
	registry   *jack.Registry
	tools      jack.Tools
	protection *protect.Store
	metrics    *metrics.Metrics
	clock      clock.Clock
	logger     *slog.Logger
}

// New returns a Controller.
func New(config Config) *Controller {
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Controller{
		registry:   config.Registry,
		tools:      config.Registry.Tools(),
		protection: config.Protection,
		metrics:    config.Metrics,
		clock:      clk,
		logger:     config.Logger,
	}
}

// Scan takes a fresh snapshot through the controller's registry and
// records it in metrics.
func (c *Controller) Scan(ctx context.Context) (*jack.GraphSnapshot, error) {
	start := c.clock.Now()
	snapshot, err := c.registry.Scan(ctx)
	c.metrics.ObserveScan(c.clock.Now().Sub(start), snapshot, err)
	return snapshot, err
}

// IsProtected reports whether key is a protected client pair. Callers
// use it to ask for confirmation before DisconnectStereoPair.
func (c *Controller) IsProtected(key protect.Key) bool {
	return c.protection.IsProtected(key)
}

// Connect connects source to destination. It returns nil when the edge
// exists afterwards, whether this call created it or not. Otherwise it
// returns a *ConnectError wrapping ErrRejected, or jack.ErrTimeout when
// the tool did not answer in time.
func (c *Controller) Connect(ctx context.Context, source, destination jack.Port) error {
	sourceName, destinationName := source.String(), destination.String()
	err := c.tools.Connect(ctx, sourceName, destinationName)
	if err == nil {
		c.metrics.CountMutation("connect", nil)
		c.logger.Info("connected", "source", sourceName, "destination", destinationName)
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	raw, listErr := c.registry.Connections(ctx)
	if listErr == nil && jack.ContainsConnection(raw, sourceName, destinationName) {
		c.metrics.CountMutation("connect", nil)
		c.logger.Debug("connect reported failure but edge exists",
			"source", sourceName,
			"destination", destinationName,
			"tool_error", err,
		)
		return nil
	}

	var connectErr *ConnectError
	if errors.Is(err, jack.ErrTimeout) {
		connectErr = &ConnectError{Source: sourceName, Destination: destinationName, Err: err}
	} else {
		connectErr = &ConnectError{Source: sourceName, Destination: destinationName, Err: fmt.Errorf("%w: %w", ErrRejected, err)}
	}
	c.metrics.CountMutation("connect", connectErr)
	c.logger.Warn("connect failed",
		"source", sourceName,
		"destination", destinationName,
		"error", err,
		"verify_error", listErr,
	)
	return connectErr
}

// Disconnect removes the edge source→destination. A non-zero exit from
// the tool is logged and treated as success, since the usual cause is
// an edge that is already gone. A timeout returns a *DisconnectError,
// which callers treat as a warning.
func (c *Controller) Disconnect(ctx context.Context, source, destination jack.Port) error {
	sourceName, destinationName := source.String(), destination.String()
	err := c.tools.Disconnect(ctx, sourceName, destinationName)
	switch {
	case err == nil:
		c.metrics.CountMutation("disconnect", nil)
		c.logger.Info("disconnected", "source", sourceName, "destination", destinationName)
		return nil
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, jack.ErrTimeout):
		c.metrics.CountMutation("disconnect", err)
		c.logger.Warn("disconnect timed out", "source", sourceName, "destination", destinationName, "error", err)
		return &DisconnectError{Source: sourceName, Destination: destinationName, Err: err}
	default:
		c.metrics.CountMutation("disconnect", nil)
		c.logger.Debug("disconnect reported failure, treating edge as absent",
			"source", sourceName,
			"destination", destinationName,
			"tool_error", err,
		)
		return nil
	}
}

// connectLeg connects one leg unless snapshot already shows it.
func (c *Controller) connectLeg(ctx context.Context, snapshot *jack.GraphSnapshot, leg *LegResult) {
	if snapshot.HasConnection(leg.Source.String(), leg.Destination.String()) {
		leg.Unchanged = true
		return
	}
	leg.fail(c.Connect(ctx, leg.Source, leg.Destination))
}

// disconnectLeg disconnects one leg unless snapshot shows it absent.
func (c *Controller) disconnectLeg(ctx context.Context, snapshot *jack.GraphSnapshot, leg *LegResult) {
	if !snapshot.HasConnection(leg.Source.String(), leg.Destination.String()) {
		leg.Unchanged = true
		return
	}
	leg.fail(c.Disconnect(ctx, leg.Source, leg.Destination))
}

// stereoSide resolves a client's stereo pair on one side.
func stereoSide(snapshot *jack.GraphSnapshot, client string, direction jack.Direction) ([]jack.Port, string) {
	set, ok := snapshot.Client(client)
	if !ok {
		return nil, fmt.Sprintf("client %q not found", client)
	}
	picked := stereo.PickFor(set, direction)
	if !stereo.Capable(picked) {
		return nil, fmt.Sprintf("client %q has %d %s port(s), need 2", client, len(set.Ports(direction)), direction)
	}
	return picked, ""
}

// pairOutcome turns per-leg errors into a *PairError, or nil when both
// legs succeeded.
func pairOutcome(result *PairResult) error {
	leftErr, rightErr := result.Left.Err, result.Right.Err
	switch {
	case leftErr == nil && rightErr == nil:
		return nil
	case leftErr != nil && rightErr != nil:
		return &PairError{
			Kind:        BothFailed,
			Source:      result.Source,
			Destination: result.Destination,
			Err:         errors.Join(leftErr, rightErr),
		}
	case leftErr != nil:
		return &PairError{Kind: PartialFailure, Leg: Left, Source: result.Source, Destination: result.Destination, Err: leftErr}
	default:
		return &PairError{Kind: PartialFailure, Leg: Right, Source: result.Source, Destination: result.Destination, Err: rightErr}
	}
}

// ConnectStereoPair connects the stereo outputs of sourceClient to the
// stereo inputs of destinationClient, left to left and right to right.
// When protectPair is true and both legs end up connected, the client pair
// is added to the protection store; a store write failure is reported
// in PairResult.Warning and does not fail the call.
//
// A scan failure is returned as is. Leg failures are returned as a
// *PairError alongside the PairResult.
func (c *Controller) ConnectStereoPair(ctx context.Context, sourceClient, destinationClient string, protectPair bool) (PairResult, error) {
	result := PairResult{Source: sourceClient, Destination: destinationClient}
	snapshot, err := c.Scan(ctx)
	if err != nil {
		return result, err
	}

	outputs, detail := stereoSide(snapshot, sourceClient, jack.Output)
	if outputs == nil {
		return result, &PairError{Kind: NotStereoCapable, Source: sourceClient, Destination: destinationClient, Detail: detail}
	}
	inputs, detail := stereoSide(snapshot, destinationClient, jack.Input)
	if inputs == nil {
		return result, &PairError{Kind: NotStereoCapable, Source: sourceClient, Destination: destinationClient, Detail: detail}
	}

	result.Left = LegResult{Source: outputs[0], Destination: inputs[0]}
	result.Right = LegResult{Source: outputs[1], Destination: inputs[1]}
	for _, leg := range result.legs() {
		c.connectLeg(ctx, snapshot, leg)
	}

	key := protectKey(sourceClient, destinationClient)
	outcome := pairOutcome(&result)
	if outcome == nil && protectPair {
		if err := c.protection.Add(key); err != nil {
			result.Warning = fmt.Sprintf("pair connected but protection not saved: %v", err)
		}
	}
	result.Protected = c.protection.IsProtected(key)
	return result, outcome
}

// DisconnectStereoPair removes the stereo legs between two clients and,
// when both legs are gone, drops the pair's protection. It does not
// check protection first: callers gate protected pairs with
// IsProtected and an explicit confirmation.
func (c *Controller) DisconnectStereoPair(ctx context.Context, sourceClient, destinationClient string) (PairResult, error) {
	result := PairResult{Source: sourceClient, Destination: destinationClient}
	snapshot, err := c.Scan(ctx)
	if err != nil {
		return result, err
	}

	outputs, detail := stereoSide(snapshot, sourceClient, jack.Output)
	if outputs == nil {
		return result, &PairError{Kind: NotStereoCapable, Source: sourceClient, Destination: destinationClient, Detail: detail}
	}
	inputs, detail := stereoSide(snapshot, destinationClient, jack.Input)
	if inputs == nil {
		return result, &PairError{Kind: NotStereoCapable, Source: sourceClient, Destination: destinationClient, Detail: detail}
	}

	result.Left = LegResult{Source: outputs[0], Destination: inputs[0]}
	result.Right = LegResult{Source: outputs[1], Destination: inputs[1]}
	for _, leg := range result.legs() {
		c.disconnectLeg(ctx, snapshot, leg)
	}

	key := protectKey(sourceClient, destinationClient)
	outcome := pairOutcome(&result)
	if outcome == nil && c.protection.IsProtected(key) {
		if err := c.protection.Remove(key); err != nil {
			result.Warning = fmt.Sprintf("pair disconnected but protection removal not saved: %v", err)
		}
	}
	result.Protected = c.protection.IsProtected(key)
	return result, outcome
}

// ConnectMonoToBoth feeds one output port to both stereo inputs of
// destinationClient. It is the explicit mono duplication operation;
// ConnectStereoPair never falls back to it.
func (c *Controller) ConnectMonoToBoth(ctx context.Context, source string, destinationClient string) (PairResult, error) {
	result := PairResult{Source: jack.ClientOf(source), Destination: destinationClient}
	snapshot, err := c.Scan(ctx)
	if err != nil {
		return result, err
	}
	sourcePort, ok := snapshot.Port(source)
	if !ok || sourcePort.Direction != jack.Output {
		return result, fmt.Errorf("%w: %s is not an output port", ErrUnknownPort, source)
	}
	inputs, detail := stereoSide(snapshot, destinationClient, jack.Input)
	if inputs == nil {
		return result, &PairError{Kind: NotStereoCapable, Source: result.Source, Destination: destinationClient, Detail: detail}
	}

	result.Left = LegResult{Source: sourcePort, Destination: inputs[0]}
	result.Right = LegResult{Source: sourcePort, Destination: inputs[1]}
	for _, leg := range result.legs() {
		c.connectLeg(ctx, snapshot, leg)
	}
	result.Protected = c.protection.IsProtected(protectKey(result.Source, destinationClient))
	return result, pairOutcome(&result)
}

func protectKey(sourceClient, destinationClient string) protect.Key {
	return protect.NewKey(sourceClient, destinationClient)
}

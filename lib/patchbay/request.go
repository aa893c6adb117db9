// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package patchbay

import (
	"context"
	"errors"
	"fmt"

	"github.com/rdx-project/patchbay/lib/jack"
	"github.com/rdx-project/patchbay/lib/patch"
	"github.com/rdx-project/patchbay/lib/profile"
	"github.com/rdx-project/patchbay/lib/protect"
)

// ErrConfirmationRequired is returned for a destructive request that
// was not confirmed: unpairing a protected pair, or an emergency
// disconnect.
var ErrConfirmationRequired = errors.New("confirmation required")

// Request is a command message for Serve.
type Request interface {
	// Name identifies the request kind in logs.
	Name() string

	execute(ctx context.Context, core *Core) (any, error)
}

// ConnectRequest connects two ports given by qualified name. Either
// order is accepted. Result: nil.
type ConnectRequest struct {
	Source      string
	Destination string
}

// DisconnectRequest removes the edge between two ports. Result: nil.
type DisconnectRequest struct {
	Source      string
	Destination string
}

// StereoPairRequest connects two clients' stereo pairs and optionally
// protects the client pair. Result: patch.PairResult.
type StereoPairRequest struct {
	Source      string
	Destination string
	Protect     bool
}

// UnpairRequest disconnects two clients' stereo pairs. A protected
// pair needs Confirmed. Result: patch.PairResult.
type UnpairRequest struct {
	Source      string
	Destination string
	Confirmed   bool
}

// MonoToBothRequest feeds one output port to both stereo inputs of a
// client. Result: patch.PairResult.
type MonoToBothRequest struct {
	Source      string
	Destination string
}

// ApplyProfileRequest replays a stored profile against a fresh scan.
// Result: profile.ApplyReport.
type ApplyProfileRequest struct {
	Profile string
}

// SaveProfileRequest stores the current graph under Profile. Result:
// profile.Profile.
type SaveProfileRequest struct {
	Profile string
}

// ProtectRequest adds (Protect true) or removes a protected client
// pair. Result: protect.Key.
type ProtectRequest struct {
	Source      string
	Destination string
	Protect     bool
}

// DisconnectAllRequest removes every unprotected edge of Client.
// Result: patch.SweepReport.
type DisconnectAllRequest struct {
	Client string
}

// EmergencyDisconnectRequest removes every unprotected edge in the
// graph. It must be Confirmed. Result: patch.SweepReport.
type EmergencyDisconnectRequest struct {
	Confirmed bool
}

// SwitchInputRequest makes Source the feed of Target's stereo inputs.
// Result: patch.SwitchReport.
type SwitchInputRequest struct {
	Source string
	Target string
}

func (ConnectRequest) Name() string             { return "connect" }
func (DisconnectRequest) Name() string          { return "disconnect" }
func (StereoPairRequest) Name() string          { return "stereo_pair" }
func (UnpairRequest) Name() string              { return "unpair" }
func (MonoToBothRequest) Name() string          { return "mono_to_both" }
func (ApplyProfileRequest) Name() string        { return "apply_profile" }
func (SaveProfileRequest) Name() string         { return "save_profile" }
func (ProtectRequest) Name() string             { return "protect" }
func (DisconnectAllRequest) Name() string       { return "disconnect_all" }
func (EmergencyDisconnectRequest) Name() string { return "emergency_disconnect" }
func (SwitchInputRequest) Name() string         { return "switch_input" }

// resolveEdge looks both ports up in a fresh scan and orients them
// output to input.
func resolveEdge(ctx context.Context, core *Core, first, second string) (jack.Port, jack.Port, error) {
	snapshot, err := core.controller.Scan(ctx)
	if err != nil {
		return jack.Port{}, jack.Port{}, err
	}
	a, ok := snapshot.Port(first)
	if !ok {
		return jack.Port{}, jack.Port{}, fmt.Errorf("%w: %s", patch.ErrUnknownPort, first)
	}
	b, ok := snapshot.Port(second)
	if !ok {
		return jack.Port{}, jack.Port{}, fmt.Errorf("%w: %s", patch.ErrUnknownPort, second)
	}
	switch {
	case a.Direction == jack.Output && b.Direction == jack.Input:
		return a, b, nil
	case a.Direction == jack.Input && b.Direction == jack.Output:
		return b, a, nil
	default:
		return jack.Port{}, jack.Port{}, fmt.Errorf("%w: %s and %s are both %s ports", patch.ErrRejected, first, second, a.Direction)
	}
}

func (r ConnectRequest) execute(ctx context.Context, core *Core) (any, error) {
	source, destination, err := resolveEdge(ctx, core, r.Source, r.Destination)
	if err != nil {
		return nil, err
	}
	return nil, core.controller.Connect(ctx, source, destination)
}

func (r DisconnectRequest) execute(ctx context.Context, core *Core) (any, error) {
	source, destination, err := resolveEdge(ctx, core, r.Source, r.Destination)
	if err != nil {
		return nil, err
	}
	return nil, core.controller.Disconnect(ctx, source, destination)
}

func (r StereoPairRequest) execute(ctx context.Context, core *Core) (any, error) {
	return core.controller.ConnectStereoPair(ctx, r.Source, r.Destination, r.Protect)
}

func (r UnpairRequest) execute(ctx context.Context, core *Core) (any, error) {
	key := protect.NewKey(r.Source, r.Destination)
	if core.controller.IsProtected(key) && !r.Confirmed {
		return patch.PairResult{Source: r.Source, Destination: r.Destination, Protected: true},
			fmt.Errorf("%w: %s is protected", ErrConfirmationRequired, key)
	}
	return core.controller.DisconnectStereoPair(ctx, r.Source, r.Destination)
}

func (r MonoToBothRequest) execute(ctx context.Context, core *Core) (any, error) {
	return core.controller.ConnectMonoToBoth(ctx, r.Source, r.Destination)
}

func (r ApplyProfileRequest) execute(ctx context.Context, core *Core) (any, error) {
	snapshot, err := core.controller.Scan(ctx)
	if err != nil {
		return profile.ApplyReport{Profile: r.Profile}, err
	}
	return core.profiles.Apply(ctx, r.Profile, snapshot, core.controller)
}

func (r SaveProfileRequest) execute(ctx context.Context, core *Core) (any, error) {
	snapshot, err := core.controller.Scan(ctx)
	if err != nil {
		return profile.Profile{}, err
	}
	return core.profiles.SaveCurrent(r.Profile, snapshot)
}

func (r ProtectRequest) execute(ctx context.Context, core *Core) (any, error) {
	key := protect.NewKey(r.Source, r.Destination)
	if r.Protect {
		return key, core.protection.Add(key)
	}
	return key, core.protection.Remove(key)
}

func (r DisconnectAllRequest) execute(ctx context.Context, core *Core) (any, error) {
	return core.controller.DisconnectAllFrom(ctx, r.Client)
}

func (r EmergencyDisconnectRequest) execute(ctx context.Context, core *Core) (any, error) {
	if !r.Confirmed {
		return patch.SweepReport{}, fmt.Errorf("%w: emergency disconnect", ErrConfirmationRequired)
	}
	return core.controller.EmergencyDisconnect(ctx)
}

func (r SwitchInputRequest) execute(ctx context.Context, core *Core) (any, error) {
	return core.controller.SwitchInput(ctx, r.Source, r.Target)
}

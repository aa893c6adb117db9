// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package patch

import (
	"errors"
	"fmt"
)

var (
	// ErrRejected means the server refused a connection and a fresh
	// listing confirmed the edge does not exist. Port names or
	// directions are the usual cause.
	ErrRejected = errors.New("connection rejected")

	// ErrUnknownPort means a named port is not in the current graph.
	ErrUnknownPort = errors.New("unknown port")

	// ErrUnknownClient means a named client is not in the current graph.
	ErrUnknownClient = errors.New("unknown client")
)

// ConnectError is returned by Controller.Connect. Err wraps either
// ErrRejected or jack.ErrTimeout, along with the underlying
// *jack.ToolError.
type ConnectError struct {
	Source      string
	Destination string
	Err         error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connecting %s -> %s: %v", e.Source, e.Destination, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// DisconnectError reports a disconnect whose outcome is unknown because
// the tool timed out. It is informational: callers log it and, when
// certainty matters, scan again.
type DisconnectError struct {
	Source      string
	Destination string
	Err         error
}

func (e *DisconnectError) Error() string {
	return fmt.Sprintf("disconnecting %s -> %s: %v", e.Source, e.Destination, e.Err)
}

func (e *DisconnectError) Unwrap() error { return e.Err }

// Leg names one side of a stereo operation.
type Leg int

const (
	Left Leg = iota
	Right
)

func (l Leg) String() string {
	if l == Left {
		return "left"
	}
	return "right"
}

// PairFailure classifies a failed stereo operation.
type PairFailure int

const (
	// PartialFailure means exactly one leg failed; PairError.Leg says
	// which. The other leg took effect.
	PartialFailure PairFailure = iota + 1
	// BothFailed means neither leg took effect.
	BothFailed
	// NotStereoCapable means a client is missing or has fewer than two
	// ports on the required side. Nothing was attempted.
	NotStereoCapable
)

func (f PairFailure) String() string {
	switch f {
	case PartialFailure:
		return "partial failure"
	case BothFailed:
		return "both legs failed"
	case NotStereoCapable:
		return "not stereo capable"
	default:
		return fmt.Sprintf("PairFailure(%d)", int(f))
	}
}

// PairError is returned by the stereo operations.
type PairError struct {
	Kind        PairFailure
	Leg         Leg
	Source      string
	Destination string

	// Detail explains a NotStereoCapable failure.
	Detail string

	// Err joins the leg errors.
	Err error
}

func (e *PairError) Error() string {
	prefix := fmt.Sprintf("stereo pair %s -> %s", e.Source, e.Destination)
	switch e.Kind {
	case PartialFailure:
		return fmt.Sprintf("%s: %s leg failed: %v", prefix, e.Leg, e.Err)
	case NotStereoCapable:
		return fmt.Sprintf("%s: %s", prefix, e.Detail)
	default:
		return fmt.Sprintf("%s: %s: %v", prefix, e.Kind, e.Err)
	}
}

func (e *PairError) Unwrap() error { return e.Err }

// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package patchbay

import (
	"context"
	"errors"

	"github.com/rdx-project/patchbay/lib/atomicfile"
	"github.com/rdx-project/patchbay/lib/jack"
	"github.com/rdx-project/patchbay/lib/patch"
	"github.com/rdx-project/patchbay/lib/profile"
)

// Failure is the operator-facing class of an error.
type Failure int

const (
	FailureNone Failure = iota

	// FailureServerDown: start the JACK server.
	FailureServerDown

	// FailureRejected: check port names and that the clients are
	// running.
	FailureRejected

	// FailureTimeout: retry.
	FailureTimeout

	// FailureConfirmation: repeat with confirmation.
	FailureConfirmation

	// FailureStorage: a state file could not be read or written.
	FailureStorage

	FailureOther
)

func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureServerDown:
		return "server_down"
	case FailureRejected:
		return "rejected"
	case FailureTimeout:
		return "timeout"
	case FailureConfirmation:
		return "confirmation_required"
	case FailureStorage:
		return "storage"
	default:
		return "other"
	}
}

// Classify maps err onto a Failure. A server that is down outranks a
// timeout, and a timeout outranks a rejection, so a stereo pair whose
// legs failed differently reports the most actionable cause.
func Classify(err error) Failure {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, jack.ErrServerDown):
		return FailureServerDown
	case errors.Is(err, jack.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, ErrConfirmationRequired):
		return FailureConfirmation
	case errors.Is(err, patch.ErrRejected),
		errors.Is(err, patch.ErrUnknownPort),
		errors.Is(err, patch.ErrUnknownClient),
		errors.Is(err, profile.ErrNotFound),
		errors.Is(err, profile.ErrExists):
		return FailureRejected
	case errors.Is(err, atomicfile.ErrWriteFailed), errors.Is(err, atomicfile.ErrMalformed):
		return FailureStorage
	}
	var pairErr *patch.PairError
	if errors.As(err, &pairErr) && pairErr.Kind == patch.NotStereoCapable {
		return FailureRejected
	}
	return FailureOther
}

// Describe returns the one-line advice shown next to a failed
// operation, or "" for a nil error.
func Describe(err error) string {
	switch Classify(err) {
	case FailureNone:
		return ""
	case FailureServerDown:
		return "JACK server not running: start the server and try again"
	case FailureRejected:
		return "operation rejected: check the port and client names and that the clients are running"
	case FailureTimeout:
		return "timed out waiting for the JACK server: try again"
	case FailureConfirmation:
		return "this change needs confirmation: repeat it confirmed"
	case FailureStorage:
		return "state file problem: check the state directory is writable and the file is valid JSON"
	default:
		return "operation did not take effect: try again"
	}
}

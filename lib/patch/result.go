// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package patch

import "github.com/rdx-project/patchbay/lib/jack"

// LegResult is the outcome of one leg of a stereo operation.
type LegResult struct {
	Source      jack.Port `json:"source"`
	Destination jack.Port `json:"destination"`

	// Unchanged is set when the fresh scan already showed the leg in
	// its requested state, so no tool was invoked.
	Unchanged bool `json:"unchanged,omitempty"`

	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

func (r *LegResult) fail(err error) {
	r.Err = err
	if err != nil {
		r.Error = err.Error()
	}
}

// PairResult describes a stereo operation leg by leg. It is returned
// alongside any *PairError so callers can show "connected L but not R".
type PairResult struct {
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	Left        LegResult `json:"left"`
	Right       LegResult `json:"right"`

	// Protected reports whether the client pair is in the protection
	// store after the operation.
	Protected bool `json:"protected"`

	// Warning carries a non-fatal problem, such as the protection store
	// failing to persist.
	Warning string `json:"warning,omitempty"`
}

func (r *PairResult) legs() []*LegResult {
	return []*LegResult{&r.Left, &r.Right}
}

// FailedEdge is an edge an operation tried and failed to change.
type FailedEdge struct {
	Connection jack.Connection `json:"connection"`
	Error      string          `json:"error"`
}

// SweepReport is the outcome of a multi-edge disconnect.
type SweepReport struct {
	Removed   []jack.Connection `json:"removed"`
	Preserved []jack.Connection `json:"preserved"`
	Failed    []FailedEdge      `json:"failed,omitempty"`
}

// SwitchReport is the outcome of SwitchInput.
type SwitchReport struct {
	Cleared   []jack.Connection `json:"cleared"`
	Preserved []jack.Connection `json:"preserved"`
	Pair      PairResult        `json:"pair"`
}

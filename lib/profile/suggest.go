// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package profile

import (
	"github.com/rdx-project/patchbay/lib/jack"
	"github.com/rdx-project/patchbay/lib/roles"
	"github.com/rdx-project/patchbay/lib/stereo"
)

// SuggestedName is the name given to generated profiles.
const SuggestedName = "Suggested"

// GenerateSuggested proposes the standard broadcast chain for the
// clients in snapshot:
//
//	player -> processor -> encoder
//	processor (or player when there is no processor) -> playback
//
// with the player feeding the encoder directly when no processor is
// present. Each role is filled by the first client, by name, that has
// a stereo pair on the side the hop needs. Each hop connects left to
// left and right to right. Missing roles drop their hops. The result is
// a proposal only; nothing is connected or stored.
func GenerateSuggested(snapshot *jack.GraphSnapshot, matchers roles.Matchers) Profile {
	find := func(role roles.Role, needOutputs, needInputs bool) (jack.ClientPortSet, bool) {
		for _, name := range matchers.Find(role, snapshot) {
			set := snapshot.Clients[name]
			if needOutputs && !stereo.Capable(stereo.PickFor(set, jack.Output)) {
				continue
			}
			if needInputs && !stereo.Capable(stereo.PickFor(set, jack.Input)) {
				continue
			}
			return set, true
		}
		return jack.ClientPortSet{}, false
	}

	player, havePlayer := find(roles.Player, true, false)
	processor, haveProcessor := find(roles.Processor, true, true)
	encoder, haveEncoder := find(roles.Encoder, false, true)
	playback, havePlayback := find(roles.Playback, false, true)

	profile := Profile{Name: SuggestedName}
	hop := func(from, to jack.ClientPortSet) {
		if from.Client == to.Client {
			return
		}
		outputs := stereo.PickFor(from, jack.Output)
		inputs := stereo.PickFor(to, jack.Input)
		for i := 0; i < 2; i++ {
			profile.Pairs = append(profile.Pairs, Pair{
				Source:      outputs[i].String(),
				Destination: inputs[i].String(),
			})
		}
	}

	if havePlayer && haveProcessor {
		hop(player, processor)
	}
	switch {
	case haveProcessor && haveEncoder:
		hop(processor, encoder)
	case havePlayer && haveEncoder:
		hop(player, encoder)
	}
	switch {
	case haveProcessor && havePlayback:
		hop(processor, playback)
	case havePlayer && havePlayback:
		hop(player, playback)
	}
	return profile
}

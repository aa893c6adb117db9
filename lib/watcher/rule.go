// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package watcher

import (
	"errors"
	"fmt"

	"github.com/rdx-project/patchbay/lib/jack"
	"github.com/rdx-project/patchbay/lib/roles"
	"github.com/rdx-project/patchbay/lib/stereo"
)

// Rule says that the stereo inputs of the first client holding the
// Destination role should be fed by a client holding one of the Source
// roles. Sources are in priority order: the first role with a
// stereo-capable client wins.
type Rule struct {
	Name        string       `yaml:"name" json:"name"`
	Sources     []roles.Role `yaml:"sources" json:"sources"`
	Destination roles.Role   `yaml:"destination" json:"destination"`
}

// DefaultRules feeds the player's record inputs from the hardware
// capture ports, falling back to a media player.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:        "capture-to-player",
			Sources:     []roles.Role{roles.Capture, roles.Media},
			Destination: roles.Player,
		},
	}
}

// Validate reports a rule missing its name or roles.
func (r Rule) Validate() error {
	var errs []error
	if r.Name == "" {
		errs = append(errs, errors.New("rule name is empty"))
	}
	if len(r.Sources) == 0 {
		errs = append(errs, fmt.Errorf("rule %q has no source roles", r.Name))
	}
	for _, source := range r.Sources {
		if source == "" {
			errs = append(errs, fmt.Errorf("rule %q has an empty source role", r.Name))
		}
	}
	if r.Destination == "" {
		errs = append(errs, fmt.Errorf("rule %q has no destination role", r.Name))
	}
	return errors.Join(errs...)
}

// endpoint is one side of a resolved rule.
type endpoint struct {
	client string
	ports  []jack.Port
}

// resolveDestination returns the first client matching role whose
// inputs form a stereo pair.
func resolveDestination(matchers roles.Matchers, role roles.Role, snapshot *jack.GraphSnapshot) (endpoint, bool) {
	for _, name := range matchers.Find(role, snapshot) {
		set, _ := snapshot.Client(name)
		if picked := stereo.PickFor(set, jack.Input); stereo.Capable(picked) {
			return endpoint{client: name, ports: picked}, true
		}
	}
	return endpoint{}, false
}

// resolveSource walks the rule's source roles in priority order and
// returns the first stereo-capable client other than exclude.
func resolveSource(matchers roles.Matchers, sources []roles.Role, exclude string, snapshot *jack.GraphSnapshot) (endpoint, bool) {
	for _, role := range sources {
		for _, name := range matchers.Find(role, snapshot) {
			if name == exclude {
				continue
			}
			set, _ := snapshot.Client(name)
			if picked := stereo.PickFor(set, jack.Output); stereo.Capable(picked) {
				return endpoint{client: name, ports: picked}, true
			}
		}
	}
	return endpoint{}, false
}

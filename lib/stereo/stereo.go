// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

// Package stereo picks the two ports of a port list that most likely
// carry the left and right channels of one stereo signal.
//
// Port naming across JACK clients is inconsistent: "out_L"/"out_R",
// "playout_0L"/"playout_0R", "capture_1"/"capture_2", "out_1"/"out_2",
// "FL"/"FR". [Pick] applies a fixed priority of rules and returns the
// first pair a rule produces:
//
//  1. Explicit naming: within one client, a port with a whole "l" or
//     "left" token and a port with a whole "r" or "right" token. Tokens
//     are separated by "_", "-" or ":".
//  2. Common base: within one client, ports sharing a base name once a
//     trailing channel number and side letter are removed. A pair with
//     the same number and opposite sides ("0L"/"0R") wins, then the
//     numbers 0 and 1, then 1 and 2.
//  3. Loose left/right: the first port anywhere that looks left and the
//     first that looks right, across clients.
//  4. Fallback: the first two ports.
//
// Ports are sorted by client then name before any rule runs, so the
// result does not depend on the order of the input.
package stereo

import (
	"sort"
	"strings"

	"github.com/rdx-project/patchbay/lib/jack"
)

// Pick returns the left and right ports of the best stereo pair in
// ports, in that order. It returns fewer than two ports only when
// ports has fewer than two entries; callers treat that as "not stereo
// capable".
func Pick(ports []jack.Port) []jack.Port {
	sorted := sortedCopy(ports)
	if len(sorted) < 2 {
		return sorted
	}
	if pair := byExplicitToken(sorted); pair != nil {
		return pair
	}
	if pair := byCommonBase(sorted); pair != nil {
		return pair
	}
	if pair := byLooseSide(sorted); pair != nil {
		return pair
	}
	return sorted[:2:2]
}

// PickFor picks from one client's ports of the given direction.
func PickFor(set jack.ClientPortSet, direction jack.Direction) []jack.Port {
	return Pick(set.Ports(direction))
}

// Capable reports whether ports contain a stereo pair.
func Capable(ports []jack.Port) bool {
	return len(ports) >= 2
}

func sortedCopy(ports []jack.Port) []jack.Port {
	sorted := append([]jack.Port(nil), ports...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Client != sorted[j].Client {
			return sorted[i].Client < sorted[j].Client
		}
		return sorted[i].Name < sorted[j].Name
	})
	return sorted
}

type side int

const (
	noSide side = iota
	left
	right
)

func tokens(name string) []string {
	return strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == '_' || r == '-' || r == ':'
	})
}

// tokenSide reports the side named by a whole token of name.
func tokenSide(name string) side {
	result := noSide
	for _, token := range tokens(name) {
		switch token {
		case "l", "left":
			if result == right {
				return noSide
			}
			result = left
		case "r", "right":
			if result == left {
				return noSide
			}
			result = right
		}
	}
	return result
}

// clientRuns splits sorted ports into runs of one client each.
func clientRuns(sorted []jack.Port) [][]jack.Port {
	var runs [][]jack.Port
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i == len(sorted) || sorted[i].Client != sorted[start].Client {
			runs = append(runs, sorted[start:i])
			start = i
		}
	}
	return runs
}

func byExplicitToken(sorted []jack.Port) []jack.Port {
	for _, run := range clientRuns(sorted) {
		var leftPort, rightPort *jack.Port
		for i := range run {
			switch tokenSide(run[i].Name) {
			case left:
				if leftPort == nil {
					leftPort = &run[i]
				}
			case right:
				if rightPort == nil {
					rightPort = &run[i]
				}
			}
		}
		if leftPort != nil && rightPort != nil {
			return []jack.Port{*leftPort, *rightPort}
		}
	}
	return nil
}

// suffix is a port name split into a base and its trailing channel
// number and side letter, e.g. "playout_0L" -> ("playout", 0, left).
type suffix struct {
	base      string
	number    int
	hasNumber bool
	side      side
}

func isSeparator(b byte) bool {
	return b == '_' || b == '-' || b == ':' || b == ' '
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func splitSuffix(name string) suffix {
	var result suffix
	s := name

	// A trailing side letter counts only after a digit or separator
	// ("0L", "_R"), so "vocal" keeps its "l".
	if n := len(s); n >= 2 && (isDigit(s[n-2]) || isSeparator(s[n-2])) {
		switch s[n-1] {
		case 'L', 'l':
			result.side = left
			s = s[:n-1]
		case 'R', 'r':
			result.side = right
			s = s[:n-1]
		}
	}

	end := len(s)
	for end > 0 && isDigit(s[end-1]) {
		end--
	}
	if end < len(s) && len(s)-end <= 6 {
		number := 0
		for _, digit := range s[end:] {
			number = number*10 + int(digit-'0')
		}
		result.number = number
		result.hasNumber = true
		s = s[:end]
	}

	result.base = strings.ToLower(strings.TrimRightFunc(s, func(r rune) bool {
		return r < 128 && isSeparator(byte(r))
	}))
	return result
}

type group struct {
	ports    []jack.Port
	suffixes []suffix
}

func byCommonBase(sorted []jack.Port) []jack.Port {
	for _, run := range clientRuns(sorted) {
		var order []string
		groups := make(map[string]*group)
		for _, port := range run {
			split := splitSuffix(port.Name)
			if !split.hasNumber && split.side == noSide {
				continue
			}
			g, ok := groups[split.base]
			if !ok {
				g = &group{}
				groups[split.base] = g
				order = append(order, split.base)
			}
			g.ports = append(g.ports, port)
			g.suffixes = append(g.suffixes, split)
		}
		for _, base := range order {
			if pair := groups[base].pair(); pair != nil {
				return pair
			}
		}
	}
	return nil
}

// pair applies the base-group preferences: matching number with
// opposite sides, then numbers (0, 1), then (1, 2).
func (g *group) pair() []jack.Port {
	bestLeft, bestRight := -1, -1
	bestNumber := 0
	for i, first := range g.suffixes {
		if first.side != left {
			continue
		}
		for j, second := range g.suffixes {
			if second.side != right || second.hasNumber != first.hasNumber || second.number != first.number {
				continue
			}
			if bestLeft < 0 || first.number < bestNumber {
				bestLeft, bestRight, bestNumber = i, j, first.number
			}
			break
		}
	}
	if bestLeft >= 0 {
		return []jack.Port{g.ports[bestLeft], g.ports[bestRight]}
	}

	for _, numbers := range [][2]int{{0, 1}, {1, 2}} {
		first, second := -1, -1
		for i, split := range g.suffixes {
			if !split.hasNumber || split.side != noSide {
				continue
			}
			if split.number == numbers[0] && first < 0 {
				first = i
			}
			if split.number == numbers[1] && second < 0 {
				second = i
			}
		}
		if first >= 0 && second >= 0 {
			return []jack.Port{g.ports[first], g.ports[second]}
		}
	}
	return nil
}

// looseSide accepts whole tokens, a side letter after a number or
// separator, a "left"/"right" substring, and the surround names "FL"
// and "FR".
func looseSide(name string) side {
	if s := tokenSide(name); s != noSide {
		return s
	}
	if s := splitSuffix(name).side; s != noSide {
		return s
	}
	lower := strings.ToLower(name)
	hasLeft := strings.Contains(lower, "left") || strings.HasSuffix(lower, "fl")
	hasRight := strings.Contains(lower, "right") || strings.HasSuffix(lower, "fr")
	switch {
	case hasLeft && !hasRight:
		return left
	case hasRight && !hasLeft:
		return right
	default:
		return noSide
	}
}

func byLooseSide(sorted []jack.Port) []jack.Port {
	leftIndex, rightIndex := -1, -1
	for i, port := range sorted {
		switch looseSide(port.Name) {
		case left:
			if leftIndex < 0 {
				leftIndex = i
			}
		case right:
			if rightIndex < 0 {
				rightIndex = i
			}
		}
	}
	if leftIndex < 0 || rightIndex < 0 {
		return nil
	}
	return []jack.Port{sorted[leftIndex], sorted[rightIndex]}
}

// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package jack

import (
	"strings"
	"unicode"
)

// propertiesPrefix introduces the per-port properties line printed by
// "jack_lsp -p", e.g. "\tproperties: output,physical,terminal,".
const propertiesPrefix = "properties:"

// ParsePortListing parses the output of "jack_lsp -p" into ports with
// a resolved direction, in listing order.
//
// An unindented line names a port. An indented line (any amount of
// spaces or tabs) that starts with "properties:" belongs to the
// preceding port and is authoritative: the port is an Output when the
// token "output" is present and an Input otherwise. Other indented
// lines (type or alias lines from extra jack_lsp flags) are ignored.
//
// Ports that never receive a properties line fall back to a name
// heuristic (see guessDirection). Ports whose direction is still
// unknown are dropped rather than placed in the wrong list. A port
// listed more than once keeps its first position.
func ParsePortListing(text string) []Port {
	type entry struct {
		client        string
		name          string
		direction     Direction
		sawProperties bool
	}

	var entries []*entry
	byName := make(map[string]*entry)
	var current *entry

	for _, line := range splitLines(text) {
		if strings.TrimSpace(line) == "" {
			continue
		}

		if isIndented(line) {
			if current == nil {
				continue
			}
			value, ok := cutPrefixFold(strings.TrimSpace(line), propertiesPrefix)
			if !ok {
				continue
			}
			current.sawProperties = true
			if hasToken(value, "output") {
				current.direction = Output
			} else {
				current.direction = Input
			}
			continue
		}

		client, name, ok := SplitPortName(strings.TrimSpace(line))
		if !ok {
			current = nil
			continue
		}
		qualified := client + ":" + name
		if existing, duplicate := byName[qualified]; duplicate {
			current = existing
			continue
		}
		current = &entry{client: client, name: name}
		byName[qualified] = current
		entries = append(entries, current)
	}

	ports := make([]Port, 0, len(entries))
	for _, e := range entries {
		direction := e.direction
		if !e.sawProperties {
			direction = guessDirection(e.name)
		}
		if direction == DirectionUnknown {
			continue
		}
		ports = append(ports, Port{Client: e.client, Name: e.name, Direction: direction})
	}
	return ports
}

// ParseConnectionListing parses the output of "jack_lsp -c" into raw
// pairs. An unindented line starts a new port; each indented line after
// it names a peer of that port. The width and kind of indentation do
// not matter (jack_lsp versions differ between spaces and tabs).
//
// The listing prints every port, so each edge normally appears twice:
// once under its output port and once under its input port. The raw
// pairs are returned as printed; [BuildSnapshot] orients and
// deduplicates them.
func ParseConnectionListing(text string) []RawConnection {
	var pairs []RawConnection
	current := ""

	for _, line := range splitLines(text) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if isIndented(line) {
			if current == "" {
				continue
			}
			if _, _, ok := SplitPortName(trimmed); !ok {
				continue
			}
			pairs = append(pairs, RawConnection{Source: current, Destination: trimmed})
			continue
		}
		if _, _, ok := SplitPortName(trimmed); ok {
			current = trimmed
		} else {
			current = ""
		}
	}
	return pairs
}

// guessDirection infers a direction from a port's short name when the
// server did not report properties. The match is case-insensitive: a
// name containing "out" but not "in" is an Output, one containing "in"
// but not "out" is an Input, anything else is unknown.
func guessDirection(name string) Direction {
	lower := strings.ToLower(name)
	hasOut := strings.Contains(lower, "out")
	hasIn := strings.Contains(lower, "in")
	switch {
	case hasOut && !hasIn:
		return Output
	case hasIn && !hasOut:
		return Input
	default:
		return DirectionUnknown
	}
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines
}

func isIndented(line string) bool {
	return line != "" && (line[0] == ' ' || line[0] == '\t')
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	return s[len(prefix):], true
}

// hasToken reports whether value contains want as a whole token, with
// tokens separated by commas or whitespace.
func hasToken(value, want string) bool {
	tokens := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	for _, token := range tokens {
		if strings.EqualFold(token, want) {
			return true
		}
	}
	return false
}

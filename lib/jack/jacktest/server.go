// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

// Package jacktest provides an in-memory JACK server implementing
// [jack.Tools] for tests. It renders its state as the same text the
// real "jack_lsp -p" and "jack_lsp -c" print (with a mix of tab and
// space indentation, as different JACK builds do), so code under test
// runs through the production parsers rather than around them.
//
// Mutations behave like the real tools: connecting an existing edge
// fails with a non-zero exit, disconnecting a missing edge fails with
// a non-zero exit, and a stopped server fails every call.
package jacktest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rdx-project/patchbay/lib/jack"
)

// Operation names recorded in Call.Op.
const (
	OpStatus          = "status"
	OpListPorts       = "list-ports"
	OpListConnections = "list-connections"
	OpConnect         = "connect"
	OpDisconnect      = "disconnect"
)

// Call is one recorded invocation.
type Call struct {
	Op          string
	Source      string
	Destination string
}

var errExitStatus = errors.New("exit status 1")

// Server is a fake JACK server. The zero value is not usable; call New.
type Server struct {
	mu sync.Mutex

	ports []jack.Port
	bare  map[string]bool
	edges []jack.RawConnection

	down     bool
	rejected map[string]bool
	timeouts map[string]bool
	calls    []Call
}

// New returns a running server with no clients.
func New() *Server {
	return &Server{
		bare:     make(map[string]bool),
		rejected: make(map[string]bool),
		timeouts: make(map[string]bool),
	}
}

// AddClient registers a client with the given output and input port
// short names. Ports carry a properties line in the listing.
func (s *Server) AddClient(client string, outputs, inputs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range outputs {
		s.ports = append(s.ports, jack.Port{Client: client, Name: name, Direction: jack.Output})
	}
	for _, name := range inputs {
		s.ports = append(s.ports, jack.Port{Client: client, Name: name, Direction: jack.Input})
	}
}

// AddBarePort registers a port that is listed without a properties
// line, leaving its direction to the name heuristic. direction is
// what the server itself treats the port as when connecting.
func (s *Server) AddBarePort(client, name string, direction jack.Direction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	port := jack.Port{Client: client, Name: name, Direction: direction}
	s.ports = append(s.ports, port)
	s.bare[port.String()] = true
}

// RemoveClient unregisters a client and every edge touching it, as
// happens when the client process exits.
func (s *Server) RemoveClient(client string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ports := s.ports[:0]
	for _, port := range s.ports {
		if port.Client != client {
			ports = append(ports, port)
		}
	}
	s.ports = ports
	edges := s.edges[:0]
	for _, edge := range s.edges {
		if jack.ClientOf(edge.Source) != client && jack.ClientOf(edge.Destination) != client {
			edges = append(edges, edge)
		}
	}
	s.edges = edges
}

// Link creates an edge directly, as another JACK client would. It
// panics when either port is unknown so test setup mistakes surface.
func (s *Server) Link(source, destination string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.portLocked(source); !ok {
		panic("jacktest: unknown port " + source)
	}
	if _, ok := s.portLocked(destination); !ok {
		panic("jacktest: unknown port " + destination)
	}
	if !s.hasEdgeLocked(source, destination) {
		s.edges = append(s.edges, jack.RawConnection{Source: source, Destination: destination})
	}
}

// SetDown stops or restarts the server. A stopped server keeps its
// graph but fails every call.
func (s *Server) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// Reject makes every Connect of source→destination fail with a
// non-zero exit, without creating the edge.
func (s *Server) Reject(source, destination string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected[source+" -> "+destination] = true
}

// Stall makes every Connect or Disconnect of source→destination fail
// as if the tool had exceeded its deadline.
func (s *Server) Stall(source, destination string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeouts[source+" -> "+destination] = true
}

// HasEdge reports whether source→destination is connected.
func (s *Server) HasEdge(source, destination string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasEdgeLocked(source, destination)
}

// Edges returns every edge in creation order.
func (s *Server) Edges() []jack.RawConnection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]jack.RawConnection(nil), s.edges...)
}

// Calls returns every recorded invocation in order.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CountCalls returns how many invocations of op were recorded.
func (s *Server) CountCalls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, call := range s.calls {
		if call.Op == op {
			count++
		}
	}
	return count
}

// ResetCalls clears the call log.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

func (s *Server) Status(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: OpStatus})
	if s.down {
		return s.downErrorLocked("jack_lsp")
	}
	return nil
}

func (s *Server) ListPorts(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: OpListPorts})
	if s.down {
		return "", s.downErrorLocked("jack_lsp", "-p")
	}

	var builder strings.Builder
	for i, port := range s.ports {
		builder.WriteString(port.String())
		builder.WriteByte('\n')
		if s.bare[port.String()] {
			continue
		}
		builder.WriteString(indent(i))
		if port.Direction == jack.Output {
			builder.WriteString("properties: output,physical,terminal,\n")
		} else {
			builder.WriteString("properties: input,\n")
		}
	}
	return builder.String(), nil
}

// ListConnections prints every port followed by its peers, each edge
// appearing once under each of its ends, as jack_lsp -c does.
func (s *Server) ListConnections(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: OpListConnections})
	if s.down {
		return "", s.downErrorLocked("jack_lsp", "-c")
	}

	var builder strings.Builder
	for i, port := range s.ports {
		qualified := port.String()
		builder.WriteString(qualified)
		builder.WriteByte('\n')
		for _, edge := range s.edges {
			var peer string
			switch qualified {
			case edge.Source:
				peer = edge.Destination
			case edge.Destination:
				peer = edge.Source
			default:
				continue
			}
			builder.WriteString(indent(i))
			builder.WriteString(peer)
			builder.WriteByte('\n')
		}
	}
	return builder.String(), nil
}

func (s *Server) Connect(ctx context.Context, source, destination string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: OpConnect, Source: source, Destination: destination})
	if s.down {
		return s.downErrorLocked("jack_connect", source, destination)
	}
	key := source + " -> " + destination
	if s.timeouts[key] {
		return &jack.ToolError{Command: "jack_connect", Args: []string{source, destination}, ExitCode: -1, Err: jack.ErrTimeout}
	}
	if s.rejected[key] {
		return exitError("jack_connect", "cannot connect client", source, destination)
	}

	sourcePort, sourceKnown := s.portLocked(source)
	destinationPort, destinationKnown := s.portLocked(destination)
	if !sourceKnown || !destinationKnown {
		return exitError("jack_connect", "ERROR "+source+" not a valid port", source, destination)
	}
	if sourcePort.Direction == jack.Input && destinationPort.Direction == jack.Output {
		// jack_connect accepts its arguments in either order.
		source, destination = destination, source
	} else if sourcePort.Direction != jack.Output || destinationPort.Direction != jack.Input {
		return exitError("jack_connect", "cannot connect ports of the same direction", source, destination)
	}
	if s.hasEdgeLocked(source, destination) {
		return exitError("jack_connect", "already connected", source, destination)
	}
	s.edges = append(s.edges, jack.RawConnection{Source: source, Destination: destination})
	return nil
}

func (s *Server) Disconnect(ctx context.Context, source, destination string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: OpDisconnect, Source: source, Destination: destination})
	if s.down {
		return s.downErrorLocked("jack_disconnect", source, destination)
	}
	if s.timeouts[source+" -> "+destination] {
		return &jack.ToolError{Command: "jack_disconnect", Args: []string{source, destination}, ExitCode: -1, Err: jack.ErrTimeout}
	}
	for i, edge := range s.edges {
		if (edge.Source == source && edge.Destination == destination) ||
			(edge.Source == destination && edge.Destination == source) {
			s.edges = append(s.edges[:i], s.edges[i+1:]...)
			return nil
		}
	}
	return exitError("jack_disconnect", "cannot disconnect client", source, destination)
}

func (s *Server) portLocked(qualified string) (jack.Port, bool) {
	for _, port := range s.ports {
		if port.String() == qualified {
			return port, true
		}
	}
	return jack.Port{}, false
}

func (s *Server) hasEdgeLocked(source, destination string) bool {
	for _, edge := range s.edges {
		if edge.Source == source && edge.Destination == destination {
			return true
		}
	}
	return false
}

func (s *Server) downErrorLocked(command string, args ...string) error {
	return exitError(command, "JACK server not running", args...)
}

func exitError(command, stderr string, args ...string) error {
	return &jack.ToolError{
		Command:  command,
		Args:     args,
		ExitCode: 1,
		Stderr:   stderr,
		Err:      errExitStatus,
	}
}

// indent alternates between the indentation styles seen from
// different jack_lsp builds.
func indent(i int) string {
	switch i % 3 {
	case 0:
		return "\t"
	case 1:
		return "   "
	default:
		return " \t"
	}
}

var _ jack.Tools = (*Server)(nil)

// String renders the edge list for test failure messages.
func (s *Server) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := make([]string, 0, len(s.edges))
	for _, edge := range s.edges {
		lines = append(lines, fmt.Sprintf("%s -> %s", edge.Source, edge.Destination))
	}
	return strings.Join(lines, "\n")
}

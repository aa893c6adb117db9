// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rdx-project/patchbay/lib/jack"
	"github.com/rdx-project/patchbay/lib/patch"
	"github.com/rdx-project/patchbay/lib/profile"
	"github.com/rdx-project/patchbay/lib/protect"
	"github.com/rdx-project/patchbay/lib/watcher"
)

// styles are built against the output writer so piped output carries
// no escape sequences.
type styles struct {
	renderer  *lipgloss.Renderer
	heading   lipgloss.Style
	good      lipgloss.Style
	bad       lipgloss.Style
	dim       lipgloss.Style
	protected lipgloss.Style
}

func newStyles(w io.Writer) styles {
	renderer := lipgloss.NewRenderer(w)
	return styles{
		renderer:  renderer,
		heading:   renderer.NewStyle().Bold(true),
		good:      renderer.NewStyle().Foreground(lipgloss.Color("2")),
		bad:       renderer.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		dim:       renderer.NewStyle().Foreground(lipgloss.Color("8")),
		protected: renderer.NewStyle().Foreground(lipgloss.Color("3")),
	}
}

// cell pads text to width, right aligned.
func (s styles) cell(text string, width int) string {
	return s.renderer.NewStyle().Width(width).Align(lipgloss.Right).Render(text)
}

func (s styles) mark(ok bool) string {
	if ok {
		return s.good.Render("ok")
	}
	return s.bad.Render("FAILED")
}

func renderConnections(w io.Writer, s styles, snapshot *jack.GraphSnapshot, protection *protect.Store) {
	if len(snapshot.Connections) == 0 {
		fmt.Fprintln(w, s.dim.Render("no connections"))
	}
	width := 0
	for _, connection := range snapshot.Connections {
		width = max(width, lipgloss.Width(connection.Source.String()))
	}
	for _, connection := range snapshot.Connections {
		source := connection.Source.String()
		line := source + strings.Repeat(" ", width-lipgloss.Width(source)) + " -> " + connection.Destination.String()
		if protection.Covers(connection.Source, connection.Destination) {
			line += " " + s.protected.Render("[protected]")
		}
		fmt.Fprintln(w, line)
	}
	for _, dropped := range snapshot.Dropped {
		fmt.Fprintln(w, s.dim.Render(fmt.Sprintf("ignored %s -> %s: %s", dropped.Source, dropped.Destination, dropped.Reason)))
	}
}

func renderMatrix(w io.Writer, s styles, matrix jack.ClientMatrix) {
	if len(matrix.Sources) == 0 || len(matrix.Destinations) == 0 {
		fmt.Fprintln(w, s.dim.Render("no clients"))
		return
	}
	rowWidth := 0
	for _, source := range matrix.Sources {
		rowWidth = max(rowWidth, lipgloss.Width(source))
	}
	widths := make([]int, len(matrix.Destinations))
	header := strings.Repeat(" ", rowWidth)
	for j, destination := range matrix.Destinations {
		widths[j] = max(lipgloss.Width(destination), 3)
		header += "  " + s.heading.Render(s.cell(destination, widths[j]))
	}
	fmt.Fprintln(w, header)

	for i, source := range matrix.Sources {
		line := s.heading.Render(source) + strings.Repeat(" ", rowWidth-lipgloss.Width(source))
		for j := range matrix.Destinations {
			count := matrix.Counts[i][j]
			text := s.dim.Render(s.cell(".", widths[j]))
			if count > 0 {
				text = s.good.Render(s.cell(fmt.Sprint(count), widths[j]))
			}
			line += "  " + text
		}
		fmt.Fprintln(w, line)
	}
}

func renderLeg(w io.Writer, s styles, label string, leg patch.LegResult) {
	if leg.Source.Client == "" && leg.Error == "" {
		return
	}
	edge := leg.Source.String() + " -> " + leg.Destination.String()
	switch {
	case leg.Error != "":
		fmt.Fprintf(w, "  %s %s %s: %s\n", label, s.mark(false), edge, leg.Error)
	case leg.Unchanged:
		fmt.Fprintf(w, "  %s %s %s %s\n", label, s.mark(true), edge, s.dim.Render("(unchanged)"))
	default:
		fmt.Fprintf(w, "  %s %s %s\n", label, s.mark(true), edge)
	}
}

func renderPair(w io.Writer, s styles, verb string, result patch.PairResult) {
	fmt.Fprintf(w, "%s %s -> %s\n", s.heading.Render(verb), result.Source, result.Destination)
	renderLeg(w, s, "L", result.Left)
	renderLeg(w, s, "R", result.Right)
	if result.Protected {
		fmt.Fprintln(w, "  "+s.protected.Render("protected"))
	}
	if result.Warning != "" {
		fmt.Fprintf(w, "  warning: %s\n", result.Warning)
	}
}

func renderEdges(w io.Writer, s styles, label string, connections []jack.Connection) {
	if len(connections) == 0 {
		return
	}
	fmt.Fprintf(w, "%s (%d):\n", s.heading.Render(label), len(connections))
	for _, connection := range connections {
		fmt.Fprintf(w, "  %s\n", connection.Key())
	}
}

func renderFailedEdges(w io.Writer, s styles, failed []patch.FailedEdge) {
	if len(failed) == 0 {
		return
	}
	fmt.Fprintf(w, "%s (%d):\n", s.bad.Render("failed"), len(failed))
	for _, edge := range failed {
		fmt.Fprintf(w, "  %s: %s\n", edge.Connection.Key(), edge.Error)
	}
}

func renderSweep(w io.Writer, s styles, report patch.SweepReport) {
	renderEdges(w, s, "removed", report.Removed)
	renderEdges(w, s, "preserved (protected)", report.Preserved)
	renderFailedEdges(w, s, report.Failed)
	if len(report.Removed) == 0 && len(report.Preserved) == 0 && len(report.Failed) == 0 {
		fmt.Fprintln(w, s.dim.Render("nothing to disconnect"))
	}
}

func renderSwitch(w io.Writer, s styles, report patch.SwitchReport) {
	renderEdges(w, s, "cleared", report.Cleared)
	renderEdges(w, s, "preserved (protected)", report.Preserved)
	renderPair(w, s, "connected", report.Pair)
}

func renderApply(w io.Writer, s styles, report profile.ApplyReport) {
	fmt.Fprintf(w, "%s %q: %d of %d connected\n", s.heading.Render("applied"), report.Profile, report.Applied, report.Total)
	for _, pair := range report.Skipped {
		fmt.Fprintf(w, "  %s %s %s\n", s.dim.Render("skipped"), pair, s.dim.Render("(port not present)"))
	}
	for _, failed := range report.Failed {
		fmt.Fprintf(w, "  %s %s: %s\n", s.bad.Render("failed"), failed.Pair, failed.Error)
	}
}

func renderPairs(w io.Writer, s styles, label string, pairs []profile.Pair) {
	if len(pairs) == 0 {
		return
	}
	fmt.Fprintf(w, "%s (%d):\n", label, len(pairs))
	for _, pair := range pairs {
		fmt.Fprintf(w, "  %s\n", pair)
	}
}

func renderTick(w io.Writer, s styles, report watcher.TickReport) {
	fmt.Fprintf(w, "%s %s\n", s.heading.Render("tick"), report.Outcome)
	if report.ScanError != nil {
		fmt.Fprintf(w, "  scan: %v\n", report.ScanError)
	}
	for _, name := range report.Clients.Added {
		fmt.Fprintf(w, "  %s %s\n", s.good.Render("+"), name)
	}
	for _, name := range report.Clients.Removed {
		fmt.Fprintf(w, "  %s %s\n", s.bad.Render("-"), name)
	}
	for _, outcome := range report.Rules {
		fmt.Fprintf(w, "  %s: %s", outcome.Rule, outcome.Action)
		if outcome.Source != "" || outcome.Destination != "" {
			fmt.Fprintf(w, " (%s -> %s)", outcome.Source, outcome.Destination)
		}
		fmt.Fprintln(w)
		for _, failed := range outcome.Failed {
			fmt.Fprintf(w, "    %s %s: %s\n", s.bad.Render("failed"), failed.Connection.Key(), failed.Error)
		}
	}
}

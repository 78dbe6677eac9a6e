package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/star/orbitscan/internal/orbit"
	"github.com/star/orbitscan/internal/propagation"
	"github.com/star/orbitscan/internal/tle"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Width(12)

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

const timeLayout = "2006-01-02 15:04:05"

func satelliteLabel(el tle.Elements) string {
	if el.Name == "" {
		return fmt.Sprintf("NORAD %d", el.NORADID)
	}
	return fmt.Sprintf("%s (NORAD %d)", el.Name, el.NORADID)
}

func field(label, value string) string {
	return labelStyle.Render(label) + value + "\n"
}

func liveLine(s orbit.Snapshot) string {
	if s.Fallback {
		return warnStyle.Render(fmt.Sprintf("unavailable (%s)", propagation.Describe(s.Code)))
	}
	return fmt.Sprintf("%.4f°, %.4f°, %.1f km at %s UTC",
		s.Geodetic.Lat, s.Geodetic.Lon, s.Geodetic.Alt, s.Time.UTC().Format(timeLayout))
}

// renderReport formats a run result for the terminal.
func renderReport(el tle.Elements, res *orbit.Result) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("orbitscan  "+satelliteLabel(el)) + "\n\n")
	b.WriteString(field("Live", liveLine(res.Live)))
	if res.LiveOnly {
		return b.String()
	}

	msgStyle := okStyle
	if len(res.Failures) > 0 {
		msgStyle = warnStyle
	}
	b.WriteString(msgStyle.Render(res.Message) + "\n\n")

	step := time.Duration(res.StepSeconds * float64(time.Second))
	b.WriteString(field("Start", res.Start.UTC().Format(timeLayout)+" UTC"))
	b.WriteString(field("Step", step.String()))
	b.WriteString(field("Samples", fmt.Sprintf("%d (%d propagated)", len(res.Samples), res.Propagated)))
	b.WriteString(field("Target", fmt.Sprintf("%.4f°, %.4f°", res.Target.Lat, res.Target.Lon)))
	b.WriteString(field("Width", fmt.Sprintf("%.1f km", res.WidthKm)))

	if len(res.Failures) > 0 {
		codes := make([]int, 0, len(res.Failures))
		for code := range res.Failures {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			b.WriteString(field("Failures", fmt.Sprintf("%d × code %d: %s", res.Failures[code], code, propagation.Describe(code))))
		}
	}

	windows := res.Windows()
	b.WriteString("\n" + headerStyle.Render(fmt.Sprintf("Coverage windows (%d)", len(windows))) + "\n")
	if len(windows) == 0 {
		b.WriteString(dimStyle.Render("target never inside the footprint") + "\n")
		return b.String()
	}
	for i, w := range windows {
		b.WriteString(fmt.Sprintf("%3d  %s → %s  %4d samples  peak %5.1f°  min range %7.1f km\n",
			i+1,
			w.Start.UTC().Format(timeLayout),
			w.End.UTC().Format(timeLayout),
			w.Samples,
			w.PeakElevationDeg,
			w.MinRangeKm,
		))
	}
	return b.String()
}

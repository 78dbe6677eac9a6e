package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/star/orbitscan/internal/config"
	"github.com/star/orbitscan/internal/logging"
	"github.com/star/orbitscan/internal/orbit"
	"github.com/star/orbitscan/internal/tle"
)

const (
	defaultRefresh = 5 * time.Second
	minRefresh     = 1 * time.Second
	maxRefresh     = 5 * time.Minute

	trackLength = 8
)

// liveFunc returns the current position of el.
type liveFunc func(ctx context.Context, el tle.Elements) orbit.Snapshot

type (
	pollMsg     struct{}
	snapshotMsg orbit.Snapshot
)

// watchModel re-polls the live position every refresh interval.
type watchModel struct {
	ctx     context.Context
	el      tle.Elements
	live    liveFunc
	refresh time.Duration

	current orbit.Snapshot
	track   []orbit.Snapshot // newest last
	polls   int
}

func newWatchModel(ctx context.Context, el tle.Elements, live liveFunc, refresh time.Duration) watchModel {
	return watchModel{ctx: ctx, el: el, live: live, refresh: refresh}
}

func (m watchModel) poll() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(m.live(m.ctx, m.el))
	}
}

// Init implements tea.Model.
func (m watchModel) Init() tea.Cmd {
	return m.poll()
}

// Update implements tea.Model.
func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.poll()
		}
	case pollMsg:
		return m, m.poll()
	case snapshotMsg:
		m.current = orbit.Snapshot(msg)
		m.polls++
		m.track = append(m.track, m.current)
		if len(m.track) > trackLength {
			m.track = m.track[len(m.track)-trackLength:]
		}
		return m, tea.Tick(m.refresh, func(time.Time) tea.Msg { return pollMsg{} })
	}
	return m, nil
}

// View implements tea.Model.
func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("orbitscan watch  "+satelliteLabel(m.el)) + "\n\n")

	if m.polls == 0 {
		b.WriteString(dimStyle.Render("propagating...") + "\n")
		return b.String()
	}

	b.WriteString(field("Position", liveLine(m.current)))
	if !m.current.Fallback {
		e := m.current.ECEF
		b.WriteString(field("ECEF", fmt.Sprintf("x %.1f  y %.1f  z %.1f km", e.X, e.Y, e.Z)))
	}

	b.WriteString("\n" + headerStyle.Render("Recent track") + "\n")
	for i := len(m.track) - 1; i >= 0; i-- {
		s := m.track[i]
		if s.Fallback {
			b.WriteString(fmt.Sprintf("  %s  %s\n", s.Time.UTC().Format("15:04:05"), warnStyle.Render("no fix")))
			continue
		}
		b.WriteString(fmt.Sprintf("  %s  %9.4f° %10.4f° %8.1f km\n",
			s.Time.UTC().Format("15:04:05"), s.Geodetic.Lat, s.Geodetic.Lon, s.Geodetic.Alt))
	}

	b.WriteString("\n" + dimStyle.Render(fmt.Sprintf("refresh %s  r poll now  q quit", m.refresh)) + "\n")
	return b.String()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func clampRefresh(d time.Duration) time.Duration {
	switch {
	case d < minRefresh:
		return minRefresh
	case d > maxRefresh:
		return maxRefresh
	default:
		return d
	}
}

func watchCommand(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var (
		sat        satelliteFlags
		configPath string
		refresh    time.Duration
		once       bool
	)
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	sat.register(fs)
	fs.StringVar(&configPath, "config", "", "config file (default: ./orbitscan.yaml if present)")
	fs.DurationVar(&refresh, "refresh", defaultRefresh, "position refresh interval (e.g. 5s, 1m)")
	fs.BoolVar(&once, "once", false, "print one snapshot and exit instead of starting the TUI")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	// Without a terminal there is nothing to redraw.
	if !isTerminal(stdout) {
		once = true
	}

	cfg, err := config.Load(configPath, logging.New("warn", "text", stderr))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	// The TUI owns the terminal; only one-shot mode logs.
	logger := logging.Discard()
	if once {
		logger = logging.New(cfg.Log.Level, cfg.Log.Format, stderr)
	}

	sampler, err := newSampler(cfg, logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	el, err := sat.resolve(ctx, func() *tle.Catalog { return newCatalog(cfg, logger) }, logger)
	if err != nil {
		fmt.Fprintln(stderr, errorLine(err))
		return exitError
	}

	if once {
		fmt.Fprintln(stdout, satelliteLabel(el)+": "+liveLine(sampler.Live(ctx, el)))
		return exitOK
	}

	model := newWatchModel(ctx, el, sampler.Live, clampRefresh(refresh))
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx), tea.WithOutput(stdout))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		fmt.Fprintf(stderr, "Error running TUI: %v\n", err)
		return exitError
	}
	return exitOK
}

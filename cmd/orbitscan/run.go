package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/star/orbitscan/internal/orbit"
	"github.com/star/orbitscan/internal/tle"
)

type runFlags struct {
	sat          satelliteFlags
	configPath   string
	logLevel     string
	fromElements bool
	start        string
	rate         string
	interval     float64
	hours        float64
	lat          float64
	lon          float64
	width        float64
	liveOnly     bool
	format       string
}

func parseRunFlags(args []string, stderr io.Writer) (*runFlags, error) {
	f := &runFlags{}
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)

	f.sat.register(fs)
	fs.StringVar(&f.configPath, "config", "", "config file (default: ./orbitscan.yaml if present)")
	fs.StringVar(&f.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	fs.BoolVar(&f.fromElements, "from-elements", false, "start at the element set epoch instead of -start")
	fs.StringVar(&f.start, "start", "", "start date DD-MM-YYYY (midnight UTC)")
	fs.StringVar(&f.rate, "rate", "minutes", "sampling unit: 1|seconds, 2|minutes, 3|hours")
	fs.Float64Var(&f.interval, "interval", 1, "rate units between samples")
	fs.Float64Var(&f.hours, "hours", 24, "simulation length in hours; negative runs backwards")
	fs.Float64Var(&f.lat, "lat", 0, "target latitude in degrees")
	fs.Float64Var(&f.lon, "lon", 0, "target longitude in degrees")
	fs.Float64Var(&f.width, "width", 0, "footprint width in km (0 uses engine.default_width_km)")
	fs.BoolVar(&f.liveOnly, "live-only", false, "only report the current position")
	fs.StringVar(&f.format, "format", "text", "output format: text, json or rows")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	switch f.format {
	case "text", "json", "rows":
	default:
		return nil, fmt.Errorf("invalid -format %q", f.format)
	}
	return f, nil
}

// request builds the engine request. The rate is ignored for live-only runs.
func (f *runFlags) request(el tle.Elements) (orbit.Request, error) {
	var rate orbit.Rate
	if !f.liveOnly {
		var err error
		if rate, err = orbit.ParseRate(f.rate); err != nil {
			return orbit.Request{}, err
		}
	}
	return orbit.Request{
		Elements:        el,
		UseElementEpoch: f.fromElements,
		StartDate:       f.start,
		Rate:            rate,
		Interval:        f.interval,
		DurationHours:   f.hours,
		TargetLat:       f.lat,
		TargetLon:       f.lon,
		WidthKm:         f.width,
		LiveOnly:        f.liveOnly,
	}, nil
}

func runCommand(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	f, err := parseRunFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	cfg, logger, err := loadConfig(f.configPath, f.logLevel, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	sampler, err := newSampler(cfg, logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}

	el, err := f.sat.resolve(ctx, func() *tle.Catalog { return newCatalog(cfg, logger) }, logger)
	if err != nil {
		fmt.Fprintln(stderr, errorLine(err))
		return exitError
	}

	req, err := f.request(el)
	if err != nil {
		fmt.Fprintln(stderr, errorLine(err))
		return exitError
	}
	res, err := sampler.Run(ctx, req)
	if err != nil {
		fmt.Fprintln(stderr, errorLine(err))
		return exitError
	}

	if err := writeResult(stdout, f.format, el, res); err != nil {
		logger.Error("writing result", "error", err)
		return exitError
	}
	return exitOK
}

func writeResult(w io.Writer, format string, el tle.Elements, res *orbit.Result) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "rows":
		enc := json.NewEncoder(w)
		return enc.Encode(struct {
			Rows        []orbit.Row        `json:"rows"`
			CoveredRows []orbit.CoveredRow `json:"covered_rows"`
			ScanBoxes   [][5]float64       `json:"scan_boxes"`
		}{res.Rows(), res.CoveredRows(), res.ScanBoxes()})
	default:
		_, err := io.WriteString(w, renderReport(el, res))
		return err
	}
}

// Command orbitscan computes satellite ground-coverage timelines.
//
//	orbitscan run    one coverage run, printed as a report or JSON
//	orbitscan serve  the HTTP API with live SSE streams
//	orbitscan watch  a terminal view of the live position
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/star/orbitscan/internal/config"
	"github.com/star/orbitscan/internal/logging"
	"github.com/star/orbitscan/internal/orbit"
	"github.com/star/orbitscan/internal/propagation"
	"github.com/star/orbitscan/internal/tle"
)

const usage = `usage: orbitscan <command> [flags]

commands:
  run     compute a coverage timeline for one satellite and target
  serve   start the HTTP API
  watch   follow the live position of one satellite

run "orbitscan <command> -h" for command flags
`

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := notifyContext()
	defer stop()
	os.Exit(dispatch(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func dispatch(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}
	switch args[0] {
	case "run":
		return runCommand(ctx, args[1:], stdout, stderr)
	case "serve":
		return serveCommand(ctx, args[1:], stderr)
	case "watch":
		return watchCommand(ctx, args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return exitUsage
	}
}

// satelliteFlags selects the element set from inline lines, a TLE file or a
// catalog number, in that order of precedence.
type satelliteFlags struct {
	name    string
	line1   string
	line2   string
	tleFile string
	norad   int
}

func (s *satelliteFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&s.name, "name", "", "satellite name for inline lines")
	fs.StringVar(&s.line1, "line1", "", "TLE line 1")
	fs.StringVar(&s.line2, "line2", "", "TLE line 2")
	fs.StringVar(&s.tleFile, "tle-file", "", "file with 2- or 3-line element sets; the first entry is used unless -norad picks one")
	fs.IntVar(&s.norad, "norad", 0, "NORAD catalog number to look up")
}

// resolve returns the selected element set. newCatalog is only called when
// the catalog is needed.
func (s *satelliteFlags) resolve(ctx context.Context, newCatalog func() *tle.Catalog, logger *slog.Logger) (tle.Elements, error) {
	switch {
	case s.line1 != "" || s.line2 != "":
		return tle.New(s.name, s.line1, s.line2)
	case s.tleFile != "":
		return elementsFromFile(s.tleFile, s.norad, logger)
	case s.norad > 0:
		return newCatalog().Resolve(ctx, s.norad)
	default:
		return tle.Elements{}, fmt.Errorf("%w: one of -line1/-line2, -tle-file or -norad is required", tle.ErrInvalidElements)
	}
}

func elementsFromFile(path string, norad int, logger *slog.Logger) (tle.Elements, error) {
	f, err := os.Open(path)
	if err != nil {
		return tle.Elements{}, fmt.Errorf("opening TLE file: %w", err)
	}
	defer f.Close()

	entries, err := tle.Parse(bufio.NewReader(f), logger)
	if err != nil {
		return tle.Elements{}, err
	}
	if len(entries) == 0 {
		return tle.Elements{}, fmt.Errorf("%w: %s contains no valid element sets", tle.ErrInvalidElements, path)
	}
	if norad <= 0 {
		return entries[0], nil
	}
	for _, el := range entries {
		if el.NORADID == norad {
			return el, nil
		}
	}
	return tle.Elements{}, fmt.Errorf("%w: %d not in %s", tle.ErrNotFound, norad, path)
}

// loadConfig reads configuration and builds the logger. CLI output goes to
// stdout, so logs go to stderr.
func loadConfig(path, level string, stderr io.Writer) (*config.Config, *slog.Logger, error) {
	bootstrap := logging.New("warn", "text", stderr)
	cfg, err := config.Load(path, bootstrap)
	if err != nil {
		return nil, nil, err
	}
	if level != "" {
		cfg.Log.Level = level
	}
	return cfg, logging.New(cfg.Log.Level, cfg.Log.Format, stderr), nil
}

// newSampler builds the SGP4-backed sampler from engine settings.
func newSampler(cfg *config.Config, logger *slog.Logger) (*orbit.Sampler, error) {
	gravity, err := propagation.ParseGravity(cfg.Engine.GravityModel)
	if err != nil {
		return nil, err
	}
	return orbit.NewSampler(propagation.NewSGP4(gravity, logger), orbit.Config{
		MaxSamples:     cfg.Engine.MaxSamples,
		DefaultWidthKm: cfg.Engine.DefaultWidthKm,
	}, logger), nil
}

// newCatalog builds the catalog and loads the newest disk snapshot.
func newCatalog(cfg *config.Config, logger *slog.Logger) *tle.Catalog {
	var fetcher *tle.Fetcher
	if cfg.TLE.FetchEnabled {
		fetcher = tle.NewFetcher(cfg.TLE.SourceURL, logger, cfg.TLE.ExtraURLs...)
	}
	catalog := tle.NewCatalog(tle.NewStore(), fetcher, tle.NewCache(cfg.TLE.CacheDir, cfg.TLE.MaxFiles), cfg.TLE.FetchEnabled, logger)
	if _, err := catalog.LoadCached(); err != nil && !errors.Is(err, tle.ErrNoCache) {
		logger.Warn("could not load cached TLE catalog", "error", err)
	}
	return catalog
}

// errorLine formats a run error with its stage for terminal output.
func errorLine(err error) string {
	if stage := orbit.Stage(err); stage != "" {
		return fmt.Sprintf("%s error: %v", strings.ToUpper(stage[:1])+stage[1:], err)
	}
	return fmt.Sprintf("error: %v", err)
}

// Command accelwindow finds the discontinuity in the high-resolution
// acceleration series and plots all three resolutions around it.
//
// With no flags it reads ../Hadata.dat, ../Madata.dat and ../Ladata.dat and
// writes finfig.png in the working directory.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/accelwindow/internal/config"
	"github.com/banshee-data/accelwindow/internal/fsutil"
	"github.com/banshee-data/accelwindow/internal/monitoring"
	"github.com/banshee-data/accelwindow/internal/pipeline"
)

// Options holds the command-line flags.
type Options struct {
	ConfigFile string
	DataDir    string
	Output     string
	HTMLOutput string
	Report     string
	Verbose    bool
}

func main() {
	opts := parseFlags()
	monitoring.SetVerbose(opts.Verbose)

	cfg, err := loadConfig(opts)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := pipeline.Run(ctx, cfg, fsutil.OSFileSystem{})
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}
	log.Printf("Run %s complete in %dms: window %v", rep.RunID, rep.DurationMs, rep.Window.Window)
}

func parseFlags() Options {
	opts := Options{}

	flag.StringVar(&opts.ConfigFile, "config", "", "Path to analysis config JSON (defaults built in)")
	flag.StringVar(&opts.DataDir, "data-dir", "", "Directory holding Hadata.dat, Madata.dat and Ladata.dat (default ..)")
	flag.StringVar(&opts.Output, "output", "", "PNG output path (default finfig.png)")
	flag.StringVar(&opts.HTMLOutput, "html", "", "Also write an interactive HTML chart to this path")
	flag.StringVar(&opts.Report, "report", "", "Also write a JSON run report to this path")
	flag.BoolVar(&opts.Verbose, "v", false, "Enable verbose logging")

	flag.Parse()
	return opts
}

// loadConfig builds the run configuration: the config file if given, then
// any flag overrides on top.
func loadConfig(opts Options) (*config.AnalysisConfig, error) {
	cfg := config.EmptyAnalysisConfig()
	if opts.ConfigFile != "" {
		loaded, err := config.LoadAnalysisConfig(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		log.Printf("Loaded analysis config from %s", opts.ConfigFile)
	}

	if opts.DataDir != "" {
		if len(cfg.Datasets) > 0 {
			log.Printf("Warning: -data-dir ignored, config lists datasets explicitly")
		}
		cfg.SetDataDir(opts.DataDir)
	}
	if opts.Output != "" {
		cfg.SetOutput(opts.Output)
	}
	if opts.HTMLOutput != "" {
		cfg.SetHTMLOutput(opts.HTMLOutput)
	}
	if opts.Report != "" {
		cfg.SetReportOutput(opts.Report)
	}
	return cfg, cfg.Validate()
}

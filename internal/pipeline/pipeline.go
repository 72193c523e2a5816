// Package pipeline runs a complete analysis: load every dataset, find the
// discontinuity window in the reference series, and write the figure.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/banshee-data/accelwindow/internal/config"
	"github.com/banshee-data/accelwindow/internal/detect"
	"github.com/banshee-data/accelwindow/internal/fsutil"
	"github.com/banshee-data/accelwindow/internal/monitoring"
	"github.com/banshee-data/accelwindow/internal/render"
	"github.com/banshee-data/accelwindow/internal/series"
	"github.com/banshee-data/accelwindow/internal/timeutil"
	"github.com/banshee-data/accelwindow/internal/window"
	"github.com/google/uuid"
	"gonum.org/v1/plot/vg"
)

// Report summarises one run.
type Report struct {
	RunID      string           `json:"run_id"`
	StartedAt  time.Time        `json:"started_at"`
	DurationMs int64            `json:"duration_ms"`
	Reference  string           `json:"reference"`
	Threshold  float64          `json:"threshold"`
	RunStarts  []int            `json:"run_starts"`
	Window     window.Result    `json:"window"`
	Datasets   []series.Summary `json:"datasets"`
	Output     string           `json:"output"`
	HTMLOutput string           `json:"html_output,omitempty"`
}

// Run executes the analysis described by cfg. Each dataset is read exactly
// once; the reference series used for detection is the same one plotted.
// Any failure aborts the run.
func Run(ctx context.Context, cfg *config.AnalysisConfig, fsys fsutil.FileSystem) (*Report, error) {
	return run(ctx, cfg, fsys, timeutil.RealClock{})
}

func run(ctx context.Context, cfg *config.AnalysisConfig, fsys fsutil.FileSystem, clock timeutil.Clock) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	rep := &Report{
		RunID:     uuid.NewString(),
		StartedAt: clock.Now(),
		Reference: cfg.GetReference(),
		Threshold: cfg.GetThreshold(),
		Output:    cfg.GetOutput(),
	}
	monitoring.Logf("run %s: reference=%s threshold=%g", rep.RunID, rep.Reference, rep.Threshold)

	datasets := cfg.GetDatasets()
	loaded := make([]*series.Series, len(datasets))
	var ref *series.Series
	for i, d := range datasets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := series.Load(fsys, d.Path, d.Name)
		if err != nil {
			return nil, err
		}
		loaded[i] = s
		if d.Name == rep.Reference {
			ref = s
		}

		sum := s.Summary()
		rep.Datasets = append(rep.Datasets, sum)
		monitoring.Logf("loaded %s from %s: %d samples, t=[%g, %g], accel mean=%.3f std=%.3f",
			d.Name, d.Path, sum.Samples, sum.TimeStart, sum.TimeEnd, sum.AccelMean, sum.AccelStd)
	}

	rep.RunStarts = detect.RunStarts(ref.Accel, rep.Threshold)
	monitoring.Logf("detected %d discontinuities in %s: %v", len(rep.RunStarts), ref.Name, rep.RunStarts)

	res, err := window.Compute(rep.RunStarts, ref.Time, window.Margins{
		Lower: cfg.GetLowerMargin(),
		Upper: cfg.GetUpperMargin(),
	})
	if err != nil {
		return nil, fmt.Errorf("window for %s: %w", ref.Name, err)
	}
	rep.Window = res
	if res.Clamped {
		monitoring.Logf("window indices clamped to %d..%d of %d samples", res.LowerIndex, res.UpperIndex, ref.Len())
	}
	monitoring.Logf("window %v (indices %d..%d)", res.Window, res.LowerIndex, res.UpperIndex)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	panels := make([]render.Panel, len(datasets))
	for i, d := range datasets {
		panels[i] = render.Panel{Series: loaded[i], Title: d.Title()}
		monitoring.Debugf("%s: %d samples inside window", d.Name, loaded[i].Clip(res.Min, res.Max).Len())
	}

	opts := renderOptions(cfg)
	if err := render.SavePNG(fsys, rep.Output, panels, res.Window, opts); err != nil {
		return nil, err
	}
	monitoring.Logf("wrote %s (%d DPI)", rep.Output, opts.DPI)

	if path := cfg.GetHTMLOutput(); path != "" {
		if err := render.SaveHTML(fsys, path, panels, res.Window, opts); err != nil {
			return nil, err
		}
		rep.HTMLOutput = path
		monitoring.Logf("wrote %s", path)
	}

	rep.DurationMs = clock.Since(rep.StartedAt).Milliseconds()

	if path := cfg.GetReportOutput(); path != "" {
		if err := WriteReport(fsys, path, rep); err != nil {
			return nil, err
		}
		monitoring.Logf("wrote report %s", path)
	}

	return rep, nil
}

func renderOptions(cfg *config.AnalysisConfig) render.Options {
	opts := render.DefaultOptions()
	opts.Width = vg.Length(cfg.GetWidthInches()) * vg.Inch
	opts.Height = vg.Length(cfg.GetHeightInches()) * vg.Inch
	opts.DPI = cfg.GetDPI()
	opts.MarkerRadius = vg.Points(cfg.GetMarkerRadius())
	return opts
}

// WriteReport writes r as indented JSON to path on fsys.
func WriteReport(fsys fsutil.FileSystem, path string, r *Report) (err error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	f, err := fsutil.CreateWithDirs(fsys, path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io/fs"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/accelwindow/internal/config"
	"github.com/banshee-data/accelwindow/internal/fsutil"
	"github.com/banshee-data/accelwindow/internal/monitoring"
	"github.com/banshee-data/accelwindow/internal/timeutil"
	"github.com/banshee-data/accelwindow/internal/window"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spikeFile renders n samples at step dt with a +500 plateau between
// tStart and tEnd.
func spikeFile(n int, dt, tStart, tEnd float64) []byte {
	var b strings.Builder
	for i := 0; i < n; i++ {
		t := float64(i) * dt
		a := 2 * math.Sin(float64(i)/10)
		if t >= tStart && t < tEnd {
			a += 500
		}
		fmt.Fprintf(&b, "%g %g\n", t, a)
	}
	return []byte(b.String())
}

func seedInputs(mfs *fsutil.MemoryFileSystem) {
	// Plateau starts after sample 150 and ends after sample 250 of Ha.
	mfs.WriteFile("../Hadata.dat", spikeFile(400, 1e-4, 0.01505, 0.02505))
	mfs.WriteFile("../Madata.dat", spikeFile(4000, 1e-5, 0.01505, 0.02505))
	mfs.WriteFile("../Ladata.dat", spikeFile(800, 5e-5, 0.01505, 0.02505))
}

func quietLogs(t *testing.T) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
}

func smallFigure(cfg *config.AnalysisConfig) *config.AnalysisConfig {
	w, h, dpi := 2.0, 1.6, 50
	cfg.WidthInches = &w
	cfg.HeightInches = &h
	cfg.DPI = &dpi
	return cfg
}

func TestRun_EndToEnd(t *testing.T) {
	quietLogs(t)
	mfs := fsutil.NewMemoryFileSystem()
	seedInputs(mfs)

	rep, err := Run(context.Background(), smallFigure(config.EmptyAnalysisConfig()), mfs)
	require.NoError(t, err)

	if diff := cmp.Diff([]int{150, 250}, rep.RunStarts); diff != "" {
		t.Errorf("RunStarts mismatch (-want +got):\n%s", diff)
	}
	// lower = trunc(149*0.9) = 134, upper = trunc(251*1.1) = 276
	assert.Equal(t, 134, rep.Window.LowerIndex)
	assert.Equal(t, 276, rep.Window.UpperIndex)
	assert.InDelta(t, 0.0134, rep.Window.Min, 1e-12)
	assert.InDelta(t, 0.0276, rep.Window.Max, 1e-12)
	assert.False(t, rep.Window.Clamped)
	assert.Equal(t, "Ha", rep.Reference)
	assert.NotEmpty(t, rep.RunID)

	require.Len(t, rep.Datasets, 3)
	assert.Equal(t, 400, rep.Datasets[0].Samples)
	assert.Equal(t, 4000, rep.Datasets[1].Samples)

	// Exactly one new file: the figure.
	assert.Equal(t, []string{"../Hadata.dat", "../Ladata.dat", "../Madata.dat", "finfig.png"}, mfs.Files())

	data, err := mfs.ReadFile("finfig.png")
	require.NoError(t, err)
	require.NotZero(t, len(data))
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Width)
}

func TestRun_OnDisk(t *testing.T) {
	quietLogs(t)
	mfs := fsutil.NewMemoryFileSystem()
	seedInputs(mfs)

	dir := t.TempDir()
	osfs := fsutil.OSFileSystem{}
	cfg := smallFigure(config.EmptyAnalysisConfig())
	cfg.SetDataDir(dir)
	for _, d := range cfg.GetDatasets() {
		src, err := mfs.ReadFile("../" + d.Name + "data.dat")
		require.NoError(t, err)
		w, err := osfs.Create(d.Path)
		require.NoError(t, err)
		_, err = w.Write(src)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}
	out := filepath.Join(dir, "out", "finfig.png")
	cfg.SetOutput(out)

	_, err := Run(context.Background(), cfg, osfs)
	require.NoError(t, err)

	info, err := osfs.Stat(out)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestRun_OptionalOutputs(t *testing.T) {
	quietLogs(t)
	mfs := fsutil.NewMemoryFileSystem()
	seedInputs(mfs)

	cfg := smallFigure(config.EmptyAnalysisConfig())
	cfg.SetOutput("plots/spike.png")
	cfg.SetHTMLOutput("plots/spike.html")
	cfg.SetReportOutput("plots/report.json")

	rep, err := Run(context.Background(), cfg, mfs)
	require.NoError(t, err)
	assert.Equal(t, "plots/spike.html", rep.HTMLOutput)

	for _, name := range []string{"plots/spike.png", "plots/spike.html", "plots/report.json"} {
		info, err := mfs.Stat(name)
		require.NoError(t, err, name)
		assert.NotZero(t, info.Size(), name)
	}

	raw, err := mfs.ReadFile("plots/report.json")
	require.NoError(t, err)
	var decoded Report
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, rep.RunID, decoded.RunID)
	assert.Equal(t, []int{150, 250}, decoded.RunStarts)
	assert.Equal(t, rep.Window, decoded.Window)
}

func TestRun_SingleDiscontinuityFails(t *testing.T) {
	quietLogs(t)
	mfs := fsutil.NewMemoryFileSystem()
	seedInputs(mfs)
	// Step up and never come back: one run start only.
	mfs.WriteFile("../Hadata.dat", spikeFile(400, 1e-4, 0.01505, 1))

	_, err := Run(context.Background(), smallFigure(config.EmptyAnalysisConfig()), mfs)
	require.Error(t, err)
	assert.ErrorIs(t, err, window.ErrTooFewDiscontinuities)
	assert.Contains(t, err.Error(), "found 1")

	_, statErr := mfs.Stat("finfig.png")
	assert.True(t, errors.Is(statErr, fs.ErrNotExist), "no figure should be written")
}

func TestRun_NoDiscontinuities(t *testing.T) {
	quietLogs(t)
	mfs := fsutil.NewMemoryFileSystem()
	seedInputs(mfs)
	mfs.WriteFile("../Hadata.dat", spikeFile(400, 1e-4, 1, 2))

	_, err := Run(context.Background(), smallFigure(config.EmptyAnalysisConfig()), mfs)
	assert.ErrorIs(t, err, window.ErrTooFewDiscontinuities)
}

func TestRun_MissingInput(t *testing.T) {
	quietLogs(t)
	mfs := fsutil.NewMemoryFileSystem()
	seedInputs(mfs)

	cfg := smallFigure(config.EmptyAnalysisConfig())
	cfg.SetDataDir("/nowhere")

	_, err := Run(context.Background(), cfg, mfs)
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "Hadata.dat")
}

func TestRun_MalformedInput(t *testing.T) {
	quietLogs(t)
	mfs := fsutil.NewMemoryFileSystem()
	seedInputs(mfs)
	mfs.WriteFile("../Ladata.dat", []byte("0 1\n0.1 oops\n"))

	_, err := Run(context.Background(), smallFigure(config.EmptyAnalysisConfig()), mfs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Ladata.dat")
}

func TestRun_InvalidConfig(t *testing.T) {
	quietLogs(t)
	cfg := config.EmptyAnalysisConfig()
	ref := "Xa"
	cfg.Reference = &ref

	_, err := Run(context.Background(), cfg, fsutil.NewMemoryFileSystem())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestRun_Cancelled(t *testing.T) {
	quietLogs(t)
	mfs := fsutil.NewMemoryFileSystem()
	seedInputs(mfs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, smallFigure(config.EmptyAnalysisConfig()), mfs)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_ReferenceReusedForPlot(t *testing.T) {
	quietLogs(t)
	mfs := fsutil.NewMemoryFileSystem()
	seedInputs(mfs)

	counting := &countingFS{FileSystem: mfs, opens: map[string]int{}}
	_, err := Run(context.Background(), smallFigure(config.EmptyAnalysisConfig()), counting)
	require.NoError(t, err)

	for _, name := range []string{"../Hadata.dat", "../Madata.dat", "../Ladata.dat"} {
		assert.Equal(t, 1, counting.opens[name], "%s should be opened exactly once", name)
	}
}

type countingFS struct {
	fsutil.FileSystem
	opens map[string]int
}

func (c *countingFS) Open(name string) (fs.File, error) {
	c.opens[name]++
	return c.FileSystem.Open(name)
}

func TestRun_ReportTiming(t *testing.T) {
	quietLogs(t)
	mfs := fsutil.NewMemoryFileSystem()
	seedInputs(mfs)

	start := time.Date(2026, 1, 7, 17, 31, 29, 0, time.UTC)
	clock := timeutil.NewMockClock(start)
	clock.SetStep(250 * time.Millisecond)

	cfg := smallFigure(config.EmptyAnalysisConfig())
	cfg.SetReportOutput("report.json")

	rep, err := run(context.Background(), cfg, mfs, clock)
	require.NoError(t, err)
	assert.True(t, rep.StartedAt.Equal(start))
	assert.Equal(t, int64(250), rep.DurationMs)

	raw, err := mfs.ReadFile("report.json")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"started_at": "2026-01-07T17:31:29Z"`)
	assert.Contains(t, string(raw), `"duration_ms": 250`)
}

// Package render draws the windowed comparison figure.
//
// PNG output is a single column of scatter panels built with gonum/plot and
// aligned on one raster canvas, so every panel shares the same x range.
// HTML output is an optional interactive companion built with go-echarts.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/banshee-data/accelwindow/internal/fsutil"
	"github.com/banshee-data/accelwindow/internal/series"
	"github.com/banshee-data/accelwindow/internal/window"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// ErrNoPanels is returned when there is nothing to draw.
var ErrNoPanels = errors.New("no panels to render")

// Panel is one subplot.
type Panel struct {
	Series *series.Series
	Title  string
}

// Options control figure geometry and labels.
type Options struct {
	Width        vg.Length
	Height       vg.Length
	DPI          int
	MarkerRadius vg.Length
	XLabel       string
	YLabel       string
}

// DefaultOptions match a 10x8 inch figure at 200 DPI with 2pt markers.
func DefaultOptions() Options {
	return Options{
		Width:        10 * vg.Inch,
		Height:       8 * vg.Inch,
		DPI:          200,
		MarkerRadius: vg.Points(1),
		XLabel:       "t [s]",
		YLabel:       "a [m/s²]",
	}
}

// markerColor is used for the samples in every panel.
var markerColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}

// PNG renders panels stacked top to bottom and writes the encoded image to w.
// Samples outside win and non-finite samples are not drawn; each panel's y
// range still covers its whole series.
func PNG(w io.Writer, panels []Panel, win window.Window, opts Options) error {
	if len(panels) == 0 {
		return ErrNoPanels
	}

	plots := make([][]*plot.Plot, len(panels))
	for i, p := range panels {
		pl, err := newPanelPlot(p, win, opts, i == len(panels)-1)
		if err != nil {
			return fmt.Errorf("panel %q: %w", p.Title, err)
		}
		plots[i] = []*plot.Plot{pl}
	}

	img := vgimg.NewWith(vgimg.UseWH(opts.Width, opts.Height), vgimg.UseDPI(opts.DPI))
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      len(panels),
		Cols:      1,
		PadTop:    vg.Points(6),
		PadBottom: vg.Points(6),
		PadLeft:   vg.Points(6),
		PadRight:  vg.Points(12),
		PadY:      vg.Points(8),
	}

	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// SavePNG renders to path on fsys, replacing any existing file.
func SavePNG(fsys fsutil.FileSystem, path string, panels []Panel, win window.Window, opts Options) (err error) {
	f, err := fsutil.CreateWithDirs(fsys, path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	if err := PNG(f, panels, win, opts); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	return nil
}

func newPanelPlot(p Panel, win window.Window, opts Options, bottom bool) (*plot.Plot, error) {
	pl := plot.New()
	pl.Title.Text = p.Title
	pl.Y.Label.Text = opts.YLabel
	if bottom {
		pl.X.Label.Text = opts.XLabel
	} else {
		// Upper panels share the bottom axis and only keep tick marks.
		pl.X.Tick.Marker = unlabeledTicks{plot.DefaultTicks{}}
	}

	if pts := windowPoints(p.Series, win); len(pts) > 0 {
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = opts.MarkerRadius
		sc.GlyphStyle.Color = markerColor
		pl.Add(sc)
	}

	// The y range always spans the whole series, not just the window.
	if lo, hi, ok := finiteRange(p.Series.Accel); ok {
		pl.Y.Min, pl.Y.Max = lo, hi
	} else {
		pl.Y.Min, pl.Y.Max = -1, 1
	}

	// Add widens the axes to the data; pin x afterwards.
	pl.X.Min = win.Min
	pl.X.Max = win.Max
	return pl, nil
}

// windowPoints returns the finite samples of s with t inside win.
func windowPoints(s *series.Series, win window.Window) plotter.XYs {
	clipped := s.Clip(win.Min, win.Max)
	pts := make(plotter.XYs, 0, clipped.Len())
	for i := range clipped.Time {
		x, y := clipped.Time[i], clipped.Accel[i]
		if !isFinite(x) || !isFinite(y) {
			continue
		}
		pts = append(pts, plotter.XY{X: x, Y: y})
	}
	return pts
}

// finiteRange returns the min and max of the finite values in v.
func finiteRange(v []float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, x := range v {
		if !isFinite(x) {
			continue
		}
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
		ok = true
	}
	return lo, hi, ok
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// unlabeledTicks keeps the tick positions of the wrapped Ticker but drops
// their labels.
type unlabeledTicks struct {
	plot.Ticker
}

func (u unlabeledTicks) Ticks(min, max float64) []plot.Tick {
	ticks := u.Ticker.Ticks(min, max)
	for i := range ticks {
		ticks[i].Label = ""
	}
	return ticks
}

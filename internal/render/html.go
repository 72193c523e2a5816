package render

import (
	"fmt"
	"io"

	"github.com/banshee-data/accelwindow/internal/fsutil"
	"github.com/banshee-data/accelwindow/internal/window"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// HTML writes an interactive page with one scatter chart per panel, all
// pinned to the same x range as the PNG.
func HTML(w io.Writer, panels []Panel, win window.Window, o Options) error {
	if len(panels) == 0 {
		return ErrNoPanels
	}

	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("Acceleration window %v", win)

	for _, p := range panels {
		pts := windowPoints(p.Series, win)
		data := make([]opts.ScatterData, 0, len(pts))
		for _, pt := range pts {
			data = append(data, opts.ScatterData{Value: []interface{}{pt.X, pt.Y}})
		}

		scatter := charts.NewScatter()
		scatter.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{PageTitle: p.Title, Width: "1000px", Height: "280px"}),
			charts.WithTitleOpts(opts.Title{Title: p.Title, Subtitle: fmt.Sprintf("%s samples=%d", p.Series.Name, len(pts))}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Type: "value", Min: win.Min, Max: win.Max, Name: o.XLabel, NameLocation: "middle", NameGap: 25}),
			charts.WithYAxisOpts(opts.YAxis{Name: o.YLabel, NameLocation: "middle", NameGap: 40}),
		)
		scatter.AddSeries(p.Series.Name, data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 2}))
		page.AddCharts(scatter)
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

// SaveHTML writes the interactive page to path on fsys, replacing any
// existing file.
func SaveHTML(fsys fsutil.FileSystem, path string, panels []Panel, win window.Window, o Options) (err error) {
	f, err := fsutil.CreateWithDirs(fsys, path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	return HTML(f, panels, win, o)
}

// Package report renders comparison results as charts and export files.
package report

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/tellurium-labs/assay.report/internal/compare"
)

// viridis ramp used across all chart colour scales.
var viridisColors = []string{
	"#440154", "#482777", "#3e4989", "#31688e", "#26828e",
	"#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725",
}

// HeatmapOptions controls the rendered chart.
type HeatmapOptions struct {
	Title    string
	Subtitle string
	// Layer selects which grid statistic to plot: "orig", "cand" or "cmp".
	Layer string
}

// RenderHeatmap writes a self-contained HTML heatmap of one grid layer to w.
// NaN cells (no data) are omitted from the series so they render blank.
func RenderHeatmap(w io.Writer, g compare.Grid, o HeatmapOptions) error {
	layer, err := selectLayer(g, o.Layer)
	if err != nil {
		return err
	}

	xLabels := make([]string, g.Nx)
	for i := range xLabels {
		xLabels[i] = strconv.Itoa(i)
	}
	yLabels := make([]string, g.Ny)
	for i := range yLabels {
		yLabels[i] = strconv.Itoa(i)
	}

	data := make([]opts.HeatMapData, 0, g.Nx*g.Ny)
	minVal := math.Inf(1)
	maxVal := math.Inf(-1)
	for iy := 0; iy < g.Ny; iy++ {
		for ix := 0; ix < g.Nx; ix++ {
			v := layer[iy][ix]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			if v < minVal {
				minVal = v
			}
			if v > maxVal {
				maxVal = v
			}
			data = append(data, opts.HeatMapData{Value: [3]interface{}{ix, iy, v}})
		}
	}
	if len(data) == 0 {
		minVal, maxVal = 0, 1
	}
	if minVal == maxVal {
		maxVal = minVal + 1
	}

	title := o.Title
	if title == "" {
		title = "Grid comparison"
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: o.Subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: xLabels, Name: "cell ix", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: yLabels, Name: "cell iy", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(minVal),
			Max:        float32(maxVal),
			InRange:    &opts.VisualMapInRange{Color: viridisColors},
		}),
	)
	hm.AddSeries("cells", data)

	if err := hm.Render(w); err != nil {
		return fmt.Errorf("failed to render heatmap: %w", err)
	}
	return nil
}

func selectLayer(g compare.Grid, name string) ([][]float64, error) {
	switch name {
	case "", "cmp":
		return g.CmpStat, nil
	case "orig":
		return g.OrigStat, nil
	case "cand":
		return g.CandStat, nil
	}
	return nil, fmt.Errorf("unknown grid layer %q (want orig, cand or cmp)", name)
}

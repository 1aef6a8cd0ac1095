package report

import (
	"encoding/csv"
	"fmt"
	"math"
	"strconv"

	"github.com/tellurium-labs/assay.report/internal/align"
	"github.com/tellurium-labs/assay.report/internal/compare"
	"github.com/tellurium-labs/assay.report/internal/grid"
)

// WritePairs streams aligned pairs as CSV: one row per matched pair with
// the rounded coordinates, both values, and the residual.
func WritePairs(w *csv.Writer, res *align.Result) error {
	if err := w.Write([]string{"x_r", "y_r", "orig_val", "cand_val", "residual"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, p := range res.Pairs {
		rec := []string{
			formatFloat(p.X), formatFloat(p.Y),
			formatFloat(p.Orig), formatFloat(p.Cand), formatFloat(p.Residual),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("failed to write pair: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// WriteGridCells streams one CSV row per grid cell: cell indices, cell
// centroid, and the three statistics.
func WriteGridCells(w *csv.Writer, g compare.Grid, spec grid.Spec) error {
	header := []string{"cell_ix", "cell_iy", "centroid_x", "centroid_y", "orig_stat", "cand_stat", "cmp_stat"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for iy := 0; iy < g.Ny; iy++ {
		for ix := 0; ix < g.Nx; ix++ {
			cx, cy := spec.CellCenter(ix, iy)
			rec := []string{
				strconv.Itoa(ix), strconv.Itoa(iy),
				formatFloat(cx), formatFloat(cy),
				formatStat(g.OrigStat[iy][ix]), formatStat(g.CandStat[iy][ix]), formatStat(g.CmpStat[iy][ix]),
			}
			if err := w.Write(rec); err != nil {
				return fmt.Errorf("failed to write cell: %w", err)
			}
		}
	}
	w.Flush()
	return w.Error()
}

// WriteMatrix streams a raw ny x nx matrix, one CSV row per grid row. NaN
// entries are written as empty fields.
func WriteMatrix(w *csv.Writer, m [][]float64) error {
	for _, row := range m {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = formatStat(v)
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("failed to write matrix row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatStat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return formatFloat(v)
}

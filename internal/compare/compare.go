// Package compare implements the grid statistical comparison engine: a
// registry of per-cell estimators that each consume grid-indexed samples
// from an original and a candidate dataset and produce three aligned
// ny by nx arrays.
package compare

import (
	"math"

	"github.com/tellurium-labs/assay.report/internal/grid"
	"github.com/tellurium-labs/assay.report/internal/tabular"
)

// Column names recognised as precomputed cell indices. Datasets carrying
// both skip the grid indexer and are grouped as-is.
const (
	CellIXColumn = "grid_ix"
	CellIYColumn = "grid_iy"
)

// CellKey identifies one grid cell.
type CellKey struct {
	Ix, Iy int
}

// Cells groups sample values by the cell they fall in. Cells with no
// samples are simply absent.
type Cells map[CellKey][]float64

// BuildCells grid-indexes the given samples and groups their values by
// cell. Rows with a non-finite coordinate or value are dropped, mirroring
// the coercion-loss policy of the alignment engine.
func BuildCells(xs, ys, vals []float64, spec grid.Spec) Cells {
	cells := make(Cells)
	for i := range vals {
		if !isFinite(xs[i]) || !isFinite(ys[i]) || !isFinite(vals[i]) {
			continue
		}
		ix, iy := spec.Cell(xs[i], ys[i])
		k := CellKey{Ix: ix, Iy: iy}
		cells[k] = append(cells[k], vals[i])
	}
	return cells
}

// BuildCellsIndexed groups values by precomputed cell indices. Indices
// outside [0,nx) x [0,ny) are clipped, the same policy the indexer applies.
func BuildCellsIndexed(ixs, iys []int, vals []float64, nx, ny int) Cells {
	cells := make(Cells)
	for i := range vals {
		if !isFinite(vals[i]) {
			continue
		}
		k := CellKey{Ix: clip(ixs[i], nx), Iy: clip(iys[i], ny)}
		cells[k] = append(cells[k], vals[i])
	}
	return cells
}

// Grid is the result of one estimator run: three [ny][nx] arrays indexed
// [iy][ix], zero-filled where a side has no data.
type Grid struct {
	Nx       int         `json:"nx"`
	Ny       int         `json:"ny"`
	OrigStat [][]float64 `json:"orig_stat"`
	CandStat [][]float64 `json:"cand_stat"`
	CmpStat  [][]float64 `json:"cmp_stat"`
}

// NewGrid allocates a zero-filled Grid of shape (ny, nx).
func NewGrid(nx, ny int) Grid {
	alloc := func() [][]float64 {
		rows := make([][]float64, ny)
		for i := range rows {
			rows[i] = make([]float64, nx)
		}
		return rows
	}
	return Grid{Nx: nx, Ny: ny, OrigStat: alloc(), CandStat: alloc(), CmpStat: alloc()}
}

// Params carries the method-specific knobs. Zero values are not magical:
// start from DefaultParams and override.
type Params struct {
	// Q is the quantile for the p90 estimator.
	Q float64 `json:"q"`
	// Threshold is the anomaly cut-off for the tail_ratio estimator.
	Threshold float64 `json:"threshold"`
	// BinsRule selects the adaptive histogram rule for chi2: "fd",
	// "sturges" or "scott".
	BinsRule string `json:"bins_rule"`
	// MaxBins caps the per-cell histogram resolution for chi2.
	MaxBins int `json:"max_bins"`
	// MinExpected is the desired minimum expected count per chi2 bin;
	// too many smaller bins trigger a coarsening retry.
	MinExpected float64 `json:"min_expected"`
}

// DefaultParams returns the standard parameter set.
func DefaultParams() Params {
	return Params{
		Q:           0.9,
		Threshold:   1.0,
		BinsRule:    "fd",
		MaxBins:     20,
		MinExpected: 5.0,
	}
}

// ColumnSpec names the coordinate and value columns of one dataset.
type ColumnSpec struct {
	X, Y, Value string
}

// Run is the dataset-level entry point: it validates schemas and grid
// resolution, grid-indexes both datasets (honouring precomputed grid_ix /
// grid_iy columns when present), and dispatches to the named estimator.
func Run(method string, cand, orig *tabular.Dataset, candCols, origCols ColumnSpec, spec grid.Spec, p Params) (Grid, error) {
	if err := spec.Validate(); err != nil {
		return Grid{}, err
	}
	est, err := Lookup(method)
	if err != nil {
		return Grid{}, err
	}

	candCells, err := datasetCells(cand, candCols, spec)
	if err != nil {
		return Grid{}, err
	}
	origCells, err := datasetCells(orig, origCols, spec)
	if err != nil {
		return Grid{}, err
	}

	return est.Estimate(candCells, origCells, spec.Nx, spec.Ny, p)
}

func datasetCells(ds *tabular.Dataset, cols ColumnSpec, spec grid.Spec) (Cells, error) {
	if ds.HasColumn(CellIXColumn) && ds.HasColumn(CellIYColumn) {
		if err := ds.RequireColumns(cols.Value); err != nil {
			return nil, err
		}
		return BuildCellsIndexed(
			coerceInts(ds.Coerce(CellIXColumn)),
			coerceInts(ds.Coerce(CellIYColumn)),
			ds.Coerce(cols.Value),
			spec.Nx, spec.Ny,
		), nil
	}

	if err := ds.RequireColumns(cols.X, cols.Y, cols.Value); err != nil {
		return nil, err
	}
	return BuildCells(ds.Coerce(cols.X), ds.Coerce(cols.Y), ds.Coerce(cols.Value), spec), nil
}

// coerceInts truncates coerced floats to ints; NaN maps to a large negative
// index that the subsequent clip sends to 0.
func coerceInts(vals []float64) []int {
	out := make([]int, len(vals))
	for i, v := range vals {
		if !isFinite(v) {
			out[i] = math.MinInt32
			continue
		}
		out[i] = int(v)
	}
	return out
}

func clip(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

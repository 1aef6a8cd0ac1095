package compare

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// statFunc reduces one cell's values to a single statistic.
type statFunc func(vals []float64, p Params) float64

// fillStat computes the statistic for every populated cell and writes it
// into dst. Cells with keys outside the grid are skipped; the build helpers
// clip indices so this only matters for hand-built Cells.
func fillStat(dst [][]float64, cells Cells, nx, ny int, p Params, f statFunc) {
	for k, vals := range cells {
		if len(vals) == 0 || k.Ix < 0 || k.Ix >= nx || k.Iy < 0 || k.Iy >= ny {
			continue
		}
		dst[k.Iy][k.Ix] = f(vals, p)
	}
}

// estimateDiff runs a statFunc over both sides and sets the comparison
// layer to candidate minus original across the whole grid, empty cells
// included (0 - 0 stays 0).
func estimateDiff(cand, orig Cells, nx, ny int, p Params, f statFunc) Grid {
	g := NewGrid(nx, ny)
	fillStat(g.OrigStat, orig, nx, ny, p, f)
	fillStat(g.CandStat, cand, nx, ny, p, f)
	for iy := 0; iy < ny; iy++ {
		for ix := 0; ix < nx; ix++ {
			g.CmpStat[iy][ix] = g.CandStat[iy][ix] - g.OrigStat[iy][ix]
		}
	}
	return g
}

// maxDiff compares per-cell maxima.
type maxDiff struct{}

func (maxDiff) Name() string { return "max" }

func (maxDiff) Estimate(cand, orig Cells, nx, ny int, p Params) (Grid, error) {
	return estimateDiff(cand, orig, nx, ny, p, func(vals []float64, _ Params) float64 {
		return floats.Max(vals)
	}), nil
}

// meanDiff compares per-cell arithmetic means.
type meanDiff struct{}

func (meanDiff) Name() string { return "mean" }

func (meanDiff) Estimate(cand, orig Cells, nx, ny int, p Params) (Grid, error) {
	return estimateDiff(cand, orig, nx, ny, p, func(vals []float64, _ Params) float64 {
		return stat.Mean(vals, nil)
	}), nil
}

// medianDiff compares per-cell medians.
type medianDiff struct{}

func (medianDiff) Name() string { return "median" }

func (medianDiff) Estimate(cand, orig Cells, nx, ny int, p Params) (Grid, error) {
	return estimateDiff(cand, orig, nx, ny, p, func(vals []float64, _ Params) float64 {
		return quantile(vals, 0.5)
	}), nil
}

// quantileDiff compares a per-cell high quantile (default the 90th
// percentile). Highlights whether the candidate predicts more high-grade
// values than the assays show.
type quantileDiff struct{}

func (quantileDiff) Name() string { return "p90" }

func (quantileDiff) Estimate(cand, orig Cells, nx, ny int, p Params) (Grid, error) {
	return estimateDiff(cand, orig, nx, ny, p, func(vals []float64, p Params) float64 {
		return quantile(vals, p.Q)
	}), nil
}

// tailRatio compares the per-cell proportion of samples above a threshold,
// a simple anomaly-rate indicator that is robust to differing sample
// counts. Proportions are always in [0, 1].
type tailRatio struct{}

func (tailRatio) Name() string { return "tail_ratio" }

func (tailRatio) Estimate(cand, orig Cells, nx, ny int, p Params) (Grid, error) {
	return estimateDiff(cand, orig, nx, ny, p, func(vals []float64, p Params) float64 {
		above := 0
		for _, v := range vals {
			if v > p.Threshold {
				above++
			}
		}
		denom := len(vals)
		if denom < 1 {
			denom = 1
		}
		return float64(above) / float64(denom)
	}), nil
}

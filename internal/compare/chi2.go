package compare

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// chi2Epsilon is added to every bin so no expected count is zero.
	chi2Epsilon = 1e-6
	// maxBinRetries bounds the adaptive coarsening loop.
	maxBinRetries = 2
)

// chiSquared compares per-cell value distributions with a reduced Pearson
// chi-square statistic over a shared adaptive histogram. The side stats
// carry sample counts so sparse cells are visible next to the statistic.
//
// Cells where either side is empty, or the combined maximum is not a
// positive finite number, report 0: sparse or degenerate cells are an
// expected feature of spatial grids, not an error.
type chiSquared struct{}

func (chiSquared) Name() string { return "chi2" }

func (chiSquared) Estimate(cand, orig Cells, nx, ny int, p Params) (Grid, error) {
	g := NewGrid(nx, ny)
	fillStat(g.OrigStat, orig, nx, ny, p, countStat)
	fillStat(g.CandStat, cand, nx, ny, p, countStat)

	for k, cv := range cand {
		if k.Ix < 0 || k.Ix >= nx || k.Iy < 0 || k.Iy >= ny {
			continue
		}
		ov := orig[k]
		if len(ov) == 0 || len(cv) == 0 || len(ov)+len(cv) < 2 {
			continue
		}
		g.CmpStat[k.Iy][k.Ix] = reducedChiSquare(cv, ov, p)
	}
	return g, nil
}

func countStat(vals []float64, _ Params) float64 {
	return float64(len(vals))
}

// reducedChiSquare histograms both sides on shared edges over
// [0, combined max], rescales the expected (original) counts to the
// observed (candidate) total, and divides the Pearson statistic by the
// degrees of freedom. Returns 0 for degenerate ranges.
func reducedChiSquare(cv, ov []float64, p Params) float64 {
	dataMax := math.Max(floats.Max(ov), floats.Max(cv))
	if !isFinite(dataMax) || dataMax <= 0 {
		return 0
	}

	combined := make([]float64, 0, len(ov)+len(cv))
	combined = append(combined, ov...)
	combined = append(combined, cv...)

	maxBins := p.MaxBins
	if maxBins < 2 {
		maxBins = 2
	}
	edges := binEdges(combined, p.BinsRule, dataMax, maxBins)

	// Adaptive refinement: when more than half the expected bins fall
	// below MinExpected and enough edges remain, halve the bin count and
	// recompute, at most maxBinRetries times.
	var fObs, fExp []float64
	for attempt := 0; ; attempt++ {
		fExp = histogram(ov, edges)
		fObs = histogram(cv, edges)
		floats.AddConst(chi2Epsilon, fExp)
		floats.AddConst(chi2Epsilon, fObs)

		// A valid Pearson comparison of differently sized samples needs
		// the expected total rescaled to the observed total.
		floats.Scale(floats.Sum(fObs)/math.Max(floats.Sum(fExp), chi2Epsilon), fExp)

		tooSmall := 0
		for _, e := range fExp {
			if e < p.MinExpected {
				tooSmall++
			}
		}
		if attempt >= maxBinRetries || tooSmall <= len(fExp)/2 || len(edges) <= 3 {
			break
		}
		nb := (len(edges) - 1) / 2
		if nb < 2 {
			nb = 2
		}
		edges = linspace(0, dataMax, nb+1)
	}

	dof := len(edges) - 2
	if dof < 1 {
		dof = 1
	}
	chi2 := stat.ChiSquare(fObs, fExp)
	if !isFinite(chi2) {
		return 0
	}
	return chi2 / float64(dof)
}

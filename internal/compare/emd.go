package compare

// emdDistance compares per-cell value distributions with the 1-D Earth
// Mover's (Wasserstein) distance on raw values, no binning. The side stats
// carry sample counts, like chi2. Cells where either side is empty report
// 0, and the distance is symmetric under swapping sides.
type emdDistance struct{}

func (emdDistance) Name() string { return "emd" }

func (emdDistance) Estimate(cand, orig Cells, nx, ny int, p Params) (Grid, error) {
	g := NewGrid(nx, ny)
	fillStat(g.OrigStat, orig, nx, ny, p, countStat)
	fillStat(g.CandStat, cand, nx, ny, p, countStat)

	for k, cv := range cand {
		if k.Ix < 0 || k.Ix >= nx || k.Iy < 0 || k.Iy >= ny {
			continue
		}
		ov := orig[k]
		if len(ov) == 0 || len(cv) == 0 {
			continue
		}
		if d := wasserstein(ov, cv); isFinite(d) {
			g.CmpStat[k.Iy][k.Ix] = d
		}
	}
	return g, nil
}

package compare_test

import (
	"math/rand"
	"testing"

	"github.com/tellurium-labs/assay.report/internal/compare"
)

func TestChi2IdenticalDistributions(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	g := estimate(t, "chi2", oneCell(vals...), oneCell(vals...), 1, 1)
	if g.OrigStat[0][0] != 10 || g.CandStat[0][0] != 10 {
		t.Errorf("counts = %v %v, want 10 10", g.OrigStat[0][0], g.CandStat[0][0])
	}
	if g.CmpStat[0][0] > 1e-9 {
		t.Errorf("identical distributions chi2 = %v, want ~0", g.CmpStat[0][0])
	}
}

func TestChi2DifferentDistributions(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	low := make([]float64, 200)
	high := make([]float64, 200)
	for i := range low {
		low[i] = rng.Float64() * 2          // values in [0, 2)
		high[i] = 8 + rng.Float64()*2       // values in [8, 10)
	}
	g := estimate(t, "chi2", oneCell(high...), oneCell(low...), 1, 1)
	if g.CmpStat[0][0] <= 0 {
		t.Errorf("disjoint distributions chi2 = %v, want > 0", g.CmpStat[0][0])
	}
}

func TestChi2NonNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 25; trial++ {
		n := 2 + rng.Intn(50)
		m := 2 + rng.Intn(50)
		a := make([]float64, n)
		b := make([]float64, m)
		for i := range a {
			a[i] = rng.Float64() * 10
		}
		for i := range b {
			b[i] = rng.Float64() * 12
		}
		g := estimate(t, "chi2", oneCell(b...), oneCell(a...), 1, 1)
		if g.CmpStat[0][0] < 0 {
			t.Fatalf("trial %d: chi2 = %v, want >= 0", trial, g.CmpStat[0][0])
		}
	}
}

func TestChi2EmptySide(t *testing.T) {
	g := estimate(t, "chi2", oneCell(1, 2, 3), compare.Cells{}, 1, 1)
	if g.CmpStat[0][0] != 0 {
		t.Errorf("empty orig side chi2 = %v, want 0", g.CmpStat[0][0])
	}
	if g.CandStat[0][0] != 3 {
		t.Errorf("cand count = %v, want 3", g.CandStat[0][0])
	}
	if g.OrigStat[0][0] != 0 {
		t.Errorf("orig count = %v, want 0", g.OrigStat[0][0])
	}
}

func TestChi2DegenerateMaximum(t *testing.T) {
	// All values zero: combined max is not positive, the cell reports 0
	// but counts are still recorded.
	g := estimate(t, "chi2", oneCell(0, 0), oneCell(0, 0, 0), 1, 1)
	if g.CmpStat[0][0] != 0 {
		t.Errorf("degenerate max chi2 = %v, want 0", g.CmpStat[0][0])
	}
	if g.OrigStat[0][0] != 3 || g.CandStat[0][0] != 2 {
		t.Errorf("counts = %v %v, want 3 2", g.OrigStat[0][0], g.CandStat[0][0])
	}

	// Same for negative-only values.
	g = estimate(t, "chi2", oneCell(-1, -2), oneCell(-3, -4), 1, 1)
	if g.CmpStat[0][0] != 0 {
		t.Errorf("negative max chi2 = %v, want 0", g.CmpStat[0][0])
	}
}

func TestChi2SparseGrid(t *testing.T) {
	// Only one of four cells has data on both sides; the others stay 0.
	cand := compare.Cells{
		{Ix: 0, Iy: 0}: {1, 2, 5, 7},
		{Ix: 1, Iy: 1}: {3},
	}
	orig := compare.Cells{
		{Ix: 0, Iy: 0}: {2, 3, 4},
		{Ix: 1, Iy: 0}: {9, 9},
	}
	g := estimate(t, "chi2", cand, orig, 2, 2)

	if g.CmpStat[1][1] != 0 {
		t.Errorf("cand-only cell chi2 = %v, want 0", g.CmpStat[1][1])
	}
	if g.CmpStat[0][1] != 0 {
		t.Errorf("orig-only cell chi2 = %v, want 0", g.CmpStat[0][1])
	}
	if g.OrigStat[0][1] != 2 || g.CandStat[1][1] != 1 {
		t.Errorf("counts not recorded for one-sided cells")
	}
	if g.CmpStat[0][0] < 0 {
		t.Errorf("both-sided cell chi2 = %v, want >= 0", g.CmpStat[0][0])
	}
}

func TestEMDProperties(t *testing.T) {
	a := oneCell(5, 8, 3)
	b := oneCell(9, 4, 7)

	ab := estimate(t, "emd", b, a, 1, 1)
	ba := estimate(t, "emd", a, b, 1, 1)
	if ab.CmpStat[0][0] != ba.CmpStat[0][0] {
		t.Errorf("emd not symmetric: %v vs %v", ab.CmpStat[0][0], ba.CmpStat[0][0])
	}
	if ab.CmpStat[0][0] < 0 {
		t.Errorf("emd = %v, want >= 0", ab.CmpStat[0][0])
	}
	if ab.OrigStat[0][0] != 3 || ab.CandStat[0][0] != 3 {
		t.Errorf("emd counts = %v %v, want 3 3", ab.OrigStat[0][0], ab.CandStat[0][0])
	}
}

func TestEMDEmptySide(t *testing.T) {
	g := estimate(t, "emd", oneCell(1, 2, 3), compare.Cells{}, 1, 1)
	if g.CmpStat[0][0] != 0 {
		t.Errorf("empty side emd = %v, want 0", g.CmpStat[0][0])
	}
}

func TestEMDKnownDistance(t *testing.T) {
	// Point masses at 0 and 2: distance is exactly 2.
	g := estimate(t, "emd", oneCell(2), oneCell(0), 1, 1)
	if g.CmpStat[0][0] != 2 {
		t.Errorf("emd = %v, want 2", g.CmpStat[0][0])
	}
}

func BenchmarkChi2Grid(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	cand := make(compare.Cells)
	orig := make(compare.Cells)
	for ix := 0; ix < 20; ix++ {
		for iy := 0; iy < 20; iy++ {
			k := compare.CellKey{Ix: ix, Iy: iy}
			for j := 0; j < 30; j++ {
				cand[k] = append(cand[k], rng.Float64()*10)
				orig[k] = append(orig[k], rng.Float64()*10)
			}
		}
	}
	est, _ := compare.Lookup("chi2")
	p := compare.DefaultParams()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := est.Estimate(cand, orig, 20, 20, p); err != nil {
			b.Fatal(err)
		}
	}
}

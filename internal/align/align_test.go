package align

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/tellurium-labs/assay.report/internal/tabular"
)

func mustDataset(t *testing.T, label string, columns []string, rows [][]string) *tabular.Dataset {
	t.Helper()
	ds, err := tabular.New(label, columns, rows)
	if err != nil {
		t.Fatalf("building %s dataset: %v", label, err)
	}
	return ds
}

// sharedOpts aligns two datasets that both use X/Y/V column names.
func sharedOpts(rounding int) Options {
	return Options{
		OrigX: "X", OrigY: "Y", OrigValue: "V",
		CandX: "X", CandY: "Y", CandValue: "V",
		Rounding: rounding,
	}
}

func TestAlignBasicScenario(t *testing.T) {
	orig := mustDataset(t, "original", []string{"X", "Y", "V"}, [][]string{
		{"0", "0", "10"},
		{"1", "1", "20"},
	})
	cand := mustDataset(t, "candidate", []string{"X", "Y", "V"}, [][]string{
		{"0", "0", "12"},
		{"1", "1", "18"},
	})

	res, err := Align(orig, cand, sharedOpts(0))
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if res.Len() != 2 {
		t.Fatalf("pairs = %d, want 2", res.Len())
	}
	if got := res.Residuals(); got[0] != 2 || got[1] != -2 {
		t.Errorf("residuals = %v, want [2 -2]", got)
	}
}

func TestAlignSymmetry(t *testing.T) {
	orig := mustDataset(t, "original", []string{"X", "Y", "V"}, [][]string{
		{"1.0004", "2.0", "5"},
		{"3.0", "4.0", "7"},
		{"9.0", "9.0", "1"},
	})
	cand := mustDataset(t, "candidate", []string{"X", "Y", "V"}, [][]string{
		{"1.0004", "2.0", "6"},
		{"3.0", "4.0", "9"},
	})

	for _, rounding := range []int{0, 2, 4, 6} {
		fwd, err := Align(orig, cand, sharedOpts(rounding))
		if err != nil {
			t.Fatalf("forward Align failed: %v", err)
		}
		rev, err := Align(cand, orig, sharedOpts(rounding))
		if err != nil {
			t.Fatalf("reverse Align failed: %v", err)
		}
		if fwd.Len() != rev.Len() {
			t.Fatalf("rounding=%d: pair counts differ: %d vs %d", rounding, fwd.Len(), rev.Len())
		}
		fr, rr := fwd.Residuals(), rev.Residuals()
		for i := range fr {
			if fr[i] != -rr[i] {
				t.Errorf("rounding=%d pair %d: residual %v, reversed %v", rounding, i, fr[i], rr[i])
			}
		}
	}
}

func TestAlignIdempotent(t *testing.T) {
	orig := mustDataset(t, "original", []string{"X", "Y", "V"}, [][]string{
		{"1.25", "7.5", "3"}, {"2.5", "8.0", "4"},
	})
	cand := mustDataset(t, "candidate", []string{"X", "Y", "V"}, [][]string{
		{"1.25", "7.5", "3.5"}, {"2.5", "8.0", "4.5"},
	})

	first, err := Align(orig, cand, sharedOpts(2))
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	second, err := Align(orig, cand, sharedOpts(2))
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if first.Len() != second.Len() {
		t.Fatalf("pair counts differ across runs: %d vs %d", first.Len(), second.Len())
	}
	for i := range first.Pairs {
		if first.Pairs[i] != second.Pairs[i] {
			t.Errorf("pair %d differs: %+v vs %+v", i, first.Pairs[i], second.Pairs[i])
		}
	}
}

func TestAlignDisjointCoordinates(t *testing.T) {
	orig := mustDataset(t, "original", []string{"X", "Y", "V"}, [][]string{
		{"0", "0", "1"},
	})
	cand := mustDataset(t, "candidate", []string{"X", "Y", "V"}, [][]string{
		{"100", "100", "2"},
	})

	res, err := Align(orig, cand, sharedOpts(6))
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if res.Len() != 0 {
		t.Errorf("pairs = %d, want 0", res.Len())
	}
}

// Duplicate rounded keys form the full cross product: 2 original rows times
// 3 candidate rows at the same location yield 6 pairs.
func TestAlignDuplicateKeysCrossProduct(t *testing.T) {
	orig := mustDataset(t, "original", []string{"X", "Y", "V"}, [][]string{
		{"5", "5", "1"}, {"5", "5", "2"},
	})
	cand := mustDataset(t, "candidate", []string{"X", "Y", "V"}, [][]string{
		{"5", "5", "10"}, {"5", "5", "20"}, {"5", "5", "30"},
	})

	res, err := Align(orig, cand, sharedOpts(6))
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if res.Len() != 6 {
		t.Errorf("pairs = %d, want 6 (2x3 cross product)", res.Len())
	}
}

func TestAlignRoundingMergesNearbyPoints(t *testing.T) {
	orig := mustDataset(t, "original", []string{"X", "Y", "V"}, [][]string{
		{"1.0000004", "2.0", "5"},
	})
	cand := mustDataset(t, "candidate", []string{"X", "Y", "V"}, [][]string{
		{"1.0000001", "2.0", "6"},
	})

	// At 6 places both x values round to 1.000000.
	res, err := Align(orig, cand, sharedOpts(6))
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if res.Len() != 1 {
		t.Errorf("pairs at rounding 6 = %d, want 1", res.Len())
	}

	// At 7 places they are distinct keys.
	res, err = Align(orig, cand, sharedOpts(7))
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if res.Len() != 0 {
		t.Errorf("pairs at rounding 7 = %d, want 0", res.Len())
	}
}

func TestAlignDropsUnparseableRows(t *testing.T) {
	orig := mustDataset(t, "original", []string{"X", "Y", "V"}, [][]string{
		{"0", "0", "1"},
		{"bad", "0", "2"},  // coordinate coercion loss
		{"1", "1", ""},     // missing value
		{"2", "2", "3"},
	})
	cand := mustDataset(t, "candidate", []string{"X", "Y", "V"}, [][]string{
		{"0", "0", "1.5"}, {"bad", "0", "2.5"}, {"1", "1", "9"}, {"2", "2", "3.5"},
	})

	res, err := Align(orig, cand, sharedOpts(0))
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	// Only (0,0) and (2,2) survive on the original side.
	if res.Len() != 2 {
		t.Errorf("pairs = %d, want 2", res.Len())
	}
}

func TestAlignDropsNonFiniteValues(t *testing.T) {
	orig := mustDataset(t, "original", []string{"X", "Y", "V"}, [][]string{
		{"0", "0", "Inf"}, {"1", "1", "2"},
	})
	cand := mustDataset(t, "candidate", []string{"X", "Y", "V"}, [][]string{
		{"0", "0", "5"}, {"1", "1", "3"},
	})

	res, err := Align(orig, cand, sharedOpts(0))
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if res.Len() != 1 {
		t.Fatalf("pairs = %d, want 1 (Inf value dropped)", res.Len())
	}
	if res.Pairs[0].Residual != 1 {
		t.Errorf("residual = %v, want 1", res.Pairs[0].Residual)
	}
}

func TestAlignSchemaError(t *testing.T) {
	orig := mustDataset(t, "original", []string{"X", "Y"}, nil)
	cand := mustDataset(t, "candidate", []string{"X", "Y", "V"}, nil)

	_, err := Align(orig, cand, sharedOpts(6))
	if err == nil {
		t.Fatal("expected SchemaError")
	}
	var se *tabular.SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("error type = %T, want *tabular.SchemaError", err)
	}
	if se.Dataset != "original" || len(se.Missing) != 1 || se.Missing[0] != "V" {
		t.Errorf("SchemaError = %+v", se)
	}
}

func TestAlignSpuriousFilter(t *testing.T) {
	orig := mustDataset(t, "original", []string{"X", "Y", "V", "SPURIOUS"}, [][]string{
		{"0", "0", "1", "0"},
		{"1", "1", "2", "1"}, // flagged, excluded
	})
	cand := mustDataset(t, "candidate", []string{"X", "Y", "V"}, [][]string{
		{"0", "0", "1.5"}, {"1", "1", "2.5"},
	})

	opts := sharedOpts(0)
	opts.SpuriousColumn = "SPURIOUS"
	res, err := Align(orig, cand, opts)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if res.Len() != 1 {
		t.Errorf("pairs = %d, want 1 (flagged row excluded)", res.Len())
	}
}

func TestAlignPrefersIDJoin(t *testing.T) {
	// Coordinates deliberately disagree; only the ID join can pair these.
	orig := mustDataset(t, "original", []string{"SAMPLEID", "X", "Y", "V"}, [][]string{
		{"s1", "0", "0", "10"},
		{"s2", "1", "1", "20"},
	})
	cand := mustDataset(t, "candidate", []string{"SAMPLEID", "X", "Y", "V"}, [][]string{
		{"s2", "50", "50", "25"},
		{"s1", "99", "99", "11"},
	})

	opts := sharedOpts(0)
	opts.IDColumn = "SAMPLEID"
	res, err := Align(orig, cand, opts)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if res.Len() != 2 {
		t.Fatalf("pairs = %d, want 2", res.Len())
	}
	// Original-major order: s1 then s2.
	if res.Pairs[0].Residual != 1 || res.Pairs[1].Residual != 5 {
		t.Errorf("residuals = %v, want [1 5]", res.Residuals())
	}
}

func TestAlignIDJoinFallsBackToCoordinates(t *testing.T) {
	orig := mustDataset(t, "original", []string{"SAMPLEID", "X", "Y", "V"}, [][]string{
		{"a1", "0", "0", "10"},
	})
	cand := mustDataset(t, "candidate", []string{"SAMPLEID", "X", "Y", "V"}, [][]string{
		{"b9", "0", "0", "12"}, // no ID overlap, same location
	})

	opts := sharedOpts(0)
	opts.IDColumn = "SAMPLEID"
	res, err := Align(orig, cand, opts)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if res.Len() != 1 {
		t.Fatalf("pairs = %d, want 1 via coordinate fallback", res.Len())
	}
	if res.Pairs[0].Residual != 2 {
		t.Errorf("residual = %v, want 2", res.Pairs[0].Residual)
	}
}

func TestRoundTo(t *testing.T) {
	cases := []struct {
		v      float64
		places int
		want   float64
	}{
		{1.23456789, 6, 1.234568},
		{1.23456789, 2, 1.23},
		{1.5, 0, 2},
		{1234, -2, 1200},
	}
	for _, c := range cases {
		if got := roundTo(c.v, c.places); math.Abs(got-c.want) > 1e-12 {
			t.Errorf("roundTo(%v, %d) = %v, want %v", c.v, c.places, got, c.want)
		}
	}
}

func BenchmarkAlign(b *testing.B) {
	const n = 2000
	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		rows[i] = []string{
			fmt.Sprintf("%d.5", i%500), fmt.Sprintf("%d.5", i/500), fmt.Sprintf("%d", i),
		}
	}
	orig, _ := tabular.New("original", []string{"X", "Y", "V"}, rows)
	cand, _ := tabular.New("candidate", []string{"X", "Y", "V"}, rows)
	opts := sharedOpts(6)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Align(orig, cand, opts); err != nil {
			b.Fatal(err)
		}
	}
}

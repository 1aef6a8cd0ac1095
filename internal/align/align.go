// Package align pairs rows from two geochemical datasets that lack a shared
// identifier, by matching on spatial coordinates rounded to a configurable
// precision. The output is one (original, candidate, residual) triple per
// matched key.
package align

import (
	"math"

	"github.com/tellurium-labs/assay.report/internal/tabular"
)

// DefaultRounding is the default coordinate rounding in decimal places.
// Six places holds up for both projected coordinates (mm to cm) and
// lat/long (roughly 0.1 m).
const DefaultRounding = 6

// Options selects the columns to align on and the join policy.
//
// Rounding is the number of decimal places applied to both sides before key
// comparison. It is a policy knob the caller owns: too coarse and genuinely
// distinct locations collide; too fine and floating-point or reprojection
// noise breaks real matches. No tolerance search is attempted.
type Options struct {
	OrigX     string
	OrigY     string
	OrigValue string
	CandX     string
	CandY     string
	CandValue string
	Rounding  int

	// IDColumn optionally names a sample-ID column. When present on both
	// sides with overlapping values, the ID join is preferred over the
	// coordinate join.
	IDColumn string

	// SpuriousColumn optionally names a flag column on the original set.
	// Rows whose flag is anything other than 0 are excluded before joining.
	SpuriousColumn string
}

// Pair is one matched row: original value, candidate value, and the
// residual (candidate minus original). X and Y carry the rounded
// coordinates of the original-side row so pairs stay locatable.
type Pair struct {
	X        float64 `json:"x_r"`
	Y        float64 `json:"y_r"`
	Orig     float64 `json:"orig_val"`
	Cand     float64 `json:"cand_val"`
	Residual float64 `json:"residual"`
}

// Result holds the aligned pairs. Zero pairs is a valid outcome, not an
// error: it simply means no rounded coordinates matched.
type Result struct {
	Pairs []Pair
}

// Len returns the number of matched pairs.
func (r *Result) Len() int { return len(r.Pairs) }

// OrigValues returns the original-side values in pair order.
func (r *Result) OrigValues() []float64 {
	out := make([]float64, len(r.Pairs))
	for i, p := range r.Pairs {
		out[i] = p.Orig
	}
	return out
}

// CandValues returns the candidate-side values in pair order.
func (r *Result) CandValues() []float64 {
	out := make([]float64, len(r.Pairs))
	for i, p := range r.Pairs {
		out[i] = p.Cand
	}
	return out
}

// Residuals returns candidate minus original for every pair.
func (r *Result) Residuals() []float64 {
	out := make([]float64, len(r.Pairs))
	for i, p := range r.Pairs {
		out[i] = p.Residual
	}
	return out
}

// key is the composite join key: both coordinates rounded to the same
// precision.
type key struct {
	x, y float64
}

// row is one joinable record after coercion and filtering.
type row struct {
	key   key
	id    string
	value float64
}

// Align validates schemas, coerces coordinates and values, and inner-joins
// the two datasets on the rounded composite key.
//
// Duplicate rounded keys within one side are deliberately not deduplicated:
// they participate in the full cross product with matching keys on the other
// side. Callers that need one-row-per-location must aggregate upstream.
func Align(orig, cand *tabular.Dataset, opts Options) (*Result, error) {
	if err := orig.RequireColumns(opts.OrigX, opts.OrigY, opts.OrigValue); err != nil {
		return nil, err
	}
	if err := cand.RequireColumns(opts.CandX, opts.CandY, opts.CandValue); err != nil {
		return nil, err
	}

	origRows := buildRows(orig, opts.OrigX, opts.OrigY, opts.OrigValue, opts.IDColumn, opts.SpuriousColumn, opts.Rounding)
	candRows := buildRows(cand, opts.CandX, opts.CandY, opts.CandValue, opts.IDColumn, "", opts.Rounding)

	if opts.IDColumn != "" && orig.HasColumn(opts.IDColumn) && cand.HasColumn(opts.IDColumn) {
		if res, ok := joinByID(origRows, candRows); ok {
			return res, nil
		}
	}
	return joinByKey(origRows, candRows), nil
}

// buildRows coerces the needed columns and drops rows with missing
// coordinates or values. Unparseable cells were already mapped to NaN by
// tabular.Coerce, so the drop here is where coercion loss becomes visible
// in row counts.
func buildRows(ds *tabular.Dataset, xCol, yCol, valCol, idCol, spuriousCol string, rounding int) []row {
	xs := ds.Coerce(xCol)
	ys := ds.Coerce(yCol)
	vals := ds.Coerce(valCol)

	var ids []string
	if idCol != "" && ds.HasColumn(idCol) {
		ids = ds.Column(idCol)
	}
	var spurious []float64
	if spuriousCol != "" && ds.HasColumn(spuriousCol) {
		spurious = ds.Coerce(spuriousCol)
	}

	rows := make([]row, 0, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		if spurious != nil && spurious[i] != 0 {
			continue
		}
		x, y, v := xs[i], ys[i], vals[i]
		if !isFinite(x) || !isFinite(y) || math.IsNaN(v) {
			continue
		}
		r := row{
			key:   key{x: roundTo(x, rounding), y: roundTo(y, rounding)},
			value: v,
		}
		if ids != nil {
			r.id = ids[i]
		}
		rows = append(rows, r)
	}
	return rows
}

// joinByID joins on the shared sample-ID column. Returns ok=false when the
// ID sets do not overlap at all, in which case the caller falls back to the
// coordinate join.
func joinByID(origRows, candRows []row) (*Result, bool) {
	candByID := make(map[string][]float64)
	for _, c := range candRows {
		if c.id == "" {
			continue
		}
		candByID[c.id] = append(candByID[c.id], c.value)
	}

	res := &Result{}
	for _, o := range origRows {
		if o.id == "" {
			continue
		}
		for _, cv := range candByID[o.id] {
			appendPair(res, o.key, o.value, cv)
		}
	}
	if len(res.Pairs) == 0 {
		return nil, false
	}
	return res, true
}

// joinByKey inner-joins on the rounded composite coordinate key with
// cross-product semantics on duplicates. Pair order is original-major.
func joinByKey(origRows, candRows []row) *Result {
	candByKey := make(map[key][]float64, len(candRows))
	for _, c := range candRows {
		candByKey[c.key] = append(candByKey[c.key], c.value)
	}

	res := &Result{}
	for _, o := range origRows {
		for _, cv := range candByKey[o.key] {
			appendPair(res, o.key, o.value, cv)
		}
	}
	return res
}

// appendPair records a matched pair unless either value is non-finite.
func appendPair(res *Result, k key, orig, cand float64) {
	if !isFinite(orig) || !isFinite(cand) {
		return
	}
	res.Pairs = append(res.Pairs, Pair{X: k.x, Y: k.y, Orig: orig, Cand: cand, Residual: cand - orig})
}

// roundTo rounds v to the given number of decimal places. Negative places
// round to tens, hundreds, and so on.
func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

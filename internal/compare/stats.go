package compare

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// quantile returns the q-quantile of vals using linear interpolation
// between order statistics. This matches the convention of the usual
// scientific stacks (position h = (n-1)q), which differs from gonum's
// stat.Quantile interpolation, so we keep our own.
func quantile(vals []float64, q float64) float64 {
	s := make([]float64, len(vals))
	copy(s, vals)
	sort.Float64s(s)

	n := len(s)
	if n == 1 || q <= 0 {
		return s[0]
	}
	if q >= 1 {
		return s[n-1]
	}
	h := q * float64(n-1)
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return s[n-1]
	}
	frac := h - float64(lo)
	return s[lo] + frac*(s[lo+1]-s[lo])
}

// iqr returns the interquartile range.
func iqr(vals []float64) float64 {
	return quantile(vals, 0.75) - quantile(vals, 0.25)
}

// binEdges builds uniform histogram edges over [0, dataMax] with a bin
// count chosen by the named adaptive rule, capped at maxBins and floored
// at 2 bins. Unknown rules and degenerate spreads fall back to Sturges.
func binEdges(vals []float64, rule string, dataMax float64, maxBins int) []float64 {
	n := len(vals)
	sturges := int(math.Ceil(math.Log2(float64(n)))) + 1

	bins := sturges
	var width float64
	switch rule {
	case "fd":
		width = 2 * iqr(vals) / math.Cbrt(float64(n))
	case "scott":
		width = 3.49 * stat.StdDev(vals, nil) / math.Cbrt(float64(n))
	case "sturges":
		width = 0
	default:
		width = 0
	}
	if width > 0 && isFinite(width) {
		bins = int(math.Ceil(dataMax / width))
	}

	if bins > maxBins {
		bins = maxBins
	}
	if bins < 2 {
		bins = 2
	}
	return linspace(0, dataMax, bins+1)
}

// linspace returns n evenly spaced points from lo to hi inclusive.
func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}

// histogram counts vals into the uniform bins described by edges. The last
// bin is closed on the right so the maximum value is counted; values
// outside [edges[0], edges[last]] are ignored.
func histogram(vals, edges []float64) []float64 {
	nbins := len(edges) - 1
	counts := make([]float64, nbins)
	lo, hi := edges[0], edges[nbins]
	width := (hi - lo) / float64(nbins)
	if !(width > 0) {
		return counts
	}
	for _, v := range vals {
		if v < lo || v > hi {
			continue
		}
		i := int(math.Floor((v - lo) / width))
		if i >= nbins {
			i = nbins - 1
		}
		counts[i]++
	}
	return counts
}

// wasserstein computes the 1-D Wasserstein-1 distance between two sample
// sets by integrating the absolute difference of their empirical CDFs over
// the merged support. Symmetric in its arguments and non-negative.
func wasserstein(a, b []float64) float64 {
	as := make([]float64, len(a))
	copy(as, a)
	sort.Float64s(as)
	bs := make([]float64, len(b))
	copy(bs, b)
	sort.Float64s(bs)

	all := make([]float64, 0, len(as)+len(bs))
	all = append(all, as...)
	all = append(all, bs...)
	sort.Float64s(all)

	var dist float64
	for i := 0; i < len(all)-1; i++ {
		delta := all[i+1] - all[i]
		if delta == 0 {
			continue
		}
		fa := cdfAt(as, all[i])
		fb := cdfAt(bs, all[i])
		dist += math.Abs(fa-fb) * delta
	}
	return dist
}

// cdfAt returns the empirical CDF of the sorted sample s at v: the
// fraction of samples <= v.
func cdfAt(s []float64, v float64) float64 {
	n := sort.Search(len(s), func(i int) bool { return s[i] > v })
	return float64(n) / float64(len(s))
}

// Summary is a describe-style digest of one numeric column, used by the
// dataset summary endpoint. Missing (NaN) entries are excluded; Count
// reflects the exclusion.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	P25    float64 `json:"p25"`
	Median float64 `json:"median"`
	P75    float64 `json:"p75"`
	Max    float64 `json:"max"`
}

// Describe computes a Summary over the finite entries of vals.
func Describe(vals []float64) Summary {
	finite := make([]float64, 0, len(vals))
	for _, v := range vals {
		if isFinite(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return Summary{}
	}

	sorted := make([]float64, len(finite))
	copy(sorted, finite)
	sort.Float64s(sorted)

	s := Summary{
		Count:  len(finite),
		Mean:   stat.Mean(finite, nil),
		Min:    sorted[0],
		P25:    quantile(finite, 0.25),
		Median: quantile(finite, 0.5),
		P75:    quantile(finite, 0.75),
		Max:    sorted[len(sorted)-1],
	}
	if len(finite) > 1 {
		s.Std = stat.StdDev(finite, nil)
	}
	return s
}

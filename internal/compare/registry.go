package compare

import (
	"fmt"
	"sort"
	"strings"
)

// Estimator computes one per-cell statistic for each side plus a comparison
// statistic. Implementations are stateless; a single value works for any
// number of concurrent calls.
type Estimator interface {
	// Name returns the registry key for this estimator.
	Name() string
	// Estimate fills a Grid from grid-indexed candidate and original
	// samples. Cells absent from a side yield 0.0 for that side's stat.
	Estimate(cand, orig Cells, nx, ny int, p Params) (Grid, error)
}

// UnknownMethodError reports a comparison method that is not registered.
type UnknownMethodError struct {
	Method string
	Valid  []string
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("unknown comparison method %q (valid: %s)", e.Method, strings.Join(e.Valid, ", "))
}

// registry is the immutable name-to-estimator table. Adding a method is
// pure extension: implement Estimator and list it here.
var registry = buildRegistry(
	maxDiff{},
	meanDiff{},
	medianDiff{},
	quantileDiff{},
	tailRatio{},
	chiSquared{},
	emdDistance{},
)

func buildRegistry(ests ...Estimator) map[string]Estimator {
	m := make(map[string]Estimator, len(ests))
	for _, e := range ests {
		if _, dup := m[e.Name()]; dup {
			panic(fmt.Sprintf("duplicate comparison method %q", e.Name()))
		}
		m[e.Name()] = e
	}
	return m
}

// Methods returns the registered method names, sorted.
func Methods() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the estimator registered under name, or an
// *UnknownMethodError naming the valid choices.
func Lookup(name string) (Estimator, error) {
	est, ok := registry[name]
	if !ok {
		return nil, &UnknownMethodError{Method: name, Valid: Methods()}
	}
	return est, nil
}

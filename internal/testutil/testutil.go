// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files.
package testutil

import (
	"math"
	"testing"

	"github.com/tellurium-labs/assay.report/internal/tabular"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertAlmostEqual fails the test when two floats differ by more than tol.
func AssertAlmostEqual(t *testing.T, got, want, tol float64) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > tol {
		t.Errorf("value = %v, want %v (tol %v)", got, want, tol)
	}
}

// MustDataset builds a Dataset from columns and rows, failing the test on
// schema errors.
func MustDataset(t *testing.T, label string, columns []string, rows [][]string) *tabular.Dataset {
	t.Helper()
	ds, err := tabular.New(label, columns, rows)
	if err != nil {
		t.Fatalf("building %s dataset: %v", label, err)
	}
	return ds
}

// SampleCSV is a small well-formed upload used across handler tests.
const SampleCSV = "X,Y,Te_ppm\n0,0,10\n1,1,20\n2,2,30\n"

// SampleCSVCandidate pairs with SampleCSV at every coordinate.
const SampleCSVCandidate = "X,Y,Te_ppm\n0,0,12\n1,1,18\n2,2,33\n"

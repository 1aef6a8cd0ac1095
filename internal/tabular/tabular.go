// Package tabular provides the column-oriented table that comparison calls
// consume. A Dataset is built once from uploaded CSV data (or from in-memory
// columns in tests), is immutable for the duration of a call, and knows
// nothing about where its rows came from.
package tabular

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Dataset is an ordered collection of string cells sharing a schema.
// The label identifies the dataset in error messages ("original", "candidate").
type Dataset struct {
	label   string
	columns []string
	cells   map[string][]string
	rows    int
}

// SchemaError reports columns that a caller required but the dataset lacks.
type SchemaError struct {
	Dataset string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s dataset missing columns: %s", e.Dataset, strings.Join(e.Missing, ", "))
}

// New builds a Dataset from a header and row-major cells. Short rows are
// padded with empty cells; long rows are truncated to the header width.
func New(label string, columns []string, rows [][]string) (*Dataset, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%s dataset has no columns", label)
	}
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if c == "" {
			return nil, fmt.Errorf("%s dataset has an empty column name", label)
		}
		if seen[c] {
			return nil, fmt.Errorf("%s dataset has duplicate column %q", label, c)
		}
		seen[c] = true
	}

	cells := make(map[string][]string, len(columns))
	for _, c := range columns {
		cells[c] = make([]string, len(rows))
	}
	for i, row := range rows {
		for j, c := range columns {
			if j < len(row) {
				cells[c][i] = row[j]
			}
		}
	}

	return &Dataset{
		label:   label,
		columns: append([]string(nil), columns...),
		cells:   cells,
		rows:    len(rows),
	}, nil
}

// Label returns the dataset's display name.
func (d *Dataset) Label() string { return d.label }

// Len returns the number of rows.
func (d *Dataset) Len() int { return d.rows }

// Columns returns the column names in schema order.
func (d *Dataset) Columns() []string {
	return append([]string(nil), d.columns...)
}

// HasColumn reports whether the named column exists.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.cells[name]
	return ok
}

// Column returns the raw cells for the named column, or nil if absent.
// The returned slice is the backing storage and must not be modified.
func (d *Dataset) Column(name string) []string {
	return d.cells[name]
}

// RequireColumns validates that every named column exists, returning a
// *SchemaError listing all missing names. Validation runs before any
// numeric work so schema problems surface immediately.
func (d *Dataset) RequireColumns(names ...string) error {
	var missing []string
	for _, n := range names {
		if !d.HasColumn(n) {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Dataset: d.label, Missing: missing}
	}
	return nil
}

// Coerce converts the named column to float64. Cells that do not parse as a
// number (including empty cells) become NaN, the in-band marker for missing.
// Returns nil if the column does not exist.
func (d *Dataset) Coerce(name string) []float64 {
	raw, ok := d.cells[name]
	if !ok {
		return nil
	}
	out := make([]float64, len(raw))
	for i, cell := range raw {
		v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = v
	}
	return out
}

package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

// FromCSV parses CSV data into a Dataset. The first record is the header and
// defines the schema. Ragged records are tolerated: short rows are padded,
// long rows truncated to the header width.
func FromCSV(label string, r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s dataset is empty", label)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s CSV header: %w", label, err)
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s CSV row %d: %w", label, len(rows)+2, err)
		}
		rows = append(rows, rec)
	}

	return New(label, header, rows)
}

// FromCSVBytes parses an in-memory CSV document, typically a cached upload.
func FromCSVBytes(label string, data []byte) (*Dataset, error) {
	return FromCSV(label, bytes.NewReader(data))
}

package core

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Aggregator accumulates per-row outcomes into an ImportSummary.
// Results keep file order; one result per processed row.
type Aggregator struct {
	results []RowResult
}

// Add records the outcome of one row.
func (a *Aggregator) Add(r RowResult) {
	a.results = append(a.results, r)
}

// Summary folds the accumulated results into totals.
func (a *Aggregator) Summary() *ImportSummary {
	summary := &ImportSummary{
		TotalRows: len(a.results),
		Results:   a.results,
	}
	for _, r := range a.results {
		if r.Status == StatusError {
			summary.FailedRows++
		} else {
			summary.SuccessfulRows++
		}
	}
	return summary
}

// WriteAuditLog renders the downloadable per-row log: semicolon
// separated, UTF-8 with BOM, one line per processed row, the original
// row JSON-encoded in the data column.
func WriteAuditLog(w io.Writer, results []RowResult) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}

	cw := csv.NewWriter(w)
	cw.Comma = Delimiter

	if err := cw.Write([]string{"row", "status", "message", "data"}); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}

	for _, r := range results {
		data, err := json.Marshal(r.Data)
		if err != nil {
			return fmt.Errorf("encode row %d: %w", r.Row, err)
		}
		record := []string{
			strconv.Itoa(r.Row),
			string(r.Status),
			r.Message,
			string(data),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write audit log: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

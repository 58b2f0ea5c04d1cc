package core

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Delimiter is the cell separator used by all CSV files the engine
// reads and writes. Spreadsheet exports in the source locale use
// semicolons, with commas reserved for decimal separators.
const Delimiter = ';'

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadRows parses the staged CSV file into header and data rows.
//
// The reader tolerates a UTF-8 BOM, ragged records and lazy quotes.
// Fully empty records are skipped but still advance the line counter,
// so RawRow.Line always matches the physical line in the file.
func ReadRows(path string) ([]string, []RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	return parseCSV(f)
}

func parseCSV(r io.Reader) ([]string, []RawRow, error) {
	reader := csv.NewReader(r)
	reader.Comma = Delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("parse csv: file is empty")
	}

	headers := make([]string, 0, len(records[0]))
	for i, h := range records[0] {
		h = sanitizeUTF8(h)
		if i == 0 {
			h = strings.TrimPrefix(h, string(utf8BOM))
		}
		headers = append(headers, strings.TrimSpace(h))
	}

	rows := make([]RawRow, 0, len(records)-1)
	for i, record := range records[1:] {
		if isEmptyRecord(record) {
			continue
		}
		for j, cell := range record {
			record[j] = sanitizeUTF8(cell)
		}
		// Data rows start at physical line 2
		rows = append(rows, NewRawRow(i+2, headers, record))
	}

	return headers, rows, nil
}

func isEmptyRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Template renders a downloadable CSV template for an entity: the
// localized headers plus, for assets, one trailing column per custom
// field of the selected asset type, in definition order.
func Template(def *EntityDefinition, customDefs []CustomFieldDef) ([]byte, error) {
	headers := def.Schema.Headers()
	for _, cf := range customDefs {
		headers = append(headers, CustomFieldColumn(cf))
	}

	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	w.Comma = Delimiter
	if err := w.Write(headers); err != nil {
		return nil, fmt.Errorf("write template: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write template: %w", err)
	}

	return buf.Bytes(), nil
}

// CustomFieldColumn builds the header for one custom-field column:
// the field name followed by its type, optional unit, and a trailing
// asterisk when the field is required.
func CustomFieldColumn(def CustomFieldDef) string {
	var b strings.Builder
	b.WriteString(def.Name)
	b.WriteString(" (")
	b.WriteString(def.DataType)
	if def.Unit != "" {
		b.WriteString(" - ")
		b.WriteString(def.Unit)
	}
	if def.Required {
		b.WriteString(" *")
	}
	b.WriteString(")")
	return b.String()
}

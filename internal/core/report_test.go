package core

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
)

func TestAggregatorSummary(t *testing.T) {
	var agg Aggregator
	agg.Add(RowResult{Row: 2, Status: StatusNew, Message: "Activo creado"})
	agg.Add(RowResult{Row: 3, Status: StatusUpdated, Message: "Activo actualizado"})
	agg.Add(RowResult{Row: 4, Status: StatusError, Message: "El campo \"Nombre\" es obligatorio"})

	s := agg.Summary()
	if s.TotalRows != 3 || s.SuccessfulRows != 2 || s.FailedRows != 1 {
		t.Errorf("summary = %d/%d/%d, want 3/2/1",
			s.TotalRows, s.SuccessfulRows, s.FailedRows)
	}
	if len(s.Results) != 3 {
		t.Errorf("results = %d, want 3", len(s.Results))
	}
	if s.SuccessfulRows+s.FailedRows != s.TotalRows {
		t.Error("summary invariant violated")
	}
}

func TestWriteAuditLog(t *testing.T) {
	row := NewRawRow(2, []string{"Nombre", "Estado"}, []string{"Laptop", "Operativo"})
	results := []RowResult{
		{Row: 2, Status: StatusNew, Message: "Activo creado", Data: row},
		{Row: 3, Status: StatusError, Message: "No se encontró el estado: Roto", Data: row},
	}

	var buf bytes.Buffer
	if err := WriteAuditLog(&buf, results); err != nil {
		t.Fatalf("WriteAuditLog() error = %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "\xEF\xBB\xBF") {
		t.Error("audit log should start with UTF-8 BOM")
	}

	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, "\xEF\xBB\xBF")))
	r.Comma = ';'
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("parse audit log: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("lines = %d, want header + 2 rows", len(records))
	}
	header := records[0]
	want := []string{"row", "status", "message", "data"}
	for i, h := range want {
		if header[i] != h {
			t.Errorf("header[%d] = %q, want %q", i, header[i], h)
		}
	}
	if records[1][0] != "2" || records[1][1] != "new" {
		t.Errorf("first row = %v", records[1])
	}
	if !strings.Contains(records[1][3], `"Nombre":"Laptop"`) {
		t.Errorf("data column should carry the original row JSON: %q", records[1][3])
	}
	if records[2][1] != "error" {
		t.Errorf("second row status = %q, want error", records[2][1])
	}
}

package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestService(st Store) *Service {
	return NewService(st, Options{
		MaxConcurrent: 2,
		MaxWait:       time.Second,
		RunRetention:  time.Minute,
	})
}

// writeEntityCSV stages a CSV file for an entity from row maps keyed
// by localized header.
func writeEntityCSV(t *testing.T, entity EntityType, rows []map[string]string) string {
	t.Helper()
	def, ok := Definition(entity)
	if !ok {
		t.Fatalf("entity %s not registered", entity)
	}
	headers := def.Schema.Headers()

	var b strings.Builder
	b.WriteString(strings.Join(headers, ";"))
	b.WriteString("\n")
	for _, row := range rows {
		cells := make([]string, len(headers))
		for i, h := range headers {
			cells[i] = row[h]
		}
		b.WriteString(strings.Join(cells, ";"))
		b.WriteString("\n")
	}

	path := filepath.Join(t.TempDir(), "import.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func seedAssetCatalog(st *memStore) {
	st.seedMaster(KindAssetTypes, "Ordenador Personal")
	st.seedMaster(KindAssetStatuses, "Operativo")
}

func TestImportFile_MasterCatalog(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	svc := newTestService(st)

	path := writeEntityCSV(t, EntityManufacturers, []map[string]string{
		{"Nombre": "Dell"},
		{"Nombre": "HP"},
	})

	outcome, err := svc.ImportFile(ctx, path, EntityManufacturers, 0)
	if err != nil {
		t.Fatalf("ImportFile() error = %v", err)
	}
	if outcome.Status != RunCompleted {
		t.Fatalf("status = %q, want completed", outcome.Status)
	}
	if outcome.Summary.TotalRows != 2 || outcome.Summary.SuccessfulRows != 2 {
		t.Errorf("summary = %+v", outcome.Summary)
	}

	// Second run over the same names updates instead of duplicating
	path = writeEntityCSV(t, EntityManufacturers, []map[string]string{
		{"Nombre": "DELL"},
	})
	outcome, err = svc.ImportFile(ctx, path, EntityManufacturers, 0)
	if err != nil {
		t.Fatalf("second ImportFile() error = %v", err)
	}
	if outcome.Summary.Results[0].Status != StatusUpdated {
		t.Errorf("re-import status = %q, want updated", outcome.Summary.Results[0].Status)
	}
}

func TestImportFile_PartialFailureIsolation(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	seedAssetCatalog(st)
	svc := newTestService(st)

	var rows []map[string]string
	for i := 1; i <= 10; i++ {
		name := fmt.Sprintf("Equipo %d", i)
		if i == 5 {
			name = "" // blank required field
		}
		rows = append(rows, map[string]string{
			"Nombre":          name,
			"Número de serie": fmt.Sprintf("SN%03d", i),
			"Tipo de activo":  "Ordenador Personal",
			"Estado":          "Operativo",
		})
	}

	outcome, err := svc.ImportFile(ctx, writeEntityCSV(t, EntityAssets, rows), EntityAssets, 0)
	if err != nil {
		t.Fatalf("ImportFile() error = %v", err)
	}

	s := outcome.Summary
	if s.TotalRows != 10 || s.SuccessfulRows != 9 || s.FailedRows != 1 {
		t.Fatalf("summary = %d/%d/%d, want 10/9/1",
			s.TotalRows, s.SuccessfulRows, s.FailedRows)
	}
	if len(s.Results) != 10 {
		t.Fatalf("results = %d, want 10", len(s.Results))
	}
	// Row 5 is physical line 6
	bad := s.Results[4]
	if bad.Row != 6 || bad.Status != StatusError {
		t.Errorf("failed row = %+v", bad)
	}
	if s.SuccessfulRows+s.FailedRows != s.TotalRows {
		t.Error("summary invariant violated")
	}
}

func TestImportFile_TwoPhaseConfirmation(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	seedAssetCatalog(st)
	st.seedMaster(KindManufacturers, "Dell")
	svc := newTestService(st)

	// Two rows referencing the same missing model: one pending entry
	rows := []map[string]string{
		{
			"Nombre": "Laptop 1", "Número de serie": "SN1",
			"Tipo de activo": "Ordenador Personal", "Estado": "Operativo",
			"Fabricante": "Dell", "Modelo": "XYZ",
		},
		{
			"Nombre": "Laptop 2", "Número de serie": "SN2",
			"Tipo de activo": "Ordenador Personal", "Estado": "Operativo",
			"Fabricante": "dell", "Modelo": "xyz",
		},
	}
	path := writeEntityCSV(t, EntityAssets, rows)

	outcome, err := svc.ImportFile(ctx, path, EntityAssets, 0)
	if err != nil {
		t.Fatalf("ImportFile() error = %v", err)
	}
	if outcome.Status != RunRequiresConfirmation {
		t.Fatalf("status = %q, want requires_confirmation", outcome.Status)
	}
	if len(outcome.NewModels) != 1 {
		t.Fatalf("new models = %d, want 1 (deduplicated)", len(outcome.NewModels))
	}
	if outcome.NewModels[0].ManufacturerName != "Dell" || outcome.NewModels[0].ModelName != "XYZ" {
		t.Errorf("pending model = %+v", outcome.NewModels[0])
	}

	// The staged file must survive until confirmation
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("staged file should be retained: %v", err)
	}

	confirmed, err := svc.Confirm(ctx, outcome.JobID)
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if confirmed.Status != RunCompleted {
		t.Fatalf("confirmed status = %q", confirmed.Status)
	}
	if confirmed.Summary.SuccessfulRows != 2 {
		t.Errorf("confirmed summary = %+v", confirmed.Summary)
	}

	// Model now exists, file is gone, job is terminal
	dell, _ := st.MasterByName(ctx, KindManufacturers, "Dell")
	model, err := st.ModelByName(ctx, "XYZ", dell.ID)
	if err != nil || model == nil {
		t.Error("confirmed model should exist in the catalog")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("staged file should be removed after confirmation")
	}
	job, _ := svc.Job(ctx, outcome.JobID)
	if job.Status != JobCompleted {
		t.Errorf("job status = %q, want completed", job.Status)
	}

	// A second import of the same file needs no confirmation
	path2 := writeEntityCSV(t, EntityAssets, rows)
	again, err := svc.ImportFile(ctx, path2, EntityAssets, 0)
	if err != nil {
		t.Fatalf("re-import error = %v", err)
	}
	if again.Status != RunCompleted {
		t.Errorf("re-import status = %q, want completed", again.Status)
	}
}

func TestConfirm_Guards(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	svc := newTestService(st)

	if _, err := svc.Confirm(ctx, "missing-job"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Confirm(missing) = %v, want ErrJobNotFound", err)
	}

	st.CreateImportJob(ctx, &ImportJob{
		ID: "done-job", EntityType: EntityAssets,
		Status: JobCompleted, CreatedAt: time.Now(),
	})
	if _, err := svc.Confirm(ctx, "done-job"); !errors.Is(err, ErrJobNotPending) {
		t.Errorf("Confirm(completed) = %v, want ErrJobNotPending", err)
	}
}

func TestCancel_RemovesStagedFile(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	seedAssetCatalog(st)
	st.seedMaster(KindManufacturers, "Dell")
	svc := newTestService(st)

	path := writeEntityCSV(t, EntityAssets, []map[string]string{
		{
			"Nombre": "Laptop", "Número de serie": "SN1",
			"Tipo de activo": "Ordenador Personal", "Estado": "Operativo",
			"Fabricante": "Dell", "Modelo": "Nuevo",
		},
	})

	outcome, err := svc.ImportFile(ctx, path, EntityAssets, 0)
	if err != nil {
		t.Fatalf("ImportFile() error = %v", err)
	}
	if outcome.Status != RunRequiresConfirmation {
		t.Fatalf("status = %q", outcome.Status)
	}

	if err := svc.Cancel(ctx, outcome.JobID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("staged file should be removed on cancel")
	}
	job, _ := svc.Job(ctx, outcome.JobID)
	if job.Status != JobCancelled {
		t.Errorf("job status = %q, want cancelled", job.Status)
	}
	if _, err := svc.Confirm(ctx, outcome.JobID); !errors.Is(err, ErrJobNotPending) {
		t.Errorf("Confirm after cancel = %v, want ErrJobNotPending", err)
	}
}

func TestImportFile_UnsupportedEntity(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st)

	path := writeEntityCSV(t, EntityManufacturers, []map[string]string{{"Nombre": "X"}})
	_, err := svc.ImportFile(context.Background(), path, EntityType("spaceships"), 0)
	if !errors.Is(err, ErrUnsupportedEntity) {
		t.Fatalf("error = %v, want ErrUnsupportedEntity", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("staged file should be removed on rejection")
	}
}

func TestImportFile_RemovesFileOnCompletion(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st)

	path := writeEntityCSV(t, EntityManufacturers, []map[string]string{{"Nombre": "Dell"}})
	if _, err := svc.ImportFile(context.Background(), path, EntityManufacturers, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("staged file should be removed after completion")
	}
}

func TestRunSummary_Retention(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st)

	path := writeEntityCSV(t, EntityManufacturers, []map[string]string{{"Nombre": "Dell"}})
	outcome, err := svc.ImportFile(context.Background(), path, EntityManufacturers, 0)
	if err != nil {
		t.Fatal(err)
	}

	summary, ok := svc.RunSummary(outcome.RunID)
	if !ok || summary.TotalRows != 1 {
		t.Errorf("RunSummary() = %v, %v", summary, ok)
	}
	if _, ok := svc.RunSummary("unknown-run"); ok {
		t.Error("unknown run id should not resolve")
	}
}

func TestSyntheticSerialUniqueness(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	seedAssetCatalog(st)

	def, _ := Definition(EntityAssets)
	run := &RunContext{Entity: EntityAssets, Schema: def.Schema}

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			row := assetRowConcurrent(def.Schema, fmt.Sprintf("Equipo %d", i))
			if _, err := importAsset(ctx, st, run, row); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent import error: %v", err)
	}

	seen := make(map[string]bool)
	for _, a := range st.allAssets() {
		if seen[a.Serial] {
			t.Fatalf("duplicate synthesized serial %q", a.Serial)
		}
		seen[a.Serial] = true
	}
	if len(seen) != n {
		t.Errorf("assets = %d, want %d", len(seen), n)
	}
}

func assetRowConcurrent(schema ColumnSchema, name string) RawRow {
	headers := schema.Headers()
	record := make([]string, len(headers))
	for i, h := range headers {
		switch h {
		case "Nombre":
			record[i] = name
		case "Tipo de activo":
			record[i] = "Ordenador Personal"
		case "Estado":
			record[i] = "Operativo"
		}
	}
	return NewRawRow(2, headers, record)
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	svc := newTestService(st)

	stale := filepath.Join(t.TempDir(), "stale.csv")
	if err := os.WriteFile(stale, []byte("Nombre\nX\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	st.CreateImportJob(ctx, &ImportJob{
		ID: "old-job", EntityType: EntityAssets, TempPath: stale,
		Status: JobPendingConfirmation, CreatedAt: time.Now().Add(-100 * time.Hour),
	})
	st.CreateImportJob(ctx, &ImportJob{
		ID: "fresh-job", EntityType: EntityAssets,
		Status: JobPendingConfirmation, CreatedAt: time.Now(),
	})

	svc.purgeExpired(ctx, 72*time.Hour)

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("expired job's staged file should be removed")
	}
	old, _ := st.ImportJobByID(ctx, "old-job")
	if old.Status != JobCancelled {
		t.Errorf("old job status = %q, want cancelled", old.Status)
	}
	fresh, _ := st.ImportJobByID(ctx, "fresh-job")
	if fresh.Status != JobPendingConfirmation {
		t.Errorf("fresh job status = %q, want pending", fresh.Status)
	}
}

package core

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gesinv/gesinv/internal/logging"
)

// ImportStatus is the top-level outcome of an ImportFile call.
type ImportStatus string

const (
	RunCompleted            ImportStatus = "completed"
	RunRequiresConfirmation ImportStatus = "requires_confirmation"
)

// ImportOutcome is what ImportFile and Confirm return to the caller:
// either a finished summary under a run id, or a pending job awaiting
// confirmation of new manufacturer/model pairs.
type ImportOutcome struct {
	RunID     string            `json:"run_id,omitempty"`
	Status    ImportStatus      `json:"status"`
	JobID     string            `json:"job_id,omitempty"`
	NewModels []PendingNewModel `json:"new_models,omitempty"`
	Summary   *ImportSummary    `json:"summary,omitempty"`
}

// Options configures a Service.
type Options struct {
	MaxConcurrent int
	MaxWait       time.Duration
	StrictValues  bool
	RunRetention  time.Duration
}

// Service orchestrates the two-phase import pipeline.
//
// Completed run summaries are held in memory under a run UUID so the
// audit log stays downloadable for a while after the import response
// was sent; entries expire after the configured retention.
type Service struct {
	store   Store
	limiter *ImportLimiter
	strict  bool

	retainRuns time.Duration
	mu         sync.Mutex
	runs       map[string]*ImportSummary
}

// NewService creates the import orchestrator.
func NewService(store Store, opts Options) *Service {
	if opts.RunRetention <= 0 {
		opts.RunRetention = time.Hour
	}
	return &Service{
		store:      store,
		limiter:    NewImportLimiter(opts.MaxConcurrent, opts.MaxWait),
		strict:     opts.StrictValues,
		retainRuns: opts.RunRetention,
		runs:       make(map[string]*ImportSummary),
	}
}

// ImportFile runs the pipeline over a staged CSV file.
//
// For asset files, Pass 1 scans for manufacturer/model pairs missing
// from the catalog; when any are found the pipeline halts, records a
// pending job that owns the staged file, and returns a confirmation
// request. Otherwise the import runs to completion and the file is
// removed. The file is always removed on terminal paths, including
// errors.
func (s *Service) ImportFile(ctx context.Context, path string, entity EntityType, assetTypeID int64) (*ImportOutcome, error) {
	def, ok := Definition(entity)
	if !ok {
		os.Remove(path)
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEntity, entity)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		os.Remove(path)
		return nil, err
	}
	defer s.limiter.Release()

	_, rows, err := ReadRows(path)
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	logger := logging.WithFields(ctx, "entity", string(entity), "rows", len(rows))

	if entity == EntityAssets {
		pending, err := s.analyze(ctx, def.Schema, rows)
		if err != nil {
			os.Remove(path)
			return nil, err
		}
		if len(pending) > 0 {
			job := &ImportJob{
				ID:          uuid.NewString(),
				EntityType:  entity,
				AssetTypeID: assetTypeID,
				TempPath:    path,
				NewModels:   pending,
				Status:      JobPendingConfirmation,
				CreatedAt:   time.Now().UTC(),
			}
			if err := s.store.CreateImportJob(ctx, job); err != nil {
				os.Remove(path)
				return nil, fmt.Errorf("create import job: %w", err)
			}
			logger.Info("import requires confirmation",
				"job_id", job.ID, "new_models", len(pending))
			return &ImportOutcome{
				Status:    RunRequiresConfirmation,
				JobID:     job.ID,
				NewModels: pending,
			}, nil
		}
	}

	summary, err := s.runImport(ctx, def, rows, assetTypeID)
	os.Remove(path)
	if err != nil {
		return nil, err
	}

	runID := s.rememberRun(summary)
	logger.Info("import completed", "run_id", runID,
		"successful", summary.SuccessfulRows, "failed", summary.FailedRows)

	return &ImportOutcome{RunID: runID, Status: RunCompleted, Summary: summary}, nil
}

// Confirm creates the pending manufacturer/model pairs of a job and
// runs Pass 2 over its staged file.
func (s *Service) Confirm(ctx context.Context, jobID string) (*ImportOutcome, error) {
	job, err := s.pendingJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	def, ok := Definition(job.EntityType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEntity, job.EntityType)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	if err := s.createPendingModels(ctx, job.NewModels); err != nil {
		return nil, err
	}

	_, rows, err := ReadRows(job.TempPath)
	if err != nil {
		return nil, err
	}

	summary, err := s.runImport(ctx, def, rows, job.AssetTypeID)
	if err != nil {
		return nil, err
	}

	os.Remove(job.TempPath)
	if err := s.store.SetImportJobStatus(ctx, job.ID, JobCompleted); err != nil {
		return nil, fmt.Errorf("complete import job: %w", err)
	}

	runID := s.rememberRun(summary)
	logging.WithFields(ctx, "job_id", job.ID, "run_id", runID).Info("import confirmed",
		"successful", summary.SuccessfulRows, "failed", summary.FailedRows)

	return &ImportOutcome{RunID: runID, Status: RunCompleted, Summary: summary}, nil
}

// Cancel abandons a pending job: its staged file is removed and the
// job is marked cancelled.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	job, err := s.pendingJob(ctx, jobID)
	if err != nil {
		return err
	}

	os.Remove(job.TempPath)
	if err := s.store.SetImportJobStatus(ctx, job.ID, JobCancelled); err != nil {
		return fmt.Errorf("cancel import job: %w", err)
	}
	logging.FromContext(ctx).Info("import cancelled", "job_id", job.ID)
	return nil
}

// Job returns an import job record by id.
func (s *Service) Job(ctx context.Context, jobID string) (*ImportJob, error) {
	job, err := s.store.ImportJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// RunSummary returns a retained run summary, if it has not expired.
func (s *Service) RunSummary(runID string) (*ImportSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary, ok := s.runs[runID]
	return summary, ok
}

// TemplateCSV renders the downloadable template for an entity type,
// including the asset type's custom-field columns when applicable.
func (s *Service) TemplateCSV(ctx context.Context, entity EntityType, assetTypeID int64) ([]byte, error) {
	def, ok := Definition(entity)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEntity, entity)
	}

	var customDefs []CustomFieldDef
	if entity == EntityAssets && assetTypeID > 0 {
		var err error
		customDefs, err = s.store.CustomFieldDefs(ctx, assetTypeID)
		if err != nil {
			return nil, fmt.Errorf("load custom fields: %w", err)
		}
	}

	return Template(def, customDefs)
}

// LimiterStatus reports current import concurrency usage.
func (s *Service) LimiterStatus() (active, capacity int) {
	return s.limiter.Status()
}

// WaitForImports blocks until running imports drain or the timeout
// elapses, for graceful shutdown.
func (s *Service) WaitForImports(timeout time.Duration) bool {
	return s.limiter.WaitForDrain(timeout)
}

// analyze is Pass 1: scan every row for missing manufacturer/model
// pairs and deduplicate them by normalized value.
func (s *Service) analyze(ctx context.Context, schema ColumnSchema, rows []RawRow) ([]PendingNewModel, error) {
	seen := make(map[[2]string]bool)
	var pending []PendingNewModel

	for _, row := range rows {
		pm, err := AnalyzeRow(ctx, s.store, schema, row)
		if err != nil {
			return nil, err
		}
		if pm == nil {
			continue
		}
		key := [2]string{NormalizeName(pm.ManufacturerName), NormalizeName(pm.ModelName)}
		if seen[key] {
			continue
		}
		seen[key] = true
		pending = append(pending, *pm)
	}
	return pending, nil
}

// createPendingModels materializes the confirmed pairs. Manufacturers
// are created too if they vanished between the passes; pairs that
// already exist are skipped so Confirm is safe to retry.
func (s *Service) createPendingModels(ctx context.Context, models []PendingNewModel) error {
	for _, pm := range models {
		ref, err := s.store.MasterByName(ctx, KindManufacturers, pm.ManufacturerName)
		if err != nil {
			return fmt.Errorf("resolve manufacturer %q: %w", pm.ManufacturerName, err)
		}

		var mfrID int64
		if ref != nil {
			mfrID = ref.ID
		} else {
			mfrID, err = s.store.InsertMaster(ctx, KindManufacturers, pm.ManufacturerName)
			if err != nil {
				return fmt.Errorf("create manufacturer %q: %w", pm.ManufacturerName, err)
			}
			auditMaster(ctx, s.store, "create", KindManufacturers, mfrID, pm.ManufacturerName)
		}

		existing, err := s.store.ModelByName(ctx, pm.ModelName, mfrID)
		if err != nil {
			return fmt.Errorf("resolve model %q: %w", pm.ModelName, err)
		}
		if existing != nil {
			continue
		}

		modelID, err := s.store.InsertModel(ctx, pm.ModelName, mfrID)
		if err != nil {
			return fmt.Errorf("create model %q: %w", pm.ModelName, err)
		}
		_ = s.store.LogAudit(ctx, AuditEntry{
			Action:   "create",
			Entity:   "modelos",
			RecordID: modelID,
			Detail: map[string]any{
				"nombre":     pm.ModelName,
				"fabricante": pm.ManufacturerName,
			},
			IPAddress: IPFromContext(ctx),
			UserAgent: UserAgentFromContext(ctx),
		})
	}
	return nil
}

// runImport is Pass 2: the per-row fold producing the summary. Row
// failures never abort the batch; each error is classified into a
// localized message on its own RowResult.
func (s *Service) runImport(ctx context.Context, def *EntityDefinition, rows []RawRow, assetTypeID int64) (*ImportSummary, error) {
	run := &RunContext{
		Entity:      def.Entity,
		Schema:      def.Schema,
		AssetTypeID: assetTypeID,
		Strict:      s.strict,
	}

	if def.Entity == EntityAssets && assetTypeID > 0 {
		defs, err := s.store.CustomFieldDefs(ctx, assetTypeID)
		if err != nil {
			return nil, fmt.Errorf("load custom fields: %w", err)
		}
		run.CustomFields = defs
	}

	var agg Aggregator
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		outcome, err := def.Import(ctx, s.store, run, row)
		if err != nil {
			agg.Add(RowResult{
				Row:     row.Line,
				Status:  StatusError,
				Message: UserMessage(err),
				Data:    row,
			})
			continue
		}
		agg.Add(RowResult{
			Row:     row.Line,
			Status:  outcome.Status,
			Message: outcome.Message,
			Data:    row,
		})
	}

	return agg.Summary(), nil
}

// pendingJob loads a job and verifies it still awaits confirmation.
func (s *Service) pendingJob(ctx context.Context, jobID string) (*ImportJob, error) {
	job, err := s.store.ImportJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	if job.Status != JobPendingConfirmation {
		return nil, ErrJobNotPending
	}
	return job, nil
}

// rememberRun stores a completed summary under a fresh run id and
// schedules its expiry.
func (s *Service) rememberRun(summary *ImportSummary) string {
	runID := uuid.NewString()

	s.mu.Lock()
	s.runs[runID] = summary
	s.mu.Unlock()

	time.AfterFunc(s.retainRuns, func() {
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
	})

	return runID
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gesinv/gesinv/internal/core"
)

// CreateImportJob persists a pending-confirmation job. The detected
// new models travel as a JSON document.
func (s *Store) CreateImportJob(ctx context.Context, job *core.ImportJob) error {
	models, err := json.Marshal(job.NewModels)
	if err != nil {
		return fmt.Errorf("encode new models: %w", err)
	}

	const query = `
		INSERT INTO import_jobs (id, entity_type, tipo_activo_id, temp_path, new_models, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = s.pool.Exec(ctx, query,
		job.ID, string(job.EntityType), job.AssetTypeID,
		job.TempPath, models, string(job.Status), job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert import job %s: %w", job.ID, err)
	}
	return nil
}

// ImportJobByID loads a job record. Returns (nil, nil) when absent.
func (s *Store) ImportJobByID(ctx context.Context, id string) (*core.ImportJob, error) {
	const query = `
		SELECT id, entity_type, tipo_activo_id, temp_path, new_models, status, created_at
		FROM import_jobs WHERE id = $1`

	job, err := scanImportJob(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("lookup import job %s: %w", id, err)
	}
	return job, nil
}

// SetImportJobStatus transitions a job to a terminal status.
func (s *Store) SetImportJobStatus(ctx context.Context, id string, status core.JobStatus) error {
	const query = `UPDATE import_jobs SET status = $1 WHERE id = $2`

	tag, err := s.pool.Exec(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("update import job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update import job %s: no such record", id)
	}
	return nil
}

// ExpiredPendingJobs returns pending-confirmation jobs created before
// the cutoff, for the retention sweep.
func (s *Store) ExpiredPendingJobs(ctx context.Context, olderThan time.Time) ([]core.ImportJob, error) {
	const query = `
		SELECT id, entity_type, tipo_activo_id, temp_path, new_models, status, created_at
		FROM import_jobs
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, string(core.JobPendingConfirmation), olderThan)
	if err != nil {
		return nil, fmt.Errorf("list expired jobs: %w", err)
	}
	defer rows.Close()

	var jobs []core.ImportJob
	for rows.Next() {
		job, err := scanImportJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan import job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired jobs: %w", err)
	}
	return jobs, nil
}

func scanImportJob(row pgx.Row) (*core.ImportJob, error) {
	var (
		job        core.ImportJob
		entityType string
		status     string
		models     []byte
	)
	err := row.Scan(&job.ID, &entityType, &job.AssetTypeID,
		&job.TempPath, &models, &status, &job.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	job.EntityType = core.EntityType(entityType)
	job.Status = core.JobStatus(status)
	if len(models) > 0 {
		if err := json.Unmarshal(models, &job.NewModels); err != nil {
			return nil, fmt.Errorf("decode new models: %w", err)
		}
	}
	return &job, nil
}

// LogAudit appends an audit trail row. Callers treat failures as
// best-effort; this method still returns the error for logging.
func (s *Store) LogAudit(ctx context.Context, entry core.AuditEntry) error {
	detail, err := json.Marshal(entry.Detail)
	if err != nil {
		return fmt.Errorf("encode audit detail: %w", err)
	}

	const query = `
		INSERT INTO audit_log (accion, entidad, registro_id, detalle, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`

	_, err = s.pool.Exec(ctx, query,
		entry.Action, entry.Entity, entry.RecordID,
		detail, toPgText(entry.IPAddress), toPgText(entry.UserAgent),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

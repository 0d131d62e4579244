package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sightgrid/sightgrid/internal/model"
)

// CreateExportJob records a completed (or failed) export run.
func (s *Store) CreateExportJob(ctx context.Context, job *model.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO export_jobs
		(id, org_id, requested_by, filter_json, csv_path, parquet_path, status, created_at)
		VALUES
		(:id, :org_id, :requested_by, :filter_json, :csv_path, :parquet_path, :status, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, job); err != nil {
		return fmt.Errorf("insert export job: %w", err)
	}
	return nil
}

// GetExportJob returns an export job by ID.
func (s *Store) GetExportJob(ctx context.Context, id string) (*model.ExportJob, error) {
	var job model.ExportJob
	q := s.rebind("SELECT * FROM export_jobs WHERE id = ?")
	if err := s.db.GetContext(ctx, &job, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get export job: %w", err)
	}
	return &job, nil
}

// ListExportJobs returns export jobs for an organization, newest first.
func (s *Store) ListExportJobs(ctx context.Context, orgID string) ([]model.ExportJob, error) {
	var jobs []model.ExportJob
	var err error
	if orgID == "" {
		err = s.db.SelectContext(ctx, &jobs, "SELECT * FROM export_jobs ORDER BY created_at DESC")
	} else {
		q := s.rebind("SELECT * FROM export_jobs WHERE org_id = ? ORDER BY created_at DESC")
		err = s.db.SelectContext(ctx, &jobs, q, orgID)
	}
	if err != nil {
		return nil, fmt.Errorf("list export jobs: %w", err)
	}
	return jobs, nil
}

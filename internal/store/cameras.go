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

// CreateCamera inserts a new camera. The ID and CreatedAt fields are
// populated after a successful insert.
func (s *Store) CreateCamera(ctx context.Context, cam *model.Camera) error {
	if cam.ID == "" {
		cam.ID = uuid.NewString()
	}
	if cam.Timezone == "" {
		cam.Timezone = "UTC"
	}
	cam.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO cameras (id, org_id, name, location, timezone, rtsp_url, is_active, created_at)
		VALUES (:id, :org_id, :name, :location, :timezone, :rtsp_url, :is_active, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, cam); err != nil {
		return fmt.Errorf("insert camera: %w", err)
	}
	return nil
}

// GetCamera returns a camera by ID.
func (s *Store) GetCamera(ctx context.Context, id string) (*model.Camera, error) {
	var cam model.Camera
	q := s.rebind("SELECT * FROM cameras WHERE id = ?")
	if err := s.db.GetContext(ctx, &cam, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get camera: %w", err)
	}
	return &cam, nil
}

// GetCameraForOrg returns a camera only if it belongs to the given
// organization. Used on the ingest path so an authenticated key can
// never attach events to another organization's camera.
func (s *Store) GetCameraForOrg(ctx context.Context, id, orgID string) (*model.Camera, error) {
	var cam model.Camera
	q := s.rebind("SELECT * FROM cameras WHERE id = ? AND org_id = ?")
	if err := s.db.GetContext(ctx, &cam, q, id, orgID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get camera for org: %w", err)
	}
	return &cam, nil
}

// ListCameras returns all cameras, optionally scoped to an organization.
func (s *Store) ListCameras(ctx context.Context, orgID string) ([]model.Camera, error) {
	var cams []model.Camera
	var err error
	if orgID == "" {
		err = s.db.SelectContext(ctx, &cams, "SELECT * FROM cameras ORDER BY name")
	} else {
		q := s.rebind("SELECT * FROM cameras WHERE org_id = ? ORDER BY name")
		err = s.db.SelectContext(ctx, &cams, q, orgID)
	}
	if err != nil {
		return nil, fmt.Errorf("list cameras: %w", err)
	}
	return cams, nil
}

// UpdateCamera updates a camera's mutable fields by ID.
func (s *Store) UpdateCamera(ctx context.Context, cam *model.Camera) error {
	const q = `UPDATE cameras SET
		name = :name, location = :location, timezone = :timezone, is_active = :is_active
		WHERE id = :id`

	result, err := s.db.NamedExecContext(ctx, q, cam)
	if err != nil {
		return fmt.Errorf("update camera: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update camera rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

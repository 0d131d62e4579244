package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sightgrid/sightgrid/internal/model"
)

// CreateEvent inserts a detection event. Returns ErrDuplicate (wrapped)
// when the camera already has an event with the same external_event_id,
// so re-submitted events can be treated as idempotent no-ops.
func (s *Store) CreateEvent(ctx context.Context, evt *model.Event) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.PayloadJSON == "" {
		evt.PayloadJSON = "{}"
	}
	evt.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO events
		(id, camera_id, org_id, event_type, confidence, frame_url, thumbnail_url,
		 occurred_at, payload_json, external_event_id, created_at)
		VALUES
		(:id, :camera_id, :org_id, :event_type, :confidence, :frame_url, :thumbnail_url,
		 :occurred_at, :payload_json, :external_event_id, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, evt); err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("insert event: %w", ErrDuplicate)
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// UpdateEventMedia sets the frame and thumbnail references on an event
// after the media store write completes.
func (s *Store) UpdateEventMedia(ctx context.Context, id, frameURL, thumbnailURL string) error {
	q := s.rebind("UPDATE events SET frame_url = ?, thumbnail_url = ? WHERE id = ?")
	result, err := s.db.ExecContext(ctx, q, frameURL, thumbnailURL, id)
	if err != nil {
		return fmt.Errorf("update event media: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update event media rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetEvent returns an event by ID.
func (s *Store) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	var evt model.Event
	q := s.rebind("SELECT * FROM events WHERE id = ?")
	if err := s.db.GetContext(ctx, &evt, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &evt, nil
}

// eventFilterWhere builds the WHERE clause and args for an EventFilter.
func eventFilterWhere(f model.EventFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if f.CameraID != "" {
		conds = append(conds, "camera_id = ?")
		args = append(args, f.CameraID)
	}
	if f.OrgID != "" {
		conds = append(conds, "org_id = ?")
		args = append(args, f.OrgID)
	}
	if f.EventType != "" {
		conds = append(conds, "event_type = ?")
		args = append(args, f.EventType)
	}
	if f.MinConfidence != nil {
		conds = append(conds, "confidence >= ?")
		args = append(args, *f.MinConfidence)
	}
	if f.Start != nil {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, f.Start.UTC())
	}
	if f.End != nil {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, f.End.UTC())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListEvents returns events matching the filter, newest first. A zero
// or negative limit defaults to 100; limits are capped at 1000.
func (s *Store) ListEvents(ctx context.Context, f model.EventFilter) ([]model.Event, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	cursor := f.Cursor
	if cursor < 0 {
		cursor = 0
	}

	where, args := eventFilterWhere(f)
	q := fmt.Sprintf("SELECT * FROM events%s ORDER BY occurred_at DESC LIMIT %d OFFSET %d", where, limit, cursor)

	var events []model.Event
	if err := s.db.SelectContext(ctx, &events, s.rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// ListEventsForExport returns all events matching the filter without
// pagination, oldest first, for CSV/Parquet export.
func (s *Store) ListEventsForExport(ctx context.Context, f model.EventFilter) ([]model.Event, error) {
	where, args := eventFilterWhere(f)
	q := "SELECT * FROM events" + where + " ORDER BY occurred_at"

	var events []model.Event
	if err := s.db.SelectContext(ctx, &events, s.rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list events for export: %w", err)
	}
	return events, nil
}

// CountEventsSince counts events of one type for a camera observed at or
// after the given instant. Used by frequency alert rules.
func (s *Store) CountEventsSince(ctx context.Context, cameraID, orgID, eventType string, since time.Time) (int64, error) {
	var count int64
	q := s.rebind(`SELECT COUNT(*) FROM events
		WHERE camera_id = ? AND org_id = ? AND event_type = ? AND occurred_at >= ?`)
	if err := s.db.GetContext(ctx, &count, q, cameraID, orgID, eventType, since.UTC()); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// DailyStats returns per-day, per-camera event counts for the last
// `days` days, scoped to an organization when orgID is non-empty.
func (s *Store) DailyStats(ctx context.Context, orgID string, days int) ([]model.DailyStat, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	day := s.dialect.dayExpr("occurred_at")

	q := "SELECT " + day + " AS day, camera_id, COUNT(*) AS count FROM events WHERE occurred_at >= ?"
	args := []interface{}{since}
	if orgID != "" {
		q += " AND org_id = ?"
		args = append(args, orgID)
	}
	q += " GROUP BY " + day + ", camera_id ORDER BY day DESC, camera_id"

	var stats []model.DailyStat
	if err := s.db.SelectContext(ctx, &stats, s.rebind(q), args...); err != nil {
		return nil, fmt.Errorf("daily stats: %w", err)
	}
	return stats, nil
}

// frameRef pairs an event with its stored media paths for retention GC.
type frameRef struct {
	ID           string  `db:"id"`
	FrameURL     *string `db:"frame_url"`
	ThumbnailURL *string `db:"thumbnail_url"`
}

// PurgeFrameRefsBefore clears frame references on events older than the
// cutoff and returns the storage paths that should be removed from the
// media store. Event rows themselves are retained.
func (s *Store) PurgeFrameRefsBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	var refs []frameRef
	q := s.rebind("SELECT id, frame_url, thumbnail_url FROM events WHERE occurred_at <= ? AND frame_url IS NOT NULL")
	if err := s.db.SelectContext(ctx, &refs, q, cutoff.UTC()); err != nil {
		return nil, fmt.Errorf("list frame refs: %w", err)
	}
	if len(refs) == 0 {
		return nil, nil
	}

	var paths []string
	for _, r := range refs {
		if r.FrameURL != nil && *r.FrameURL != "" {
			paths = append(paths, *r.FrameURL)
		}
		if r.ThumbnailURL != nil && *r.ThumbnailURL != "" {
			paths = append(paths, *r.ThumbnailURL)
		}
	}

	uq := s.rebind("UPDATE events SET frame_url = NULL, thumbnail_url = NULL WHERE occurred_at <= ? AND frame_url IS NOT NULL")
	if _, err := s.db.ExecContext(ctx, uq, cutoff.UTC()); err != nil {
		return nil, fmt.Errorf("clear frame refs: %w", err)
	}
	return paths, nil
}

// CreatePendingFrameUpload queues a frame that failed to reach media
// storage for a later retry.
func (s *Store) CreatePendingFrameUpload(ctx context.Context, p *model.PendingFrameUpload) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO pending_frame_uploads
		(id, event_id, org_id, data_base64, content_type, path, thumb_path, created_at)
		VALUES
		(:id, :event_id, :org_id, :data_base64, :content_type, :path, :thumb_path, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, p); err != nil {
		return fmt.Errorf("insert pending frame upload: %w", err)
	}
	return nil
}

// ListPendingFrameUploads returns queued frame uploads, oldest first.
func (s *Store) ListPendingFrameUploads(ctx context.Context, limit int) ([]model.PendingFrameUpload, error) {
	if limit <= 0 {
		limit = 100
	}
	var pending []model.PendingFrameUpload
	q := fmt.Sprintf("SELECT * FROM pending_frame_uploads ORDER BY created_at LIMIT %d", limit)
	if err := s.db.SelectContext(ctx, &pending, q); err != nil {
		return nil, fmt.Errorf("list pending frame uploads: %w", err)
	}
	return pending, nil
}

// DeletePendingFrameUpload removes a queue entry once its frame has been
// stored (or abandoned).
func (s *Store) DeletePendingFrameUpload(ctx context.Context, id string) error {
	q := s.rebind("DELETE FROM pending_frame_uploads WHERE id = ?")
	if _, err := s.db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("delete pending frame upload: %w", err)
	}
	return nil
}

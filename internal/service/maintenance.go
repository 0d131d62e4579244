package service

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"
	"time"

	"github.com/sightgrid/sightgrid/internal/media"
	"github.com/sightgrid/sightgrid/internal/store"
)

// MaintenanceService owns the background housekeeping that keeps the hot
// path lean: expired nonce purging, frame retention, and retrying frame
// writes that failed during ingestion.
type MaintenanceService struct {
	store  *store.Store
	media  *media.Store
	logger *slog.Logger

	frameRetention time.Duration
}

// NewMaintenanceService creates the service. frameDays bounds how long
// stored frames are kept; zero disables frame retention sweeps.
func NewMaintenanceService(st *store.Store, mediaStore *media.Store, frameDays int, logger *slog.Logger) *MaintenanceService {
	return &MaintenanceService{
		store:          st,
		media:          mediaStore,
		logger:         logger,
		frameRetention: time.Duration(frameDays) * 24 * time.Hour,
	}
}

// RunOnce executes a single maintenance pass. Each concern runs even if
// an earlier one fails.
func (m *MaintenanceService) RunOnce(ctx context.Context) {
	if n, err := m.store.PurgeExpiredNonces(ctx); err != nil {
		m.logger.Error("purge nonces", "error", err)
	} else if n > 0 {
		m.logger.Info("purged expired nonces", "count", n)
	}

	m.retryPendingFrames(ctx)

	if m.frameRetention > 0 {
		m.sweepFrames(ctx)
	}
}

// Run executes maintenance passes on the given interval until the
// context is cancelled.
func (m *MaintenanceService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RunOnce(ctx)
		}
	}
}

// retryPendingFrames drains the deferred frame queue, writing the blob
// and thumbnail and attaching the media refs to their events.
func (m *MaintenanceService) retryPendingFrames(ctx context.Context) {
	pending, err := m.store.ListPendingFrameUploads(ctx, 50)
	if err != nil {
		m.logger.Error("list pending frames", "error", err)
		return
	}

	for _, p := range pending {
		data, err := base64.StdEncoding.DecodeString(p.DataBase64)
		if err != nil {
			m.logger.Error("pending frame undecodable, dropping", "id", p.ID, "error", err)
			_ = m.store.DeletePendingFrameUpload(ctx, p.ID)
			continue
		}
		if err := m.media.Put(p.Path, data); err != nil {
			m.logger.Warn("pending frame retry failed", "id", p.ID, "error", err)
			continue
		}
		thumbURL := ""
		if thumb, err := media.Thumbnail(data); err == nil {
			if err := m.media.Put(p.ThumbPath, thumb); err == nil {
				thumbURL = "/api/v1/frames/" + p.ThumbPath
			}
		}
		frameURL := "/api/v1/frames/" + p.Path
		if err := m.store.UpdateEventMedia(ctx, p.EventID, frameURL, thumbURL); err != nil {
			m.logger.Error("attach retried media refs", "event_id", p.EventID, "error", err)
		}
		if err := m.store.DeletePendingFrameUpload(ctx, p.ID); err != nil {
			m.logger.Error("delete pending frame", "id", p.ID, "error", err)
		}
	}
}

// sweepFrames clears media references older than the retention window
// and removes the blobs behind them.
func (m *MaintenanceService) sweepFrames(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-m.frameRetention)
	urls, err := m.store.PurgeFrameRefsBefore(ctx, cutoff)
	if err != nil {
		m.logger.Error("purge frame refs", "error", err)
		return
	}
	removed := 0
	for _, u := range urls {
		if !strings.HasPrefix(u, "/api/v1/frames/") {
			// External frame references were never stored locally.
			continue
		}
		key := strings.TrimPrefix(u, "/api/v1/frames/")
		if err := m.media.Remove(key); err != nil {
			m.logger.Warn("remove frame blob", "key", key, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		m.logger.Info("swept expired frames", "count", removed, "cutoff", cutoff)
	}
}

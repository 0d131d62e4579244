package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/sightgrid/sightgrid/internal/media"
	"github.com/sightgrid/sightgrid/internal/model"
	"github.com/sightgrid/sightgrid/internal/store"
)

func newMaintenance(t *testing.T, frameDays int) (*MaintenanceService, *store.Store, *media.Store) {
	t.Helper()
	st := newTestStore(t)
	mediaStore, err := media.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("media.NewStore: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewMaintenanceService(st, mediaStore, frameDays, logger), st, mediaStore
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestRunOnce_PurgesExpiredNonces(t *testing.T) {
	m, st, _ := newMaintenance(t, 0)
	ctx := context.Background()

	if _, err := st.TryConsumeNonce(ctx, "key-1", "old", -time.Minute); err != nil {
		t.Fatalf("TryConsumeNonce: %v", err)
	}
	m.RunOnce(ctx)

	// The purged value can be consumed again.
	ok, err := st.TryConsumeNonce(ctx, "key-1", "old", time.Minute)
	if err != nil || !ok {
		t.Errorf("nonce not purged: ok=%v err=%v", ok, err)
	}
}

func TestRunOnce_RetriesPendingFrames(t *testing.T) {
	m, st, mediaStore := newMaintenance(t, 0)
	ctx := context.Background()

	evt := &model.Event{
		CameraID:   "cam-1",
		OrgID:      "org-1",
		EventType:  model.EventPersonDetected,
		OccurredAt: time.Now().UTC(),
	}
	if err := st.CreateEvent(ctx, evt); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	frame := testJPEG(t)
	frameKey := media.FrameKey(evt.OrgID, evt.CameraID, evt.ID, evt.OccurredAt)
	thumbKey := media.ThumbKey(evt.OrgID, evt.CameraID, evt.ID, evt.OccurredAt)
	pending := &model.PendingFrameUpload{
		EventID:     evt.ID,
		OrgID:       evt.OrgID,
		DataBase64:  base64.StdEncoding.EncodeToString(frame),
		ContentType: "image/jpeg",
		Path:        frameKey,
		ThumbPath:   thumbKey,
	}
	if err := st.CreatePendingFrameUpload(ctx, pending); err != nil {
		t.Fatalf("CreatePendingFrameUpload: %v", err)
	}

	m.RunOnce(ctx)

	// The blob and thumbnail were written.
	for _, key := range []string{frameKey, thumbKey} {
		path, err := mediaStore.Path(key)
		if err != nil {
			t.Fatalf("Path(%q): %v", key, err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("blob %q not written: %v", key, err)
		}
	}

	// The media refs are attached to the event.
	got, err := st.GetEvent(ctx, evt.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if got.FrameURL == nil || *got.FrameURL != "/api/v1/frames/"+frameKey {
		t.Errorf("FrameURL = %v", got.FrameURL)
	}
	if got.ThumbnailURL == nil || *got.ThumbnailURL != "/api/v1/frames/"+thumbKey {
		t.Errorf("ThumbnailURL = %v", got.ThumbnailURL)
	}

	// The queue is drained.
	left, err := st.ListPendingFrameUploads(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingFrameUploads: %v", err)
	}
	if len(left) != 0 {
		t.Errorf("queue rows left = %d, want 0", len(left))
	}
}

func TestRunOnce_DropsUndecodablePendingFrames(t *testing.T) {
	m, st, _ := newMaintenance(t, 0)
	ctx := context.Background()

	pending := &model.PendingFrameUpload{
		EventID:     "evt-1",
		OrgID:       "org-1",
		DataBase64:  "!!! not base64 !!!",
		ContentType: "image/jpeg",
		Path:        "frames/org-1/cam/x.jpg",
		ThumbPath:   "frames/org-1/cam/x_thumb.jpg",
	}
	if err := st.CreatePendingFrameUpload(ctx, pending); err != nil {
		t.Fatalf("CreatePendingFrameUpload: %v", err)
	}

	m.RunOnce(ctx)

	left, err := st.ListPendingFrameUploads(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingFrameUploads: %v", err)
	}
	if len(left) != 0 {
		t.Errorf("undecodable row not dropped: %d rows left", len(left))
	}
}

func TestRunOnce_SweepsExpiredFrames(t *testing.T) {
	m, st, mediaStore := newMaintenance(t, 7)
	ctx := context.Background()

	oldEvent := &model.Event{
		CameraID:   "cam-1",
		OrgID:      "org-1",
		EventType:  model.EventPersonDetected,
		OccurredAt: time.Now().UTC().AddDate(0, 0, -30),
	}
	key := media.FrameKey(oldEvent.OrgID, oldEvent.CameraID, "old-evt", oldEvent.OccurredAt)
	url := "/api/v1/frames/" + key
	oldEvent.FrameURL = &url
	if err := st.CreateEvent(ctx, oldEvent); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if err := mediaStore.Put(key, []byte("frame")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	freshURL := "/api/v1/frames/frames/org-1/cam-1/fresh.jpg"
	freshEvent := &model.Event{
		CameraID:   "cam-1",
		OrgID:      "org-1",
		EventType:  model.EventPersonDetected,
		OccurredAt: time.Now().UTC(),
		FrameURL:   &freshURL,
	}
	if err := st.CreateEvent(ctx, freshEvent); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	m.RunOnce(ctx)

	// The expired blob is gone and its ref cleared; the event row stays.
	path, _ := mediaStore.Path(key)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expired blob still present")
	}
	got, err := st.GetEvent(ctx, oldEvent.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if got.FrameURL != nil {
		t.Errorf("expired frame ref not cleared: %v", *got.FrameURL)
	}

	// The recent event keeps its reference.
	got, err = st.GetEvent(ctx, freshEvent.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if got.FrameURL == nil {
		t.Error("recent frame ref was cleared")
	}
}

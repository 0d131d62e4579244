package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sightgrid/sightgrid/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn, err := SQLiteDSN("")
	if err != nil {
		t.Fatalf("SQLiteDSN: %v", err)
	}
	st, err := Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func seedCamera(t *testing.T, st *Store, orgID string) *model.Camera {
	t.Helper()
	cam := &model.Camera{
		OrgID:    orgID,
		Name:     "front-door",
		Location: "entrance",
		Timezone: "UTC",
		IsActive: true,
	}
	if err := st.CreateCamera(context.Background(), cam); err != nil {
		t.Fatalf("CreateCamera: %v", err)
	}
	return cam
}

func seedEvent(t *testing.T, st *Store, cam *model.Camera, occurredAt time.Time, externalID string) *model.Event {
	t.Helper()
	conf := 91.5
	evt := &model.Event{
		CameraID:   cam.ID,
		OrgID:      cam.OrgID,
		EventType:  model.EventPersonDetected,
		Confidence: &conf,
		OccurredAt: occurredAt,
	}
	if externalID != "" {
		evt.ExternalEventID = &externalID
	}
	if err := st.CreateEvent(context.Background(), evt); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	return evt
}

func TestTryConsumeNonce_SingleUse(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ok, err := st.TryConsumeNonce(ctx, "key-1", "nonce-a", 10*time.Minute)
	if err != nil {
		t.Fatalf("TryConsumeNonce: %v", err)
	}
	if !ok {
		t.Fatal("first consume should win")
	}

	ok, err = st.TryConsumeNonce(ctx, "key-1", "nonce-a", 10*time.Minute)
	if err != nil {
		t.Fatalf("TryConsumeNonce replay: %v", err)
	}
	if ok {
		t.Error("replayed nonce must not win")
	}

	// The same nonce value under a different key is independent.
	ok, err = st.TryConsumeNonce(ctx, "key-2", "nonce-a", 10*time.Minute)
	if err != nil {
		t.Fatalf("TryConsumeNonce other key: %v", err)
	}
	if !ok {
		t.Error("nonce scope is per key")
	}
}

func TestTryConsumeNonce_Concurrent(t *testing.T) {
	st := newTestStore(t)

	const workers = 20
	var wg sync.WaitGroup
	wins := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := st.TryConsumeNonce(context.Background(), "key-1", "nonce-race", 10*time.Minute)
			if err != nil {
				t.Errorf("TryConsumeNonce: %v", err)
				return
			}
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for ok := range wins {
		if ok {
			count++
		}
	}
	if count != 1 {
		t.Errorf("winners = %d, want exactly 1", count)
	}
}

func TestPurgeExpiredNonces(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, err := st.TryConsumeNonce(ctx, "key-1", "expired", -time.Minute); err != nil {
		t.Fatalf("TryConsumeNonce: %v", err)
	}
	if _, err := st.TryConsumeNonce(ctx, "key-1", "live", 10*time.Minute); err != nil {
		t.Fatalf("TryConsumeNonce: %v", err)
	}

	n, err := st.PurgeExpiredNonces(ctx)
	if err != nil {
		t.Fatalf("PurgeExpiredNonces: %v", err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}

	// Purging frees the expired nonce value for reuse; the live one stays
	// consumed.
	ok, err := st.TryConsumeNonce(ctx, "key-1", "expired", 10*time.Minute)
	if err != nil || !ok {
		t.Errorf("reuse after purge: ok=%v err=%v", ok, err)
	}
	ok, err = st.TryConsumeNonce(ctx, "key-1", "live", 10*time.Minute)
	if err != nil || ok {
		t.Errorf("live nonce: ok=%v err=%v", ok, err)
	}
}

func TestCreateEvent_DuplicateExternalID(t *testing.T) {
	st := newTestStore(t)
	cam := seedCamera(t, st, "org-1")
	now := time.Now().UTC()

	seedEvent(t, st, cam, now, "edge-42")

	dup := &model.Event{
		CameraID:        cam.ID,
		OrgID:           cam.OrgID,
		EventType:       model.EventPersonDetected,
		OccurredAt:      now,
		ExternalEventID: &[]string{"edge-42"}[0],
	}
	err := st.CreateEvent(context.Background(), dup)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}

	// The same external ID on a different camera is not a duplicate.
	other := seedCamera(t, st, "org-1")
	seedEvent(t, st, other, now, "edge-42")

	// Events without an external ID never collide with each other.
	seedEvent(t, st, cam, now, "")
	seedEvent(t, st, cam, now, "")
}

func TestGetCameraForOrg_Scoping(t *testing.T) {
	st := newTestStore(t)
	cam := seedCamera(t, st, "org-1")
	ctx := context.Background()

	got, err := st.GetCameraForOrg(ctx, cam.ID, "org-1")
	if err != nil {
		t.Fatalf("GetCameraForOrg: %v", err)
	}
	if got.Name != "front-door" {
		t.Errorf("Name = %q", got.Name)
	}

	if _, err := st.GetCameraForOrg(ctx, cam.ID, "org-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-org lookup: err = %v, want ErrNotFound", err)
	}
}

func TestRevokeAPIKey(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	key := &model.APIKey{
		Name:        "cam-key",
		OrgID:       "org-1",
		Fingerprint: "fp-1234",
		KeyPrefix:   "fp-1",
	}
	if err := st.CreateAPIKey(ctx, key); err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}

	if err := st.RevokeAPIKey(ctx, key.ID); err != nil {
		t.Fatalf("RevokeAPIKey: %v", err)
	}
	got, err := st.GetAPIKeyByFingerprint(ctx, "fp-1234")
	if err != nil {
		t.Fatalf("GetAPIKeyByFingerprint: %v", err)
	}
	if !got.Revoked {
		t.Error("key not marked revoked")
	}

	if err := st.RevokeAPIKey(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: err = %v, want ErrNotFound", err)
	}
}

func TestCountEventsSince(t *testing.T) {
	st := newTestStore(t)
	cam := seedCamera(t, st, "org-1")
	ctx := context.Background()
	now := time.Now().UTC()

	seedEvent(t, st, cam, now.Add(-30*time.Second), "")
	seedEvent(t, st, cam, now.Add(-45*time.Second), "")
	seedEvent(t, st, cam, now.Add(-2*time.Hour), "")

	n, err := st.CountEventsSince(ctx, cam.ID, cam.OrgID, model.EventPersonDetected, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("CountEventsSince: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}

	n, err = st.CountEventsSince(ctx, cam.ID, "org-other", model.EventPersonDetected, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("CountEventsSince: %v", err)
	}
	if n != 0 {
		t.Errorf("cross-org count = %d, want 0", n)
	}
}

func TestDailyStats(t *testing.T) {
	st := newTestStore(t)
	cam := seedCamera(t, st, "org-1")
	ctx := context.Background()
	now := time.Now().UTC()

	seedEvent(t, st, cam, now, "")
	seedEvent(t, st, cam, now, "")
	seedEvent(t, st, cam, now.AddDate(0, 0, -2), "")

	stats, err := st.DailyStats(ctx, "org-1", 7)
	if err != nil {
		t.Fatalf("DailyStats: %v", err)
	}
	var total int64
	for _, s := range stats {
		if s.CameraID != cam.ID {
			t.Errorf("unexpected camera %q", s.CameraID)
		}
		total += s.Count
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}

	stats, err = st.DailyStats(ctx, "org-other", 7)
	if err != nil {
		t.Fatalf("DailyStats: %v", err)
	}
	if len(stats) != 0 {
		t.Errorf("cross-org stats = %d rows, want 0", len(stats))
	}
}

func TestListEvents_CursorPagination(t *testing.T) {
	st := newTestStore(t)
	cam := seedCamera(t, st, "org-1")
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		seedEvent(t, st, cam, now.Add(-time.Duration(i)*time.Minute), "")
	}

	page1, err := st.ListEvents(ctx, model.EventFilter{OrgID: "org-1", Limit: 3})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(page1) != 3 {
		t.Fatalf("page1 = %d events, want 3", len(page1))
	}

	page2, err := st.ListEvents(ctx, model.EventFilter{OrgID: "org-1", Limit: 3, Cursor: 3})
	if err != nil {
		t.Fatalf("ListEvents page2: %v", err)
	}
	if len(page2) != 2 {
		t.Fatalf("page2 = %d events, want 2", len(page2))
	}
	for _, e1 := range page1 {
		for _, e2 := range page2 {
			if e1.ID == e2.ID {
				t.Errorf("event %s appears on both pages", e1.ID)
			}
		}
	}

	// Newest first.
	if page1[0].OccurredAt.Before(page1[1].OccurredAt) {
		t.Error("events not ordered newest first")
	}
}

func TestPendingFrameUploadQueue(t *testing.T) {
	st := newTestStore(t)
	cam := seedCamera(t, st, "org-1")
	ctx := context.Background()
	evt := seedEvent(t, st, cam, time.Now().UTC(), "")

	p := &model.PendingFrameUpload{
		EventID:     evt.ID,
		OrgID:       "org-1",
		DataBase64:  "aGVsbG8=",
		ContentType: "image/jpeg",
		Path:        "frames/org-1/a.jpg",
		ThumbPath:   "frames/org-1/a_thumb.jpg",
	}
	if err := st.CreatePendingFrameUpload(ctx, p); err != nil {
		t.Fatalf("CreatePendingFrameUpload: %v", err)
	}

	list, err := st.ListPendingFrameUploads(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingFrameUploads: %v", err)
	}
	if len(list) != 1 || list[0].EventID != evt.ID {
		t.Fatalf("unexpected queue contents: %+v", list)
	}

	if err := st.DeletePendingFrameUpload(ctx, p.ID); err != nil {
		t.Fatalf("DeletePendingFrameUpload: %v", err)
	}
	list, err = st.ListPendingFrameUploads(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingFrameUploads: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("queue not drained: %d rows", len(list))
	}
}

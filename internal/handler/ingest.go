package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sightgrid/sightgrid/internal/alert"
	"github.com/sightgrid/sightgrid/internal/ingest"
	"github.com/sightgrid/sightgrid/internal/media"
	"github.com/sightgrid/sightgrid/internal/metrics"
	"github.com/sightgrid/sightgrid/internal/model"
	"github.com/sightgrid/sightgrid/internal/store"
	"github.com/sightgrid/sightgrid/internal/stream"
)

// Canonical paths used in signature computation. Clients must sign the
// exact path they post to.
const (
	IngestEventPath = "/api/ingest/event"
	IngestBatchPath = "/api/ingest/batch"
)

// maxOccurredAtDrift bounds how far an event's own occurred_at may lag
// behind the server clock before the event is considered stale.
const maxOccurredAtDrift = 5 * time.Minute

// maxBatchEvents caps the number of events accepted in one batch post.
const maxBatchEvents = 100

// IngestHandler authenticates and persists detection events posted by
// camera edge clients.
type IngestHandler struct {
	verifier *ingest.Verifier
	store    *store.Store
	media    *media.Store
	alerts   *alert.Evaluator
	hub      *stream.Hub
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewIngestHandler creates a new IngestHandler.
func NewIngestHandler(verifier *ingest.Verifier, st *store.Store, mediaStore *media.Store, alerts *alert.Evaluator, hub *stream.Hub, m *metrics.Metrics, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{
		verifier: verifier,
		store:    st,
		media:    mediaStore,
		alerts:   alerts,
		hub:      hub,
		metrics:  m,
		logger:   logger,
	}
}

// ingestEventRequest is the event payload posted by detection clients.
type ingestEventRequest struct {
	CameraID        string                 `json:"camera_id"`
	EventType       string                 `json:"event_type"`
	Confidence      *float64               `json:"confidence"`
	OccurredAt      string                 `json:"occurred_at"`
	BBox            []float64              `json:"bbox"`
	FrameBase64     string                 `json:"frame_base64"`
	FrameURL        string                 `json:"frame_url"`
	Meta            map[string]interface{} `json:"meta"`
	ExternalEventID string                 `json:"external_event_id"`
	AllowStale      bool                   `json:"allow_stale"`
}

// ingestEventResponse is returned for each successfully stored event.
type ingestEventResponse struct {
	OK           bool    `json:"ok"`
	EventID      string  `json:"event_id"`
	FrameURL     *string `json:"frame_url,omitempty"`
	ThumbnailURL *string `json:"thumbnail_url,omitempty"`
}

// ingestBatchRequest wraps multiple events signed as a single body.
type ingestBatchRequest struct {
	Events []ingestEventRequest `json:"events"`
}

type batchResult struct {
	Index   int     `json:"index"`
	Status  string  `json:"status"`
	EventID *string `json:"event_id,omitempty"`
	Error   *string `json:"error,omitempty"`
}

// Event handles a single signed detection event.
// POST /api/ingest/event
func (h *IngestHandler) Event(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	rawBody, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		h.metrics.IngestRequests.WithLabelValues("read_error").Inc()
		writeError(w, http.StatusBadRequest, "cannot read request body")
		return
	}

	// The stale-allowance flag lives in the body. Decoding before
	// authentication is safe: nothing is acted on until the signature
	// over the raw bytes has been verified.
	var req ingestEventRequest
	decodeErr := json.Unmarshal(rawBody, &req)

	identity, err := h.verifier.Authenticate(r.Context(), r.Header, IngestEventPath, rawBody, req.AllowStale)
	if err != nil {
		h.rejectAuth(w, err)
		return
	}

	if decodeErr != nil {
		h.metrics.IngestRequests.WithLabelValues("validation").Inc()
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, status, errMsg := h.processEvent(r.Context(), identity, &req)
	if errMsg != "" {
		h.metrics.IngestRequests.WithLabelValues(outcomeLabel(status)).Inc()
		writeError(w, status, errMsg)
		return
	}
	h.metrics.IngestRequests.WithLabelValues(outcomeLabel(status)).Inc()
	h.metrics.IngestDuration.Observe(time.Since(start).Seconds())
	if status == http.StatusOK && res.EventID == "" {
		// Idempotent replay of a previously stored event.
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}
	writeJSON(w, status, res)
}

// Batch handles multiple events signed as one body with one nonce.
// POST /api/ingest/batch
func (h *IngestHandler) Batch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	rawBody, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		h.metrics.IngestRequests.WithLabelValues("read_error").Inc()
		writeError(w, http.StatusBadRequest, "cannot read request body")
		return
	}

	var req ingestBatchRequest
	decodeErr := json.Unmarshal(rawBody, &req)

	// A batch is admitted as a whole: staleness of the transport
	// envelope is only waived when every event in it opts in.
	allowStale := decodeErr == nil && len(req.Events) > 0
	if allowStale {
		for _, ev := range req.Events {
			if !ev.AllowStale {
				allowStale = false
				break
			}
		}
	}

	identity, err := h.verifier.Authenticate(r.Context(), r.Header, IngestBatchPath, rawBody, allowStale)
	if err != nil {
		h.rejectAuth(w, err)
		return
	}

	if decodeErr != nil {
		h.metrics.IngestRequests.WithLabelValues("validation").Inc()
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Events) == 0 {
		h.metrics.IngestRequests.WithLabelValues("validation").Inc()
		writeError(w, http.StatusBadRequest, "batch contains no events")
		return
	}
	if len(req.Events) > maxBatchEvents {
		h.metrics.IngestRequests.WithLabelValues("validation").Inc()
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch exceeds %d events", maxBatchEvents))
		return
	}

	results := make([]batchResult, 0, len(req.Events))
	for i := range req.Events {
		res, _, errMsg := h.processEvent(r.Context(), identity, &req.Events[i])
		br := batchResult{Index: i}
		switch {
		case errMsg != "":
			br.Status = "error"
			br.Error = &errMsg
		case res.EventID == "":
			br.Status = "duplicate"
		default:
			br.Status = "ok"
			id := res.EventID
			br.EventID = &id
		}
		results = append(results, br)
	}

	failed := 0
	for _, br := range results {
		if br.Status == "error" {
			failed++
		}
	}
	outcome := "ok"
	switch {
	case failed == len(results):
		outcome = "error"
	case failed > 0:
		outcome = "partial"
	}
	h.metrics.IngestRequests.WithLabelValues(outcome).Inc()
	h.metrics.IngestDuration.Observe(time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// rejectAuth maps authentication errors to their outward signals. Every
// authentication failure looks the same to the caller.
func (h *IngestHandler) rejectAuth(w http.ResponseWriter, err error) {
	if errors.Is(err, ingest.ErrStale) {
		h.metrics.IngestRequests.WithLabelValues("stale").Inc()
		writeError(w, http.StatusUnprocessableEntity, "stale_event")
		return
	}
	h.metrics.IngestRequests.WithLabelValues("unauthenticated").Inc()
	writeError(w, http.StatusUnauthorized, "invalid_signature_or_key")
}

func outcomeLabel(status int) string {
	switch status {
	case http.StatusOK:
		return "ok"
	case http.StatusBadRequest:
		return "validation"
	case http.StatusNotFound:
		return "unknown_camera"
	case http.StatusUnprocessableEntity:
		return "stale"
	default:
		return "error"
	}
}

// processEvent validates and persists one authenticated event. It
// returns a zero-value response with status 200 for idempotent
// duplicates. errMsg is non-empty only for failures.
func (h *IngestHandler) processEvent(ctx context.Context, identity *ingest.Identity, req *ingestEventRequest) (ingestEventResponse, int, string) {
	if req.CameraID == "" {
		return ingestEventResponse{}, http.StatusBadRequest, "camera_id is required"
	}
	if !model.ValidEventType(req.EventType) {
		return ingestEventResponse{}, http.StatusBadRequest, "invalid event_type"
	}
	if req.Confidence != nil && (*req.Confidence < 0 || *req.Confidence > 100) {
		return ingestEventResponse{}, http.StatusBadRequest, "confidence must be between 0 and 100"
	}
	if len(req.BBox) != 0 && len(req.BBox) != 4 {
		return ingestEventResponse{}, http.StatusBadRequest, "bbox must have exactly 4 elements"
	}

	occurredAt := time.Now().UTC()
	if req.OccurredAt != "" {
		t, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			return ingestEventResponse{}, http.StatusBadRequest, "occurred_at must be RFC 3339"
		}
		occurredAt = t.UTC()
	}
	if drift := time.Since(occurredAt); (drift > maxOccurredAtDrift || drift < -maxOccurredAtDrift) && !req.AllowStale {
		return ingestEventResponse{}, http.StatusUnprocessableEntity, "stale_event"
	}

	cam, err := h.store.GetCameraForOrg(ctx, req.CameraID, identity.OrgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ingestEventResponse{}, http.StatusNotFound, "camera not found"
		}
		h.logger.Error("camera lookup failed", "camera_id", req.CameraID, "error", err)
		return ingestEventResponse{}, http.StatusInternalServerError, "storage error"
	}
	if !cam.IsActive {
		return ingestEventResponse{}, http.StatusNotFound, "camera is inactive"
	}

	payload, err := json.Marshal(model.EventPayload{BBox: req.BBox, Meta: req.Meta})
	if err != nil {
		return ingestEventResponse{}, http.StatusInternalServerError, "encode payload"
	}

	evt := &model.Event{
		ID:          uuid.NewString(),
		CameraID:    cam.ID,
		OrgID:       identity.OrgID,
		EventType:   req.EventType,
		Confidence:  req.Confidence,
		OccurredAt:  occurredAt,
		PayloadJSON: string(payload),
		CreatedAt:   time.Now().UTC(),
	}
	if req.ExternalEventID != "" {
		evt.ExternalEventID = &req.ExternalEventID
	}
	if req.FrameURL != "" {
		evt.FrameURL = &req.FrameURL
	}

	if err := h.store.CreateEvent(ctx, evt); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return ingestEventResponse{}, http.StatusOK, ""
		}
		h.logger.Error("event insert failed", "camera_id", cam.ID, "error", err)
		return ingestEventResponse{}, http.StatusInternalServerError, "storage error"
	}
	h.metrics.EventsStored.WithLabelValues(evt.EventType).Inc()

	if req.FrameBase64 != "" {
		h.storeFrame(ctx, evt, req.FrameBase64)
	}

	for _, log := range h.alerts.Evaluate(ctx, evt) {
		if log.Status == model.AlertTriggered {
			h.metrics.AlertsTriggered.WithLabelValues(ruleTypeOf(ctx, h.store, log.AlertRuleID)).Inc()
		}
	}

	h.hub.Publish(*evt)

	return ingestEventResponse{
		OK:           true,
		EventID:      evt.ID,
		FrameURL:     evt.FrameURL,
		ThumbnailURL: evt.ThumbnailURL,
	}, http.StatusOK, ""
}

func ruleTypeOf(ctx context.Context, st *store.Store, ruleID string) string {
	rule, err := st.GetAlertRule(ctx, ruleID)
	if err != nil {
		return "unknown"
	}
	return rule.RuleType
}

// storeFrame decodes an inline frame, writes the full image and a
// thumbnail, and attaches their URLs to the event. A failed write is
// parked on the retry queue instead of failing ingestion.
func (h *IngestHandler) storeFrame(ctx context.Context, evt *model.Event, dataURL string) {
	contentType, data, err := media.DecodeDataURL(dataURL)
	if err != nil {
		h.logger.Warn("frame payload rejected", "event_id", evt.ID, "error", err)
		return
	}

	frameKey := media.FrameKey(evt.OrgID, evt.CameraID, evt.ID, evt.OccurredAt)
	thumbKey := media.ThumbKey(evt.OrgID, evt.CameraID, evt.ID, evt.OccurredAt)

	if err := h.media.Put(frameKey, data); err != nil {
		h.enqueueFrameRetry(ctx, evt, data, contentType, frameKey, thumbKey)
		return
	}
	thumb, err := media.Thumbnail(data)
	if err != nil {
		h.logger.Warn("thumbnail generation failed", "event_id", evt.ID, "error", err)
	} else if err := h.media.Put(thumbKey, thumb); err != nil {
		h.enqueueFrameRetry(ctx, evt, data, contentType, frameKey, thumbKey)
		return
	}

	frameURL := "/api/v1/frames/" + frameKey
	thumbURL := ""
	if thumb != nil {
		thumbURL = "/api/v1/frames/" + thumbKey
	}
	if err := h.store.UpdateEventMedia(ctx, evt.ID, frameURL, thumbURL); err != nil {
		h.logger.Error("attach media refs failed", "event_id", evt.ID, "error", err)
		return
	}
	evt.FrameURL = &frameURL
	if thumbURL != "" {
		evt.ThumbnailURL = &thumbURL
	}
}

func (h *IngestHandler) enqueueFrameRetry(ctx context.Context, evt *model.Event, data []byte, contentType, frameKey, thumbKey string) {
	pending := &model.PendingFrameUpload{
		ID:          uuid.NewString(),
		EventID:     evt.ID,
		OrgID:       evt.OrgID,
		DataBase64:  base64.StdEncoding.EncodeToString(data),
		ContentType: contentType,
		Path:        frameKey,
		ThumbPath:   thumbKey,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.store.CreatePendingFrameUpload(ctx, pending); err != nil {
		h.logger.Error("queue frame retry failed", "event_id", evt.ID, "error", err)
		return
	}
	h.logger.Warn("frame write deferred", "event_id", evt.ID, "path", frameKey)
}

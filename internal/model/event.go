package model

import "time"

// Event types accepted from detection clients.
const (
	EventPersonDetected = "person_detected"
	EventPersonLost     = "person_lost"
	EventHeartbeat      = "heartbeat"
	EventSystem         = "system"
)

// ValidEventType reports whether t is one of the accepted event types.
func ValidEventType(t string) bool {
	switch t {
	case EventPersonDetected, EventPersonLost, EventHeartbeat, EventSystem:
		return true
	}
	return false
}

// Event is a single detection event reported by a camera.
type Event struct {
	ID              string    `json:"id" db:"id"`
	CameraID        string    `json:"camera_id" db:"camera_id"`
	OrgID           string    `json:"org_id" db:"org_id"`
	EventType       string    `json:"event_type" db:"event_type"`
	Confidence      *float64  `json:"confidence,omitempty" db:"confidence"`
	FrameURL        *string   `json:"frame_url,omitempty" db:"frame_url"`
	ThumbnailURL    *string   `json:"thumbnail_url,omitempty" db:"thumbnail_url"`
	OccurredAt      time.Time `json:"occurred_at" db:"occurred_at"`
	PayloadJSON     string    `json:"-" db:"payload_json"`
	ExternalEventID *string   `json:"external_event_id,omitempty" db:"external_event_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// EventPayload is the structured part of an event stored as JSON:
// the detection bounding box and any free-form client metadata.
type EventPayload struct {
	BBox []float64              `json:"bbox,omitempty"`
	Meta map[string]interface{} `json:"meta,omitempty"`
}

// EventFilter narrows event queries and exports.
type EventFilter struct {
	CameraID      string
	OrgID         string
	EventType     string
	MinConfidence *float64
	Start         *time.Time
	End           *time.Time
	Limit         int
	Cursor        int
}

// DailyStat is a per-day, per-camera event count rollup.
type DailyStat struct {
	Day      string `json:"day" db:"day"`
	CameraID string `json:"camera_id" db:"camera_id"`
	Count    int64  `json:"count" db:"count"`
}

// PendingFrameUpload is a frame that could not be written to media
// storage during ingestion and is queued for retry.
type PendingFrameUpload struct {
	ID          string    `json:"id" db:"id"`
	EventID     string    `json:"event_id" db:"event_id"`
	OrgID       string    `json:"org_id" db:"org_id"`
	DataBase64  string    `json:"-" db:"data_base64"`
	ContentType string    `json:"content_type" db:"content_type"`
	Path        string    `json:"path" db:"path"`
	ThumbPath   string    `json:"thumb_path" db:"thumb_path"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

package model

import "time"

// Camera is a registered video source owned by an organization.
// The RTSP URL is operator-provisioned only; it is never accepted or
// returned through the dashboard API.
type Camera struct {
	ID        string    `json:"id" db:"id"`
	OrgID     string    `json:"org_id" db:"org_id"`
	Name      string    `json:"name" db:"name"`
	Location  string    `json:"location" db:"location"`
	Timezone  string    `json:"timezone" db:"timezone"`
	RTSPURL   string    `json:"-" db:"rtsp_url"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

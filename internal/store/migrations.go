package store

import (
	"fmt"
	"strings"
)

// dialect captures the per-driver SQL differences the migrations and a
// handful of queries need. All table keys are UUID strings, so the only
// real divergence is column types, the conflict-ignore form used by the
// nonce ledger, and date truncation.
type dialect struct {
	sqlDriver string
	key       string // indexable string column (PKs, FKs, unique columns)
	text      string // unbounded text (payloads, paths)
	timestamp string
	boolean   string
	real      string
	boolTrue  string
	boolFalse string
	// insertIgnore wraps an INSERT so a unique-constraint conflict
	// affects zero rows instead of failing.
	insertIgnore func(insert string) string
	// dayExpr truncates a timestamp column to a YYYY-MM-DD string.
	dayExpr func(col string) string
}

var dialects = map[string]dialect{
	"sqlite": {
		sqlDriver: "sqlite",
		key:       "TEXT",
		text:      "TEXT",
		timestamp: "DATETIME",
		boolean:   "INTEGER",
		real:      "REAL",
		boolTrue:  "1",
		boolFalse: "0",
		insertIgnore: func(insert string) string {
			return insert + " ON CONFLICT DO NOTHING"
		},
		dayExpr: func(col string) string {
			return "strftime('%Y-%m-%d', " + col + ")"
		},
	},
	"postgres": {
		sqlDriver: "pgx",
		key:       "TEXT",
		text:      "TEXT",
		timestamp: "TIMESTAMPTZ",
		boolean:   "BOOLEAN",
		real:      "DOUBLE PRECISION",
		boolTrue:  "TRUE",
		boolFalse: "FALSE",
		insertIgnore: func(insert string) string {
			return insert + " ON CONFLICT DO NOTHING"
		},
		dayExpr: func(col string) string {
			return "to_char(" + col + ", 'YYYY-MM-DD')"
		},
	},
	"mysql": {
		sqlDriver: "mysql",
		key:       "VARCHAR(191)",
		text:      "TEXT",
		timestamp: "DATETIME(6)",
		boolean:   "BOOLEAN",
		real:      "DOUBLE",
		boolTrue:  "1",
		boolFalse: "0",
		insertIgnore: func(insert string) string {
			return strings.Replace(insert, "INSERT", "INSERT IGNORE", 1)
		},
		dayExpr: func(col string) string {
			return "DATE_FORMAT(" + col + ", '%Y-%m-%d')"
		},
	},
}

// expand substitutes dialect column types into a DDL template.
func (d dialect) expand(ddl string) string {
	r := strings.NewReplacer(
		"{KEY}", d.key,
		"{TEXT}", d.text,
		"{TS}", d.timestamp,
		"{BOOL}", d.boolean,
		"{REAL}", d.real,
		"{TRUE}", d.boolTrue,
		"{FALSE}", d.boolFalse,
	)
	return r.Replace(ddl)
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS api_keys (
			id {KEY} PRIMARY KEY,
			name {KEY} NOT NULL,
			org_id {KEY} NOT NULL,
			fingerprint {KEY} UNIQUE NOT NULL,
			key_prefix {KEY} NOT NULL,
			revoked {BOOL} NOT NULL DEFAULT {FALSE},
			created_at {TS} NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS ingest_nonces (
			api_key_id {KEY} NOT NULL,
			nonce {KEY} NOT NULL,
			expires_at {TS} NOT NULL,
			PRIMARY KEY (api_key_id, nonce)
		)`,

		`CREATE TABLE IF NOT EXISTS cameras (
			id {KEY} PRIMARY KEY,
			org_id {KEY} NOT NULL,
			name {KEY} NOT NULL,
			location {KEY} NOT NULL DEFAULT '',
			timezone {KEY} NOT NULL DEFAULT 'UTC',
			rtsp_url {TEXT} NOT NULL DEFAULT '',
			is_active {BOOL} NOT NULL DEFAULT {TRUE},
			created_at {TS} NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS events (
			id {KEY} PRIMARY KEY,
			camera_id {KEY} NOT NULL,
			org_id {KEY} NOT NULL,
			event_type {KEY} NOT NULL,
			confidence {REAL},
			frame_url {TEXT},
			thumbnail_url {TEXT},
			occurred_at {TS} NOT NULL,
			payload_json {TEXT} NOT NULL DEFAULT '{}',
			external_event_id {KEY},
			created_at {TS} NOT NULL,
			UNIQUE (camera_id, external_event_id)
		)`,

		`CREATE TABLE IF NOT EXISTS alert_rules (
			id {KEY} PRIMARY KEY,
			org_id {KEY} NOT NULL,
			camera_id {KEY} NOT NULL,
			rule_type {KEY} NOT NULL,
			threshold {REAL} NOT NULL DEFAULT 0,
			window_seconds INTEGER NOT NULL DEFAULT 60,
			enabled {BOOL} NOT NULL DEFAULT {TRUE},
			created_at {TS} NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS alert_logs (
			id {KEY} PRIMARY KEY,
			alert_rule_id {KEY} NOT NULL,
			event_id {KEY} NOT NULL,
			org_id {KEY} NOT NULL,
			status {KEY} NOT NULL,
			message {TEXT} NOT NULL DEFAULT '',
			created_at {TS} NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS export_jobs (
			id {KEY} PRIMARY KEY,
			org_id {KEY} NOT NULL,
			requested_by {KEY} NOT NULL DEFAULT '',
			filter_json {TEXT} NOT NULL DEFAULT '{}',
			csv_path {TEXT} NOT NULL DEFAULT '',
			parquet_path {TEXT} NOT NULL DEFAULT '',
			status {KEY} NOT NULL,
			created_at {TS} NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS admins (
			id {KEY} PRIMARY KEY,
			email {KEY} UNIQUE NOT NULL,
			org_id {KEY} NOT NULL,
			password_hash {KEY} NOT NULL,
			name {KEY} NOT NULL DEFAULT '',
			is_active {BOOL} NOT NULL DEFAULT {TRUE},
			last_login_at {TS},
			created_at {TS} NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS pending_frame_uploads (
			id {KEY} PRIMARY KEY,
			event_id {KEY} NOT NULL,
			org_id {KEY} NOT NULL,
			data_base64 {TEXT} NOT NULL,
			content_type {KEY} NOT NULL,
			path {TEXT} NOT NULL,
			thumb_path {TEXT} NOT NULL,
			created_at {TS} NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_events_camera_occurred ON events (camera_id, occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_events_org_occurred ON events (org_id, occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_nonces_expires ON ingest_nonces (expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_logs_org ON alert_logs (org_id, created_at)`,
	}

	for _, m := range migrations {
		ddl := s.dialect.expand(m)
		if _, err := s.db.Exec(ddl); err != nil {
			// MySQL predates CREATE INDEX IF NOT EXISTS; treat an
			// already-existing index as a no-op.
			if strings.Contains(strings.ToLower(err.Error()), "duplicate key name") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, ddl)
		}
	}
	return nil
}

package openapi

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestGenerateDocumentMetadata(t *testing.T) {
	doc := Generate("http://localhost:8080")

	if doc.OpenAPI != "3.1.0" {
		t.Errorf("OpenAPI version = %q, want 3.1.0", doc.OpenAPI)
	}
	if doc.Info == nil || doc.Info.Title != "sightgrid API" {
		t.Error("expected document title 'sightgrid API'")
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "http://localhost:8080" {
		t.Error("expected single server entry with the base URL")
	}
}

func TestGenerateSecuritySchemes(t *testing.T) {
	doc := Generate("/")

	bearer, ok := doc.Components.SecuritySchemes["bearerAuth"]
	if !ok {
		t.Fatal("expected bearerAuth security scheme")
	}
	if bearer.Value.Scheme != "bearer" || bearer.Value.BearerFormat != "JWT" {
		t.Errorf("bearerAuth = %q/%q, want bearer/JWT", bearer.Value.Scheme, bearer.Value.BearerFormat)
	}

	ingest, ok := doc.Components.SecuritySchemes["ingestSignature"]
	if !ok {
		t.Fatal("expected ingestSignature security scheme")
	}
	if ingest.Value.Type != "apiKey" || ingest.Value.Name != "x-signature" {
		t.Errorf("ingestSignature = %q in header %q, want apiKey/x-signature", ingest.Value.Type, ingest.Value.Name)
	}
}

func TestGeneratePaths(t *testing.T) {
	doc := Generate("/")

	wantPaths := []string{
		"/api/ingest/event",
		"/api/ingest/batch",
		"/api/v1/system/admin/session",
		"/api/v1/system/admin",
		"/api/v1/system/api-keys",
		"/api/v1/system/api-keys/{id}",
		"/api/v1/events",
		"/api/v1/events/stream",
		"/api/v1/events/{id}",
		"/api/v1/stats/daily",
		"/api/v1/cameras",
		"/api/v1/cameras/{id}",
		"/api/v1/alert-rules",
		"/api/v1/alert-rules/{id}",
		"/api/v1/alert-logs",
		"/api/v1/exports",
		"/api/v1/exports/{id}",
		"/api/v1/exports/{id}/download",
	}
	for _, p := range wantPaths {
		if doc.Paths.Value(p) == nil {
			t.Errorf("expected path %q in document", p)
		}
	}
}

func TestGenerateIngestOperation(t *testing.T) {
	doc := Generate("/")

	item := doc.Paths.Value("/api/ingest/event")
	if item == nil || item.Post == nil {
		t.Fatal("expected POST operation on /api/ingest/event")
	}
	op := item.Post

	// The four signed headers are required parameters on every ingest call.
	wantHeaders := map[string]bool{
		"x-api-key":   false,
		"x-timestamp": false,
		"x-nonce":     false,
		"x-signature": false,
	}
	for _, p := range op.Parameters {
		if p.Value == nil || p.Value.In != "header" {
			continue
		}
		if _, ok := wantHeaders[p.Value.Name]; ok {
			wantHeaders[p.Value.Name] = true
			if !p.Value.Required {
				t.Errorf("header %q should be required", p.Value.Name)
			}
		}
	}
	for name, seen := range wantHeaders {
		if !seen {
			t.Errorf("expected required header parameter %q", name)
		}
	}

	if op.RequestBody == nil || !op.RequestBody.Value.Required {
		t.Error("expected a required request body")
	}
	for _, status := range []string{"200", "401", "422"} {
		if op.Responses.Value(status) == nil {
			t.Errorf("expected %s response on ingest operation", status)
		}
	}
}

func TestGenerateSchemas(t *testing.T) {
	doc := Generate("/")

	ev, ok := doc.Components.Schemas["IngestEvent"]
	if !ok {
		t.Fatal("expected IngestEvent schema")
	}
	required := map[string]bool{}
	for _, r := range ev.Value.Required {
		required[r] = true
	}
	if !required["camera_id"] || !required["event_type"] {
		t.Errorf("IngestEvent required = %v, want camera_id and event_type", ev.Value.Required)
	}
	if _, ok := ev.Value.Properties["allow_stale"]; !ok {
		t.Error("expected allow_stale property on IngestEvent")
	}

	if _, ok := doc.Components.Schemas["ErrorResponse"]; !ok {
		t.Error("expected ErrorResponse schema")
	}
}

func TestHandlerServesJSON(t *testing.T) {
	req := httptest.NewRequest("GET", "/openapi.json", nil)
	rr := httptest.NewRecorder()
	Handler()(rr, req)

	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var m map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&m); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if m["openapi"] != "3.1.0" {
		t.Errorf("openapi = %v, want 3.1.0", m["openapi"])
	}
	paths, ok := m["paths"].(map[string]interface{})
	if !ok {
		t.Fatal("expected paths object")
	}
	if _, ok := paths["/api/ingest/event"]; !ok {
		t.Error("expected /api/ingest/event in serialized paths")
	}
}

// Package openapi describes the sightgrid HTTP surface as an OpenAPI 3.1
// document.
package openapi

import (
	"encoding/json"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

// Generate builds the OpenAPI document for the ingest and dashboard APIs.
func Generate(baseURL string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "sightgrid API",
			Description: "Camera event ingestion and monitoring dashboard.",
			Version:     "1.0.0",
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}
	doc.Components.SecuritySchemes["ingestSignature"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:        "apiKey",
			In:          "header",
			Name:        "x-signature",
			Description: "HMAC-SHA256 over method, path, x-timestamp, x-nonce, and the SHA-256 of the raw body, keyed by a key derived from x-api-key. Format: v1=<lowercase hex>.",
		},
	}

	doc.Components.Schemas["ErrorResponse"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"code":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
							"message": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
							"context": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
						},
					},
				},
			},
		},
	}
	doc.Components.Schemas["IngestEvent"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:     &openapi3.Types{"object"},
			Required: []string{"camera_id", "event_type"},
			Properties: openapi3.Schemas{
				"camera_id":         strSchema("Camera UUID"),
				"event_type":        enumSchema("person_detected", "person_lost", "heartbeat", "system"),
				"confidence":        &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"number"}, Min: floatPtr(0), Max: floatPtr(100)}},
				"occurred_at":       strSchema("RFC 3339 timestamp"),
				"bbox":              &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"array"}, Items: &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"number"}}}}},
				"frame_base64":      strSchema("Inline frame as a data:image/...;base64 URL"),
				"frame_url":         strSchema("External frame reference"),
				"meta":              &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
				"external_event_id": strSchema("Client idempotency token"),
				"allow_stale":       &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}},
			},
		},
	}

	doc.Paths = openapi3.NewPaths()
	addIngestPaths(doc)
	addDashboardPaths(doc)
	return doc
}

func strSchema(desc string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Description: desc}}
}

func enumSchema(values ...string) *openapi3.SchemaRef {
	enum := make([]interface{}, len(values))
	for i, v := range values {
		enum[i] = v
	}
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Enum: enum}}
}

func floatPtr(f float64) *float64 { return &f }

func signedHeaderParams() openapi3.Parameters {
	params := openapi3.Parameters{}
	for _, name := range []string{"x-api-key", "x-timestamp", "x-nonce", "x-signature"} {
		params = append(params, &openapi3.ParameterRef{
			Value: &openapi3.Parameter{
				Name:     name,
				In:       "header",
				Required: true,
				Schema:   &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
			},
		})
	}
	return params
}

func jsonResponse(desc string) *openapi3.ResponseRef {
	return &openapi3.ResponseRef{Value: &openapi3.Response{Description: &desc}}
}

func addIngestPaths(doc *openapi3.T) {
	eventOp := &openapi3.Operation{
		Summary:     "Ingest a signed detection event",
		OperationID: "ingestEvent",
		Parameters:  signedHeaderParams(),
		RequestBody: &openapi3.RequestBodyRef{
			Value: &openapi3.RequestBody{
				Required: true,
				Content: openapi3.Content{
					"application/json": &openapi3.MediaType{
						Schema: &openapi3.SchemaRef{Ref: "#/components/schemas/IngestEvent"},
					},
				},
			},
		},
		Responses: openapi3.NewResponses(),
	}
	eventOp.Responses.Set("200", jsonResponse("Event stored, or duplicate no-op"))
	eventOp.Responses.Set("400", jsonResponse("Schema validation failure"))
	eventOp.Responses.Set("401", jsonResponse("invalid_signature_or_key"))
	eventOp.Responses.Set("404", jsonResponse("Camera unknown or inactive"))
	eventOp.Responses.Set("422", jsonResponse("stale_event"))
	doc.Paths.Set("/api/ingest/event", &openapi3.PathItem{Post: eventOp})

	batchOp := &openapi3.Operation{
		Summary:     "Ingest a batch of events signed as one body",
		OperationID: "ingestBatch",
		Parameters:  signedHeaderParams(),
		Responses:   openapi3.NewResponses(),
	}
	batchOp.Responses.Set("200", jsonResponse("Per-event results"))
	batchOp.Responses.Set("401", jsonResponse("invalid_signature_or_key"))
	batchOp.Responses.Set("422", jsonResponse("stale_event"))
	doc.Paths.Set("/api/ingest/batch", &openapi3.PathItem{Post: batchOp})
}

func addDashboardPaths(doc *openapi3.T) {
	security := openapi3.SecurityRequirements{{"bearerAuth": {}}}

	get := func(summary, id string) *openapi3.Operation {
		op := &openapi3.Operation{Summary: summary, OperationID: id, Security: &security, Responses: openapi3.NewResponses()}
		op.Responses.Set("200", jsonResponse("OK"))
		return op
	}
	post := func(summary, id string) *openapi3.Operation {
		op := &openapi3.Operation{Summary: summary, OperationID: id, Security: &security, Responses: openapi3.NewResponses()}
		op.Responses.Set("201", jsonResponse("Created"))
		return op
	}

	login := &openapi3.Operation{Summary: "Operator login", OperationID: "login", Responses: openapi3.NewResponses()}
	login.Responses.Set("200", jsonResponse("Session token"))
	login.Responses.Set("401", jsonResponse("Invalid credentials"))
	doc.Paths.Set("/api/v1/system/admin/session", &openapi3.PathItem{
		Post: login,
		Get:  get("Current session identity", "me"),
	})

	doc.Paths.Set("/api/v1/system/admin", &openapi3.PathItem{Post: post("Create an operator account", "createAdmin")})
	doc.Paths.Set("/api/v1/system/api-keys", &openapi3.PathItem{
		Get:  get("List ingest API keys", "listAPIKeys"),
		Post: post("Mint an ingest API key", "createAPIKey"),
	})
	doc.Paths.Set("/api/v1/system/api-keys/{id}", &openapi3.PathItem{
		Delete: get("Revoke an ingest API key", "revokeAPIKey"),
	})
	doc.Paths.Set("/api/v1/events", &openapi3.PathItem{Get: get("List events", "listEvents")})
	doc.Paths.Set("/api/v1/events/stream", &openapi3.PathItem{Get: get("Live event stream (SSE)", "streamEvents")})
	doc.Paths.Set("/api/v1/events/{id}", &openapi3.PathItem{Get: get("Get an event", "getEvent")})
	doc.Paths.Set("/api/v1/stats/daily", &openapi3.PathItem{Get: get("Daily detection counts per camera", "dailyStats")})
	doc.Paths.Set("/api/v1/cameras", &openapi3.PathItem{
		Get:  get("List cameras", "listCameras"),
		Post: post("Register a camera", "createCamera"),
	})
	doc.Paths.Set("/api/v1/cameras/{id}", &openapi3.PathItem{
		Get:   get("Get a camera", "getCamera"),
		Patch: get("Update a camera", "updateCamera"),
	})
	doc.Paths.Set("/api/v1/alert-rules", &openapi3.PathItem{
		Get:  get("List alert rules", "listAlertRules"),
		Post: post("Create an alert rule", "createAlertRule"),
	})
	doc.Paths.Set("/api/v1/alert-rules/{id}", &openapi3.PathItem{Patch: get("Update an alert rule", "updateAlertRule")})
	doc.Paths.Set("/api/v1/alert-logs", &openapi3.PathItem{Get: get("List alert log entries", "listAlertLogs")})
	doc.Paths.Set("/api/v1/exports", &openapi3.PathItem{
		Get:  get("List export jobs", "listExports"),
		Post: post("Run an event export", "createExport"),
	})
	doc.Paths.Set("/api/v1/exports/{id}", &openapi3.PathItem{Get: get("Get an export job", "getExport")})
	doc.Paths.Set("/api/v1/exports/{id}/download", &openapi3.PathItem{Get: get("Download an export file", "downloadExport")})
}

// Handler serves the generated document as JSON.
func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc := Generate("/")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(doc)
	}
}

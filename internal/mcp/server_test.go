package mcp

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name     string
		val      int
		min      int
		max      int
		expected int
	}{
		{"value in range", 50, 1, 500, 50},
		{"value below min", -3, 1, 500, 1},
		{"value above max", 9000, 1, 500, 500},
		{"value equals min", 1, 1, 500, 1},
		{"value equals max", 500, 1, 500, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clamp(tt.val, tt.min, tt.max)
			if got != tt.expected {
				t.Errorf("clamp(%d, %d, %d) = %d, want %d", tt.val, tt.min, tt.max, got, tt.expected)
			}
		})
	}
}

func TestBoolPtr(t *testing.T) {
	truePtr := boolPtr(true)
	if truePtr == nil {
		t.Fatal("boolPtr(true) returned nil")
	}
	if *truePtr != true {
		t.Errorf("*boolPtr(true) = %v, want true", *truePtr)
	}

	falsePtr := boolPtr(false)
	if falsePtr == nil {
		t.Fatal("boolPtr(false) returned nil")
	}
	if *falsePtr != false {
		t.Errorf("*boolPtr(false) = %v, want false", *falsePtr)
	}

	// Verify they are distinct pointers
	if truePtr == falsePtr {
		t.Error("boolPtr(true) and boolPtr(false) should return distinct pointers")
	}
}

func TestReadOnlyAnnotation(t *testing.T) {
	ann := readOnlyAnnotation()

	if ann.ReadOnlyHint == nil {
		t.Fatal("ReadOnlyHint should not be nil for readOnlyAnnotation")
	}
	if *ann.ReadOnlyHint != true {
		t.Errorf("ReadOnlyHint = %v, want true", *ann.ReadOnlyHint)
	}
}

func TestSuccessJSON(t *testing.T) {
	result, err := successJSON(map[string]interface{}{
		"camera_id": "cam-1",
		"count":     3,
	})
	if err != nil {
		t.Fatalf("successJSON error: %v", err)
	}
	if result.IsError {
		t.Error("successJSON result should not be an error")
	}
	if len(result.Content) != 1 {
		t.Fatalf("expected 1 content item, got %d", len(result.Content))
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(text.Text), &m); err != nil {
		t.Fatalf("result text is not valid JSON: %v", err)
	}
	if m["camera_id"] != "cam-1" {
		t.Errorf("camera_id = %v, want cam-1", m["camera_id"])
	}
	if m["count"] != float64(3) {
		t.Errorf("count = %v, want 3", m["count"])
	}
}

func TestToolError(t *testing.T) {
	result, err := toolError("invalid event_type %q", "motion")
	if err != nil {
		t.Fatalf("toolError should not return a Go error, got %v", err)
	}
	if !result.IsError {
		t.Error("toolError result should have IsError set")
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	if text.Text != `invalid event_type "motion"` {
		t.Errorf("error text = %q, want %q", text.Text, `invalid event_type "motion"`)
	}
}

func TestNewMCPServerRegistersTools(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewMCPServer(nil, logger)

	if s.Server() == nil {
		t.Fatal("expected non-nil underlying server")
	}
}

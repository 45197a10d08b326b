package mcp

import (
	"encoding/json"
	"testing"

	"github.com/felixgeelhaar/specsync/pkg/application"
)

func TestOpenAPI_ListsEveryTool(t *testing.T) {
	s := newTestServer(t)

	data, err := s.OpenAPI()
	if err != nil {
		t.Fatalf("OpenAPI failed: %v", err)
	}
	var spec OpenAPISpec
	if err := json.Unmarshal(data, &spec); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if spec.OpenAPI != "3.0.3" || spec.Info.Title != "specsync MCP API" || spec.Info.Version != SchemaVersion {
		t.Errorf("unexpected header %+v", spec.Info)
	}
	if len(spec.Paths) != len(application.Operations()) {
		t.Errorf("expected %d paths, got %d", len(application.Operations()), len(spec.Paths))
	}
	for _, op := range application.Operations() {
		path, ok := spec.Paths["/tools/"+op]
		if !ok || path.Post == nil {
			t.Errorf("missing POST /tools/%s", op)
			continue
		}
		if path.Post.OperationID != op || path.Post.Summary == "" {
			t.Errorf("unexpected operation %+v", path.Post)
		}
	}
}

func TestHasProperties(t *testing.T) {
	tests := []struct {
		schema any
		want   bool
	}{
		{nil, false},
		{map[string]any{"type": "object"}, false},
		{map[string]any{"properties": map[string]any{}}, false},
		{map[string]any{"properties": map[string]any{"scope": map[string]any{"type": "string"}}}, true},
	}
	for _, tt := range tests {
		if got := hasProperties(tt.schema); got != tt.want {
			t.Errorf("hasProperties(%v) = %v, want %v", tt.schema, got, tt.want)
		}
	}
}

package spec

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/felixgeelhaar/specsync/pkg/domain/artifact"
)

const requirementsDoc = `# Requirements

Intro prose that is ignored.

## REQ-001: User Login

Users sign in with email and password.
The session lasts one day.

- **Priority**: High
- **Acceptance**:
  - valid credentials create a session
  - invalid credentials are rejected

## REQ-002 - Password Reset
- Priority: medium
- Depends on: REQ-001
`

const designDoc = `# Design

## DES-001: AuthService

Handles credential checks.

- **Satisfies**: REQ-001
- **Location**: internal/auth
- **API**: API-001

## DES-002: User
- **Links**: REQ-001, REQ-002

| Field | Type   | Required |
|-------|--------|----------|
| id    | string | yes      |
| email | string | yes      |
| name  | string | no       |
`

const apiDoc = "# API\n\n" +
	"## API-001: POST /login\n\n" +
	"- **Handler**: `Login`\n" +
	"- **Requirements**: REQ-001\n\n" +
	"```json\n{\n  \"type\": \"object\",\n  \"required\": [\"password\", \"email\"],\n  \"properties\": {\"email\": {\"type\": \"string\"}, \"password\": {\"type\": \"string\"}}\n}\n```\n"

const tasksDoc = `# Tasks

- [x] TASK-1: Implement login handler (API-001)
- [ ] TASK-2: Add reset flow (REQ-002)
- [ ] write docs

| ID     | Title          | Implements |
|--------|----------------|------------|
| TASK-3 | Session expiry | REQ-001    |
`

func extract(t *testing.T, kind artifact.EntityKind, name, text string) []artifact.SpecEntity {
	t.Helper()
	entities, err := NewExtractor().Extract(Document{Name: name, Kind: kind, Text: text})
	if err != nil {
		t.Fatalf("Extract(%s): %v", name, err)
	}
	return entities
}

func TestExtractRequirements(t *testing.T) {
	entities := extract(t, artifact.KindRequirement, "requirements.md", requirementsDoc)
	if len(entities) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(entities))
	}

	req1 := entities[0]
	if req1.ID != "REQ-001" || req1.Title != "User Login" || req1.SourceLine != 5 {
		t.Fatalf("unexpected REQ-001: %+v", req1)
	}
	if got := req1.Attr("description"); got != "Users sign in with email and password. The session lasts one day." {
		t.Fatalf("description = %q", got)
	}
	if got := req1.Attr("priority"); got != "High" {
		t.Fatalf("priority = %q", got)
	}
	if got := req1.Attr("acceptance"); got != "valid credentials create a session; invalid credentials are rejected" {
		t.Fatalf("acceptance = %q", got)
	}
	if !strings.HasPrefix(req1.BlockText, "## REQ-001: User Login") || strings.HasSuffix(req1.BlockText, "\n") {
		t.Fatalf("unexpected block text %q", req1.BlockText)
	}

	req2 := entities[1]
	if req2.ID != "REQ-002" || req2.Title != "Password Reset" {
		t.Fatalf("unexpected REQ-002: %+v", req2)
	}
	want := []artifact.Link{{Target: "REQ-001", Relation: artifact.RelationReferences}}
	if !reflect.DeepEqual(req2.Links, want) {
		t.Fatalf("links = %+v", req2.Links)
	}
}

func TestExtractDesign(t *testing.T) {
	entities := extract(t, artifact.KindDesignElement, "design.md", designDoc)
	if len(entities) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(entities))
	}
	des1 := entities[0]
	wantLinks := []artifact.Link{
		{Target: "API-001", Relation: artifact.RelationReferences},
		{Target: "REQ-001", Relation: artifact.RelationSatisfies},
	}
	if !reflect.DeepEqual(des1.Links, wantLinks) {
		t.Fatalf("links = %+v", des1.Links)
	}
	if des1.RawLines["location"] != "- **Location**: internal/auth" {
		t.Fatalf("raw location line = %q", des1.RawLines["location"])
	}

	des2 := entities[1]
	if des2.Attr("fields") != "id, email, name" {
		t.Fatalf("fields = %q", des2.Attr("fields"))
	}
	if des2.Attr("required_fields") != "id, email" {
		t.Fatalf("required_fields = %q", des2.Attr("required_fields"))
	}
	if len(des2.Links) != 2 || des2.Links[0].Relation != artifact.RelationSatisfies {
		t.Fatalf("links = %+v", des2.Links)
	}
}

func TestExtractAPIContract(t *testing.T) {
	entities := extract(t, artifact.KindAPIContract, "api-spec.md", apiDoc)
	if len(entities) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(entities))
	}
	api := entities[0]
	if api.Attr("method") != "POST" || api.Attr("path") != "/login" {
		t.Fatalf("method/path = %q %q", api.Attr("method"), api.Attr("path"))
	}
	if api.Attr("handler") != "Login" {
		t.Fatalf("handler = %q", api.Attr("handler"))
	}
	if api.Attr("required_fields") != "email, password" {
		t.Fatalf("required_fields = %q", api.Attr("required_fields"))
	}
	if !strings.HasPrefix(api.Attr("schema"), `{"type":"object"`) {
		t.Fatalf("schema not compacted: %q", api.Attr("schema"))
	}
	if !api.LinksTo("REQ-001") {
		t.Fatalf("expected satisfies link, got %+v", api.Links)
	}
}

func TestExtractTasks(t *testing.T) {
	entities := extract(t, artifact.KindTask, "tasks.md", tasksDoc)
	if len(entities) != 3 {
		t.Fatalf("expected 3 entities, got %d", len(entities))
	}
	if entities[0].ID != "TASK-1" || entities[0].Attr("status") != "done" || entities[0].Title != "Implement login handler" {
		t.Fatalf("unexpected TASK-1: %+v", entities[0])
	}
	if entities[1].Attr("status") != "open" {
		t.Fatalf("TASK-2 status = %q", entities[1].Attr("status"))
	}
	task3 := entities[2]
	if task3.ID != "TASK-3" || task3.Title != "Session expiry" {
		t.Fatalf("unexpected TASK-3: %+v", task3)
	}
	if !reflect.DeepEqual(task3.Links, []artifact.Link{{Target: "REQ-001", Relation: artifact.RelationImplements}}) {
		t.Fatalf("links = %+v", task3.Links)
	}
}

func TestExtractMalformed(t *testing.T) {
	doc := "# Requirements\n\n## REQ-1: ok\n\n## Requirement: missing id\n"
	_, err := NewExtractor().Extract(Document{Name: "requirements.md", Kind: artifact.KindRequirement, Text: doc})
	var malformed *MalformedDocumentError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedDocumentError, got %v", err)
	}
	if malformed.Line != 5 || !errors.Is(err, ErrMalformedDocument) {
		t.Fatalf("unexpected error %+v", malformed)
	}
}

func TestExtractIgnoresSectionHeadings(t *testing.T) {
	doc := "# Tasks\n\n## Task List\n\n### Requirements Overview\n\n- [ ] TASK-1: do it\n"
	entities := extract(t, artifact.KindTask, "tasks.md", doc)
	if len(entities) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(entities))
	}
}

func TestExtractIsFormattingInvariant(t *testing.T) {
	noisy := strings.ReplaceAll(requirementsDoc, "\n", "\r\n")
	noisy = strings.ReplaceAll(noisy, "- **Priority**: High", "-   **Priority**:    High  ")
	noisy = strings.ReplaceAll(noisy, "\r\n\r\nUsers", "\r\n\r\n\r\n\r\nUsers")

	a := extract(t, artifact.KindRequirement, "requirements.md", requirementsDoc)
	b := extract(t, artifact.KindRequirement, "requirements.md", noisy)
	if len(a) != len(b) {
		t.Fatalf("entity count changed: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID || !reflect.DeepEqual(a[i].Attributes, b[i].Attributes) || a[i].Title != b[i].Title {
			t.Fatalf("entity %d differs:\n%+v\n%+v", i, a[i].Attributes, b[i].Attributes)
		}
	}
}

func TestRewriteAttribute(t *testing.T) {
	tests := []struct {
		line, old, new, want string
	}{
		{"- **Location**: internal/auth", "internal/auth", "pkg/auth", "- **Location**: pkg/auth"},
		{"  - Method: get", "GET", "POST", "  - Method: POST"},
		{"| DES-1 | Auth | internal/auth |", "internal/auth", "pkg/auth", "| DES-1 | Auth | pkg/auth |"},
		{"## API-001: GET /users/{id}", "/users/{id}", "/users/{userId}", "## API-001: GET /users/{userId}"},
	}
	for _, tt := range tests {
		got, ok := RewriteAttribute(tt.line, tt.old, tt.new)
		if !ok || got != tt.want {
			t.Fatalf("RewriteAttribute(%q) = %q, %v; want %q", tt.line, got, ok, tt.want)
		}
	}
	if _, ok := RewriteAttribute("plain text", "missing", "x"); ok {
		t.Fatal("expected no rewrite")
	}
}

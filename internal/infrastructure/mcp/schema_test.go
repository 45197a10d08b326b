package mcp

import (
	"reflect"
	"regexp"
	"testing"

	"github.com/felixgeelhaar/specsync/pkg/application"
)

func TestSchemaVersionIsSemver(t *testing.T) {
	re := regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	if !re.MatchString(SchemaVersion) {
		t.Fatalf("SchemaVersion %q is not valid semver", SchemaVersion)
	}
}

func TestDeprecatedFieldsPopulated(t *testing.T) {
	for i, d := range deprecatedFields() {
		if d.Tool == "" || d.Field == "" || d.Since == "" || d.RemovedIn == "" || d.Migration == "" {
			t.Errorf("deprecatedFields()[%d] is incomplete: %+v", i, d)
		}
	}
}

func TestSchemaListsOperations(t *testing.T) {
	s := newTestServer(t)
	got := s.schema()
	if !reflect.DeepEqual(got.Tools, application.Operations()) {
		t.Errorf("tools = %v", got.Tools)
	}
	if got.ProjectRoot != s.root {
		t.Errorf("project root = %q", got.ProjectRoot)
	}
}

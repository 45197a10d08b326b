package codescan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/specsync/pkg/domain/artifact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanFixture(t *testing.T, opts ...Option) *ScanResult {
	t.Helper()
	opts = append([]Option{WithSpecDir("specs")}, opts...)
	res, err := NewScanner(filepath.Join("testdata", "project"), opts...).Scan(context.Background())
	require.NoError(t, err)
	return res
}

func factByID(t *testing.T, facts []artifact.CodeFact, id string) artifact.CodeFact {
	t.Helper()
	for _, f := range facts {
		if f.ID == id {
			return f
		}
	}
	t.Fatalf("fact %s not found", id)
	return artifact.CodeFact{}
}

func TestScan_Discovery(t *testing.T) {
	res := scanFixture(t)

	assert.Equal(t, 8, res.FilesScanned)
	for _, f := range res.Facts {
		assert.NotContains(t, f.Location.Path, "generated/", "gitignored files must be skipped")
		assert.NotContains(t, f.Location.Path, "specs/", "the spec directory must be skipped")
	}
	assert.Len(t, res.Facts, 13)
}

func TestScan_ParseErrorsAreReported(t *testing.T) {
	res := scanFixture(t)

	require.Len(t, res.Errors, 1)
	perr := res.Errors[0]
	assert.Equal(t, "broken/bad.go", perr.Path)
	assert.Positive(t, perr.Line)
	assert.True(t, errors.Is(perr, ErrCodeParse))
	for _, f := range res.Facts {
		assert.NotEqual(t, "broken/bad.go", f.Location.Path)
	}
}

func TestScan_GoFacts(t *testing.T) {
	res := scanFixture(t)

	user := factByID(t, res.Facts, "data_model:internal/users/service.go#User")
	assert.Equal(t, artifact.FactDataModel, user.Kind)
	assert.Equal(t, "go", user.Language)
	assert.Equal(t, "id, email, name", user.Attr("fields"))
	assert.Equal(t, "email, id", user.Attr("required_fields"))
	assert.Equal(t, []string{"DES-002"}, user.TraceIDs)

	svc := factByID(t, res.Facts, "component:internal/users/service.go#UserService")
	assert.Equal(t, []string{"DES-001"}, svc.TraceIDs)
	assert.Equal(t, "Register", svc.Attr("methods"))
	assert.Equal(t, "users", svc.Attr("package"))

	store := factByID(t, res.Facts, "component:internal/users/service.go#Store")
	assert.Equal(t, "Get, Put", store.Attr("methods"))

	ctor := factByID(t, res.Facts, "component:internal/users/service.go#NewUserService")
	assert.Equal(t, "func NewUserService(store Store) *UserService", ctor.Signature)
	assert.Equal(t, "store Store", ctor.Attr("parameters"))
	assert.Equal(t, "*UserService", ctor.Attr("returns"))
	assert.Empty(t, ctor.TraceIDs)
}

func TestScan_GoRoutes(t *testing.T) {
	res := scanFixture(t)

	create := factByID(t, res.Facts, "api_endpoint:internal/users/routes.go#POST /users")
	assert.Equal(t, "POST", create.Attr("method"))
	assert.Equal(t, "/users", create.Attr("path"))
	assert.Equal(t, "handleCreate", create.Attr("handler"))
	assert.Equal(t, []string{"API-001"}, create.TraceIDs)

	get := factByID(t, res.Facts, "api_endpoint:internal/users/routes.go#GET /users/{id}")
	assert.Equal(t, "handleGet", get.Attr("handler"))
	assert.Empty(t, get.TraceIDs)
}

func TestScan_JavaScriptAndTypeScript(t *testing.T) {
	res := scanFixture(t)

	route := factByID(t, res.Facts, "api_endpoint:web/routes.js#GET /users/:id/orders")
	assert.Equal(t, "javascript", route.Language)
	assert.Equal(t, "listOrders", route.Attr("handler"))
	assert.Equal(t, []string{"API-002"}, route.TraceIDs)

	fn := factByID(t, res.Facts, "component:web/routes.js#listOrders")
	assert.Equal(t, "req, res", fn.Attr("parameters"))

	dto := factByID(t, res.Facts, "data_model:web/types.ts#UserDTO")
	assert.Equal(t, "typescript", dto.Language)
	assert.Equal(t, "id, email, nickname", dto.Attr("fields"))
	assert.Equal(t, "email, id", dto.Attr("required_fields"))
	assert.Equal(t, []string{"DES-002"}, dto.TraceIDs)
}

func TestScan_Python(t *testing.T) {
	res := scanFixture(t)

	order := factByID(t, res.Facts, "data_model:app/models.py#Order")
	assert.Equal(t, "id, total, note", order.Attr("fields"))
	assert.Equal(t, "id, total", order.Attr("required_fields"))
	assert.Equal(t, []string{"DES-003"}, order.TraceIDs)

	route := factByID(t, res.Facts, "api_endpoint:app/models.py#GET /orders/{order_id}")
	assert.Equal(t, "get_order", route.Attr("handler"))

	fn := factByID(t, res.Facts, "component:app/models.py#get_order")
	assert.Equal(t, "Order", fn.Attr("returns"))
}

func TestScan_TestFacts(t *testing.T) {
	res := scanFixture(t)

	byID := make(map[string]artifact.TestFact)
	for _, tf := range res.Tests {
		byID[tf.ID] = tf
	}
	require.Len(t, byID, 3)

	reg := byID["test:internal/users/service_test.go#TestUserService_Register"]
	assert.Equal(t, []string{"REQ-001", "component:internal/users/service.go#UserService"}, reg.Targets)
	assert.Equal(t, 6, reg.Location.Line)

	login := byID["test:internal/users/service_test.go#TestREQ002_Login"]
	assert.Equal(t, []string{"REQ-002"}, login.Targets)

	js := byID["test:web/routes.test.js#lists orders for REQ-003"]
	assert.Equal(t, []string{"REQ-003", "api_endpoint:web/routes.js#GET /users/:id/orders"}, js.Targets)
}

func TestScan_IncludeAndExclude(t *testing.T) {
	res := scanFixture(t, WithInclude("*.go"), WithExclude("broken/"))

	assert.Equal(t, 3, res.FilesScanned)
	assert.Empty(t, res.Errors)
	for _, f := range res.Facts {
		assert.Equal(t, "go", f.Language)
	}
}

func TestScan_DeterministicOrder(t *testing.T) {
	first := scanFixture(t, WithConcurrency(1))
	second := scanFixture(t, WithConcurrency(8))
	assert.Equal(t, first, second)
}

func TestScan_MissingRoot(t *testing.T) {
	_, err := NewScanner(filepath.Join(t.TempDir(), "nope")).Scan(context.Background())
	require.Error(t, err)
}

func TestScan_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewScanner(filepath.Join("testdata", "project")).Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScan_EmptyTree(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# hi\n"), 0o600))

	res, err := NewScanner(dir).Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.FilesScanned)
	assert.NotNil(t, res.Facts)
	assert.Empty(t, res.Facts)
}

func TestConventionKeys(t *testing.T) {
	var conv Convention

	api := artifact.SpecEntity{Kind: artifact.KindAPIContract, Attributes: map[string]string{"method": "get", "path": "/users/:id"}}
	assert.Equal(t, []string{"endpoint:GET /users/{}", "endpoint:ANY /users/{}"}, conv.EntityKeys(api))

	des := artifact.SpecEntity{Kind: artifact.KindDesignElement, Title: "User Service"}
	assert.Equal(t, []string{"symbol:userservice"}, conv.EntityKeys(des))

	fact := artifact.CodeFact{Kind: artifact.FactAPIEndpoint, Attributes: map[string]string{"method": "GET", "path": "/users/{id}"}}
	assert.Equal(t, []string{"endpoint:GET /users/{}"}, conv.FactKeys(fact))

	assert.Equal(t, []string{"DES-001", "REQ-2"}, conv.TraceIDs("// Implements: DES-001, REQ-2"))
}

func TestIsTestFile(t *testing.T) {
	tests := map[string]bool{
		"service_test.go": true,
		"service.go":      false,
		"app.spec.ts":     true,
		"routes.test.js":  true,
		"test_models.py":  true,
		"models_test.py":  true,
		"models.py":       false,
		"contest.go":      false,
	}
	for name, want := range tests {
		assert.Equal(t, want, isTestFile(name), name)
	}
}

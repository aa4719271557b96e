package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	"github.com/mangos/mangos/internal/model"
)

var specPath = filepath.Join("..", "..", "docs", "api", "openapi.yaml")

// loadSpec loads and validates the OpenAPI document.
func loadSpec(t *testing.T) (*openapi3.T, routers.Router) {
	t.Helper()

	loader := openapi3.NewLoader()
	spec, err := loader.LoadFromFile(specPath)
	if err != nil {
		t.Fatalf("Failed to load OpenAPI spec from %s: %v", specPath, err)
	}

	if err := spec.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI spec validation failed: %v", err)
	}

	router, err := gorillamux.NewRouter(spec)
	if err != nil {
		t.Fatalf("Failed to create router from spec: %v", err)
	}

	return spec, router
}

func TestContract_DocumentedPaths(t *testing.T) {
	spec, _ := loadSpec(t)

	for _, path := range []string{
		"/healthz",
		"/readyz",
		"/mangos",
		"/mangos/{id}",
		"/api-keys",
		"/api-keys/{key_id}",
		"/api-keys/{key_id}/rotate",
	} {
		if spec.Paths.Find(path) == nil {
			t.Errorf("Expected path %s not found in spec", path)
		}
	}
}

// TestContract_ResponsesMatchSchema drives the router through every documented
// status and checks each response body against the document.
func TestContract_ResponsesMatchSchema(t *testing.T) {
	_, specRouter := loadSpec(t)
	env := newRouterTestEnv(t)

	owner := env.issueKey(t, "user-a", model.ScopeRead, model.ScopeWrite)
	stranger := env.issueKey(t, "user-b", model.ScopeRead, model.ScopeWrite)
	admin := env.issueKey(t, "user-a", model.ScopeAdmin)

	steps := []struct {
		name   string
		method string
		path   string
		body   string
		key    string
		status int
	}{
		{"health", http.MethodGet, "/healthz", "", "", http.StatusOK},
		{"ready", http.MethodGet, "/readyz", "", "", http.StatusOK},
		{"create", http.MethodPost, "/mangos", `{"mango":{"name":"Larry","ripe":true,"color":"green"}}`, owner, http.StatusCreated},
		{"create invalid", http.MethodPost, "/mangos", `{"mango":{"name":"","color":"green"}}`, owner, http.StatusBadRequest},
		{"list", http.MethodGet, "/mangos", "", owner, http.StatusOK},
		{"list unauthenticated", http.MethodGet, "/mangos", "", "", http.StatusUnauthorized},
		{"get", http.MethodGet, "/mangos/1", "", owner, http.StatusOK},
		{"get foreign", http.MethodGet, "/mangos/1", "", stranger, http.StatusForbidden},
		{"get missing", http.MethodGet, "/mangos/99", "", owner, http.StatusNotFound},
		{"update", http.MethodPatch, "/mangos/1", `{"mango":{"ripe":false}}`, owner, http.StatusOK},
		{"create key", http.MethodPost, "/api-keys", `{"name":"ci","scopes":["read"]}`, admin, http.StatusCreated},
		{"create key bad scope", http.MethodPost, "/api-keys", `{"scopes":["root"]}`, admin, http.StatusBadRequest},
		{"list keys", http.MethodGet, "/api-keys", "", admin, http.StatusOK},
		{"revoke missing key", http.MethodDelete, "/api-keys/nope", "", admin, http.StatusNotFound},
		{"delete", http.MethodDelete, "/mangos/1", "", owner, http.StatusNoContent},
	}

	for _, step := range steps {
		rec := env.do(step.method, step.path, step.body, step.key)
		if rec.Code != step.status {
			t.Fatalf("%s: expected %d, got %d: %s", step.name, step.status, rec.Code, rec.Body.String())
		}
		validateResponse(t, specRouter, step.name, step.method, step.path, step.body, rec)
	}
}

func validateResponse(t *testing.T, specRouter routers.Router, name, method, path, body string, rec *httptest.ResponseRecorder) {
	t.Helper()

	var reqBody io.Reader
	if body != "" {
		reqBody = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reqBody)

	route, pathParams, err := specRouter.FindRoute(req)
	if err != nil {
		t.Fatalf("%s: could not find route in spec: %v", name, err)
	}

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: pathParams,
			Route:      route,
		},
		Status: rec.Code,
		Header: rec.Header(),
		Body:   io.NopCloser(bytes.NewReader(rec.Body.Bytes())),
		Options: &openapi3filter.Options{
			IncludeResponseStatus: true,
		},
	}

	if err := openapi3filter.ValidateResponse(context.Background(), input); err != nil {
		t.Errorf("%s: response validation failed: %v", name, err)
	}
}

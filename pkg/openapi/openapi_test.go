package openapi_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/practicanteticPX/docuprex/pkg/openapi"
)

func TestNewSpec(t *testing.T) {
	spec := openapi.NewSpec("Signing API", "1.0.0")
	spec.SetDescription("signing")
	spec.AddServer("/api")

	if spec.OpenAPI != "3.1.0" {
		t.Errorf("openapi version: got %s, want 3.1.0", spec.OpenAPI)
	}
	if spec.Info.Title != "Signing API" || spec.Info.Version != "1.0.0" {
		t.Errorf("info: got %+v", spec.Info)
	}
	if spec.Info.Description != "signing" {
		t.Errorf("description: got %s", spec.Info.Description)
	}
	if len(spec.Servers) != 1 || spec.Servers[0].URL != "/api" {
		t.Errorf("servers: got %+v", spec.Servers)
	}
	if spec.Components == nil || spec.Paths == nil {
		t.Fatal("components and paths should be initialized")
	}
}

func TestRefs(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"schema", openapi.SchemaRef("SigningView").Ref, "#/components/schemas/SigningView"},
		{"response", openapi.ResponseRef("Conflict").Ref, "#/components/responses/Conflict"},
		{"request body", openapi.RequestBodyJSON("ActRequest", true).Content["application/json"].Schema.Ref, "#/components/schemas/ActRequest"},
		{"response body", openapi.ResponseJSON("ok", "Assignment").Content["application/json"].Schema.Ref, "#/components/schemas/Assignment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %s, want %s", tt.got, tt.want)
			}
		})
	}
}

func TestParams(t *testing.T) {
	p := openapi.PathParam("id", "Document ID")
	if p.In != "path" || !p.Required {
		t.Errorf("path param: in=%s required=%v", p.In, p.Required)
	}
	if p.Schema.Type != "string" || p.Schema.Format != "uuid" {
		t.Errorf("path schema: type=%s format=%s", p.Schema.Type, p.Schema.Format)
	}

	q := openapi.QueryParam("status", "string", "Status filter", false)
	if q.In != "query" || q.Required || q.Schema.Type != "string" {
		t.Errorf("query param: got %+v", q)
	}
}

func TestNewComponentsDefaults(t *testing.T) {
	c := openapi.NewComponents()

	for _, name := range []string{"PageRequest", "Error"} {
		if _, ok := c.Schemas[name]; !ok {
			t.Errorf("missing default schema: %s", name)
		}
	}

	for _, name := range []string{"BadRequest", "Unauthorized", "Forbidden", "NotFound", "Conflict", "UnprocessableEntity"} {
		resp, ok := c.Responses[name]
		if !ok {
			t.Errorf("missing default response: %s", name)
			continue
		}
		if resp.Content["application/json"].Schema.Ref != "#/components/schemas/Error" {
			t.Errorf("%s: error schema not referenced", name)
		}
	}

	c.AddSchemas(map[string]*openapi.Schema{"Document": {Type: "object"}})
	if _, ok := c.Schemas["Document"]; !ok {
		t.Error("Document schema not added")
	}
	if _, ok := c.Schemas["PageRequest"]; !ok {
		t.Error("default PageRequest schema should still exist")
	}
}

func TestServeSpec(t *testing.T) {
	data, err := openapi.MarshalJSON(openapi.NewSpec("Test", "1.0.0"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	rec := httptest.NewRecorder()
	openapi.ServeSpec(data)(rec, httptest.NewRequest("GET", "/openapi.json", nil))

	res := rec.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Errorf("status: got %d, want 200", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("content-type: got %s", ct)
	}

	body, _ := io.ReadAll(res.Body)
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("body: %v", err)
	}
	if parsed["openapi"] != "3.1.0" {
		t.Errorf("openapi: got %v", parsed["openapi"])
	}

	etag := res.Header.Get("ETag")
	if etag == "" {
		t.Fatal("etag not set")
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/openapi.json", nil)
	req.Header.Set("If-None-Match", etag)
	openapi.ServeSpec(data)(rec, req)

	if rec.Code != http.StatusNotModified {
		t.Errorf("revalidate: got %d, want 304", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("revalidate body: got %d bytes", rec.Body.Len())
	}
}

func TestRequireBearer(t *testing.T) {
	spec := openapi.NewSpec("Test", "1.0.0")
	spec.RequireBearer("bearer", "JWT")

	scheme, ok := spec.Components.SecuritySchemes["bearer"]
	if !ok {
		t.Fatal("bearer scheme not registered")
	}
	if scheme.Type != "http" || scheme.Scheme != "bearer" || scheme.BearerFormat != "JWT" {
		t.Errorf("scheme: got %+v", scheme)
	}
	if len(spec.Security) != 1 {
		t.Fatalf("security: got %v", spec.Security)
	}
	if _, ok := spec.Security[0]["bearer"]; !ok {
		t.Errorf("security requirement: got %v", spec.Security[0])
	}
}

func TestContentHelpers(t *testing.T) {
	pdf := openapi.ResponseContent("PDF", "application/pdf", openapi.Binary())
	if s := pdf.Content["application/pdf"].Schema; s.Type != "string" || s.Format != "binary" {
		t.Errorf("pdf schema: got %+v", s)
	}

	body := openapi.RequestBodyMultipart(map[string]*openapi.Schema{"file": openapi.Binary()}, "file")
	form := body.Content["multipart/form-data"].Schema
	if !body.Required || form.Type != "object" || len(form.Required) != 1 || form.Required[0] != "file" {
		t.Errorf("multipart: got %+v", form)
	}

	e := openapi.StringEnum("admin", "user")
	if e.Type != "string" || len(e.Enum) != 2 {
		t.Errorf("enum: got %+v", e)
	}
}

func TestConfig(t *testing.T) {
	cfg := openapi.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if cfg.Title != "DocuPrex API" {
		t.Errorf("title: got %s", cfg.Title)
	}

	t.Setenv("TEST_TITLE", "Custom API")
	env := &openapi.ConfigEnv{Title: "TEST_TITLE", Description: "TEST_DESC"}
	cfg = openapi.Config{Description: "kept"}
	if err := cfg.Finalize(env); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if cfg.Title != "Custom API" || cfg.Description != "kept" {
		t.Errorf("env: got %+v", cfg)
	}

	cfg.Merge(&openapi.Config{Title: "Overlay"})
	if cfg.Title != "Overlay" || cfg.Description != "kept" {
		t.Errorf("merge: got %+v", cfg)
	}
}

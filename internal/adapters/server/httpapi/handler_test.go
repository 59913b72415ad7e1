package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hylla/kanfile/internal/adapters/server/common"
	"github.com/hylla/kanfile/internal/adapters/storage/filestore"
	"github.com/hylla/kanfile/internal/app"
	"github.com/hylla/kanfile/internal/domain"
)

// newTestService builds a file-backed service in a temp store.
func newTestService(t *testing.T) *app.Service {
	t.Helper()
	store, err := filestore.Open(filepath.Join(t.TempDir(), ".kanfile"))
	if err != nil {
		t.Fatalf("filestore.Open() error = %v", err)
	}
	todo, _ := domain.NewColumn("", "To Do", 0, 0)
	done, _ := domain.NewColumn("", "Done", 1, 0)
	return app.NewService(store, nil, nil, app.ServiceConfig{
		Defaults: app.BoardDefaults{Name: "HTTP", Columns: []domain.Column{todo, done}},
	})
}

// post sends one ops request through the handler.
func post(t *testing.T, handler http.Handler, body, actor string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/ops", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(common.ActorHeader, actor)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// TestHandlerRunsSingleAndBatchOps verifies the request shapes and response payloads.
func TestHandlerRunsSingleAndBatchOps(t *testing.T) {
	handler := NewHandler(newTestService(t))

	rec := post(t, handler, `{"op":"init board","name":"Roadmap"}`, "ada")
	if rec.Code != http.StatusOK {
		t.Fatalf("init status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var single map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&single); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if single["ok"] != true || single["op"] != "init board" {
		t.Fatalf("init payload = %#v", single)
	}

	rec = post(t, handler, `[{"add":"task","title":"A"},{"op":"add task","title":"B","deps":["$0"]}]`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("batch status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var batch []map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&batch); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("batch results = %d, want 2", len(batch))
	}
	first := batch[0]["data"].(map[string]any)
	second := batch[1]["data"].(map[string]any)
	deps := second["depends_on"].([]any)
	if len(deps) != 1 || deps[0] != first["id"] {
		t.Fatalf("B.depends_on = %#v, want [%v]", deps, first["id"])
	}
}

// TestHandlerActorFromBodyAndHeader verifies header precedence over the body field.
func TestHandlerActorFromBodyAndHeader(t *testing.T) {
	svc := newTestService(t)
	handler := NewHandler(svc)
	post(t, handler, `{"op":"init board"}`, "")
	post(t, handler, `{"op":"add task","title":"A","actor":"body-actor"}`, "")
	post(t, handler, `{"op":"add task","title":"B","actor":"body-actor"}`, "header-actor")

	rec := post(t, handler, `{"op":"list activity"}`, "")
	var res struct {
		Data []domain.LogEntry `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(res.Data) != 3 {
		t.Fatalf("activity = %d entries, want 3", len(res.Data))
	}
	actors := map[string]bool{}
	for _, entry := range res.Data {
		actors[entry.Actor] = true
	}
	if !actors["body-actor"] || !actors["header-actor"] {
		t.Fatalf("actors = %#v, want body-actor and header-actor", actors)
	}
}

// TestHandlerErrorMapping verifies structured status mapping for operation errors.
func TestHandlerErrorMapping(t *testing.T) {
	handler := NewHandler(newTestService(t))
	post(t, handler, `{"op":"init board"}`, "")

	cases := []struct {
		name       string
		body       string
		wantStatus int
		wantKind   string
	}{
		{name: "malformed json", body: `{"op":`, wantStatus: http.StatusBadRequest, wantKind: "invalid_request"},
		{name: "unknown op", body: `{"op":"juggle task"}`, wantStatus: http.StatusBadRequest, wantKind: "parse"},
		{name: "missing field", body: `{"op":"add column"}`, wantStatus: http.StatusBadRequest, wantKind: "validation"},
		{name: "not found", body: `{"op":"get task","id":"ghost"}`, wantStatus: http.StatusNotFound, wantKind: "not_found"},
		{name: "conflict", body: `{"op":"init board"}`, wantStatus: http.StatusConflict, wantKind: "conflict"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, handler, tt.body, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			body := rec.Body.String()
			if !strings.Contains(body, tt.wantKind) {
				t.Fatalf("body = %s, want kind %q", body, tt.wantKind)
			}
		})
	}
}

// TestHandlerVocabularyAndRouting verifies vocabulary listing and fail-closed routing.
func TestHandlerVocabularyAndRouting(t *testing.T) {
	handler := NewHandler(newTestService(t))

	req := httptest.NewRequest(http.MethodGet, "/vocabulary", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("vocabulary status = %d", rec.Code)
	}
	var vocab struct {
		Ops []app.OpSpec `json:"ops"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&vocab); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(vocab.Ops) != len(app.Vocabulary()) {
		t.Fatalf("vocabulary = %d ops, want %d", len(vocab.Ops), len(app.Vocabulary()))
	}

	req = httptest.NewRequest(http.MethodGet, "/ops", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("GET /ops = %d allow=%q", rec.Code, rec.Header().Get("Allow"))
	}

	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	var envelope ErrorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if rec.Code != http.StatusNotFound || envelope.Error.Code != "not_found" {
		t.Fatalf("GET /nope = %d %+v", rec.Code, envelope)
	}

	unconfigured := NewHandler(nil)
	rec = post(t, unconfigured, `{"op":"get board"}`, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unconfigured status = %d, want 503", rec.Code)
	}
}

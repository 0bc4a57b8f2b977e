package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/orc-engine/orc/internal/approval"
	"github.com/orc-engine/orc/internal/budget"
	"github.com/orc-engine/orc/internal/core"
	"github.com/orc-engine/orc/internal/eventbus"
	"github.com/orc-engine/orc/internal/orchestrator"
	"github.com/orc-engine/orc/internal/provider"
	"github.com/orc-engine/orc/internal/store"
)

type noopFactory struct{}

func (noopFactory) Create(ctx context.Context, cfg core.ProviderConfig) (provider.Provider, error) {
	return nil, nil
}

func newTestServer(t *testing.T) (*Server, store.Store, *orchestrator.Orchestrator) {
	t.Helper()
	st := store.NewMemoryStore()
	bus := eventbus.New()
	bt := budget.NewTracker()
	appr := approval.New(func(core.ApprovalRecord) {})
	orch := orchestrator.New(st, bus, bt, appr, noopFactory{}, nil)
	return New(orch, st, bus, appr, nil), st, orch
}

func TestHealthz(t *testing.T) {
	s, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHandleGetExecution_NotFound(t *testing.T) {
	s, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/executions/missing", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleListExecutions(t *testing.T) {
	s, _, orch := newTestServer(t)
	tpl := &core.WorkflowTemplate{ID: "t1", Name: "t1", Phases: []core.WorkflowPhase{
		{ID: "p1", Name: "p1", Order: 1, Provider: core.ProviderConfig{Kind: core.ProviderNone}, PromptTemplate: "go"},
	}}
	if err := s.store.SaveTemplate(tpl); err != nil {
		t.Fatal(err)
	}
	_, err := orch.CreateExecution(orchestrator.CreateExecutionRequest{
		TemplateID: "t1", ProjectPath: "/tmp", TaskDescription: "do thing",
	})
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/executions/", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var execs []core.WorkflowExecution
	if err := json.NewDecoder(rec.Body).Decode(&execs); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(execs) != 1 {
		t.Fatalf("got %d executions, want 1", len(execs))
	}
}

func TestHandleCancel_NotActive(t *testing.T) {
	s, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/executions/missing/cancel", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestHandleResolve_NoPending(t *testing.T) {
	s, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/executions/missing/approve", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestHandleUpdateArtifact_SetsIsEdited(t *testing.T) {
	s, st, _ := newTestServer(t)
	a := &core.Artifact{ID: "a1", WorkflowExecutionID: "w1", Content: "original"}
	if err := st.CreateArtifact(a); err != nil {
		t.Fatal(err)
	}

	body := strings.NewReader(`{"content":"revised"}`)
	req := httptest.NewRequest(http.MethodPut, "/artifacts/a1", body)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got core.Artifact
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.Content != "revised" || !got.IsEdited {
		t.Fatalf("got %+v, want revised content with IsEdited=true", got)
	}

	reloaded, err := st.GetArtifact("a1")
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Content != "revised" || !reloaded.IsEdited {
		t.Fatalf("store not updated: %+v", reloaded)
	}
}

func TestHandleUpdateArtifact_NotFound(t *testing.T) {
	s, _, _ := newTestServer(t)
	body := strings.NewReader(`{"content":"revised"}`)
	req := httptest.NewRequest(http.MethodPut, "/artifacts/missing", body)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleGetArtifactContent(t *testing.T) {
	s, st, _ := newTestServer(t)
	if err := st.CreateArtifact(&core.Artifact{ID: "a1", WorkflowExecutionID: "w1", Content: "hello"}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/artifacts/a1/content", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body["content"] != "hello" {
		t.Fatalf("content = %q, want %q", body["content"], "hello")
	}
}

func TestWriteError_IncludesMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusBadRequest, errors.New("boom"))
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !strings.Contains(body["error"], "boom") {
		t.Fatalf("error body = %q, want to contain %q", body["error"], "boom")
	}
}

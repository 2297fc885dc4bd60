package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-registry/internal/directory"
	"go.uber.org/zap/zaptest"
)

func seededEditEnv(t *testing.T) (*testEnv, *EditHandler) {
	env := newTestEnv(t,
		directory.UserRecord{ID: "u1", Name: "Alice", Department: "R&D", Face: directory.LegacyDescriptor("a")},
		directory.UserRecord{ID: "u2", Name: "Bob", Department: "Ops", Face: directory.LegacyDescriptor("b")},
	)
	return env, NewEditHandler(env.repo, zaptest.NewLogger(t))
}

func beginEdit(t *testing.T, handler *EditHandler, id string) *httptest.ResponseRecorder {
	t.Helper()
	recorder := httptest.NewRecorder()
	req := requestWithChiParams(httptest.NewRequest(http.MethodPost, "/api/v1/users/"+id+"/edit", nil), map[string]string{"id": id})
	handler.Begin(recorder, req)
	return recorder
}

func currentDraft(t *testing.T, handler *EditHandler) editResponse {
	t.Helper()
	recorder := httptest.NewRecorder()
	handler.Get(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/edit", nil))
	assertStatusCode(t, recorder, http.StatusOK)
	var resp editResponse
	parseJSONResponse(t, recorder, &resp)
	return resp
}

func TestEditHandler_SaveFlow(t *testing.T) {
	env, handler := seededEditEnv(t)

	assertStatusCode(t, beginEdit(t, handler, "u1"), http.StatusOK)

	recorder := httptest.NewRecorder()
	handler.Update(recorder, jsonRequest(t, http.MethodPut, "/api/v1/edit", map[string]string{"id": "u1", "name": "Alice B."}))
	assertStatusCode(t, recorder, http.StatusOK)

	// Nothing is persisted before save.
	if rec, _ := env.repo.Get(t.Context(), "u1"); rec.Name != "Alice" {
		t.Fatalf("draft leaked into the directory: %+v", rec)
	}

	recorder = httptest.NewRecorder()
	handler.Save(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/edit/save", nil))
	assertStatusCode(t, recorder, http.StatusOK)

	var user directory.UserRecord
	parseJSONResponse(t, recorder, &user)
	if user.Name != "Alice B." || user.Department != "R&D" {
		t.Errorf("unexpected saved user %+v", user)
	}
	if env.store.UpdateCalls != 1 {
		t.Errorf("expected 1 store update, got %d", env.store.UpdateCalls)
	}
	if currentDraft(t, handler).Editing {
		t.Error("expected edit mode to end after save")
	}
}

func TestEditHandler_UnchangedSaveSkipsStore(t *testing.T) {
	env, handler := seededEditEnv(t)
	beginEdit(t, handler, "u1")

	recorder := httptest.NewRecorder()
	handler.Save(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/edit/save", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	if env.store.UpdateCalls != 0 {
		t.Errorf("expected no store update, got %d", env.store.UpdateCalls)
	}
}

func TestEditHandler_BeginOtherDiscardsDraft(t *testing.T) {
	_, handler := seededEditEnv(t)
	beginEdit(t, handler, "u1")

	recorder := httptest.NewRecorder()
	handler.Update(recorder, jsonRequest(t, http.MethodPut, "/api/v1/edit", map[string]string{"name": "Changed"}))
	assertStatusCode(t, recorder, http.StatusOK)

	beginEdit(t, handler, "u2")

	resp := currentDraft(t, handler)
	if !resp.Editing || resp.Draft.ID != "u2" || resp.Draft.Name != "Bob" {
		t.Errorf("unexpected draft %+v", resp.Draft)
	}
}

func TestEditHandler_UpdateWrongRecord(t *testing.T) {
	_, handler := seededEditEnv(t)
	beginEdit(t, handler, "u1")

	recorder := httptest.NewRecorder()
	handler.Update(recorder, jsonRequest(t, http.MethodPut, "/api/v1/edit", map[string]string{"id": "u2", "name": "X"}))

	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestEditHandler_BeginUnknown(t *testing.T) {
	_, handler := seededEditEnv(t)

	assertStatusCode(t, beginEdit(t, handler, "missing"), http.StatusNotFound)
}

func TestEditHandler_Cancel(t *testing.T) {
	_, handler := seededEditEnv(t)
	beginEdit(t, handler, "u1")

	recorder := httptest.NewRecorder()
	handler.Cancel(recorder, httptest.NewRequest(http.MethodDelete, "/api/v1/edit", nil))
	assertStatusCode(t, recorder, http.StatusOK)

	if currentDraft(t, handler).Editing {
		t.Error("expected no draft after cancel")
	}

	recorder = httptest.NewRecorder()
	handler.Save(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/edit/save", nil))
	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestEditHandler_SaveFailureKeepsDraft(t *testing.T) {
	env, handler := seededEditEnv(t)
	beginEdit(t, handler, "u1")
	handler.Update(httptest.NewRecorder(), jsonRequest(t, http.MethodPut, "/api/v1/edit", map[string]string{"department": "Sales"}))

	env.store.UpdateError = errors.New("connection reset")
	recorder := httptest.NewRecorder()
	handler.Save(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/edit/save", nil))
	assertStatusCode(t, recorder, http.StatusServiceUnavailable)

	resp := currentDraft(t, handler)
	if !resp.Editing || resp.Draft.Department != "Sales" {
		t.Errorf("expected draft to survive a failed save, got %+v", resp)
	}
}

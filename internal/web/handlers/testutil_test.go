package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/kozaktomas/face-registry/internal/capture"
	"github.com/kozaktomas/face-registry/internal/database/mock"
	"github.com/kozaktomas/face-registry/internal/directory"
	"go.uber.org/zap/zaptest"
)

// stubLauncher records capture starts and answers with err.
type stubLauncher struct {
	mu    sync.Mutex
	calls []capture.StartRequest
	err   error
}

func (l *stubLauncher) Start(ctx context.Context, req capture.StartRequest) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, req)
	return l.err
}

func (l *stubLauncher) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

func (l *stubLauncher) lastToken() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.calls) == 0 {
		return ""
	}
	return l.calls[len(l.calls)-1].Token
}

// testEnv wires a repository over the mock store and a controller over a stub launcher.
type testEnv struct {
	store      *mock.MockStore
	repo       *directory.Repository
	launcher   *stubLauncher
	clock      *clockwork.FakeClock
	controller *capture.Controller
}

func newTestEnv(t *testing.T, records ...directory.UserRecord) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	store := mock.NewMockStore()
	for _, rec := range records {
		store.AddRecord(rec)
	}
	repo := directory.NewRepository(store, logger)
	if _, err := repo.ListAll(context.Background()); err != nil {
		t.Fatalf("failed to load records: %v", err)
	}

	launcher := &stubLauncher{}
	clock := clockwork.NewFakeClock()
	controller := capture.NewController(launcher,
		capture.WithClock(clock),
		capture.WithGuardDuration(15*time.Second),
		capture.WithLogger(logger),
	)
	t.Cleanup(controller.Close)

	return &testEnv{store: store, repo: repo, launcher: launcher, clock: clock, controller: controller}
}

func testGeometry() directory.Geometry {
	return directory.Geometry{
		FaceWidth:  120,
		FaceHeight: 140,
		Eyes:       [2]directory.Point{{X: 30, Y: 50}, {X: 90, Y: 50}},
	}
}

// jsonRequest creates a request with a JSON body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

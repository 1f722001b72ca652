package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dindinbro/discreen/pkg/lineparse"
	"github.com/dindinbro/discreen/pkg/search"
	"github.com/dindinbro/discreen/pkg/storage"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	registry := storage.NewRegistry(t.TempDir(), lineparse.NewParser(lineparse.NewHeaderCache()))
	if err := registry.Discover(); err != nil {
		t.Fatalf("discover: %v", err)
	}
	t.Cleanup(func() { _ = registry.Close() })

	orchestrator := search.NewOrchestrator(context.Background(), search.WithLocal(registry))
	return NewServer(orchestrator, registry)
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestSearchMalformedJSON(t *testing.T) {
	w := doRequest(t, testServer(t), http.MethodPost, "/api/search", "{not json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestSearchUnknownCriterionType(t *testing.T) {
	body := `{"criteria":[{"type":"bogus","value":"x"}],"limit":10}`
	w := doRequest(t, testServer(t), http.MethodPost, "/api/search", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var errResp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Error != "bad_criteria" {
		t.Fatalf("error = %q", errResp.Error)
	}
}

func TestSearchEmptyResult(t *testing.T) {
	body := `{"criteria":[{"type":"email","value":"nobody@example.com"}],"limit":10}`
	w := doRequest(t, testServer(t), http.MethodPost, "/api/search", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp SearchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Records == nil {
		t.Fatal("records must be an empty array, not null")
	}
	if resp.Count != 0 {
		t.Fatalf("count = %d", resp.Count)
	}
	if resp.QueryID == "" {
		t.Fatal("query id missing")
	}
}

func TestHealthEndpoint(t *testing.T) {
	w := doRequest(t, testServer(t), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("status = %q", resp.Status)
	}
	if resp.Bridge {
		t.Fatal("no bridge configured, health must say so")
	}
}

func TestSourcesEndpoint(t *testing.T) {
	w := doRequest(t, testServer(t), http.MethodGet, "/api/sources", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp SourcesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Active) != 0 {
		t.Fatalf("active = %v, want none in empty dir", resp.Active)
	}
}

func TestCorsMiddleware(t *testing.T) {
	handler := CorsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/search", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("preflight status = %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
}

func TestEventsWebsocket(t *testing.T) {
	srv := testServer(t)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	u, _ := url.Parse(ts.URL)
	u.Scheme = "ws"
	u.Path = "/api/events"

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	defer func() { _ = conn.Close() }()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read init: %v", err)
	}
	var init map[string]any
	if err := json.Unmarshal(data, &init); err != nil {
		t.Fatalf("decode init: %v", err)
	}
	if init["type"] != "init" {
		t.Fatalf("expected init message, got %v", init["type"])
	}

	// Wait for the hub to register the listener before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for srv.Hub().ListenerCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	srv.Hub().Publish(QueryEvent{QueryID: "q1", Records: 3, Timestamp: time.Now().UTC()})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	if !strings.Contains(string(data), "q1") {
		t.Fatalf("event payload missing query id: %s", data)
	}
}

func TestEventHubDropsWhenFull(t *testing.T) {
	hub := NewEventHub(1)
	id, ch := hub.Register()
	defer hub.Unregister(id)

	hub.Publish(QueryEvent{QueryID: "a"})
	hub.Publish(QueryEvent{QueryID: "b"}) // dropped, buffer full

	select {
	case env := <-ch:
		if env.Query.QueryID != "a" {
			t.Fatalf("got %q", env.Query.QueryID)
		}
	default:
		t.Fatal("expected one buffered event")
	}

	select {
	case env := <-ch:
		t.Fatalf("unexpected second event %q", env.Query.QueryID)
	default:
	}
}

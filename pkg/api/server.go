// Package api exposes the search core over HTTP: a search endpoint, source
// and health introspection, and a websocket feed of query events.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dindinbro/discreen/pkg/core"
	"github.com/dindinbro/discreen/pkg/log"
	"github.com/dindinbro/discreen/pkg/search"
	"github.com/dindinbro/discreen/pkg/storage"
	"github.com/dindinbro/discreen/pkg/version"
)

var logger = log.ForService("api")

// Server wires HTTP handlers to the orchestrator and registry.
type Server struct {
	orchestrator *search.Orchestrator
	registry     *storage.Registry
	hub          *EventHub
}

// NewServer builds a server. The hub may be nil when the event feed is not
// wanted; a default hub is created otherwise.
func NewServer(orchestrator *search.Orchestrator, registry *storage.Registry) *Server {
	return &Server{
		orchestrator: orchestrator,
		registry:     registry,
		hub:          NewEventHub(0),
	}
}

// Hub exposes the event hub so other layers can publish.
func (s *Server) Hub() *EventHub { return s.hub }

// RegisterRoutes attaches all handlers to mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/search", s.HandleSearch)
	mux.HandleFunc("GET /api/sources", s.HandleSources)
	mux.HandleFunc("GET /api/events", s.HandleEvents)
	mux.HandleFunc("GET /health", s.HandleHealth)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, errCode, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: errCode, Message: message})
}

// HandleSearch runs one federated search. Malformed input is the only hard
// error; a timeout returns 504 with whatever accumulated before the deadline.
func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body")
		return
	}

	queryID := uuid.NewString()
	start := time.Now()
	result, err := s.orchestrator.Search(r.Context(), req.Criteria, req.Limit, req.Offset)
	took := time.Since(start)

	if err != nil && errors.Is(err, search.ErrBadCriteria) {
		s.writeError(w, http.StatusBadRequest, "bad_criteria", "unknown criterion type in criteria list")
		return
	}

	response := SearchResponse{
		QueryID: queryID,
		Records: result.Records,
		Count:   len(result.Records),
		Total:   result.Total,
		Partial: result.Partial,
		TookMS:  took.Milliseconds(),
	}
	if response.Records == nil {
		response.Records = []*core.Record{}
	}

	s.hub.Publish(QueryEvent{
		QueryID:   queryID,
		Criteria:  len(core.FilterFilled(req.Criteria)),
		Records:   response.Count,
		Partial:   response.Partial,
		TookMS:    response.TookMS,
		Timestamp: time.Now().UTC(),
	})

	if err != nil && errors.Is(err, search.ErrTimeout) {
		s.writeJSON(w, http.StatusGatewayTimeout, response)
		return
	}
	s.writeJSON(w, http.StatusOK, response)
}

// HandleSources reports the registry's active and excluded sources.
func (s *Server) HandleSources(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, SourcesResponse{
		Active:  s.registry.Names(),
		Skipped: s.registry.Skipped(),
	})
}

// HandleHealth reports process liveness and participant availability.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Sources: s.registry.Count(),
		Bridge:  s.orchestrator.BridgeHealthy(),
		Version: version.Version,
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleEvents upgrades the connection and streams query events until the
// client goes away.
func (s *Server) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("websocket upgrade failed: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	id, events := s.hub.Register()
	defer s.hub.Unregister(id)

	init := map[string]any{"type": "init", "version": version.Version}
	if err := conn.WriteJSON(init); err != nil {
		return
	}

	// Reader goroutine detects client close; we never expect inbound data.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case envelope, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(envelope); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// CorsMiddleware allows browser clients on other origins to reach the API.
func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Package httpapi exposes the external HTTP surface over the ingestion,
// retrieval, curator, and AI gateway components.
package httpapi

import (
	"net/http"

	"github.com/manifold-labs/memoryd/internal/ai"
	"github.com/manifold-labs/memoryd/internal/curator"
	"github.com/manifold-labs/memoryd/internal/ingest"
	"github.com/manifold-labs/memoryd/internal/retrieve"
	"github.com/manifold-labs/memoryd/internal/signal"
)

// Server wires the HTTP surface to the components it fronts.
type Server struct {
	front   *ingest.FrontDoor
	engine  *retrieve.Engine
	gateway ai.Provider
	curator *curator.Curator
	signals *signal.Logger
	mux     *http.ServeMux
}

func NewServer(front *ingest.FrontDoor, engine *retrieve.Engine, gateway ai.Provider, cur *curator.Curator, signals *signal.Logger) *Server {
	s := &Server{front: front, engine: engine, gateway: gateway, curator: cur, signals: signals, mux: http.NewServeMux()}
	s.registerRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/memory", s.handleSubmitMemory)
	s.mux.HandleFunc("GET /api/search", s.handleSearch)
	s.mux.HandleFunc("POST /api/search/rewritten", s.handleRewrittenSearch)
	s.mux.HandleFunc("POST /api/ai/generate", s.handleGenerate)
	s.mux.HandleFunc("POST /api/ai/sanitize", s.handleSanitize)
	s.mux.HandleFunc("GET /api/sse/logs", s.handleSSELogs)
	s.mux.HandleFunc("POST /trigger-curator", s.handleTriggerCurator)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
}

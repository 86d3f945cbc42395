package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/manifold-labs/memoryd/internal/ai"
	"github.com/manifold-labs/memoryd/internal/merr"
	"github.com/manifold-labs/memoryd/internal/signal"
)

type submitMemoryRequest struct {
	Text        string   `json:"text"`
	SourceApp   string   `json:"source_app"`
	SessionID   string   `json:"session_id"`
	ContextTags []string `json:"context_tags"`
}

func (s *Server) handleSubmitMemory(w http.ResponseWriter, r *http.Request) {
	var req submitMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.front.Submit(r.Context(), req.Text, req.SourceApp, req.SessionID, req.ContextTags); err != nil {
		respondError(w, merr.StatusCode(err), err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"success": true, "status": "queued"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		respondError(w, http.StatusBadRequest, fmt.Errorf("%w: q is required", merr.ErrInvalidInput))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := s.engine.Search(r.Context(), q, limit)
	if err != nil {
		respondError(w, merr.StatusCode(err), err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

type rewrittenSearchRequest struct {
	Queries  []string           `json:"queries"`
	Context  *ai.RewriteContext `json:"context"`
	TopK     int                `json:"topK"`
	Provider string             `json:"provider"`
	Model    string             `json:"model"`
}

func (s *Server) handleRewrittenSearch(w http.ResponseWriter, r *http.Request) {
	var req rewrittenSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Queries) == 0 {
		respondJSON(w, http.StatusOK, map[string]any{"success": true, "results": []any{}})
		return
	}
	opts := ai.TextOptions{Provider: ai.Backend(req.Provider), Model: req.Model}
	results, err := s.engine.RewrittenSearch(r.Context(), req.Queries, req.Context, req.TopK, opts)
	if err != nil {
		respondError(w, merr.StatusCode(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "results": results})
}

type generateRequest struct {
	Prompt   string         `json:"prompt"`
	System   string         `json:"system"`
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
	Schema   map[string]any `json:"schema"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Prompt == "" {
		respondError(w, http.StatusBadRequest, fmt.Errorf("%w: prompt is required", merr.ErrInvalidInput))
		return
	}
	opts := ai.TextOptions{Provider: ai.Backend(req.Provider), Model: req.Model}

	if req.Schema != nil {
		raw, err := s.gateway.GenerateStructured(r.Context(), req.Prompt, req.Schema, opts)
		if err != nil {
			respondError(w, merr.StatusCode(err), err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"success": true, "response": string(raw)})
		return
	}

	text, err := s.gateway.GenerateText(r.Context(), req.Prompt, req.System, opts)
	if err != nil {
		respondError(w, merr.StatusCode(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "response": text})
}

type sanitizeRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSanitize(w http.ResponseWriter, r *http.Request) {
	var req sanitizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"result": ai.Sanitize(req.Text)})
}

func (s *Server) handleSSELogs(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	tail, ch, unsubscribe := s.signals.Subscribe()
	defer unsubscribe()

	enc := json.NewEncoder(w)
	writeEntry := func(e signal.Entry) bool {
		fmt.Fprint(w, "data: ")
		if err := enc.Encode(e); err != nil {
			return false
		}
		fmt.Fprint(w, "\n")
		flusher.Flush()
		return true
	}

	for _, e := range tail {
		if !writeEntry(e) {
			return
		}
	}

	ctx := r.Context()
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			if !writeEntry(e) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) handleTriggerCurator(w http.ResponseWriter, r *http.Request) {
	// The curator run must outlive this request; it carries its own
	// deadline internally, so a background context is correct here.
	go s.curator.Run(context.Background())
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

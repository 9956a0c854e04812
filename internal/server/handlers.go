package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/genai-monitor/internal/core/ports"
)

type healthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Storage: s.source.State().String(),
	})
}

// handleListEvents returns events matching every query parameter, e.g.
// /v1/events?provider=openai&model=gpt-4o-mini.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	store := s.source.Store()
	if store == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error: fmt.Sprintf("event storage is %s", s.source.State()),
		})
		return
	}

	filter := ports.EventFilter{}
	for key, values := range r.URL.Query() {
		if _, ok := ports.Column(key); !ok {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unknown filter %q", key)})
			return
		}
		filter[key] = values[0]
	}

	events, err := store.GetEvents(r.Context(), filter)
	if err != nil {
		AddError(r.Context(), err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to query events"})
		return
	}

	AddLogField(r.Context(), "events", fmt.Sprint(len(events)))
	s.writeJSON(w, http.StatusOK, events)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to write response", slog.String("error", err.Error()))
	}
}

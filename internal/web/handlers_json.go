package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Shiv7/trading-dashboard-sub004/internal/domain"
	"go.uber.org/zap"
)

const defaultDecisionLimit = 100

type targetHitRequest struct {
	TargetIndex int `json:"targetIndex"`
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	positions := s.coordinator.Snapshots()
	if positions == nil {
		positions = []domain.PositionSnapshot{}
	}
	s.writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	snap, err := s.coordinator.Snapshot(r.PathValue("scripCode"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleOpenPosition(w http.ResponseWriter, r *http.Request) {
	var req domain.OpenPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	snap, err := s.coordinator.OpenPosition(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleTargetHit(w http.ResponseWriter, r *http.Request) {
	var req targetHitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	decision, err := s.coordinator.OnTargetHit(r.Context(), r.PathValue("scripCode"), req.TargetIndex)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, decision)
}

func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	if err := s.coordinator.ClosePosition(r.Context(), r.PathValue("scripCode")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	if s.decisions == nil {
		http.Error(w, "Decision log not configured", http.StatusServiceUnavailable)
		return
	}
	limit := defaultDecisionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	decisions, err := s.decisions.ListExitDecisions(r.Context(), r.URL.Query().Get("scrip"), limit)
	if err != nil {
		s.logger.Error("Failed to list exit decisions", zap.Error(err))
		http.Error(w, "Failed to list decisions", http.StatusInternalServerError)
		return
	}
	if decisions == nil {
		decisions = []*domain.ExitDecision{}
	}
	s.writeJSON(w, http.StatusOK, decisions)
}

// writeError maps domain errors onto status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownPosition):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrDataUnavailable):
		status = http.StatusServiceUnavailable
	default:
		s.logger.Error("Request failed", zap.Error(err))
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

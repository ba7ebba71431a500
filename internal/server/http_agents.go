package server

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/alfredjeanlab/trustscore/internal/indexer"
	"github.com/alfredjeanlab/trustscore/internal/model"
)

// listResponse wraps paginated list results.
type listResponse struct {
	Items any `json:"items"`
	Total int `json:"total"`
}

// handleListAgents handles GET /v1/agents.
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.AgentFilter{
		Owner: q.Get("owner"),
		Limit: 100,
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Offset = n
		}
	}

	agents, total, err := s.store.ListAgents(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if agents == nil {
		agents = []*model.Agent{}
	}
	writeJSON(w, http.StatusOK, listResponse{Items: agents, Total: total})
}

// handleGetAgent handles GET /v1/agents/{id}.
func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.store.GetAgent(r.Context(), r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

// handleGetAgentFeedback handles GET /v1/agents/{id}/feedback.
func (s *Server) handleGetAgentFeedback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.FeedbackFilter{
		Subject:        r.PathValue("id"),
		Author:         q.Get("author"),
		IncludeRevoked: q.Get("include_revoked") == "true",
		Limit:          100,
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Offset = n
		}
	}

	feedback, total, err := s.store.ListFeedback(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if feedback == nil {
		feedback = []*model.Feedback{}
	}
	writeJSON(w, http.StatusOK, listResponse{Items: feedback, Total: total})
}

// handleGetAgentScore handles GET /v1/agents/{id}/score. When no cached
// score exists the handler computes one on the fly without persisting
// it; the aggregation engine remains the only writer of score rows.
func (s *Server) handleGetAgentScore(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	score, err := s.store.GetScore(r.Context(), id)
	if err == nil {
		writeJSON(w, http.StatusOK, score)
		return
	}
	if !errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	score, err = s.aggregator.ComputeScore(r.Context(), id, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if score == nil {
		writeError(w, http.StatusNotFound, "agent has no feedback")
		return
	}
	writeJSON(w, http.StatusOK, score)
}

// handleGetStatus handles GET /v1/status: the ingestion checkpoint.
func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	block, ok, err := s.store.GetCheckpoint(r.Context(), indexer.CheckpointKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"last_indexed_block": block,
		"indexing_started":   ok,
	})
}

// Package server exposes the indexed data over a read-only JSON API. It
// never writes agent, feedback, or score rows; the pipelines own those.
package server

import (
	"log/slog"

	"github.com/alfredjeanlab/trustscore/internal/scoring"
	"github.com/alfredjeanlab/trustscore/internal/store"
)

// Server serves the trust score query API.
type Server struct {
	store      store.Store
	aggregator *scoring.Aggregator
	logger     *slog.Logger
}

// NewServer returns a Server backed by the given store. The aggregator
// is used only for on-demand score computation of agents that have no
// cached score yet.
func NewServer(s store.Store, agg *scoring.Aggregator, logger *slog.Logger) *Server {
	return &Server{
		store:      s,
		aggregator: agg,
		logger:     logger,
	}
}

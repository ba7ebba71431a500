// Package export writes periodic JSONL snapshots of the indexed data to
// one or more destinations (local file, S3).
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/trustscore/internal/model"
	"github.com/alfredjeanlab/trustscore/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version       string    `json:"version"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AgentCount    int       `json:"agent_count"`
	FeedbackCount int       `json:"feedback_count"`
	ScoreCount    int       `json:"score_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ExportJSONL writes all agents, feedback (revoked rows included, so a
// snapshot is a faithful mirror), and computed scores as JSONL to w.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	agents, _, err := s.ListAgents(ctx, model.AgentFilter{})
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}
	feedback, _, err := s.ListFeedback(ctx, model.FeedbackFilter{IncludeRevoked: true})
	if err != nil {
		return fmt.Errorf("list feedback: %w", err)
	}
	scores, _, err := s.ListScores(ctx, 0, 0)
	if err != nil {
		return fmt.Errorf("list scores: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:       "1",
		Type:          "header",
		Timestamp:     time.Now().UTC(),
		AgentCount:    len(agents),
		FeedbackCount: len(feedback),
		ScoreCount:    len(scores),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, a := range agents {
		if err := enc.Encode(record{Type: "agent", Data: a}); err != nil {
			return fmt.Errorf("encode agent %s: %w", a.ID, err)
		}
	}
	for _, fb := range feedback {
		if err := enc.Encode(record{Type: "feedback", Data: fb}); err != nil {
			return fmt.Errorf("encode feedback %s: %w", fb.ID, err)
		}
	}
	for _, sc := range scores {
		if err := enc.Encode(record{Type: "score", Data: sc}); err != nil {
			return fmt.Errorf("encode score %s: %w", sc.AgentID, err)
		}
	}

	return nil
}

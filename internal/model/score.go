package model

import "time"

// CategoryScore is the per-category slice of a computed score.
type CategoryScore struct {
	Score float64 `json:"score"`
	Count int     `json:"count"`
}

// ComputedScore is the cached trust score for one agent. It is fully
// derivable from the current non-revoked feedback rows at ComputedAt;
// the scoring engine may overwrite it at any time. Only the oracle
// pipeline writes PushedToChain and PushedAt.
type ComputedScore struct {
	AgentID        string                   `json:"agent_id"`
	OverallScore   float64                  `json:"overall_score"`
	FeedbackCount  int                      `json:"feedback_count"`
	PositiveCount  int                      `json:"positive_count"`
	NegativeCount  int                      `json:"negative_count"`
	CategoryScores map[string]CategoryScore `json:"category_scores,omitempty"`
	ComputedAt     time.Time                `json:"computed_at"`
	PushedToChain  bool                     `json:"pushed_to_chain"`
	PushedAt       *time.Time               `json:"pushed_at,omitempty"`
}

// Stats is the global snapshot served by the read API.
type Stats struct {
	TotalAgents        int `json:"total_agents"`
	TotalFeedback      int `json:"total_feedback"`
	AgentsWithFeedback int `json:"agents_with_feedback"`
}

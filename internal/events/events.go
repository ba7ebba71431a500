package events

import (
	"context"
	"time"

	"github.com/alfredjeanlab/trustscore/internal/model"
)

// Event topic constants
const (
	TopicAgentRegistered = "trustscore.agent.registered"
	TopicAgentUpdated    = "trustscore.agent.updated"
	TopicFeedbackNew     = "trustscore.feedback.new"
	TopicFeedbackRevoked = "trustscore.feedback.revoked"
	TopicScoreComputed   = "trustscore.score.computed"
	TopicScorePublished  = "trustscore.score.published"
)

// Event types

type AgentRegistered struct {
	Agent *model.Agent `json:"agent"`
}

type AgentUpdated struct {
	Agent *model.Agent `json:"agent"`
}

type FeedbackNew struct {
	Feedback *model.Feedback `json:"feedback"`
}

type FeedbackRevoked struct {
	FeedbackID string `json:"feedback_id"`
	AgentID    string `json:"agent_id"`
}

type ScoreComputed struct {
	Score *model.ComputedScore `json:"score"`
}

type ScorePublished struct {
	AgentIDs []string  `json:"agent_ids"`
	TxHash   string    `json:"tx_hash"`
	PushedAt time.Time `json:"pushed_at"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

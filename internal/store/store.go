package store

import (
	"context"
	"time"

	"github.com/alfredjeanlab/trustscore/internal/model"
)

// Store defines the persistence interface for the trust score pipelines.
//
// Write ownership is split by stage: the indexer owns agent and feedback
// writes plus the checkpoint, the scoring engine owns computed score
// content, and the oracle pipeline owns the pushed markers. Everything
// else (the API layer, the exporter) is read-only.
type Store interface {
	// Agents
	CreateAgent(ctx context.Context, agent *model.Agent) error
	GetAgent(ctx context.Context, id string) (*model.Agent, error)
	UpdateAgentMetadata(ctx context.Context, id, metadataURI string) error
	ListAgents(ctx context.Context, filter model.AgentFilter) ([]*model.Agent, int, error) // returns agents, total count, error

	// Feedback
	CreateFeedback(ctx context.Context, fb *model.Feedback) error
	GetFeedback(ctx context.Context, id string) (*model.Feedback, error)
	RevokeFeedback(ctx context.Context, id string) error
	ListFeedback(ctx context.Context, filter model.FeedbackFilter) ([]*model.Feedback, int, error)
	ListFeedbackSubjects(ctx context.Context) ([]string, error) // distinct subjects with non-revoked feedback

	// Computed scores
	SaveScore(ctx context.Context, score *model.ComputedScore) error // upsert; resets the pushed markers
	GetScore(ctx context.Context, agentID string) (*model.ComputedScore, error)
	ListScores(ctx context.Context, limit, offset int) ([]*model.ComputedScore, int, error) // ordered by score desc
	ListUnpushedScores(ctx context.Context, limit int) ([]*model.ComputedScore, error)
	MarkScoresPushed(ctx context.Context, agentIDs []string, pushedAt time.Time) error

	// Checkpoint
	GetCheckpoint(ctx context.Context, key string) (uint64, bool, error)
	SetCheckpoint(ctx context.Context, key string, block uint64) error

	// Stats
	GetStats(ctx context.Context) (*model.Stats, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}

package oracle

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/alfredjeanlab/trustscore/internal/model"
	"github.com/alfredjeanlab/trustscore/internal/store"
)

// mockStore is a minimal in-memory store for scoring tests.
type mockStore struct {
	agents      map[string]*model.Agent
	feedback    map[string]*model.Feedback
	scores      map[string]*model.ComputedScore
	checkpoints map[string]uint64

	saveScoreErr error
	failSubject  string
	listErr      error
}

func newMockStore() *mockStore {
	return &mockStore{
		agents:      make(map[string]*model.Agent),
		feedback:    make(map[string]*model.Feedback),
		scores:      make(map[string]*model.ComputedScore),
		checkpoints: make(map[string]uint64),
	}
}

func (m *mockStore) CreateAgent(_ context.Context, agent *model.Agent) error {
	m.agents[agent.ID] = agent
	return nil
}

func (m *mockStore) GetAgent(_ context.Context, id string) (*model.Agent, error) {
	a, ok := m.agents[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return a, nil
}

func (m *mockStore) UpdateAgentMetadata(_ context.Context, id, metadataURI string) error {
	a, ok := m.agents[id]
	if !ok {
		return sql.ErrNoRows
	}
	a.MetadataURI = metadataURI
	return nil
}

func (m *mockStore) ListAgents(_ context.Context, _ model.AgentFilter) ([]*model.Agent, int, error) {
	var result []*model.Agent
	for _, a := range m.agents {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, len(result), nil
}

func (m *mockStore) CreateFeedback(_ context.Context, fb *model.Feedback) error {
	m.feedback[fb.ID] = fb
	return nil
}

func (m *mockStore) GetFeedback(_ context.Context, id string) (*model.Feedback, error) {
	fb, ok := m.feedback[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return fb, nil
}

func (m *mockStore) RevokeFeedback(_ context.Context, id string) error {
	fb, ok := m.feedback[id]
	if !ok {
		return sql.ErrNoRows
	}
	fb.Revoked = true
	return nil
}

func (m *mockStore) ListFeedback(_ context.Context, filter model.FeedbackFilter) ([]*model.Feedback, int, error) {
	if m.listErr != nil && (m.failSubject == "" || filter.Subject == m.failSubject) {
		return nil, 0, m.listErr
	}
	var result []*model.Feedback
	for _, fb := range m.feedback {
		if filter.Subject != "" && fb.Subject != filter.Subject {
			continue
		}
		if filter.Author != "" && fb.Author != filter.Author {
			continue
		}
		if fb.Revoked && !filter.IncludeRevoked {
			continue
		}
		result = append(result, fb)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, len(result), nil
}

func (m *mockStore) ListFeedbackSubjects(_ context.Context) ([]string, error) {
	seen := map[string]bool{}
	for _, fb := range m.feedback {
		if !fb.Revoked {
			seen[fb.Subject] = true
		}
	}
	var subjects []string
	for s := range seen {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)
	return subjects, nil
}

func (m *mockStore) SaveScore(_ context.Context, score *model.ComputedScore) error {
	if m.saveScoreErr != nil {
		return m.saveScoreErr
	}
	saved := *score
	saved.PushedToChain = false
	saved.PushedAt = nil
	m.scores[score.AgentID] = &saved
	return nil
}

func (m *mockStore) GetScore(_ context.Context, agentID string) (*model.ComputedScore, error) {
	s, ok := m.scores[agentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s, nil
}

func (m *mockStore) ListScores(_ context.Context, _, _ int) ([]*model.ComputedScore, int, error) {
	var result []*model.ComputedScore
	for _, s := range m.scores {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].OverallScore > result[j].OverallScore })
	return result, len(result), nil
}

func (m *mockStore) ListUnpushedScores(_ context.Context, limit int) ([]*model.ComputedScore, error) {
	var result []*model.ComputedScore
	for _, s := range m.scores {
		if !s.PushedToChain {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AgentID < result[j].AgentID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockStore) MarkScoresPushed(_ context.Context, agentIDs []string, pushedAt time.Time) error {
	for _, id := range agentIDs {
		if s, ok := m.scores[id]; ok {
			s.PushedToChain = true
			at := pushedAt
			s.PushedAt = &at
		}
	}
	return nil
}

func (m *mockStore) GetCheckpoint(_ context.Context, key string) (uint64, bool, error) {
	block, ok := m.checkpoints[key]
	return block, ok, nil
}

func (m *mockStore) SetCheckpoint(_ context.Context, key string, block uint64) error {
	m.checkpoints[key] = block
	return nil
}

func (m *mockStore) GetStats(_ context.Context) (*model.Stats, error) {
	subjects, _ := m.ListFeedbackSubjects(context.Background())
	return &model.Stats{
		TotalAgents:        len(m.agents),
		TotalFeedback:      len(m.feedback),
		AgentsWithFeedback: len(subjects),
	}, nil
}

func (m *mockStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(m)
}

func (m *mockStore) Close() error { return nil }

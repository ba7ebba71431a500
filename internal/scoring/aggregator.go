package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alfredjeanlab/trustscore/internal/events"
	"github.com/alfredjeanlab/trustscore/internal/model"
	"github.com/alfredjeanlab/trustscore/internal/store"
)

// Aggregator computes time-decayed trust scores from stored feedback.
type Aggregator struct {
	store        store.Store
	events       events.Publisher
	halfLifeDays float64
	logger       *slog.Logger
}

func NewAggregator(st store.Store, pub events.Publisher, halfLifeDays float64, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		store:        st,
		events:       pub,
		halfLifeDays: halfLifeDays,
		logger:       logger,
	}
}

// NormalizeValue maps a raw feedback value to the 0-100 score scale.
// The raw value is shifted by its decimals, clamped to [-100, 100], then
// rescaled linearly so that -100 maps to 0, 0 to 50 and 100 to 100.
func NormalizeValue(value int64, decimals int) float64 {
	v := float64(value) / math.Pow10(decimals)
	if v > 100 {
		v = 100
	} else if v < -100 {
		v = -100
	}
	return (v + 100) / 2
}

// ComputeScore aggregates all non-revoked feedback for an agent into a
// ComputedScore as of referenceTime. Agents with no feedback get no
// score: the return is (nil, nil), not a neutral placeholder.
func (a *Aggregator) ComputeScore(ctx context.Context, agentID string, referenceTime time.Time) (*model.ComputedScore, error) {
	rows, _, err := a.store.ListFeedback(ctx, model.FeedbackFilter{Subject: agentID})
	if err != nil {
		return nil, fmt.Errorf("listing feedback for agent %s: %w", agentID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	type bucket struct {
		weightedSum float64
		weightSum   float64
		count       int
	}
	var global bucket
	categories := map[string]*bucket{}

	score := &model.ComputedScore{
		AgentID:    agentID,
		ComputedAt: referenceTime,
	}

	for _, fb := range rows {
		normalized := NormalizeValue(fb.Value, fb.ValueDecimals)
		age := referenceTime.Sub(fb.Timestamp).Hours() / 24
		weight := Weight(age, a.halfLifeDays)

		global.weightedSum += normalized * weight
		global.weightSum += weight
		global.count++

		if fb.Tag1 != "" {
			cat := categories[fb.Tag1]
			if cat == nil {
				cat = &bucket{}
				categories[fb.Tag1] = cat
			}
			cat.weightedSum += normalized * weight
			cat.weightSum += weight
			cat.count++
		}

		score.FeedbackCount++
		if fb.Value > 0 {
			score.PositiveCount++
		} else if fb.Value < 0 {
			score.NegativeCount++
		}
	}

	if global.weightSum > 0 {
		score.OverallScore = round2(global.weightedSum / global.weightSum)
	} else {
		score.OverallScore = 50
	}

	if len(categories) > 0 {
		score.CategoryScores = make(map[string]model.CategoryScore, len(categories))
		for tag, cat := range categories {
			if cat.weightSum <= 0 {
				continue
			}
			score.CategoryScores[tag] = model.CategoryScore{
				Score: round2(cat.weightedSum / cat.weightSum),
				Count: cat.count,
			}
		}
	}

	return score, nil
}

// ComputeAndSave recomputes an agent's score and persists it, replacing
// any prior row. Saving clears the pushed markers: a recomputed score is
// unpublished until the oracle pipeline confirms it on-chain again.
func (a *Aggregator) ComputeAndSave(ctx context.Context, agentID string) (*model.ComputedScore, error) {
	score, err := a.ComputeScore(ctx, agentID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if score == nil {
		return nil, nil
	}
	if err := a.store.SaveScore(ctx, score); err != nil {
		return nil, fmt.Errorf("saving score for agent %s: %w", agentID, err)
	}
	if err := a.events.Publish(ctx, events.TopicScoreComputed, events.ScoreComputed{Score: score}); err != nil {
		a.logger.Warn("publishing score.computed event", "agent_id", agentID, "error", err)
	}
	return score, nil
}

// ComputeAllScores recomputes every agent that has non-revoked feedback.
// One agent's failure is logged and skipped so the rest of the batch
// still completes. Returns the number of scores saved.
func (a *Aggregator) ComputeAllScores(ctx context.Context) (int, error) {
	subjects, err := a.store.ListFeedbackSubjects(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing feedback subjects: %w", err)
	}

	computed := 0
	for _, agentID := range subjects {
		if err := ctx.Err(); err != nil {
			return computed, err
		}
		score, err := a.ComputeAndSave(ctx, agentID)
		if err != nil {
			a.logger.Error("computing score", "agent_id", agentID, "error", err)
			continue
		}
		if score != nil {
			computed++
		}
	}
	a.logger.Info("recomputed scores", "agents", len(subjects), "saved", computed)
	return computed, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/trustscore/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanAgent scans a single row into a model.Agent.
// The row must contain columns in the order defined by agentColumns.
func scanAgent(row scannable) (*model.Agent, error) {
	var a model.Agent
	var (
		metadataURI sql.NullString
		blockNumber int64
	)

	err := row.Scan(
		&a.ID,
		&a.Owner,
		&metadataURI,
		&blockNumber,
		&a.TxHash,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.MetadataURI = metadataURI.String
	a.BlockNumber = uint64(blockNumber)
	return &a, nil
}

// scanAgentWithTotal scans a row prefixed with a total_count column.
func scanAgentWithTotal(rows *sql.Rows) (*model.Agent, int, error) {
	var a model.Agent
	var (
		total       int
		metadataURI sql.NullString
		blockNumber int64
	)

	err := rows.Scan(
		&total,
		&a.ID,
		&a.Owner,
		&metadataURI,
		&blockNumber,
		&a.TxHash,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, 0, err
	}

	a.MetadataURI = metadataURI.String
	a.BlockNumber = uint64(blockNumber)
	return &a, total, nil
}

func scanFeedbackInto(f *model.Feedback, row scannable, total *int) error {
	var (
		tag1        sql.NullString
		tag2        sql.NullString
		tag3        sql.NullString
		comment     sql.NullString
		blockNumber int64
	)

	dest := []any{}
	if total != nil {
		dest = append(dest, total)
	}
	dest = append(dest,
		&f.ID,
		&f.Subject,
		&f.Author,
		&tag1,
		&tag2,
		&tag3,
		&f.Value,
		&f.ValueDecimals,
		&comment,
		&f.Revoked,
		&blockNumber,
		&f.TxHash,
		&f.Timestamp,
		&f.CreatedAt,
	)

	if err := row.Scan(dest...); err != nil {
		return err
	}

	f.Tag1 = tag1.String
	f.Tag2 = tag2.String
	f.Tag3 = tag3.String
	f.Comment = comment.String
	f.BlockNumber = uint64(blockNumber)
	return nil
}

func scanFeedback(row scannable) (*model.Feedback, error) {
	var f model.Feedback
	if err := scanFeedbackInto(&f, row, nil); err != nil {
		return nil, err
	}
	return &f, nil
}

func scanFeedbackWithTotal(rows *sql.Rows) (*model.Feedback, int, error) {
	var f model.Feedback
	var total int
	if err := scanFeedbackInto(&f, rows, &total); err != nil {
		return nil, 0, err
	}
	return &f, total, nil
}

func scanScoreInto(s *model.ComputedScore, row scannable, total *int) error {
	var (
		categories []byte
		pushedAt   sql.NullTime
	)

	dest := []any{}
	if total != nil {
		dest = append(dest, total)
	}
	dest = append(dest,
		&s.AgentID,
		&s.OverallScore,
		&s.FeedbackCount,
		&s.PositiveCount,
		&s.NegativeCount,
		&categories,
		&s.ComputedAt,
		&s.PushedToChain,
		&pushedAt,
	)

	if err := row.Scan(dest...); err != nil {
		return err
	}

	if len(categories) > 0 {
		if err := json.Unmarshal(categories, &s.CategoryScores); err != nil {
			return fmt.Errorf("decode category scores: %w", err)
		}
	}
	if pushedAt.Valid {
		t := pushedAt.Time
		s.PushedAt = &t
	}
	return nil
}

func scanScore(row scannable) (*model.ComputedScore, error) {
	var s model.ComputedScore
	if err := scanScoreInto(&s, row, nil); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanScoreRows(rows *sql.Rows) (*model.ComputedScore, error) {
	var s model.ComputedScore
	if err := scanScoreInto(&s, rows, nil); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanScoreWithTotal(rows *sql.Rows) (*model.ComputedScore, int, error) {
	var s model.ComputedScore
	var total int
	if err := scanScoreInto(&s, rows, &total); err != nil {
		return nil, 0, err
	}
	return &s, total, nil
}

// nullString converts an empty string to a NULL parameter.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// categoryScoresBytes serializes the category map for the JSONB column,
// returning nil (SQL NULL) for an empty map.
func categoryScoresBytes(m map[string]model.CategoryScore) []byte {
	if len(m) == 0 {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return b
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/trustscore/internal/model"
)

// agentColumns is the column list used for SELECT statements on the agents table.
const agentColumns = `id, owner, metadata_uri, block_number, tx_hash, created_at, updated_at`

// feedbackColumns is the column list used for SELECT statements on the feedback table.
const feedbackColumns = `id, subject, author, tag1, tag2, tag3, value, value_decimals,
	comment, revoked, block_number, tx_hash, timestamp, created_at`

// scoreColumns is the column list used for SELECT statements on the computed_scores table.
const scoreColumns = `agent_id, overall_score, feedback_count, positive_count, negative_count,
	category_scores, computed_at, pushed_to_chain, pushed_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryCreateAgent(ctx context.Context, db executor, a *model.Agent) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO agents (id, owner, metadata_uri, block_number, tx_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID,
		a.Owner,
		nullString(a.MetadataURI),
		int64(a.BlockNumber),
		a.TxHash,
		a.CreatedAt,
		a.UpdatedAt,
	)
	return err
}

func queryGetAgent(ctx context.Context, db executor, id string) (*model.Agent, error) {
	row := db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, id)
	return scanAgent(row)
}

func queryUpdateAgentMetadata(ctx context.Context, db executor, id, metadataURI string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE agents SET metadata_uri = $2, updated_at = NOW()
		WHERE id = $1`,
		id, nullString(metadataURI),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func queryListAgents(ctx context.Context, db executor, filter model.AgentFilter) ([]*model.Agent, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.Owner != "" {
		whereClauses = append(whereClauses, "owner = "+nextArg())
		args = append(args, filter.Owner)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	// Single query with COUNT(*) OVER() to get total and rows atomically.
	dataQuery := "SELECT COUNT(*) OVER() AS total_count, " + agentColumns +
		" FROM agents" + whereSQL + " ORDER BY block_number ASC, id ASC"

	if filter.Limit > 0 {
		dataQuery += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		dataQuery += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []*model.Agent
	var total int
	for rows.Next() {
		a, t, err := scanAgentWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan agents: %w", err)
		}
		total = t
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan agents: %w", err)
	}

	return agents, total, nil
}

func queryCreateFeedback(ctx context.Context, db executor, f *model.Feedback) error {
	// ON CONFLICT DO NOTHING keeps replayed ranges idempotent even if the
	// caller's existence check races a concurrent insert.
	_, err := db.ExecContext(ctx, `
		INSERT INTO feedback (
			id, subject, author, tag1, tag2, tag3, value, value_decimals,
			comment, revoked, block_number, tx_hash, timestamp, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14
		)
		ON CONFLICT (id) DO NOTHING`,
		f.ID,
		f.Subject,
		f.Author,
		nullString(f.Tag1),
		nullString(f.Tag2),
		nullString(f.Tag3),
		f.Value,
		f.ValueDecimals,
		nullString(f.Comment),
		f.Revoked,
		int64(f.BlockNumber),
		f.TxHash,
		f.Timestamp,
		f.CreatedAt,
	)
	return err
}

func queryGetFeedback(ctx context.Context, db executor, id string) (*model.Feedback, error) {
	row := db.QueryRowContext(ctx, `SELECT `+feedbackColumns+` FROM feedback WHERE id = $1`, id)
	return scanFeedback(row)
}

func queryRevokeFeedback(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `UPDATE feedback SET revoked = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func queryListFeedback(ctx context.Context, db executor, filter model.FeedbackFilter) ([]*model.Feedback, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.Subject != "" {
		whereClauses = append(whereClauses, "subject = "+nextArg())
		args = append(args, filter.Subject)
	}
	if filter.Author != "" {
		whereClauses = append(whereClauses, "author = "+nextArg())
		args = append(args, filter.Author)
	}
	if !filter.IncludeRevoked {
		whereClauses = append(whereClauses, "revoked = FALSE")
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	dataQuery := "SELECT COUNT(*) OVER() AS total_count, " + feedbackColumns +
		" FROM feedback" + whereSQL + " ORDER BY timestamp DESC, id ASC"

	if filter.Limit > 0 {
		dataQuery += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		dataQuery += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	var fbs []*model.Feedback
	var total int
	for rows.Next() {
		f, t, err := scanFeedbackWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan feedback: %w", err)
		}
		total = t
		fbs = append(fbs, f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan feedback: %w", err)
	}

	return fbs, total, nil
}

func queryListFeedbackSubjects(ctx context.Context, db executor) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT subject FROM feedback WHERE revoked = FALSE ORDER BY subject`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subjects []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}

func querySaveScore(ctx context.Context, db executor, s *model.ComputedScore) error {
	// Any recompute invalidates prior publication status, so the upsert
	// always clears the pushed markers.
	_, err := db.ExecContext(ctx, `
		INSERT INTO computed_scores (
			agent_id, overall_score, feedback_count, positive_count, negative_count,
			category_scores, computed_at, pushed_to_chain, pushed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, NULL)
		ON CONFLICT (agent_id) DO UPDATE SET
			overall_score = $2,
			feedback_count = $3,
			positive_count = $4,
			negative_count = $5,
			category_scores = $6,
			computed_at = $7,
			pushed_to_chain = FALSE,
			pushed_at = NULL`,
		s.AgentID,
		s.OverallScore,
		s.FeedbackCount,
		s.PositiveCount,
		s.NegativeCount,
		categoryScoresBytes(s.CategoryScores),
		s.ComputedAt,
	)
	return err
}

func queryGetScore(ctx context.Context, db executor, agentID string) (*model.ComputedScore, error) {
	row := db.QueryRowContext(ctx, `SELECT `+scoreColumns+` FROM computed_scores WHERE agent_id = $1`, agentID)
	return scanScore(row)
}

func queryListScores(ctx context.Context, db executor, limit, offset int) ([]*model.ComputedScore, int, error) {
	var (
		args   []any
		argIdx int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	dataQuery := "SELECT COUNT(*) OVER() AS total_count, " + scoreColumns +
		" FROM computed_scores ORDER BY overall_score DESC, agent_id ASC"
	if limit > 0 {
		dataQuery += " LIMIT " + nextArg()
		args = append(args, limit)
	}
	if offset > 0 {
		dataQuery += " OFFSET " + nextArg()
		args = append(args, offset)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list scores: %w", err)
	}
	defer rows.Close()

	var scores []*model.ComputedScore
	var total int
	for rows.Next() {
		s, t, err := scanScoreWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan scores: %w", err)
		}
		total = t
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan scores: %w", err)
	}

	return scores, total, nil
}

func queryListUnpushedScores(ctx context.Context, db executor, limit int) ([]*model.ComputedScore, error) {
	query := `SELECT ` + scoreColumns + ` FROM computed_scores
		WHERE pushed_to_chain = FALSE ORDER BY computed_at ASC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list unpushed scores: %w", err)
	}
	defer rows.Close()

	var scores []*model.ComputedScore
	for rows.Next() {
		s, err := scanScoreRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unpushed scores: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

func queryMarkScoresPushed(ctx context.Context, db executor, agentIDs []string, pushedAt time.Time) error {
	if len(agentIDs) == 0 {
		return nil
	}
	_, err := db.ExecContext(ctx, `
		UPDATE computed_scores
		SET pushed_to_chain = TRUE, pushed_at = $2
		WHERE agent_id = ANY($1)`,
		pq.Array(agentIDs), pushedAt,
	)
	return err
}

func queryGetCheckpoint(ctx context.Context, db executor, key string) (uint64, bool, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM indexer_state WHERE key = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	block, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse checkpoint %q: %w", value, err)
	}
	return block, true, nil
}

func querySetCheckpoint(ctx context.Context, db executor, key string, block uint64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO indexer_state (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = NOW()`,
		key, strconv.FormatUint(block, 10),
	)
	return err
}

func queryGetStats(ctx context.Context, db executor) (*model.Stats, error) {
	stats := &model.Stats{}
	err := db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM agents),
			(SELECT COUNT(*) FROM feedback WHERE revoked = FALSE),
			(SELECT COUNT(DISTINCT subject) FROM feedback WHERE revoked = FALSE)`).Scan(
		&stats.TotalAgents,
		&stats.TotalFeedback,
		&stats.AgentsWithFeedback,
	)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return stats, nil
}

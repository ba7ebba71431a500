// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/trustscore/internal/model"
	"github.com/alfredjeanlab/trustscore/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateAgent(ctx context.Context, agent *model.Agent) error {
	return queryCreateAgent(ctx, s.db, agent)
}

func (s *PostgresStore) GetAgent(ctx context.Context, id string) (*model.Agent, error) {
	return queryGetAgent(ctx, s.db, id)
}

func (s *PostgresStore) UpdateAgentMetadata(ctx context.Context, id, metadataURI string) error {
	return queryUpdateAgentMetadata(ctx, s.db, id, metadataURI)
}

func (s *PostgresStore) ListAgents(ctx context.Context, filter model.AgentFilter) ([]*model.Agent, int, error) {
	return queryListAgents(ctx, s.db, filter)
}

func (s *PostgresStore) CreateFeedback(ctx context.Context, fb *model.Feedback) error {
	return queryCreateFeedback(ctx, s.db, fb)
}

func (s *PostgresStore) GetFeedback(ctx context.Context, id string) (*model.Feedback, error) {
	return queryGetFeedback(ctx, s.db, id)
}

func (s *PostgresStore) RevokeFeedback(ctx context.Context, id string) error {
	return queryRevokeFeedback(ctx, s.db, id)
}

func (s *PostgresStore) ListFeedback(ctx context.Context, filter model.FeedbackFilter) ([]*model.Feedback, int, error) {
	return queryListFeedback(ctx, s.db, filter)
}

func (s *PostgresStore) ListFeedbackSubjects(ctx context.Context) ([]string, error) {
	return queryListFeedbackSubjects(ctx, s.db)
}

func (s *PostgresStore) SaveScore(ctx context.Context, score *model.ComputedScore) error {
	return querySaveScore(ctx, s.db, score)
}

func (s *PostgresStore) GetScore(ctx context.Context, agentID string) (*model.ComputedScore, error) {
	return queryGetScore(ctx, s.db, agentID)
}

func (s *PostgresStore) ListScores(ctx context.Context, limit, offset int) ([]*model.ComputedScore, int, error) {
	return queryListScores(ctx, s.db, limit, offset)
}

func (s *PostgresStore) ListUnpushedScores(ctx context.Context, limit int) ([]*model.ComputedScore, error) {
	return queryListUnpushedScores(ctx, s.db, limit)
}

func (s *PostgresStore) MarkScoresPushed(ctx context.Context, agentIDs []string, pushedAt time.Time) error {
	return queryMarkScoresPushed(ctx, s.db, agentIDs, pushedAt)
}

func (s *PostgresStore) GetCheckpoint(ctx context.Context, key string) (uint64, bool, error) {
	return queryGetCheckpoint(ctx, s.db, key)
}

func (s *PostgresStore) SetCheckpoint(ctx context.Context, key string, block uint64) error {
	return querySetCheckpoint(ctx, s.db, key, block)
}

func (s *PostgresStore) GetStats(ctx context.Context) (*model.Stats, error) {
	return queryGetStats(ctx, s.db)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateAgent(ctx context.Context, agent *model.Agent) error {
	return queryCreateAgent(ctx, s.tx, agent)
}

func (s *txStore) GetAgent(ctx context.Context, id string) (*model.Agent, error) {
	return queryGetAgent(ctx, s.tx, id)
}

func (s *txStore) UpdateAgentMetadata(ctx context.Context, id, metadataURI string) error {
	return queryUpdateAgentMetadata(ctx, s.tx, id, metadataURI)
}

func (s *txStore) ListAgents(ctx context.Context, filter model.AgentFilter) ([]*model.Agent, int, error) {
	return queryListAgents(ctx, s.tx, filter)
}

func (s *txStore) CreateFeedback(ctx context.Context, fb *model.Feedback) error {
	return queryCreateFeedback(ctx, s.tx, fb)
}

func (s *txStore) GetFeedback(ctx context.Context, id string) (*model.Feedback, error) {
	return queryGetFeedback(ctx, s.tx, id)
}

func (s *txStore) RevokeFeedback(ctx context.Context, id string) error {
	return queryRevokeFeedback(ctx, s.tx, id)
}

func (s *txStore) ListFeedback(ctx context.Context, filter model.FeedbackFilter) ([]*model.Feedback, int, error) {
	return queryListFeedback(ctx, s.tx, filter)
}

func (s *txStore) ListFeedbackSubjects(ctx context.Context) ([]string, error) {
	return queryListFeedbackSubjects(ctx, s.tx)
}

func (s *txStore) SaveScore(ctx context.Context, score *model.ComputedScore) error {
	return querySaveScore(ctx, s.tx, score)
}

func (s *txStore) GetScore(ctx context.Context, agentID string) (*model.ComputedScore, error) {
	return queryGetScore(ctx, s.tx, agentID)
}

func (s *txStore) ListScores(ctx context.Context, limit, offset int) ([]*model.ComputedScore, int, error) {
	return queryListScores(ctx, s.tx, limit, offset)
}

func (s *txStore) ListUnpushedScores(ctx context.Context, limit int) ([]*model.ComputedScore, error) {
	return queryListUnpushedScores(ctx, s.tx, limit)
}

func (s *txStore) MarkScoresPushed(ctx context.Context, agentIDs []string, pushedAt time.Time) error {
	return queryMarkScoresPushed(ctx, s.tx, agentIDs, pushedAt)
}

func (s *txStore) GetCheckpoint(ctx context.Context, key string) (uint64, bool, error) {
	return queryGetCheckpoint(ctx, s.tx, key)
}

func (s *txStore) SetCheckpoint(ctx context.Context, key string, block uint64) error {
	return querySetCheckpoint(ctx, s.tx, key, block)
}

func (s *txStore) GetStats(ctx context.Context) (*model.Stats, error) {
	return queryGetStats(ctx, s.tx)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}

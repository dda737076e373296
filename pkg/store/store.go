// Package store records ensemble builds in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/YuminosukeSato/numclass/classifier"
	"github.com/YuminosukeSato/numclass/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS training_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    kind VARCHAR(50) NOT NULL,
    cv_score REAL NOT NULL,
    fold_scores TEXT NOT NULL,
    selected INTEGER NOT NULL,
    test_accuracy REAL,
    n_train INTEGER NOT NULL,
    n_test INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_training_runs_run_id ON training_runs(run_id);
`

// Run is one kind's result in a recorded build.
type Run struct {
	ID           int64     `json:"id"`
	RunID        string    `json:"run_id"`
	Kind         string    `json:"kind"`
	CVScore      float64   `json:"cv_score"`
	FoldScores   []float64 `json:"fold_scores"`
	Selected     bool      `json:"selected"`
	TestAccuracy *float64  `json:"test_accuracy,omitempty"`
	NTrain       int       `json:"n_train"`
	NTest        int       `json:"n_test"`
	DurationMs   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store is a handle on the training log database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create schema")
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Record inserts one row per evaluation in a single transaction.
func (s *Store) Record(ctx context.Context, runID string, evals []classifier.Evaluation, nTrain, nTest int) error {
	if len(evals) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO training_runs (
            run_id, kind, cv_score, fold_scores, selected, test_accuracy,
            n_train, n_test, duration_ms, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to prepare insert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, ev := range evals {
		folds, err := json.Marshal(ev.FoldScores)
		if err != nil {
			tx.Rollback()
			return errors.Wrap(err, "failed to encode fold scores")
		}
		var testAcc sql.NullFloat64
		if ev.TestEvaluated {
			testAcc = sql.NullFloat64{Float64: ev.TestAccuracy, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, runID, string(ev.Kind), ev.Score, string(folds), ev.Selected,
			testAcc, nTrain, nTest, ev.Duration.Milliseconds(), now); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "failed to record %s", ev.Kind)
		}
	}
	return errors.Wrap(tx.Commit(), "failed to commit")
}

// Recent returns up to limit rows, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		return nil, errors.NewValidationError("limit", "must be positive", limit)
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT id, run_id, kind, cv_score, fold_scores, selected, test_accuracy,
               n_train, n_test, duration_ms, created_at
        FROM training_runs
        ORDER BY id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query training runs")
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var r Run
		var folds string
		var testAcc sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.RunID, &r.Kind, &r.CVScore, &folds, &r.Selected, &testAcc,
			&r.NTrain, &r.NTest, &r.DurationMs, &r.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan training run")
		}
		if err := json.Unmarshal([]byte(folds), &r.FoldScores); err != nil {
			return nil, errors.Wrap(err, "failed to decode fold scores")
		}
		if testAcc.Valid {
			acc := testAcc.Float64
			r.TestAccuracy = &acc
		}
		runs = append(runs, r)
	}
	return runs, errors.Wrap(rows.Err(), "failed to read training runs")
}

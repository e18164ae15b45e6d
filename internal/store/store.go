// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists completed research runs. One row per run, written
// once after the pipeline's complete event; the pipeline itself never reads
// it back.
// Implements: prd017-history (R1-R3); docs/ARCHITECTURE § Run History.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/deep-research/pkg/types"
)

const dbFile = "history.db"

// Store manages the run-history SQLite database.
type Store struct {
	db         *sql.DB
	dir        string
	maxResults int
}

// RunSummary is one row of a history listing.
type RunSummary struct {
	RunID     string    `json:"run_id"`
	Question  string    `json:"question"`
	Depth     string    `json:"depth"`
	Kept      int       `json:"kept"`
	CostUSD   float64   `json:"cost_usd"`
	CreatedAt time.Time `json:"created_at"`
}

// NewStore opens or creates the history database at dir/history.db,
// creating the schema if needed.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{db: db, dir: cfg.Dir, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		depth TEXT,
		report TEXT,
		result TEXT NOT NULL,
		kept INTEGER,
		cost_usd REAL,
		created_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("executing schema statement: %w", err)
	}
	return nil
}

// SaveRun writes one completed run. The full RunResult is stored as JSON
// alongside the columns used for listing.
func (s *Store) SaveRun(ctx context.Context, result *types.RunResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling run: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (id, question, depth, report, result, kept, cost_usd, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, result.Question, string(result.Depth), result.Report,
		string(payload), result.Metadata.KeptSources, result.Cost.TotalUSD,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", result.RunID, err)
	}
	return nil
}

// List returns the most recent runs, newest first. A limit of zero uses the
// store default.
func (s *Store) List(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = s.maxResults
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question, depth, kept, cost_usd, created_at
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var created string
		if err := rows.Scan(&r.RunID, &r.Question, &r.Depth, &r.Kept, &r.CostUSD, &created); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get fetches one run by id.
func (s *Store) Get(ctx context.Context, runID string) (*types.RunResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT result FROM runs WHERE id = ?`, runID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run %s: %w", runID, err)
	}

	var result types.RunResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("decoding run %s: %w", runID, err)
	}
	return &result, nil
}

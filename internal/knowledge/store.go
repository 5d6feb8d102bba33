// Package knowledge provides the persistent long-term learning store:
// per-category prediction records and task outcome counts.
package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Camier/2SEARX2COOL-sub001/internal/prediction"
)

// Outcome counts how tasks of one category ended.
type Outcome struct {
	Category  string
	Completed int
	Failed    int
	UpdatedAt time.Time
}

// SuccessRate returns completed / (completed + failed), or 0 without data.
func (o Outcome) SuccessRate() float64 {
	total := o.Completed + o.Failed
	if total == 0 {
		return 0
	}
	return float64(o.Completed) / float64(total)
}

// Store is a SQLite-backed knowledge store.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

var _ prediction.LearningStore = (*Store)(nil)

// ProjectPath returns the default knowledge database path for a project.
func ProjectPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".autopilot", "knowledge.db")
}

// Open opens (creating if needed) the knowledge database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create knowledge directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS category_stats (
			category TEXT PRIMARY KEY,
			task_count INT NOT NULL,
			avg_difficulty REAL NOT NULL,
			updated_at DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS category_outcomes (
			category TEXT PRIMARY KEY,
			completed INT NOT NULL DEFAULT 0,
			failed INT NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// LoadCategories returns every stored category record.
func (s *Store) LoadCategories(ctx context.Context) (map[string]prediction.CategoryStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category, task_count, avg_difficulty FROM category_stats`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	out := make(map[string]prediction.CategoryStats)
	for rows.Next() {
		var category string
		var stats prediction.CategoryStats
		if err := rows.Scan(&category, &stats.Count, &stats.AvgDifficulty); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out[category] = stats
	}
	return out, rows.Err()
}

// SaveCategory upserts one category record.
func (s *Store) SaveCategory(ctx context.Context, category string, stats prediction.CategoryStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO category_stats (category, task_count, avg_difficulty, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(category) DO UPDATE SET
			task_count = excluded.task_count,
			avg_difficulty = excluded.avg_difficulty,
			updated_at = excluded.updated_at
	`, category, stats.Count, stats.AvgDifficulty, time.Now())
	if err != nil {
		return fmt.Errorf("save category %q: %w", category, err)
	}
	return nil
}

// RecordOutcome counts one finished task of the given category.
func (s *Store) RecordOutcome(ctx context.Context, category string, success bool) error {
	completed, failed := 0, 1
	if success {
		completed, failed = 1, 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO category_outcomes (category, completed, failed, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(category) DO UPDATE SET
			completed = completed + excluded.completed,
			failed = failed + excluded.failed,
			updated_at = excluded.updated_at
	`, category, completed, failed, time.Now())
	if err != nil {
		return fmt.Errorf("record outcome for %q: %w", category, err)
	}
	return nil
}

// Outcomes returns the outcome counts of every category, sorted by name.
func (s *Store) Outcomes(ctx context.Context) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category, completed, failed, updated_at FROM category_outcomes`)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var o Outcome
		if err := rows.Scan(&o.Category, &o.Completed, &o.Failed, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

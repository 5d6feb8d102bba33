// Package prediction implements look-ahead risk and impact analysis of
// tasks, with a TTL cache and a per-category learning record.
package prediction

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// DefaultLookAheadWindow is used when no window is configured.
const DefaultLookAheadWindow = 5 * time.Minute

// CategoryStats is the learning record of one task category.
type CategoryStats struct {
	Count         int     `json:"count"`
	AvgDifficulty float64 `json:"avg_difficulty"`
}

// observe folds one more task difficulty into the record.
func (s CategoryStats) observe(difficulty int) CategoryStats {
	s.Count++
	s.AvgDifficulty += (float64(difficulty) - s.AvgDifficulty) / float64(s.Count)
	return s
}

// LearningStore persists category records across runs.
type LearningStore interface {
	LoadCategories(ctx context.Context) (map[string]CategoryStats, error)
	SaveCategory(ctx context.Context, category string, stats CategoryStats) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLookAheadWindow sets the window; cached predictions live for twice as long.
func WithLookAheadWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.window = d
		}
	}
}

// WithLearningStore persists the learning record.
func WithLearningStore(s LearningStore) Option {
	return func(e *Engine) { e.store = s }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithCacheSize sets the maximum number of cached predictions.
func WithCacheSize(n int64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.cacheSize = n
		}
	}
}

// Engine analyzes tasks before execution. Safe for concurrent use.
type Engine struct {
	window    time.Duration
	cacheSize int64
	cache     *ristretto.Cache[string, models.PredictionResult]
	store     LearningStore
	now       func() time.Time

	mu       sync.Mutex
	learning map[string]CategoryStats
	hits     int
	misses   int
}

// NewEngine creates an engine and loads the learning record from the
// store, if one is configured.
func NewEngine(ctx context.Context, opts ...Option) (*Engine, error) {
	e := &Engine{
		window:    DefaultLookAheadWindow,
		cacheSize: 1024,
		now:       time.Now,
		learning:  make(map[string]CategoryStats),
	}
	for _, opt := range opts {
		opt(e)
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, models.PredictionResult]{
		NumCounters: e.cacheSize * 10,
		MaxCost:     e.cacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create prediction cache: %w", err)
	}
	e.cache = cache

	if e.store != nil {
		loaded, err := e.store.LoadCategories(ctx)
		if err != nil {
			cache.Close()
			return nil, fmt.Errorf("load learning record: %w", err)
		}
		for k, v := range loaded {
			e.learning[k] = v
		}
	}
	return e, nil
}

// TTL returns how long a prediction stays valid.
func (e *Engine) TTL() time.Duration {
	return 2 * e.window
}

// AnalyzeTask returns the prediction for task, from cache when a result
// younger than the TTL exists.
func (e *Engine) AnalyzeTask(task *models.Task) models.PredictionResult {
	now := e.now()
	if cached, ok := e.cache.Get(task.ID); ok && now.Sub(cached.ComputedAt) < e.TTL() {
		e.mu.Lock()
		e.hits++
		e.mu.Unlock()
		return cached
	}

	category := task.Metadata.Category
	e.mu.Lock()
	e.misses++
	prior, learned := e.learning[category]
	learned = learned && prior.Count > 0
	updated := prior.observe(models.ClampDifficulty(task.Metadata.Difficulty))
	e.learning[category] = updated
	e.mu.Unlock()

	profile, _ := profileFor(category)
	risk := assessRisk(task, profile)
	issues := potentialIssues(task, profile)
	if learned && float64(task.Metadata.Difficulty) > prior.AvgDifficulty+3 {
		issues = append(issues, fmt.Sprintf("harder than usual for %q tasks (average difficulty %.1f)", category, prior.AvgDifficulty))
	}

	result := models.PredictionResult{
		TaskID:            task.ID,
		PotentialIssues:   issues,
		SuggestedApproach: suggestApproach(task, profile),
		Risk:              risk,
		Impact:            estimateImpact(task, profile),
		Confidence:        confidence(task, learned, risk.Level),
		ComputedAt:        now,
	}

	e.cache.SetWithTTL(task.ID, result, 1, e.TTL())
	e.cache.Wait()

	if e.store != nil {
		if err := e.store.SaveCategory(context.Background(), category, updated); err != nil {
			log.Printf("[prediction] failed to persist learning for %q: %v", category, err)
		}
	}
	return result
}

// Invalidate drops the cached prediction for a task.
func (e *Engine) Invalidate(taskID string) {
	e.cache.Del(taskID)
}

// Learning returns the learning record of a category.
func (e *Engine) Learning(category string) (CategoryStats, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.learning[category]
	return s, ok
}

// Categories returns the categories with learned data, sorted.
func (e *Engine) Categories() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.learning))
	for k := range e.learning {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// CacheStats returns the number of cache hits and misses so far.
func (e *Engine) CacheStats() (hits, misses int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hits, e.misses
}

// Close releases the cache.
func (e *Engine) Close() {
	e.cache.Close()
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"wiki-quiz/internal/cache"
	"wiki-quiz/internal/config"
	"wiki-quiz/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	historyAllIdentifier        = "all"
	historyGenerationIdentifier = "generation"
)

// CachedQuizRepository is a read-through cache in front of a
// domain.QuizRepository. Records are immutable, so a cached record never goes
// stale. History keys carry a generation that every insert bumps; a list
// loaded before an insert is written under a retired key and never served
// after it. Cache failures fall back to the wrapped repository.
type CachedQuizRepository struct {
	next       domain.QuizRepository
	cache      domain.Cache
	recordTTL  time.Duration
	historyTTL time.Duration
	group      singleflight.Group
	logger     *zap.Logger
}

// NewCachedQuizRepository wraps next with cache.
func NewCachedQuizRepository(next domain.QuizRepository, c domain.Cache, cfg config.CacheConfig, logger *zap.Logger) *CachedQuizRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedQuizRepository{
		next:       next,
		cache:      c,
		recordTTL:  cfg.RecordTTL,
		historyTTL: cfg.HistoryTTL,
		logger:     logger,
	}
}

func recordKey(id int64) string {
	return cache.GenerateCacheKey(cache.ServiceQuiz, cache.ObjectRecord, strconv.FormatInt(id, 10))
}

func historyGenerationKey() string {
	return cache.GenerateCacheKey(cache.ServiceQuiz, cache.ObjectHistory, historyGenerationIdentifier)
}

func historyKey(generation int64, url string) string {
	gen := strconv.FormatInt(generation, 10)
	if url == "" {
		return cache.GenerateCacheKey(cache.ServiceQuiz, cache.ObjectHistory, historyAllIdentifier, gen)
	}
	return cache.GenerateCacheKey(cache.ServiceQuiz, cache.ObjectHistory, "url", gen, url)
}

// Create inserts through to the wrapped repository and retires every cached
// history list.
func (r *CachedQuizRepository) Create(ctx context.Context, record *domain.QuizRecord) error {
	if err := r.next.Create(ctx, record); err != nil {
		return err
	}
	if _, err := r.cache.Incr(ctx, historyGenerationKey()); err != nil {
		r.logger.Warn("Failed to invalidate quiz history cache",
			zap.Int64("id", record.ID),
			zap.Error(err))
	}
	return nil
}

// GetByID serves from cache, collapsing concurrent misses for the same id.
func (r *CachedQuizRepository) GetByID(ctx context.Context, id int64) (*domain.QuizRecord, error) {
	key := recordKey(id)

	var cached domain.QuizRecord
	if r.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		// The load is shared by the whole flight and ignores caller cancellation.
		loadCtx := context.WithoutCancel(ctx)
		record, err := r.next.GetByID(loadCtx, id)
		if err != nil || record == nil {
			return record, err
		}
		r.store(loadCtx, key, record, r.recordTTL)
		return record, nil
	})
	if err != nil {
		return nil, err
	}
	record, _ := v.(*domain.QuizRecord)
	if record == nil {
		return nil, nil
	}
	// Callers of a shared flight must not alias one record.
	copied := *record
	return &copied, nil
}

// ListHistory serves the full history from cache.
func (r *CachedQuizRepository) ListHistory(ctx context.Context) ([]*domain.QuizRecord, error) {
	return r.history(ctx, "", func() ([]*domain.QuizRecord, error) {
		return r.next.ListHistory(ctx)
	})
}

// FindByURL serves per-url history from cache.
func (r *CachedQuizRepository) FindByURL(ctx context.Context, url string) ([]*domain.QuizRecord, error) {
	return r.history(ctx, url, func() ([]*domain.QuizRecord, error) {
		return r.next.FindByURL(ctx, url)
	})
}

func (r *CachedQuizRepository) history(ctx context.Context, url string, load func() ([]*domain.QuizRecord, error)) ([]*domain.QuizRecord, error) {
	// The generation is read before loading so a concurrent insert retires
	// whatever this load writes.
	generation, ok := r.historyGeneration(ctx)
	if !ok {
		return load()
	}
	key := historyKey(generation, url)

	var cached []*domain.QuizRecord
	if r.lookup(ctx, key, &cached) {
		return cached, nil
	}

	records, err := load()
	if err != nil {
		return nil, err
	}
	r.store(ctx, key, records, r.historyTTL)
	return records, nil
}

// historyGeneration reads the current history generation. ok is false when
// it cannot be read, in which case history bypasses the cache.
func (r *CachedQuizRepository) historyGeneration(ctx context.Context) (int64, bool) {
	raw, err := r.cache.Get(ctx, historyGenerationKey())
	if errors.Is(err, domain.ErrCacheMiss) {
		return 0, true
	}
	if err != nil {
		r.logger.Warn("Quiz cache read failed", zap.String("key", historyGenerationKey()), zap.Error(err))
		return 0, false
	}
	generation, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		r.logger.Warn("Discarding undecodable quiz history generation", zap.String("value", raw), zap.Error(err))
		return 0, false
	}
	return generation, true
}

// lookup decodes the cached value at key into dest and reports a hit.
func (r *CachedQuizRepository) lookup(ctx context.Context, key string, dest interface{}) bool {
	raw, err := r.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			r.logger.Warn("Quiz cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		r.logger.Warn("Discarding undecodable quiz cache entry", zap.String("key", key), zap.Error(err))
		_ = r.cache.Delete(ctx, key)
		return false
	}
	return true
}

func (r *CachedQuizRepository) store(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		r.logger.Warn("Failed to encode quiz cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := r.cache.Set(ctx, key, string(data), ttl); err != nil {
		r.logger.Warn("Quiz cache write failed", zap.String("key", key), zap.Error(err))
	}
}

var _ domain.QuizRepository = (*CachedQuizRepository)(nil)

package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"amc-booking/internal/models"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AttemptWindow is a fixed window of attempts for one key.
type AttemptWindow struct {
	Count        int
	FirstAttempt time.Time
}

// advance applies one attempt to w and reports whether it is allowed. The
// first attempt opens the window; once the window has elapsed it is reset
// lazily; at max attempts further attempts are refused without counting.
func advance(w *AttemptWindow, exists bool, now time.Time, window time.Duration, max int) bool {
	if !exists || now.Sub(w.FirstAttempt) > window {
		*w = AttemptWindow{Count: 1, FirstAttempt: now}
		return true
	}
	if w.Count >= max {
		return false
	}
	w.Count++
	return true
}

// AttemptStore persists attempt windows. The in-memory store suits a single
// node; a multi-node deployment needs the shared database store.
type AttemptStore interface {
	Allow(ctx context.Context, key string, now time.Time, window time.Duration, max int) (bool, error)
}

// MemoryAttemptStore keeps windows in a bounded LRU whose entries expire
// with the window.
type MemoryAttemptStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, AttemptWindow]
}

func NewMemoryAttemptStore(size int, window time.Duration) *MemoryAttemptStore {
	if size <= 0 {
		size = 10000
	}
	return &MemoryAttemptStore{
		cache: expirable.NewLRU[string, AttemptWindow](size, nil, window*2),
	}
}

func (s *MemoryAttemptStore) Allow(_ context.Context, key string, now time.Time, window time.Duration, max int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.cache.Get(key)
	allowed := advance(&w, ok, now, window, max)
	s.cache.Add(key, w)
	return allowed, nil
}

// DBAttemptStore keeps windows in the rate_limit_counters table so every
// process sharing the database sees the same counts.
type DBAttemptStore struct {
	db *gorm.DB
}

func NewDBAttemptStore(db *gorm.DB) *DBAttemptStore {
	return &DBAttemptStore{db: db}
}

func (s *DBAttemptStore) Allow(ctx context.Context, key string, now time.Time, window time.Duration, max int) (bool, error) {
	var allowed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.RateLimitCounter
		q := tx
		if tx.Dialector.Name() != "sqlite" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		err := q.Where(&models.RateLimitCounter{Key: key}).First(&row).Error
		exists := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		w := AttemptWindow{Count: row.Count, FirstAttempt: row.FirstAttempt}
		allowed = advance(&w, exists, now, window, max)

		return tx.Save(&models.RateLimitCounter{
			Key:          key,
			Count:        w.Count,
			FirstAttempt: w.FirstAttempt,
		}).Error
	})
	return allowed, err
}

// RateLimiter limits attempts per (action, source IP).
type RateLimiter struct {
	store  AttemptStore
	max    int
	window time.Duration
}

func NewRateLimiter(store AttemptStore, max int, window time.Duration) *RateLimiter {
	return &RateLimiter{store: store, max: max, window: window}
}

func (r *RateLimiter) Allow(ctx context.Context, action, ip string, now time.Time) (bool, error) {
	return r.store.Allow(ctx, "rate_"+action+"_"+ip, now, r.window, r.max)
}

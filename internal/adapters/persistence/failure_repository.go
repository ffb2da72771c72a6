package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/cosminstn/disruptor-mediator/internal/application/mediator"
)

// FailureFilter narrows ListRecent results. Zero fields match everything.
type FailureFilter struct {
	Handler     string
	MessageType string
	Since       *time.Time
	Limit       int
}

// FailureRecord is one journal row
type FailureRecord struct {
	ID          string
	MediatorID  string
	Kind        string
	MessageType string
	Handler     string
	Group       int
	Error       string
	Panicked    bool
	Occurrences int
	OccurredAt  time.Time
	LastSeenAt  time.Time
}

// GormFailureRepository journals handler failures. It implements
// mediator.FailureSink.
//
// Identical failures (same handler, message type and error) repeating within
// the dedup window bump the occurrence count of the first row instead of
// inserting a new one.
type GormFailureRepository struct {
	db  *gorm.DB
	now func() time.Time

	dedupMu      sync.Mutex
	dedupCache   map[string]dedupEntry
	dedupWindow  time.Duration
	dedupMaxSize int
}

type dedupEntry struct {
	id       string
	lastSeen time.Time
}

// NewGormFailureRepository creates a new failure repository.
// If now is nil, time.Now is used.
func NewGormFailureRepository(db *gorm.DB, now func() time.Time) *GormFailureRepository {
	if now == nil {
		now = time.Now
	}
	return &GormFailureRepository{
		db:           db,
		now:          now,
		dedupCache:   make(map[string]dedupEntry),
		dedupWindow:  60 * time.Second,
		dedupMaxSize: 10000,
	}
}

// WithDedupWindow changes the dedup window. Zero or less disables folding.
func (r *GormFailureRepository) WithDedupWindow(window time.Duration) *GormFailureRepository {
	r.dedupMu.Lock()
	defer r.dedupMu.Unlock()
	r.dedupWindow = window
	return r
}

// RecordFailure implements mediator.FailureSink
func (r *GormFailureRepository) RecordFailure(ctx context.Context, f mediator.Failure) error {
	now := r.now()
	key := f.Handler + "|" + f.MessageType + "|" + f.Error

	r.dedupMu.Lock()
	entry, seen := r.dedupCache[key]
	if seen && now.Sub(entry.lastSeen) < r.dedupWindow {
		r.dedupCache[key] = dedupEntry{id: entry.id, lastSeen: now}
		r.dedupMu.Unlock()

		result := r.db.WithContext(ctx).Model(&HandlerFailureModel{}).
			Where("id = ?", entry.id).
			Updates(map[string]interface{}{
				"occurrences":  gorm.Expr("occurrences + 1"),
				"last_seen_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update failure %s: %w", entry.id, result.Error)
		}
		if result.RowsAffected > 0 {
			return nil
		}
		// row purged or never written, record this one fresh
		r.dedupMu.Lock()
	}
	if len(r.dedupCache) >= r.dedupMaxSize {
		r.evictLocked(now)
	}
	r.dedupCache[key] = dedupEntry{id: f.ID, lastSeen: now}
	r.dedupMu.Unlock()

	occurredAt := f.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}
	model := &HandlerFailureModel{
		ID:          f.ID,
		MediatorID:  f.MediatorID,
		Kind:        f.Kind.String(),
		MessageType: f.MessageType,
		Handler:     f.Handler,
		GroupID:     f.Group,
		Error:       f.Error,
		Panicked:    f.Panicked,
		Occurrences: 1,
		OccurredAt:  occurredAt,
		LastSeenAt:  now,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		r.forget(key, f.ID)
		return fmt.Errorf("failed to record failure: %w", err)
	}
	return nil
}

// forget drops the dedup entry for key if it still points at id
func (r *GormFailureRepository) forget(key, id string) {
	r.dedupMu.Lock()
	defer r.dedupMu.Unlock()
	if entry, ok := r.dedupCache[key]; ok && entry.id == id {
		delete(r.dedupCache, key)
	}
}

// ListRecent returns failures newest first
func (r *GormFailureRepository) ListRecent(ctx context.Context, filter FailureFilter) ([]FailureRecord, error) {
	query := r.db.WithContext(ctx).Model(&HandlerFailureModel{})
	if filter.Handler != "" {
		query = query.Where("handler = ?", filter.Handler)
	}
	if filter.MessageType != "" {
		query = query.Where("message_type = ?", filter.MessageType)
	}
	if filter.Since != nil {
		query = query.Where("last_seen_at >= ?", *filter.Since)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var models []HandlerFailureModel
	if err := query.Order("last_seen_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list failures: %w", err)
	}

	records := make([]FailureRecord, 0, len(models))
	for _, m := range models {
		records = append(records, FailureRecord{
			ID:          m.ID,
			MediatorID:  m.MediatorID,
			Kind:        m.Kind,
			MessageType: m.MessageType,
			Handler:     m.Handler,
			Group:       m.GroupID,
			Error:       m.Error,
			Panicked:    m.Panicked,
			Occurrences: m.Occurrences,
			OccurredAt:  m.OccurredAt,
			LastSeenAt:  m.LastSeenAt,
		})
	}
	return records, nil
}

// Purge deletes failures last seen before cutoff and returns how many went
func (r *GormFailureRepository) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("last_seen_at < ?", cutoff).Delete(&HandlerFailureModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge failures: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// evictLocked drops entries outside the dedup window
func (r *GormFailureRepository) evictLocked(now time.Time) {
	for key, entry := range r.dedupCache {
		if now.Sub(entry.lastSeen) >= r.dedupWindow {
			delete(r.dedupCache, key)
		}
	}
}

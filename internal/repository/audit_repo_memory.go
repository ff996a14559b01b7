package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"observe/dashboard/internal/model"
)

type memoryAuditRepository struct {
	mu      sync.RWMutex
	entries []model.AuditEntry
}

func NewMemoryAuditRepository() AuditRepository {
	return &memoryAuditRepository{}
}

func (r *memoryAuditRepository) Create(_ context.Context, entry *model.AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memoryAuditRepository) List(_ context.Context, filter AuditFilter) ([]model.AuditEntry, int64, error) {
	r.mu.RLock()
	matched := make([]model.AuditEntry, 0, len(r.entries))
	for _, e := range r.entries {
		if filter.ActorID != "" && e.ActorID != filter.ActorID {
			continue
		}
		if filter.Entity != "" && e.Entity != filter.Entity {
			continue
		}
		matched = append(matched, e)
	}
	r.mu.RUnlock()

	// Newest first; insertion order breaks ties.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if filter.Offset >= len(matched) {
		return []model.AuditEntry{}, total, nil
	}
	end := filter.Offset + filter.limit()
	if end > len(matched) {
		end = len(matched)
	}
	return matched[filter.Offset:end], total, nil
}

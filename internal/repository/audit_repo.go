package repository

import (
	"context"

	"observe/dashboard/internal/model"
)

// AuditFilter narrows an audit listing. Zero values match everything.
type AuditFilter struct {
	ActorID string
	Entity  string
	Limit   int
	Offset  int
}

const defaultAuditLimit = 50

func (f AuditFilter) limit() int {
	if f.Limit <= 0 {
		return defaultAuditLimit
	}
	return f.Limit
}

type AuditRepository interface {
	Create(ctx context.Context, entry *model.AuditEntry) error
	// List returns matching entries newest first and the total match count.
	List(ctx context.Context, filter AuditFilter) ([]model.AuditEntry, int64, error)
}

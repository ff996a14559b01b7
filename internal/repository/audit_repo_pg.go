package repository

import (
	"context"

	"gorm.io/gorm"

	"observe/dashboard/internal/model"
)

type pgAuditRepository struct {
	db *gorm.DB
}

func NewPGAuditRepository(db *gorm.DB) AuditRepository {
	return &pgAuditRepository{db: db}
}

func (r *pgAuditRepository) Create(ctx context.Context, entry *model.AuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *pgAuditRepository) List(ctx context.Context, filter AuditFilter) ([]model.AuditEntry, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.AuditEntry{})
	if filter.ActorID != "" {
		q = q.Where("actor_id = ?", filter.ActorID)
	}
	if filter.Entity != "" {
		q = q.Where("entity = ?", filter.Entity)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []model.AuditEntry
	if err := q.Order("created_at DESC").
		Limit(filter.limit()).
		Offset(filter.Offset).
		Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

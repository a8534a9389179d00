package audit

import (
	"context"

	"github.com/triarqhealth/iam-portal/model"
	"gorm.io/gorm"
)

// Filter narrows an audit listing. Zero values match everything; filtering is
// a convenience for the admin view, not part of the commit path.
type Filter struct {
	ActorID    uint
	ActionType string
	Success    *bool
	Limit      int
}

type AuditRepository interface {
	Record(ctx context.Context, entry *model.AuditEntry) error
	List(ctx context.Context, filter Filter) ([]*model.AuditEntry, error)
	Clear(ctx context.Context) error
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Record(ctx context.Context, entry *model.AuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditRepository) List(ctx context.Context, filter Filter) ([]*model.AuditEntry, error) {
	query := r.db.WithContext(ctx).Model(&model.AuditEntry{})
	if filter.ActorID != 0 {
		query = query.Where("actor_id = ?", filter.ActorID)
	}
	if filter.ActionType != "" {
		query = query.Where("action_type = ?", filter.ActionType)
	}
	if filter.Success != nil {
		query = query.Where("success = ?", *filter.Success)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var entries []*model.AuditEntry
	err := query.Order("created_at DESC").Find(&entries).Error
	return entries, err
}

func (r *auditRepository) Clear(ctx context.Context) error {
	return r.db.WithContext(ctx).Where("1 = 1").Delete(&model.AuditEntry{}).Error
}

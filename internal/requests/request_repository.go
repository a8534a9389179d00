package requests

import (
	"context"
	"errors"

	"github.com/triarqhealth/iam-portal/model"
	"gorm.io/gorm"
)

// RequestRepository persists access requests and their append-only history.
// Create and Update must commit the record and its events as one unit: either
// both land or neither is observable.
type RequestRepository interface {
	Get(ctx context.Context, id string) (*model.AccessRequest, error)
	List(ctx context.Context) ([]*model.AccessRequest, error)
	ListWithHistory(ctx context.Context) ([]*model.AccessRequest, error)
	ListByRequester(ctx context.Context, requesterID uint) ([]*model.AccessRequest, error)
	Create(ctx context.Context, req *model.AccessRequest) error
	Update(ctx context.Context, req *model.AccessRequest, events []model.RequestEvent) error
	Clear(ctx context.Context) error
}

type requestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func historyInAppendOrder(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

func (r *requestRepository) Get(ctx context.Context, id string) (*model.AccessRequest, error) {
	var req model.AccessRequest
	err := r.db.WithContext(ctx).
		Preload("History", historyInAppendOrder).
		First(&req, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) List(ctx context.Context) ([]*model.AccessRequest, error) {
	var reqs []*model.AccessRequest
	err := r.db.WithContext(ctx).
		Order("updated_at DESC").
		Find(&reqs).Error
	return reqs, err
}

func (r *requestRepository) ListWithHistory(ctx context.Context) ([]*model.AccessRequest, error) {
	var reqs []*model.AccessRequest
	err := r.db.WithContext(ctx).
		Preload("History", historyInAppendOrder).
		Order("updated_at DESC").
		Find(&reqs).Error
	return reqs, err
}

func (r *requestRepository) ListByRequester(ctx context.Context, requesterID uint) ([]*model.AccessRequest, error) {
	var reqs []*model.AccessRequest
	err := r.db.WithContext(ctx).
		Where("requester_id = ?", requesterID).
		Order("updated_at DESC").
		Find(&reqs).Error
	return reqs, err
}

// Create inserts the request together with its History rows in a single
// transaction (gorm persists the association inside the insert transaction).
func (r *requestRepository) Create(ctx context.Context, req *model.AccessRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

// Update writes the mutable request columns and appends the derived events in
// one transaction. Assignee columns are listed explicitly so clearing the
// assignee persists NULL instead of being skipped as a zero value.
func (r *requestRepository) Update(ctx context.Context, req *model.AccessRequest, events []model.RequestEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ret := tx.Model(&model.AccessRequest{}).
			Where("id = ?", req.ID).
			Updates(map[string]interface{}{
				"status":        req.Status,
				"assignee_id":   req.AssigneeID,
				"assignee_name": req.AssigneeName,
				"updated_at":    req.UpdatedAt,
			})
		if ret.Error != nil {
			return ret.Error
		}
		if ret.RowsAffected == 0 {
			return ErrRequestNotFound
		}
		if len(events) > 0 {
			if err := tx.Create(&events).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *requestRepository) Clear(ctx context.Context) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.RequestEvent{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&model.AccessRequest{}).Error
	})
}

package repo

import (
	"context"

	"github.com/decorly-io/decorly/internal/modules/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserObjectRepo interface {
	Create(ctx context.Context, o *model.UserObject) error
	GetOwned(ctx context.Context, ownerID, id uuid.UUID) (*model.UserObject, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.UserObject, error)
	// ListByIDs returns the owner's objects among ids. Missing ids are simply
	// absent from the result: past deletions leave weak references behind.
	ListByIDs(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) ([]model.UserObject, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}

type userObjectRepo struct{ db *gorm.DB }

func NewUserObjectRepo(db *gorm.DB) UserObjectRepo {
	return &userObjectRepo{db: db}
}

func (r *userObjectRepo) Create(ctx context.Context, o *model.UserObject) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *userObjectRepo) GetOwned(ctx context.Context, ownerID, id uuid.UUID) (*model.UserObject, error) {
	var o model.UserObject
	if err := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *userObjectRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.UserObject, error) {
	var items []model.UserObject
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

func (r *userObjectRepo) ListByIDs(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) ([]model.UserObject, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []model.UserObject
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND id IN ?", ownerID, ids).
		Find(&items).Error
	return items, err
}

func (r *userObjectRepo) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).Delete(&model.UserObject{}).Error
}

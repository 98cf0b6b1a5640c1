package repo

import (
	"context"
	"time"

	"github.com/decorly-io/decorly/internal/modules/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProjectRepo interface {
	Create(ctx context.Context, p *model.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error)
	GetOwned(ctx context.Context, ownerID, id uuid.UUID) (*model.Project, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, page, pageSize int) ([]model.Project, int64, error)
	ListAll(ctx context.Context, page, pageSize int) ([]model.Project, int64, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, resultRef, thumbnailRef string, description *string) (*model.Project, error)
	MarkFailed(ctx context.Context, id uuid.UUID, errorDetail string) (*model.Project, error)
	ListOverduePending(ctx context.Context, olderThan time.Time, limit int) ([]model.Project, error)
}

type projectRepo struct{ db *gorm.DB }

func NewProjectRepo(db *gorm.DB) ProjectRepo {
	return &projectRepo{db: db}
}

func (r *projectRepo) Create(ctx context.Context, p *model.Project) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *projectRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	var p model.Project
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *projectRepo) GetOwned(ctx context.Context, ownerID, id uuid.UUID) (*model.Project, error) {
	var p model.Project
	if err := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *projectRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, page, pageSize int) ([]model.Project, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Model(&model.Project{}).Where("owner_id = ?", ownerID), page, pageSize)
}

func (r *projectRepo) ListAll(ctx context.Context, page, pageSize int) ([]model.Project, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Model(&model.Project{}), page, pageSize)
}

// list applies offset pagination ordered by creation time descending. Items
// can shift between pages under concurrent inserts, which is acceptable for a
// browsed gallery.
func (r *projectRepo) list(ctx context.Context, q *gorm.DB, page, pageSize int) ([]model.Project, int64, error) {
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []model.Project
	err := q.Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// MarkCompleted transitions a pending project to completed. The status guard
// makes terminal states immutable: a project that is no longer pending is
// reported as gorm.ErrRecordNotFound.
func (r *projectRepo) MarkCompleted(ctx context.Context, id uuid.UUID, resultRef, thumbnailRef string, description *string) (*model.Project, error) {
	res := r.db.WithContext(ctx).Model(&model.Project{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Updates(map[string]interface{}{
			"status":           model.StatusCompleted,
			"result_image_ref": resultRef,
			"thumbnail_ref":    thumbnailRef,
			"description":      description,
			"error_detail":     nil,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.GetByID(ctx, id)
}

// MarkFailed transitions a pending project to failed. Same guard as
// MarkCompleted.
func (r *projectRepo) MarkFailed(ctx context.Context, id uuid.UUID, errorDetail string) (*model.Project, error) {
	res := r.db.WithContext(ctx).Model(&model.Project{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Updates(map[string]interface{}{
			"status":           model.StatusFailed,
			"error_detail":     errorDetail,
			"result_image_ref": nil,
			"thumbnail_ref":    nil,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *projectRepo) ListOverduePending(ctx context.Context, olderThan time.Time, limit int) ([]model.Project, error) {
	var items []model.Project
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.StatusPending, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

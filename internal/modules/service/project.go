package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/decorly-io/decorly/internal/modules/model"
	"github.com/decorly-io/decorly/internal/modules/repo"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProjectService is the query side of the project store: the gallery the
// client polls to observe terminal states.
type ProjectService interface {
	Get(ctx context.Context, ownerID, projectID uuid.UUID) (*model.Project, error)
	ListByOwner(ctx context.Context, in ListProjectsInput) (*ListProjectsOutput, error)
	ListAll(ctx context.Context, in ListProjectsInput) (*ListProjectsOutput, error)
}

type projectService struct {
	r repo.ProjectRepo
}

func NewProjectService(r repo.ProjectRepo) ProjectService {
	return &projectService{r: r}
}

type ListProjectsInput struct {
	OwnerID  uuid.UUID `json:"owner_id"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}

type ListProjectsOutput struct {
	Items    []model.Project `json:"items"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

func normalizePage(in *ListProjectsInput) {
	if in.Page < 1 {
		in.Page = 1
	}
	if in.PageSize < 1 {
		in.PageSize = 20
	}
	if in.PageSize > 100 {
		in.PageSize = 100
	}
}

func (s *projectService) Get(ctx context.Context, ownerID, projectID uuid.UUID) (*model.Project, error) {
	p, err := s.r.GetOwned(ctx, ownerID, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("load project: %w", err)
	}
	return p, nil
}

func (s *projectService) ListByOwner(ctx context.Context, in ListProjectsInput) (*ListProjectsOutput, error) {
	normalizePage(&in)
	items, total, err := s.r.ListByOwner(ctx, in.OwnerID, in.Page, in.PageSize)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return &ListProjectsOutput{Items: items, Total: total, Page: in.Page, PageSize: in.PageSize}, nil
}

func (s *projectService) ListAll(ctx context.Context, in ListProjectsInput) (*ListProjectsOutput, error) {
	normalizePage(&in)
	items, total, err := s.r.ListAll(ctx, in.Page, in.PageSize)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return &ListProjectsOutput{Items: items, Total: total, Page: in.Page, PageSize: in.PageSize}, nil
}

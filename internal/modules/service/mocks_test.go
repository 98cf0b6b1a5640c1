package service

import (
	"context"
	"time"

	"github.com/decorly-io/decorly/internal/infra/blob"
	"github.com/decorly-io/decorly/internal/infra/imageclient"
	"github.com/decorly-io/decorly/internal/modules/model"
	"github.com/decorly-io/decorly/internal/pkg/gemini"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockProjectRepo struct {
	mock.Mock
}

func (m *MockProjectRepo) Create(ctx context.Context, p *model.Project) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Project), args.Error(1)
}

func (m *MockProjectRepo) GetOwned(ctx context.Context, ownerID, id uuid.UUID) (*model.Project, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Project), args.Error(1)
}

func (m *MockProjectRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, page, pageSize int) ([]model.Project, int64, error) {
	args := m.Called(ctx, ownerID, page, pageSize)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]model.Project), args.Get(1).(int64), args.Error(2)
}

func (m *MockProjectRepo) ListAll(ctx context.Context, page, pageSize int) ([]model.Project, int64, error) {
	args := m.Called(ctx, page, pageSize)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]model.Project), args.Get(1).(int64), args.Error(2)
}

func (m *MockProjectRepo) MarkCompleted(ctx context.Context, id uuid.UUID, resultRef, thumbnailRef string, description *string) (*model.Project, error) {
	args := m.Called(ctx, id, resultRef, thumbnailRef, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Project), args.Error(1)
}

func (m *MockProjectRepo) MarkFailed(ctx context.Context, id uuid.UUID, errorDetail string) (*model.Project, error) {
	args := m.Called(ctx, id, errorDetail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Project), args.Error(1)
}

func (m *MockProjectRepo) ListOverduePending(ctx context.Context, olderThan time.Time, limit int) ([]model.Project, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Project), args.Error(1)
}

type MockUserObjectRepo struct {
	mock.Mock
}

func (m *MockUserObjectRepo) Create(ctx context.Context, o *model.UserObject) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockUserObjectRepo) GetOwned(ctx context.Context, ownerID, id uuid.UUID) (*model.UserObject, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserObject), args.Error(1)
}

func (m *MockUserObjectRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.UserObject, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.UserObject), args.Error(1)
}

func (m *MockUserObjectRepo) ListByIDs(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) ([]model.UserObject, error) {
	args := m.Called(ctx, ownerID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.UserObject), args.Error(1)
}

func (m *MockUserObjectRepo) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	args := m.Called(ctx, ownerID, id)
	return args.Error(0)
}

type MockCreditRepo struct {
	mock.Mock
}

func (m *MockCreditRepo) GetOrCreate(ctx context.Context, ownerID uuid.UUID, initial int) (*model.CreditBalance, error) {
	args := m.Called(ctx, ownerID, initial)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CreditBalance), args.Error(1)
}

func (m *MockCreditRepo) Debit(ctx context.Context, ownerID uuid.UUID, amount int) (bool, error) {
	args := m.Called(ctx, ownerID, amount)
	return args.Bool(0), args.Error(1)
}

func (m *MockCreditRepo) Credit(ctx context.Context, ownerID uuid.UUID, amount int) error {
	args := m.Called(ctx, ownerID, amount)
	return args.Error(0)
}

type MockCreditService struct {
	mock.Mock
}

func (m *MockCreditService) Balance(ctx context.Context, ownerID uuid.UUID) (int, error) {
	args := m.Called(ctx, ownerID)
	return args.Int(0), args.Error(1)
}

func (m *MockCreditService) Reserve(ctx context.Context, ownerID uuid.UUID) error {
	args := m.Called(ctx, ownerID)
	return args.Error(0)
}

func (m *MockCreditService) Release(ctx context.Context, ownerID uuid.UUID) error {
	args := m.Called(ctx, ownerID)
	return args.Error(0)
}

func (m *MockCreditService) Grant(ctx context.Context, ownerID uuid.UUID, amount int) error {
	args := m.Called(ctx, ownerID, amount)
	return args.Error(0)
}

func (m *MockCreditService) Cost() int {
	args := m.Called()
	return args.Int(0)
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) GenerateDesign(ctx context.Context, req gemini.DesignRequest) (*gemini.DesignResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gemini.DesignResult), args.Error(1)
}

func (m *MockProvider) DescribeImage(ctx context.Context, img gemini.ImageInput) (string, error) {
	args := m.Called(ctx, img)
	return args.String(0), args.Error(1)
}

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, ref string) (*imageclient.Payload, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*imageclient.Payload), args.Error(1)
}

type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) UploadFileDirect(ctx context.Context, key string, content []byte, contentType string) (*blob.UploadedObject, error) {
	args := m.Called(ctx, key, content, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*blob.UploadedObject), args.Error(1)
}

func (m *MockBlobStore) PublicURL(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *MockBlobStore) DeleteObject(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishJSON(ctx context.Context, exchangeName string, routingKey string, body any) error {
	args := m.Called(ctx, exchangeName, routingKey, body)
	return args.Error(0)
}

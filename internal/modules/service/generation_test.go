package service

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/decorly-io/decorly/internal/config"
	"github.com/decorly-io/decorly/internal/infra/blob"
	"github.com/decorly-io/decorly/internal/infra/imageclient"
	"github.com/decorly-io/decorly/internal/modules/model"
	"github.com/decorly-io/decorly/internal/pkg/gemini"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type genTestDeps struct {
	projects  *MockProjectRepo
	objects   *MockUserObjectRepo
	credits   *MockCreditService
	provider  *MockProvider
	fetcher   *MockFetcher
	store     *MockBlobStore
	publisher *MockPublisher
	cfg       *config.Config
	svc       GenerationService
}

func newGenTestDeps(t *testing.T) *genTestDeps {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	d := &genTestDeps{
		projects:  &MockProjectRepo{},
		objects:   &MockUserObjectRepo{},
		credits:   &MockCreditService{},
		provider:  &MockProvider{},
		fetcher:   &MockFetcher{},
		store:     &MockBlobStore{},
		publisher: &MockPublisher{},
		cfg: &config.Config{
			App: config.AppConfig{Name: "decorly-test"},
			RabbitMQ: config.RabbitMQConfig{
				ExchangeName: config.RabbitMQExchangeName{Generation: "decorly.generation"},
				RoutingKey:   config.RabbitMQRoutingKey{GenerationRun: "generation.run"},
				QueueName:    config.RabbitMQQueueName{Generation: "decorly.generation.run"},
			},
			Generation: config.GenerationConfig{
				CostCredits:          5,
				SignupGrantCredits:   10,
				PendingDeadlineSec:   600,
				IdempotencyWindowSec: 300,
			},
		},
	}
	d.svc = NewGenerationService(
		d.projects, d.objects, d.credits, d.provider, d.fetcher,
		d.store, d.publisher, rdb, d.cfg, zap.NewNop(),
	)
	return d
}

func (d *genTestDeps) assertAll(t *testing.T) {
	d.projects.AssertExpectations(t)
	d.objects.AssertExpectations(t)
	d.credits.AssertExpectations(t)
	d.provider.AssertExpectations(t)
	d.fetcher.AssertExpectations(t)
	d.store.AssertExpectations(t)
	d.publisher.AssertExpectations(t)
}

// pngBytes renders a decodable image so the thumbnail path exercises the real
// resampler.
func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func validSubmit(ownerID uuid.UUID) SubmitInput {
	return SubmitInput{
		OwnerID:       ownerID,
		InputImageRef: "https://cdn.example.com/rooms/living.jpg",
		Params: model.DesignParams{
			Style:    "scandinavian",
			RoomType: "living_room",
		},
	}
}

func TestGenerationService_Submit(t *testing.T) {
	ownerID := uuid.New()

	t.Run("success schedules a pending project", func(t *testing.T) {
		d := newGenTestDeps(t)

		d.credits.On("Reserve", mock.Anything, ownerID).Return(nil)
		d.projects.On("Create", mock.Anything, mock.MatchedBy(func(p *model.Project) bool {
			return p.OwnerID == ownerID && p.Status == model.StatusPending
		})).Return(nil)
		d.publisher.On("PublishJSON", mock.Anything, "decorly.generation", "generation.run",
			mock.AnythingOfType("service.GenerationRunMQ")).Return(nil)

		p, err := d.svc.Submit(context.Background(), validSubmit(ownerID))

		assert.NoError(t, err)
		assert.NotNil(t, p)
		assert.Equal(t, model.StatusPending, p.Status)
		d.assertAll(t)
	})

	t.Run("insufficient credits leaves no project behind", func(t *testing.T) {
		d := newGenTestDeps(t)

		d.credits.On("Reserve", mock.Anything, ownerID).Return(ErrInsufficientCredits)

		p, err := d.svc.Submit(context.Background(), validSubmit(ownerID))

		assert.ErrorIs(t, err, ErrInsufficientCredits)
		assert.Nil(t, p)
		d.projects.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		d.assertAll(t)
	})

	t.Run("missing input image is rejected before any debit", func(t *testing.T) {
		d := newGenTestDeps(t)

		in := validSubmit(ownerID)
		in.InputImageRef = ""

		_, err := d.svc.Submit(context.Background(), in)

		assert.ErrorIs(t, err, ErrInvalidInput)
		d.credits.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything)
	})

	t.Run("non-http input image is rejected", func(t *testing.T) {
		d := newGenTestDeps(t)

		in := validSubmit(ownerID)
		in.InputImageRef = "file:///etc/passwd"

		_, err := d.svc.Submit(context.Background(), in)

		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("publish failure fails the project and refunds", func(t *testing.T) {
		d := newGenTestDeps(t)

		d.credits.On("Reserve", mock.Anything, ownerID).Return(nil)
		d.projects.On("Create", mock.Anything, mock.Anything).Return(nil)
		d.publisher.On("PublishJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(assert.AnError)
		d.projects.On("MarkFailed", mock.Anything, mock.Anything, mock.Anything).
			Return(&model.Project{OwnerID: ownerID, Status: model.StatusFailed}, nil)
		d.credits.On("Release", mock.Anything, ownerID).Return(nil)

		_, err := d.svc.Submit(context.Background(), validSubmit(ownerID))

		assert.Error(t, err)
		d.assertAll(t)
	})

	t.Run("duplicate idempotency key is rejected", func(t *testing.T) {
		d := newGenTestDeps(t)

		d.credits.On("Reserve", mock.Anything, ownerID).Return(nil).Once()
		d.projects.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
		d.publisher.On("PublishJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil).Once()

		in := validSubmit(ownerID)
		in.IdempotencyKey = "retry-token-1"

		_, err := d.svc.Submit(context.Background(), in)
		assert.NoError(t, err)

		_, err = d.svc.Submit(context.Background(), in)
		assert.ErrorIs(t, err, ErrDuplicateSubmission)
		d.assertAll(t)
	})

	t.Run("different owners may reuse the same key", func(t *testing.T) {
		d := newGenTestDeps(t)

		otherOwner := uuid.New()
		d.credits.On("Reserve", mock.Anything, mock.Anything).Return(nil).Twice()
		d.projects.On("Create", mock.Anything, mock.Anything).Return(nil).Twice()
		d.publisher.On("PublishJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil).Twice()

		in := validSubmit(ownerID)
		in.IdempotencyKey = "shared-token"
		_, err := d.svc.Submit(context.Background(), in)
		assert.NoError(t, err)

		in2 := validSubmit(otherOwner)
		in2.IdempotencyKey = "shared-token"
		_, err = d.svc.Submit(context.Background(), in2)
		assert.NoError(t, err)
		d.assertAll(t)
	})
}

func TestGenerationService_Run(t *testing.T) {
	ownerID := uuid.New()
	projectID := uuid.New()

	pendingProject := func() *model.Project {
		return &model.Project{
			ID:            projectID,
			OwnerID:       ownerID,
			InputImageRef: "https://cdn.example.com/rooms/living.jpg",
			Params:        model.DesignParams{Style: "japandi", RoomType: "bedroom"},
			Status:        model.StatusPending,
		}
	}

	t.Run("success completes the project with result and thumbnail", func(t *testing.T) {
		d := newGenTestDeps(t)
		img := pngBytes(t)

		d.projects.On("GetByID", mock.Anything, projectID).Return(pendingProject(), nil)
		d.fetcher.On("Fetch", mock.Anything, "https://cdn.example.com/rooms/living.jpg").
			Return(&imageclient.Payload{Data: img, MIME: "image/png"}, nil)
		d.provider.On("GenerateDesign", mock.Anything, mock.Anything).
			Return(&gemini.DesignResult{
				Description: "A calm japandi bedroom.",
				ImageData:   img,
				ImageMIME:   "image/png",
			}, nil)
		d.store.On("UploadFileDirect", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(&blob.UploadedObject{}, nil).Twice()
		d.store.On("PublicURL", mock.Anything).Return("https://cdn.decorly.io/x")
		d.projects.On("MarkCompleted", mock.Anything, projectID, mock.Anything, mock.Anything, mock.MatchedBy(func(desc *string) bool {
			return desc != nil && *desc == "A calm japandi bedroom."
		})).Return(&model.Project{ID: projectID, OwnerID: ownerID, Status: model.StatusCompleted}, nil)

		p, err := d.svc.Run(context.Background(), projectID)

		assert.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, p.Status)
		d.credits.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
		d.assertAll(t)
	})

	t.Run("terminal project is a no-op", func(t *testing.T) {
		d := newGenTestDeps(t)

		done := pendingProject()
		done.Status = model.StatusCompleted
		d.projects.On("GetByID", mock.Anything, projectID).Return(done, nil)

		p, err := d.svc.Run(context.Background(), projectID)

		assert.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, p.Status)
		d.provider.AssertNotCalled(t, "GenerateDesign", mock.Anything, mock.Anything)
		d.credits.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	})

	t.Run("unknown project", func(t *testing.T) {
		d := newGenTestDeps(t)

		d.projects.On("GetByID", mock.Anything, projectID).Return(nil, gorm.ErrRecordNotFound)

		_, err := d.svc.Run(context.Background(), projectID)

		assert.ErrorIs(t, err, ErrProjectNotFound)
	})

	t.Run("safety block fails the project and refunds", func(t *testing.T) {
		d := newGenTestDeps(t)
		img := pngBytes(t)

		d.projects.On("GetByID", mock.Anything, projectID).Return(pendingProject(), nil)
		d.fetcher.On("Fetch", mock.Anything, mock.Anything).
			Return(&imageclient.Payload{Data: img, MIME: "image/png"}, nil)
		d.provider.On("GenerateDesign", mock.Anything, mock.Anything).
			Return(nil, gemini.ErrBlocked)
		d.projects.On("MarkFailed", mock.Anything, projectID, mock.MatchedBy(func(detail string) bool {
			return detail == "content blocked: the safety filter rejected this image or prompt"
		})).Return(&model.Project{ID: projectID, OwnerID: ownerID, Status: model.StatusFailed}, nil)
		d.credits.On("Release", mock.Anything, ownerID).Return(nil)

		p, err := d.svc.Run(context.Background(), projectID)

		assert.ErrorIs(t, err, ErrContentBlocked)
		assert.Equal(t, model.StatusFailed, p.Status)
		d.assertAll(t)
	})

	t.Run("main image fetch failure fails the project and refunds", func(t *testing.T) {
		d := newGenTestDeps(t)

		d.projects.On("GetByID", mock.Anything, projectID).Return(pendingProject(), nil)
		d.fetcher.On("Fetch", mock.Anything, mock.Anything).Return(nil, assert.AnError)
		d.projects.On("MarkFailed", mock.Anything, projectID, mock.Anything).
			Return(&model.Project{ID: projectID, OwnerID: ownerID, Status: model.StatusFailed}, nil)
		d.credits.On("Release", mock.Anything, ownerID).Return(nil)

		_, err := d.svc.Run(context.Background(), projectID)

		assert.Error(t, err)
		d.provider.AssertNotCalled(t, "GenerateDesign", mock.Anything, mock.Anything)
		d.assertAll(t)
	})

	t.Run("no refund when another actor already finalized", func(t *testing.T) {
		d := newGenTestDeps(t)

		d.projects.On("GetByID", mock.Anything, projectID).Return(pendingProject(), nil)
		d.fetcher.On("Fetch", mock.Anything, mock.Anything).Return(nil, assert.AnError)
		d.projects.On("MarkFailed", mock.Anything, projectID, mock.Anything).
			Return(nil, gorm.ErrRecordNotFound)

		_, err := d.svc.Run(context.Background(), projectID)

		assert.Error(t, err)
		d.credits.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	})

	t.Run("failed object fetch is skipped, remaining objects still used", func(t *testing.T) {
		d := newGenTestDeps(t)
		img := pngBytes(t)

		goodID, badID := uuid.New(), uuid.New()
		p := pendingProject()
		p.ObjectIDs = []uuid.UUID{goodID, badID}

		d.projects.On("GetByID", mock.Anything, projectID).Return(p, nil)
		d.objects.On("ListByIDs", mock.Anything, ownerID, []uuid.UUID{goodID, badID}).
			Return([]model.UserObject{
				{ID: goodID, DisplayName: "oak chair", AssetRef: "https://cdn.example.com/objects/chair.jpg"},
				{ID: badID, DisplayName: "broken lamp", AssetRef: "https://cdn.example.com/objects/lamp.jpg"},
			}, nil)
		d.fetcher.On("Fetch", mock.Anything, "https://cdn.example.com/rooms/living.jpg").
			Return(&imageclient.Payload{Data: img, MIME: "image/png"}, nil)
		d.fetcher.On("Fetch", mock.Anything, "https://cdn.example.com/objects/chair.jpg").
			Return(&imageclient.Payload{Data: img, MIME: "image/jpeg"}, nil)
		d.fetcher.On("Fetch", mock.Anything, "https://cdn.example.com/objects/lamp.jpg").
			Return(nil, assert.AnError)
		d.provider.On("GenerateDesign", mock.Anything, mock.MatchedBy(func(req gemini.DesignRequest) bool {
			return len(req.ObjectImages) == 1
		})).Return(&gemini.DesignResult{ImageData: img, ImageMIME: "image/png"}, nil)
		d.store.On("UploadFileDirect", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(&blob.UploadedObject{}, nil).Twice()
		d.store.On("PublicURL", mock.Anything).Return("https://cdn.decorly.io/x")
		d.projects.On("MarkCompleted", mock.Anything, projectID, mock.Anything, mock.Anything, (*string)(nil)).
			Return(&model.Project{ID: projectID, Status: model.StatusCompleted}, nil)

		_, err := d.svc.Run(context.Background(), projectID)

		assert.NoError(t, err)
		d.assertAll(t)
	})
}

func TestGenerationService_GenerateSync(t *testing.T) {
	ownerID := uuid.New()

	t.Run("returns the image inline as a data url", func(t *testing.T) {
		d := newGenTestDeps(t)
		img := pngBytes(t)

		d.credits.On("Reserve", mock.Anything, ownerID).Return(nil)
		d.projects.On("Create", mock.Anything, mock.Anything).Return(nil)
		d.fetcher.On("Fetch", mock.Anything, "https://cdn.example.com/rooms/kitchen.jpg").
			Return(&imageclient.Payload{Data: img, MIME: "image/png"}, nil)
		d.provider.On("GenerateDesign", mock.Anything, mock.Anything).
			Return(&gemini.DesignResult{
				Description: "A bright kitchen.",
				ImageData:   img,
				ImageMIME:   "image/png",
			}, nil)
		d.store.On("UploadFileDirect", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(&blob.UploadedObject{}, nil).Twice()
		d.store.On("PublicURL", mock.Anything).Return("https://cdn.decorly.io/x")
		d.projects.On("MarkCompleted", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(&model.Project{OwnerID: ownerID, Status: model.StatusCompleted}, nil)

		out, err := d.svc.GenerateSync(context.Background(), SyncInput{
			OwnerID:      ownerID,
			Prompt:       "make it brighter",
			MainImageURL: "https://cdn.example.com/rooms/kitchen.jpg",
		})

		assert.NoError(t, err)
		assert.Equal(t, "A bright kitchen.", out.Description)
		assert.Contains(t, out.ImageData, "data:image/png;base64,")
		assert.Equal(t, model.StatusCompleted, out.Project.Status)
		d.assertAll(t)
	})

	t.Run("upstream overload fails the project and refunds", func(t *testing.T) {
		d := newGenTestDeps(t)
		img := pngBytes(t)

		d.credits.On("Reserve", mock.Anything, ownerID).Return(nil)
		d.projects.On("Create", mock.Anything, mock.Anything).Return(nil)
		d.fetcher.On("Fetch", mock.Anything, mock.Anything).
			Return(&imageclient.Payload{Data: img, MIME: "image/png"}, nil)
		d.provider.On("GenerateDesign", mock.Anything, mock.Anything).
			Return(nil, gemini.ErrUnavailable)
		d.projects.On("MarkFailed", mock.Anything, mock.Anything, mock.Anything).
			Return(&model.Project{OwnerID: ownerID, Status: model.StatusFailed}, nil)
		d.credits.On("Release", mock.Anything, ownerID).Return(nil)

		_, err := d.svc.GenerateSync(context.Background(), SyncInput{
			OwnerID:      ownerID,
			Prompt:       "make it brighter",
			MainImageURL: "https://cdn.example.com/rooms/kitchen.jpg",
		})

		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
		d.assertAll(t)
	})

	t.Run("missing prompt is rejected", func(t *testing.T) {
		d := newGenTestDeps(t)

		_, err := d.svc.GenerateSync(context.Background(), SyncInput{
			OwnerID:      ownerID,
			MainImageURL: "https://cdn.example.com/rooms/kitchen.jpg",
		})

		assert.ErrorIs(t, err, ErrInvalidInput)
		d.credits.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything)
	})
}

func TestGenerationService_SweepOverdue(t *testing.T) {
	t.Run("overdue pending projects are failed and refunded", func(t *testing.T) {
		d := newGenTestDeps(t)

		owner1, owner2 := uuid.New(), uuid.New()
		p1 := model.Project{ID: uuid.New(), OwnerID: owner1, Status: model.StatusPending}
		p2 := model.Project{ID: uuid.New(), OwnerID: owner2, Status: model.StatusPending}

		d.projects.On("ListOverduePending", mock.Anything, mock.MatchedBy(func(cutoff time.Time) bool {
			return time.Since(cutoff) >= 600*time.Second
		}), 100).Return([]model.Project{p1, p2}, nil)

		d.projects.On("MarkFailed", mock.Anything, p1.ID, "generation timed out").
			Return(&model.Project{ID: p1.ID, OwnerID: owner1, Status: model.StatusFailed}, nil)
		// p2 completed concurrently, the guard loses
		d.projects.On("MarkFailed", mock.Anything, p2.ID, "generation timed out").
			Return(nil, gorm.ErrRecordNotFound)
		d.credits.On("Release", mock.Anything, owner1).Return(nil)

		swept, err := d.svc.SweepOverdue(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, 1, swept)
		d.credits.AssertNotCalled(t, "Release", mock.Anything, owner2)
		d.assertAll(t)
	})

	t.Run("empty sweep", func(t *testing.T) {
		d := newGenTestDeps(t)

		d.projects.On("ListOverduePending", mock.Anything, mock.Anything, 100).
			Return([]model.Project{}, nil)

		swept, err := d.svc.SweepOverdue(context.Background())

		assert.NoError(t, err)
		assert.Zero(t, swept)
	})
}

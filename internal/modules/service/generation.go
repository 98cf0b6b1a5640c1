package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/decorly-io/decorly/internal/config"
	"github.com/decorly-io/decorly/internal/infra/blob"
	"github.com/decorly-io/decorly/internal/infra/imageclient"
	"github.com/decorly-io/decorly/internal/modules/model"
	"github.com/decorly-io/decorly/internal/modules/repo"
	"github.com/decorly-io/decorly/internal/pkg/gemini"
	"github.com/decorly-io/decorly/internal/pkg/thumbnail"
	"github.com/decorly-io/decorly/internal/pkg/utils/mime"
	"github.com/decorly-io/decorly/internal/telemetry"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// ImageFetcher resolves an image reference to its payload.
type ImageFetcher interface {
	Fetch(ctx context.Context, ref string) (*imageclient.Payload, error)
}

// BlobStore is the slice of the S3 layer the generation pipeline needs.
type BlobStore interface {
	UploadFileDirect(ctx context.Context, key string, content []byte, contentType string) (*blob.UploadedObject, error)
	PublicURL(key string) string
}

// Publisher schedules asynchronous generation runs.
type Publisher interface {
	PublishJSON(ctx context.Context, exchangeName string, routingKey string, body any) error
}

// GenerationService owns the job state machine: submission (debit + pending
// row + schedule), the worker run (pending -> completed|failed), the
// synchronous variant, and the overdue-pending sweep.
type GenerationService interface {
	Submit(ctx context.Context, in SubmitInput) (*model.Project, error)
	Run(ctx context.Context, projectID uuid.UUID) (*model.Project, error)
	GenerateSync(ctx context.Context, in SyncInput) (*SyncOutput, error)
	SweepOverdue(ctx context.Context) (int, error)
}

type generationService struct {
	projects  repo.ProjectRepo
	objects   repo.UserObjectRepo
	credits   CreditService
	provider  gemini.Provider
	fetcher   ImageFetcher
	store     BlobStore
	publisher Publisher
	rdb       *redis.Client
	cfg       *config.Config
	log       *zap.Logger
}

func NewGenerationService(
	projects repo.ProjectRepo,
	objects repo.UserObjectRepo,
	credits CreditService,
	provider gemini.Provider,
	fetcher ImageFetcher,
	store BlobStore,
	publisher Publisher,
	rdb *redis.Client,
	cfg *config.Config,
	log *zap.Logger,
) GenerationService {
	return &generationService{
		projects:  projects,
		objects:   objects,
		credits:   credits,
		provider:  provider,
		fetcher:   fetcher,
		store:     store,
		publisher: publisher,
		rdb:       rdb,
		cfg:       cfg,
		log:       log,
	}
}

type SubmitInput struct {
	OwnerID        uuid.UUID          `json:"owner_id"`
	InputImageRef  string             `json:"input_image_ref"`
	Params         model.DesignParams `json:"params"`
	ObjectIDs      []uuid.UUID        `json:"object_ids"`
	IdempotencyKey string             `json:"idempotency_key"`
}

// GenerationRunMQ is the queue message carrying one scheduled run.
type GenerationRunMQ struct {
	ProjectID uuid.UUID `json:"project_id"`
}

// Submit reserves credits, persists a pending project and schedules the run.
// It returns as soon as the run is scheduled; the result is observed by
// polling the project.
func (s *generationService) Submit(ctx context.Context, in SubmitInput) (*model.Project, error) {
	if in.OwnerID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing owner", ErrInvalidInput)
	}
	if in.InputImageRef == "" {
		return nil, fmt.Errorf("%w: missing input image", ErrInvalidInput)
	}
	if err := imageclient.ValidateURL(in.InputImageRef); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if in.Params.Style == "" || in.Params.RoomType == "" {
		return nil, fmt.Errorf("%w: style and room_type are required", ErrInvalidInput)
	}

	if in.IdempotencyKey != "" {
		if err := s.claimIdempotencyKey(ctx, in.OwnerID, in.IdempotencyKey); err != nil {
			return nil, err
		}
	}

	// Debit before any row exists: an insufficient balance leaves no trace.
	if err := s.credits.Reserve(ctx, in.OwnerID); err != nil {
		return nil, err
	}

	p := &model.Project{
		ID:            uuid.New(),
		OwnerID:       in.OwnerID,
		InputImageRef: in.InputImageRef,
		Params:        in.Params,
		ObjectIDs:     in.ObjectIDs,
		Status:        model.StatusPending,
	}
	if err := s.projects.Create(ctx, p); err != nil {
		// The row never existed; give the debit back.
		s.refund(ctx, in.OwnerID)
		return nil, fmt.Errorf("create project: %w", err)
	}

	if err := s.publisher.PublishJSON(ctx, s.cfg.RabbitMQ.ExchangeName.Generation, s.cfg.RabbitMQ.RoutingKey.GenerationRun, GenerationRunMQ{ProjectID: p.ID}); err != nil {
		failed := s.failProject(ctx, p, fmt.Sprintf("failed to schedule generation: %v", err))
		if failed != nil {
			p = failed
		}
		return p, fmt.Errorf("schedule generation: %w", err)
	}

	telemetry.GenerationSubmitted(ctx)
	s.log.Info("generation scheduled",
		zap.String("project_id", p.ID.String()),
		zap.String("owner_id", in.OwnerID.String()))
	return p, nil
}

func (s *generationService) claimIdempotencyKey(ctx context.Context, ownerID uuid.UUID, key string) error {
	window := time.Duration(s.cfg.Generation.IdempotencyWindowSec) * time.Second
	if window <= 0 {
		window = 5 * time.Minute
	}
	rkey := fmt.Sprintf("decorly:idem:%s:%s", ownerID.String(), key)
	ok, err := s.rdb.SetNX(ctx, rkey, 1, window).Result()
	if err != nil {
		return fmt.Errorf("claim idempotency key: %w", err)
	}
	if !ok {
		return ErrDuplicateSubmission
	}
	return nil
}

// Run executes the worker sequence for a scheduled project. Terminal projects
// are returned unchanged: a redelivered or duplicated message is a no-op.
func (s *generationService) Run(ctx context.Context, projectID uuid.UUID) (*model.Project, error) {
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("load project: %w", err)
	}
	if p.Status != model.StatusPending {
		s.log.Info("project already terminal, skipping run",
			zap.String("project_id", p.ID.String()),
			zap.String("status", p.Status))
		return p, nil
	}

	refs, err := s.objectRefs(ctx, p)
	if err != nil {
		return s.failProject(ctx, p, fmt.Sprintf("resolve object references: %v", err)), err
	}

	res, _, runErr := s.execute(ctx, p.InputImageRef, p.Params.Prompt, p.Params, refs)
	if runErr != nil {
		return s.failProject(ctx, p, userDetail(runErr)), runErr
	}

	return s.complete(ctx, p, res)
}

type objectRef struct {
	Name string
	URL  string
}

func (s *generationService) objectRefs(ctx context.Context, p *model.Project) ([]objectRef, error) {
	if len(p.ObjectIDs) == 0 {
		return nil, nil
	}
	// Deleted objects are weak references: they are simply absent here.
	objs, err := s.objects.ListByIDs(ctx, p.OwnerID, p.ObjectIDs)
	if err != nil {
		return nil, err
	}
	refs := make([]objectRef, 0, len(objs))
	for _, o := range objs {
		refs = append(refs, objectRef{Name: o.DisplayName, URL: o.AssetRef})
	}
	return refs, nil
}

// execute runs fetch -> model call for both the queued and the synchronous
// path. Object fetches are best-effort: a failed object is skipped, the
// remaining ones still condition the generation.
func (s *generationService) execute(ctx context.Context, inputRef, prompt string, params model.DesignParams, objects []objectRef) (*gemini.DesignResult, []string, error) {
	main, err := s.fetcher.Fetch(ctx, inputRef)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch input image: %w", err)
	}

	type fetched struct {
		name    string
		payload *imageclient.Payload
	}
	results := make([]fetched, len(objects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, obj := range objects {
		g.Go(func() error {
			payload, err := s.fetcher.Fetch(gctx, obj.URL)
			if err != nil {
				s.log.Warn("object image fetch failed, skipping",
					zap.String("object", obj.Name),
					zap.Error(err))
				return nil
			}
			results[i] = fetched{name: obj.Name, payload: payload}
			return nil
		})
	}
	_ = g.Wait()

	var objectImages []gemini.ImageInput
	var usedNames []string
	for _, f := range results {
		if f.payload == nil {
			continue
		}
		objectImages = append(objectImages, gemini.ImageInput{Data: f.payload.Data, MIME: f.payload.MIME})
		usedNames = append(usedNames, f.name)
	}

	res, err := s.provider.GenerateDesign(ctx, gemini.DesignRequest{
		Prompt:       buildPrompt(params, prompt),
		MainImage:    gemini.ImageInput{Data: main.Data, MIME: main.MIME},
		ObjectImages: objectImages,
	})
	if err != nil {
		return nil, usedNames, mapProviderError(err)
	}
	return res, usedNames, nil
}

// complete uploads the result and thumbnail and flips the project to
// completed. An upload or update failure is terminal like any other.
func (s *generationService) complete(ctx context.Context, p *model.Project, res *gemini.DesignResult) (*model.Project, error) {
	ext := mime.ExtFor(res.ImageMIME)
	resultKey := fmt.Sprintf("designs/%s/%s/result%s", p.OwnerID.String(), p.ID.String(), ext)
	thumbKey := fmt.Sprintf("designs/%s/%s/thumb.jpg", p.OwnerID.String(), p.ID.String())

	if _, err := s.store.UploadFileDirect(ctx, resultKey, res.ImageData, res.ImageMIME); err != nil {
		wrapped := fmt.Errorf("store result image: %w", err)
		return s.failProject(ctx, p, userDetail(wrapped)), wrapped
	}

	thumbData, err := thumbnail.JPEG(res.ImageData, thumbnail.DefaultMaxDim)
	if err != nil {
		// Undecodable result still renders in most browsers; fall back to the
		// full image as its own thumbnail.
		s.log.Warn("thumbnail generation failed, using full image",
			zap.String("project_id", p.ID.String()), zap.Error(err))
		thumbKey = resultKey
	} else {
		if _, err := s.store.UploadFileDirect(ctx, thumbKey, thumbData, "image/jpeg"); err != nil {
			wrapped := fmt.Errorf("store thumbnail: %w", err)
			return s.failProject(ctx, p, userDetail(wrapped)), wrapped
		}
	}

	var description *string
	if res.Description != "" {
		description = &res.Description
	}

	updated, err := s.projects.MarkCompleted(ctx, p.ID, s.store.PublicURL(resultKey), s.store.PublicURL(thumbKey), description)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Lost the race against the sweep; the job was already finalized.
			return s.projects.GetByID(ctx, p.ID)
		}
		return nil, fmt.Errorf("mark project completed: %w", err)
	}

	telemetry.GenerationCompleted(ctx)
	s.log.Info("generation completed", zap.String("project_id", p.ID.String()))
	return updated, nil
}

// failProject transitions p to failed and refunds the reservation. When the
// guard reports the project already terminal some other actor won the
// transition and already settled the credits, so no refund happens here.
func (s *generationService) failProject(ctx context.Context, p *model.Project, detail string) *model.Project {
	updated, err := s.projects.MarkFailed(ctx, p.ID, detail)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Error("failed to mark project failed",
				zap.String("project_id", p.ID.String()), zap.Error(err))
		}
		return p
	}

	s.refund(ctx, p.OwnerID)
	telemetry.GenerationFailed(ctx)
	s.log.Warn("generation failed",
		zap.String("project_id", p.ID.String()),
		zap.String("detail", detail))
	return updated
}

func (s *generationService) refund(ctx context.Context, ownerID uuid.UUID) {
	if err := s.credits.Release(ctx, ownerID); err != nil {
		s.log.Error("credit refund failed", zap.String("owner_id", ownerID.String()), zap.Error(err))
	}
}

type SyncInput struct {
	OwnerID         uuid.UUID          `json:"owner_id"`
	Prompt          string             `json:"prompt"`
	MainImageURL    string             `json:"main_image_url"`
	ObjectImageURLs []string           `json:"object_image_urls"`
	Params          model.DesignParams `json:"params"`
}

type SyncOutput struct {
	Project         *model.Project `json:"project"`
	Description     string         `json:"description"`
	ImageData       string         `json:"image_data"`
	DetectedObjects []string       `json:"detected_objects"`
}

// GenerateSync runs the whole pipeline within one request: debit, pending
// row, model call, upload, terminal transition, result in the response.
func (s *generationService) GenerateSync(ctx context.Context, in SyncInput) (*SyncOutput, error) {
	if in.OwnerID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing owner", ErrInvalidInput)
	}
	if in.MainImageURL == "" {
		return nil, fmt.Errorf("%w: missing main image url", ErrInvalidInput)
	}
	if err := imageclient.ValidateURL(in.MainImageURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if in.Prompt == "" {
		return nil, fmt.Errorf("%w: missing prompt", ErrInvalidInput)
	}

	if err := s.credits.Reserve(ctx, in.OwnerID); err != nil {
		return nil, err
	}

	params := in.Params
	params.Prompt = in.Prompt
	p := &model.Project{
		ID:            uuid.New(),
		OwnerID:       in.OwnerID,
		InputImageRef: in.MainImageURL,
		Params:        params,
		Status:        model.StatusPending,
	}
	if err := s.projects.Create(ctx, p); err != nil {
		s.refund(ctx, in.OwnerID)
		return nil, fmt.Errorf("create project: %w", err)
	}

	refs := make([]objectRef, 0, len(in.ObjectImageURLs))
	for _, u := range in.ObjectImageURLs {
		refs = append(refs, objectRef{Name: u, URL: u})
	}

	res, usedNames, runErr := s.execute(ctx, in.MainImageURL, in.Prompt, params, refs)
	if runErr != nil {
		s.failProject(ctx, p, userDetail(runErr))
		return nil, runErr
	}

	completed, err := s.complete(ctx, p, res)
	if err != nil {
		return nil, err
	}

	return &SyncOutput{
		Project:         completed,
		Description:     res.Description,
		ImageData:       fmt.Sprintf("data:%s;base64,%s", res.ImageMIME, base64.StdEncoding.EncodeToString(res.ImageData)),
		DetectedObjects: usedNames,
	}, nil
}

// SweepOverdue finalizes pending projects older than the configured deadline.
// A worker crash mid-run otherwise leaves them pending forever.
func (s *generationService) SweepOverdue(ctx context.Context) (int, error) {
	deadline := time.Duration(s.cfg.Generation.PendingDeadlineSec) * time.Second
	if deadline <= 0 {
		deadline = 10 * time.Minute
	}

	overdue, err := s.projects.ListOverduePending(ctx, time.Now().Add(-deadline), 100)
	if err != nil {
		return 0, fmt.Errorf("list overdue projects: %w", err)
	}

	swept := 0
	for i := range overdue {
		p := overdue[i]
		updated, err := s.projects.MarkFailed(ctx, p.ID, "generation timed out")
		if err != nil {
			// Lost to a concurrent completion; nothing to settle.
			continue
		}
		s.refund(ctx, updated.OwnerID)
		telemetry.GenerationFailed(ctx)
		swept++
	}
	if swept > 0 {
		s.log.Info("swept overdue pending projects", zap.Int("count", swept))
	}
	return swept, nil
}

func buildPrompt(params model.DesignParams, prompt string) string {
	out := fmt.Sprintf("Redesign this %s in %s style.", params.RoomType, params.Style)
	if params.ColorTone != "" {
		out += fmt.Sprintf(" Use a %s color palette.", params.ColorTone)
	}
	if params.View != "" {
		out += fmt.Sprintf(" Keep the %s view.", params.View)
	}
	if params.RenderingType != "" {
		out += fmt.Sprintf(" Render as %s.", params.RenderingType)
	}
	if prompt != "" {
		out += " " + prompt
	}
	return out
}

func mapProviderError(err error) error {
	switch {
	case errors.Is(err, gemini.ErrBlocked):
		return fmt.Errorf("%w: %v", ErrContentBlocked, err)
	case errors.Is(err, gemini.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	case errors.Is(err, gemini.ErrNoImage):
		return fmt.Errorf("%w: %v", ErrImageMissing, err)
	case errors.Is(err, gemini.ErrEmpty):
		return fmt.Errorf("%w: %v", ErrEmptyResponse, err)
	default:
		return err
	}
}

// userDetail renders the error_detail column. Content blocks get a message
// the client can show as not-your-fault.
func userDetail(err error) string {
	switch {
	case errors.Is(err, ErrContentBlocked):
		return "content blocked: the safety filter rejected this image or prompt"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "image generation service is overloaded, try again later"
	case errors.Is(err, ErrImageMissing):
		return "the model returned no image"
	case errors.Is(err, ErrEmptyResponse):
		return "the model returned an empty response"
	default:
		return err.Error()
	}
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/decorly-io/decorly/internal/config"
	"github.com/decorly-io/decorly/internal/infra/imageclient"
	"github.com/decorly-io/decorly/internal/modules/model"
	"github.com/decorly-io/decorly/internal/modules/repo"
	"github.com/decorly-io/decorly/internal/pkg/gemini"
	"github.com/decorly-io/decorly/internal/pkg/thumbnail"
	"github.com/decorly-io/decorly/internal/pkg/utils/mime"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BlobDeleter widens BlobStore with object removal for the asset library.
type BlobDeleter interface {
	BlobStore
	DeleteObject(ctx context.Context, key string) error
}

// UserObjectService manages the owner's reusable asset library.
type UserObjectService interface {
	Upload(ctx context.Context, in UploadObjectInput) (*model.UserObject, error)
	Describe(ctx context.Context, ownerID uuid.UUID, imageURL string) (string, error)
	Get(ctx context.Context, ownerID, id uuid.UUID) (*model.UserObject, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]model.UserObject, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}

type userObjectService struct {
	objects  repo.UserObjectRepo
	provider gemini.Provider
	fetcher  ImageFetcher
	store    BlobDeleter
	cfg      *config.Config
	log      *zap.Logger
}

func NewUserObjectService(
	objects repo.UserObjectRepo,
	provider gemini.Provider,
	fetcher ImageFetcher,
	store BlobDeleter,
	cfg *config.Config,
	log *zap.Logger,
) UserObjectService {
	return &userObjectService{
		objects:  objects,
		provider: provider,
		fetcher:  fetcher,
		store:    store,
		cfg:      cfg,
		log:      log,
	}
}

type UploadObjectInput struct {
	OwnerID     uuid.UUID
	DisplayName string
	Category    string
	Data        []byte
	MIME        string
}

const fallbackObjectDescription = "A furniture or decor object."

// Upload stores the asset and a thumbnail, asks the model for a one-line
// description and persists the object row. The description is best-effort:
// a model failure falls back to a fixed placeholder, never fails the upload.
func (s *userObjectService) Upload(ctx context.Context, in UploadObjectInput) (*model.UserObject, error) {
	if in.OwnerID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing owner", ErrInvalidInput)
	}
	if in.DisplayName == "" {
		return nil, fmt.Errorf("%w: missing display name", ErrInvalidInput)
	}
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidInput)
	}

	contentType := in.MIME
	if contentType == "" {
		contentType = mime.DetectMimeType(in.Data)
	}
	if !mime.IsImage(contentType) {
		return nil, fmt.Errorf("%w: %s is not an image type", ErrInvalidInput, contentType)
	}

	id := uuid.New()
	assetKey := fmt.Sprintf("objects/%s/%s/asset%s", in.OwnerID.String(), id.String(), mime.ExtFor(contentType))
	thumbKey := fmt.Sprintf("objects/%s/%s/thumb.jpg", in.OwnerID.String(), id.String())

	if _, err := s.store.UploadFileDirect(ctx, assetKey, in.Data, contentType); err != nil {
		return nil, fmt.Errorf("store object asset: %w", err)
	}

	var thumbRef *string
	if thumbData, err := thumbnail.JPEG(in.Data, thumbnail.DefaultMaxDim); err != nil {
		s.log.Warn("object thumbnail failed", zap.String("object_id", id.String()), zap.Error(err))
	} else if _, err := s.store.UploadFileDirect(ctx, thumbKey, thumbData, "image/jpeg"); err != nil {
		s.log.Warn("object thumbnail upload failed", zap.String("object_id", id.String()), zap.Error(err))
	} else {
		url := s.store.PublicURL(thumbKey)
		thumbRef = &url
	}

	description := fallbackObjectDescription
	if desc, err := s.provider.DescribeImage(ctx, gemini.ImageInput{Data: in.Data, MIME: contentType}); err != nil {
		s.log.Warn("object description failed, using placeholder",
			zap.String("object_id", id.String()), zap.Error(err))
	} else if desc != "" {
		description = desc
	}

	category := in.Category
	if category == "" {
		category = "other"
	}

	obj := &model.UserObject{
		ID:           id,
		OwnerID:      in.OwnerID,
		DisplayName:  in.DisplayName,
		Category:     category,
		AssetRef:     s.store.PublicURL(assetKey),
		ThumbnailRef: thumbRef,
		Description:  &description,
	}
	if err := s.objects.Create(ctx, obj); err != nil {
		return nil, fmt.Errorf("create user object: %w", err)
	}
	return obj, nil
}

// Describe fetches a remote image and returns the model's one-line
// description without persisting anything.
func (s *userObjectService) Describe(ctx context.Context, ownerID uuid.UUID, imageURL string) (string, error) {
	if ownerID == uuid.Nil {
		return "", fmt.Errorf("%w: missing owner", ErrInvalidInput)
	}
	if err := imageclient.ValidateURL(imageURL); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	payload, err := s.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	desc, err := s.provider.DescribeImage(ctx, gemini.ImageInput{Data: payload.Data, MIME: payload.MIME})
	if err != nil {
		return "", mapProviderError(err)
	}
	if desc == "" {
		return fallbackObjectDescription, nil
	}
	return desc, nil
}

func (s *userObjectService) Get(ctx context.Context, ownerID, id uuid.UUID) (*model.UserObject, error) {
	obj, err := s.objects.GetOwned(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return obj, nil
}

func (s *userObjectService) List(ctx context.Context, ownerID uuid.UUID) ([]model.UserObject, error) {
	return s.objects.ListByOwner(ctx, ownerID)
}

// Delete removes the row first, then the blobs best-effort. Projects keep
// their object id lists untouched; a later run simply skips the missing id.
func (s *userObjectService) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	obj, err := s.objects.GetOwned(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrObjectNotFound
		}
		return err
	}

	if err := s.objects.Delete(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete user object: %w", err)
	}

	for _, key := range []string{
		fmt.Sprintf("objects/%s/%s/asset%s", ownerID.String(), id.String(), extFromRef(obj.AssetRef)),
		fmt.Sprintf("objects/%s/%s/thumb.jpg", ownerID.String(), id.String()),
	} {
		if err := s.store.DeleteObject(ctx, key); err != nil {
			s.log.Warn("object blob cleanup failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

func extFromRef(ref string) string {
	for i := len(ref) - 1; i >= 0 && ref[i] != '/'; i-- {
		if ref[i] == '.' {
			return ref[i:]
		}
	}
	return ""
}

package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/decorly-io/decorly/internal/config"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Provider-level failure conditions. The service layer maps these onto its
// user-facing error taxonomy.
var (
	// ErrBlocked: the safety filter rejected the prompt or the candidate.
	ErrBlocked = errors.New("gemini: content blocked by safety filter")
	// ErrUnavailable: the model is overloaded or temporarily unreachable.
	ErrUnavailable = errors.New("gemini: model overloaded or unavailable")
	// ErrNoImage: the response carried text but no image payload.
	ErrNoImage = errors.New("gemini: response contains no image")
	// ErrEmpty: the response carried neither text nor image.
	ErrEmpty = errors.New("gemini: empty response")
)

// ImageInput is one conditioning image passed alongside the prompt.
type ImageInput struct {
	Data []byte
	MIME string
}

// DesignRequest carries the prompt and resolved image payloads for one
// generation call.
type DesignRequest struct {
	Prompt       string
	MainImage    ImageInput
	ObjectImages []ImageInput
}

// DesignResult is the model output. Description may be empty even on success.
type DesignResult struct {
	Description string
	ImageData   []byte
	ImageMIME   string
}

// Provider is the contract for the generative design backend.
type Provider interface {
	GenerateDesign(ctx context.Context, req DesignRequest) (*DesignResult, error)
	DescribeImage(ctx context.Context, img ImageInput) (string, error)
}

type Client struct {
	client *genai.Client
	model  string
	log    *zap.Logger
}

func NewClient(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Client, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{client: c, model: cfg.Gemini.Model, log: log}, nil
}

// GenerateDesign sends the prompt, the room image and any object images to the
// model and collects the first text and image parts of the response.
func (c *Client) GenerateDesign(ctx context.Context, req DesignRequest) (*DesignResult, error) {
	parts := []*genai.Part{
		{Text: req.Prompt},
		{InlineData: &genai.Blob{MIMEType: req.MainImage.MIME, Data: req.MainImage.Data}},
	}
	for _, obj := range req.ObjectImages {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: obj.MIME, Data: obj.Data},
		})
	}

	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}
	gcfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, gcfg)
	if err != nil {
		return nil, mapAPIError(err)
	}
	return collectResult(resp)
}

// DescribeImage asks the model for a short textual description of one image.
// An empty model answer returns "" with no error; the caller decides on a
// fallback.
func (c *Client) DescribeImage(ctx context.Context, img ImageInput) (string, error) {
	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: "Describe this furniture or decor object in one short sentence."},
			{InlineData: &genai.Blob{MIMEType: img.MIME, Data: img.Data}},
		},
	}}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", mapAPIError(err)
	}
	if blocked(resp) {
		return "", ErrBlocked
	}

	var sb strings.Builder
	for _, part := range candidateParts(resp) {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func candidateParts(resp *genai.GenerateContentResponse) []*genai.Part {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	return resp.Candidates[0].Content.Parts
}

func blocked(resp *genai.GenerateContentResponse) bool {
	if resp == nil {
		return false
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		return true
	}
	for _, cand := range resp.Candidates {
		switch cand.FinishReason {
		case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent:
			return true
		}
	}
	return false
}

func collectResult(resp *genai.GenerateContentResponse) (*DesignResult, error) {
	if blocked(resp) {
		return nil, ErrBlocked
	}

	out := &DesignResult{}
	var sb strings.Builder
	for _, part := range candidateParts(resp) {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
		if part.InlineData != nil && len(part.InlineData.Data) > 0 && out.ImageData == nil {
			out.ImageData = part.InlineData.Data
			out.ImageMIME = part.InlineData.MIMEType
		}
	}
	out.Description = strings.TrimSpace(sb.String())

	// Image presence decides success; the description is optional.
	if out.ImageData == nil {
		if out.Description == "" {
			return nil, ErrEmpty
		}
		return nil, ErrNoImage
	}
	return out, nil
}

func mapAPIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429, 500, 503:
			return fmt.Errorf("%w: %s", ErrUnavailable, apiErr.Message)
		case 400:
			if strings.Contains(strings.ToLower(apiErr.Message), "safety") {
				return fmt.Errorf("%w: %s", ErrBlocked, apiErr.Message)
			}
		}
	}
	return err
}

var _ Provider = (*Client)(nil)

package gemini

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

func respWith(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: parts},
		}},
	}
}

func TestCollectResult(t *testing.T) {
	img := []byte{0xFF, 0xD8, 0xFF}

	t.Run("image with description", func(t *testing.T) {
		out, err := collectResult(respWith(
			&genai.Part{Text: "A bright living room. "},
			&genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: img}},
		))

		assert.NoError(t, err)
		assert.Equal(t, "A bright living room.", out.Description)
		assert.Equal(t, img, out.ImageData)
		assert.Equal(t, "image/png", out.ImageMIME)
	})

	t.Run("image without text still succeeds", func(t *testing.T) {
		out, err := collectResult(respWith(
			&genai.Part{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: img}},
		))

		assert.NoError(t, err)
		assert.Empty(t, out.Description)
		assert.NotNil(t, out.ImageData)
	})

	t.Run("first image wins", func(t *testing.T) {
		second := []byte{0x89, 0x50}
		out, err := collectResult(respWith(
			&genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: img}},
			&genai.Part{InlineData: &genai.Blob{MIMEType: "image/webp", Data: second}},
		))

		assert.NoError(t, err)
		assert.Equal(t, img, out.ImageData)
		assert.Equal(t, "image/png", out.ImageMIME)
	})

	t.Run("text only", func(t *testing.T) {
		_, err := collectResult(respWith(&genai.Part{Text: "I cannot render that."}))
		assert.ErrorIs(t, err, ErrNoImage)
	})

	t.Run("nothing at all", func(t *testing.T) {
		_, err := collectResult(respWith())
		assert.ErrorIs(t, err, ErrEmpty)
	})

	t.Run("prompt feedback block", func(t *testing.T) {
		resp := respWith(&genai.Part{Text: "whatever"})
		resp.PromptFeedback = &genai.GenerateContentResponsePromptFeedback{
			BlockReason: genai.BlockedReasonSafety,
		}

		_, err := collectResult(resp)
		assert.ErrorIs(t, err, ErrBlocked)
	})

	t.Run("candidate safety finish", func(t *testing.T) {
		resp := respWith(&genai.Part{Text: "partial"})
		resp.Candidates[0].FinishReason = genai.FinishReasonSafety

		_, err := collectResult(resp)
		assert.ErrorIs(t, err, ErrBlocked)
	})
}

func TestMapAPIError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"rate limited", genai.APIError{Code: 429, Message: "quota exceeded"}, ErrUnavailable},
		{"server error", genai.APIError{Code: 500, Message: "internal"}, ErrUnavailable},
		{"overloaded", genai.APIError{Code: 503, Message: "try later"}, ErrUnavailable},
		{"safety rejection", genai.APIError{Code: 400, Message: "blocked by SAFETY settings"}, ErrBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapAPIError(tt.err), tt.wantErr)
		})
	}

	t.Run("plain 400 passes through", func(t *testing.T) {
		err := genai.APIError{Code: 400, Message: "invalid argument"}
		assert.NotErrorIs(t, mapAPIError(err), ErrBlocked)
		assert.NotErrorIs(t, mapAPIError(err), ErrUnavailable)
	})

	t.Run("unrelated errors pass through", func(t *testing.T) {
		err := fmt.Errorf("dial tcp: connection refused")
		assert.Equal(t, err, mapAPIError(err))
	})
}

package imageclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/decorly-io/decorly/internal/config"
	"github.com/decorly-io/decorly/internal/pkg/utils/mime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Client fetches image payloads referenced by URL (user uploads, object assets).
type Client struct {
	HTTPClient *http.Client
	Logger     *zap.Logger
	MaxBytes   int64
}

// Payload is a fetched image with its sniffed content type.
type Payload struct {
	Data []byte
	MIME string
}

func New(cfg *config.Config, log *zap.Logger) *Client {
	maxBytes := cfg.Generation.MaxImageFetchBytes
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	return &Client{
		HTTPClient: &http.Client{
			Timeout:   2 * time.Minute,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Logger:   log,
		MaxBytes: maxBytes,
	}
}

// ValidateURL rejects references that are not absolute http(s) URLs.
func ValidateURL(ref string) error {
	u, err := url.Parse(ref)
	if err != nil {
		return fmt.Errorf("parse image url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("image url has no host")
	}
	return nil
}

// Fetch downloads the image at ref. Non-2xx responses, oversized bodies and
// non-image payloads are errors.
func (c *Client) Fetch(ctx context.Context, ref string) (*Payload, error) {
	if err := ValidateURL(ref); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.Logger.Warn("image fetch failed",
			zap.Int("status_code", resp.StatusCode),
			zap.String("url", ref))
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	if int64(len(body)) > c.MaxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", c.MaxBytes)
	}

	detected := mime.DetectMimeType(body)
	if !mime.IsImage(detected) {
		return nil, fmt.Errorf("unsupported content type %q", detected)
	}

	return &Payload{Data: body, MIME: detected}, nil
}

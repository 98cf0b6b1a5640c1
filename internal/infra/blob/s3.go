package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/decorly-io/decorly/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

// S3Deps bundles the S3 client, uploader and presigner for one bucket.
type S3Deps struct {
	Client        *s3.Client
	Uploader      *manager.Uploader
	Presigner     *s3.PresignClient
	Bucket        string
	PublicBaseURL string
}

// UploadedObject describes a stored blob.
type UploadedObject struct {
	Bucket string
	S3Key  string
	ETag   string
	SHA256 string
	MIME   string
	SizeB  int64
}

func NewS3(ctx context.Context, cfg *config.Config) (*S3Deps, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3.Region),
	}
	if cfg.S3.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3.AccessKey, cfg.S3.SecretKey, ""),
		))
	}

	awscfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	otelaws.AppendMiddlewares(&awscfg.APIOptions)

	client := s3.NewFromConfig(awscfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
		}
		o.UsePathStyle = cfg.S3.UsePathStyle
	})

	return &S3Deps{
		Client:        client,
		Uploader:      manager.NewUploader(client),
		Presigner:     s3.NewPresignClient(client),
		Bucket:        cfg.S3.Bucket,
		PublicBaseURL: strings.TrimSuffix(cfg.S3.PublicBaseURL, "/"),
	}, nil
}

// UploadFileDirect uploads content under key and returns the stored object info.
func (d *S3Deps) UploadFileDirect(ctx context.Context, key string, content []byte, contentType string) (*UploadedObject, error) {
	out, err := d.Uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}

	sum := sha256.Sum256(content)
	obj := &UploadedObject{
		Bucket: d.Bucket,
		S3Key:  key,
		SHA256: hex.EncodeToString(sum[:]),
		MIME:   contentType,
		SizeB:  int64(len(content)),
	}
	if out.ETag != nil {
		obj.ETag = strings.Trim(*out.ETag, `"`)
	}
	return obj, nil
}

func (d *S3Deps) PresignGet(ctx context.Context, key string, expire time.Duration) (string, error) {
	req, err := d.Presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expire))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// PublicURL derives the public URL for a key. Falls back to the virtual-hosted
// S3 form when no public base URL is configured.
func (d *S3Deps) PublicURL(key string) string {
	if d.PublicBaseURL != "" {
		return d.PublicBaseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", d.Bucket, key)
}

func (d *S3Deps) DeleteObject(ctx context.Context, key string) error {
	_, err := d.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.Bucket),
		Key:    aws.String(key),
	})
	return err
}

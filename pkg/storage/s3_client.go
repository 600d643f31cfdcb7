// Package storage holds the file-store and evidence-pinning collaborators used
// by MRV uploads.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// FileStore persists uploaded evidence and hands out time-limited links.
type FileStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) error
	PresignedURL(ctx context.Context, key string, expiration time.Duration) (string, error)
}

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3FileStore stores files in a single bucket.
type S3FileStore struct {
	bucket    string
	uploader  uploader
	presigner presigner
}

// S3Options configures NewS3FileStore.
type S3Options struct {
	Bucket         string
	Endpoint       string
	ForcePathStyle bool
}

// NewS3FileStore builds a file store from an AWS config.
func NewS3FileStore(cfg aws.Config, opts S3Options) *S3FileStore {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.ForcePathStyle
	})
	return &S3FileStore{
		bucket:    opts.Bucket,
		uploader:  manager.NewUploader(client),
		presigner: s3.NewPresignClient(client),
	}
}

func (s *S3FileStore) Upload(ctx context.Context, key, contentType string, body io.Reader) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func (s *S3FileStore) PresignedURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiration))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

// MemoryFileStore keeps uploads in memory. Links point at baseURL and carry
// the expiry as a query parameter.
type MemoryFileStore struct {
	baseURL string
	files   *fileMap
	now     func() time.Time
}

func NewMemoryFileStore(baseURL string) *MemoryFileStore {
	return &MemoryFileStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		files:   newFileMap(),
		now:     time.Now,
	}
}

func (m *MemoryFileStore) Upload(ctx context.Context, key, contentType string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	m.files.put(key, StoredFile{ContentType: contentType, Data: data})
	return nil
}

func (m *MemoryFileStore) PresignedURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	if _, ok := m.files.get(key); !ok {
		return "", fmt.Errorf("presign %s: no such file", key)
	}
	q := url.Values{}
	q.Set("expires", fmt.Sprintf("%d", m.now().Add(expiration).Unix()))
	return fmt.Sprintf("%s/%s?%s", m.baseURL, key, q.Encode()), nil
}

// File returns a stored upload.
func (m *MemoryFileStore) File(key string) (StoredFile, bool) {
	return m.files.get(key)
}

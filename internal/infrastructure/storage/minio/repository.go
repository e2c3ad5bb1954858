package minio

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/pkg/errors"
)

var ErrObjectNotFound = errors.New(errors.ErrCodeNotFound, "object not found")

// contentTypes covers the report artifacts. Anything else is sniffed.
var contentTypes = map[string]string{
	".md":   "text/markdown; charset=utf-8",
	".pdf":  "application/pdf",
	".json": "application/json",
}

// UploadResult describes a stored object.
type UploadResult struct {
	Bucket     string
	ObjectKey  string
	ETag       string
	Size       int64
	UploadedAt time.Time
}

// ObjectMetadata describes a listed object.
type ObjectMetadata struct {
	ObjectKey    string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

// ReportStore reads and writes report objects in the client's bucket.
type ReportStore struct {
	client *Client
	logger logging.Logger
}

func NewReportStore(client *Client, log logging.Logger) *ReportStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ReportStore{client: client, logger: log.Named("report-store")}
}

// Upload stores data under key.
func (s *ReportStore) Upload(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) (*UploadResult, error) {
	if err := s.client.checkOpen(); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, errors.New(errors.ErrCodeValidation, "object key required")
	}
	if contentType == "" {
		contentType = contentTypeFor(key, data)
	}
	info, err := s.client.api.PutObject(ctx, s.client.config.Bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType, UserMetadata: metadata})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "upload failed").WithDetail(key)
	}
	return &UploadResult{
		Bucket:     info.Bucket,
		ObjectKey:  info.Key,
		ETag:       info.ETag,
		Size:       info.Size,
		UploadedAt: time.Now(),
	}, nil
}

// PublishFiles uploads each local file under prefix/<base name> and returns
// the object keys in input order. The first failure aborts.
func (s *ReportStore) PublishFiles(ctx context.Context, prefix string, paths []string, metadata map[string]string) ([]string, error) {
	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return keys, errors.Wrap(err, errors.ErrCodeStorageError, "failed to read report file").WithDetail(p)
		}
		key := path.Join(prefix, filepath.Base(p))
		if _, err := s.Upload(ctx, key, data, "", metadata); err != nil {
			return keys, err
		}
		keys = append(keys, key)
		s.logger.Info("report published", logging.String("key", key), logging.Int("bytes", len(data)))
	}
	return keys, nil
}

func (s *ReportStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.api.StatObject(ctx, s.client.config.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrCodeStorageError, "failed to stat object")
	}
	return true, nil
}

// List returns the objects under prefix.
func (s *ReportStore) List(ctx context.Context, prefix string) ([]ObjectMetadata, error) {
	var out []ObjectMetadata
	for obj := range s.client.api.ListObjects(ctx, s.client.config.Bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.ErrCodeStorageError, "failed to list objects")
		}
		out = append(out, ObjectMetadata{
			ObjectKey:    obj.Key,
			Size:         obj.Size,
			ContentType:  obj.ContentType,
			ETag:         obj.ETag,
			LastModified: obj.LastModified,
		})
	}
	return out, nil
}

func (s *ReportStore) Delete(ctx context.Context, key string) error {
	if err := s.client.api.RemoveObject(ctx, s.client.config.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to delete object").WithDetail(key)
	}
	return nil
}

// PresignedURL returns a time-limited download link. Zero expiry uses the
// configured default.
func (s *ReportStore) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if expiry == 0 {
		expiry = s.client.config.PresignExpiry
	}
	u, err := s.client.api.PresignedGetObject(ctx, s.client.config.Bucket, key, expiry, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorageError, "failed to presign object").WithDetail(key)
	}
	return u.String(), nil
}

func contentTypeFor(key string, data []byte) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(key))]; ok {
		return ct
	}
	return http.DetectContentType(data[:min(512, len(data))])
}

// utils/storage.go
package utils

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Storage writes submission content to Cloudflare R2, or to a local uploads
// directory when no R2 credentials are configured. Constructed once in main
// and injected into the services that need it.
type Storage struct {
	client   *s3.Client
	bucket   string
	cdnBase  string
	localDir string
}

func NewR2Storage(accountID, accessKeyID, accessKeySecret, bucket, cdnBase string) (*Storage, error) {
	if cdnBase == "" {
		cdnBase = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID, accessKeySecret, "",
		)),
		config.WithEndpointResolver(aws.EndpointResolverFunc(
			func(service, region string) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID),
				}, nil
			}),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	return &Storage{
		client:  s3.NewFromConfig(cfg),
		bucket:  bucket,
		cdnBase: cdnBase,
	}, nil
}

// NewLocalStorage keeps objects on disk under dir. Used in dev and tests.
func NewLocalStorage(dir string) *Storage {
	if dir == "" {
		dir = "uploads"
	}
	return &Storage{localDir: dir}
}

// Put stores data under key and returns the public URL.
func (s *Storage) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if s.client == nil {
		return s.putLocal(key, data)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to R2: %w", err)
	}

	return fmt.Sprintf("%s/%s", s.cdnBase, key), nil
}

func (s *Storage) putLocal(key string, data []byte) (string, error) {
	dest := filepath.Join(s.localDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), os.ModePerm); err != nil {
		return "", err
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", err
	}
	return "/" + filepath.ToSlash(dest), nil
}

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/querybench/querybench/pkg/config"
	"github.com/sirupsen/logrus"
)

// Compile-time interface check.
var _ Store = (*s3Store)(nil)

type s3Store struct {
	log    logrus.FieldLogger
	cfg    *config.S3Config
	client *s3.Client

	retryAttempts uint
	retryDelay    time.Duration
}

// NewS3Store creates a Store backed by S3-compatible storage. Reads are
// retried with the configured bound; a read that exhausts its attempts
// fails only the affected run's analysis, never the whole batch.
func NewS3Store(log logrus.FieldLogger, cfg *config.S3Config) (Store, error) {
	delay, err := time.ParseDuration(cfg.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("parsing retry delay: %w", err)
	}

	return &s3Store{
		log:           log.WithField("component", "s3-storage"),
		cfg:           cfg,
		client:        newS3Client(cfg),
		retryAttempts: uint(cfg.RetryAttempts),
		retryDelay:    delay,
	}, nil
}

func newS3Client(cfg *config.S3Config) *s3.Client {
	opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.Region != "" {
				o.Region = cfg.Region
			} else {
				o.Region = "us-east-1"
			}

			if cfg.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.EndpointURL)
			}

			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}

			if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
				o.Credentials = credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID, cfg.SecretAccessKey, "",
				)
			}
		},
	}

	return s3.New(s3.Options{}, opts...)
}

// ListDirs lists immediate "subdirectory" names (common prefixes)
// under the given prefix.
func (s *s3Store) ListDirs(ctx context.Context, prefix string) ([]string, error) {
	full := s.fullKey(prefix)
	if full != "" && !strings.HasSuffix(full, "/") {
		full += "/"
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.cfg.Bucket),
		Prefix:    aws.String(full),
		Delimiter: aws.String("/"),
	})

	var names []string

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing prefixes under %q: %w", full, err)
		}

		for _, cp := range page.CommonPrefixes {
			if cp.Prefix != nil {
				names = append(names, path.Base(strings.TrimRight(*cp.Prefix, "/")))
			}
		}
	}

	return names, nil
}

// GetFile reads the object at key with bounded retries.
// Returns (nil, nil) when the key does not exist.
func (s *s3Store) GetFile(ctx context.Context, key string) ([]byte, error) {
	full := s.fullKey(key)

	var data []byte

	err := retry.Do(
		func() error {
			out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(s.cfg.Bucket),
				Key:    aws.String(full),
			})
			if err != nil {
				return err
			}

			defer func() { _ = out.Body.Close() }()

			data, err = io.ReadAll(out.Body)

			return err
		},
		retry.Context(ctx),
		retry.Attempts(s.retryAttempts),
		retry.Delay(s.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// Absence is a definitive answer, not a transient failure.
			return !isS3NotFound(err)
		}),
	)
	if err != nil {
		if isS3NotFound(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("getting object %q: %w", full, err)
	}

	return data, nil
}

// PutFile writes data to the given key.
func (s *s3Store) PutFile(ctx context.Context, key string, data []byte) error {
	full := s.fullKey(key)

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(full),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(detectContentType(full)),
	}

	if s.cfg.StorageClass != "" {
		input.StorageClass = s3types.StorageClass(s.cfg.StorageClass)
	}

	if s.cfg.ACL != "" {
		input.ACL = s3types.ObjectCannedACL(s.cfg.ACL)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("putting object %q: %w", full, err)
	}

	return nil
}

// Preflight verifies S3 connectivity by writing a small test object.
func (s *s3Store) Preflight(ctx context.Context) error {
	content := fmt.Sprintf("querybench write test: %s", time.Now().UTC().Format(time.RFC3339))

	if err := s.PutFile(ctx, ".querybench-write-test", []byte(content)); err != nil {
		return fmt.Errorf("write test to s3://%s: %w", s.cfg.Bucket, err)
	}

	return nil
}

// UploadDir walks localDir and uploads all files under keyPrefix.
func (s *s3Store) UploadDir(ctx context.Context, localDir, keyPrefix string) (int, error) {
	var count int

	err := filepath.Walk(localDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(localDir, p)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}

		data, err := os.ReadFile(p) //nolint:gosec // walking caller-supplied dir
		if err != nil {
			return fmt.Errorf("reading %s: %w", relPath, err)
		}

		key := keyPrefix + "/" + filepath.ToSlash(relPath)

		s.log.WithFields(logrus.Fields{
			"key":    key,
			"bucket": s.cfg.Bucket,
		}).Debug("Uploading file")

		if err := s.PutFile(ctx, key, data); err != nil {
			return fmt.Errorf("uploading %s: %w", relPath, err)
		}

		count++

		return nil
	})
	if err != nil {
		return count, fmt.Errorf("walking directory %s: %w", localDir, err)
	}

	s.log.WithFields(logrus.Fields{
		"files":  count,
		"bucket": s.cfg.Bucket,
		"prefix": keyPrefix,
	}).Info("Upload completed")

	return count, nil
}

// fullKey prepends the configured bucket prefix.
func (s *s3Store) fullKey(key string) string {
	key = strings.TrimLeft(key, "/")

	if s.cfg.Prefix == "" {
		return key
	}

	return strings.TrimRight(s.cfg.Prefix, "/") + "/" + key
}

// isS3NotFound returns true when the error means the object does not
// exist. Some S3-compatible implementations return a generic error
// with "NoSuchKey" in the message rather than the typed error.
func isS3NotFound(err error) bool {
	if err == nil {
		return false
	}

	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	return strings.Contains(err.Error(), "NoSuchKey")
}

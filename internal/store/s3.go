package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"gfsfetch/internal/types"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store keeps one object per config under bucket/prefix. The object's
// existence is the known-keys index. Puts are conditional on the key being
// absent, so concurrent writers keep the first record.
type S3Store struct {
	client S3API
	bucket string
	prefix string
	codec  *codec
	logger *slog.Logger
}

// NewS3Store creates an S3Store. prefix may be empty; a trailing slash is
// added when missing.
func NewS3Store(client S3API, bucket, prefix string, compress bool, logger *slog.Logger) *S3Store {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
		codec:  newCodec(compress),
		logger: logger,
	}
}

func (s *S3Store) key(cfg types.ModelConfig) string {
	return s.prefix + cfg.Key() + s.codec.suffix()
}

func (s *S3Store) Has(ctx context.Context, cfg types.ModelConfig) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(cfg)),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, s.wrap("head", cfg, err)
}

func (s *S3Store) Get(ctx context.Context, cfg types.ModelConfig) (*types.CatalogRecord, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(cfg)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, notFound(cfg)
		}
		return nil, s.wrap("get", cfg, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, s.wrap("read", cfg, err)
	}
	rec, err := s.codec.decode(data, s.codec.compress)
	if err != nil {
		return nil, s.wrap("decode", cfg, err)
	}
	return rec, nil
}

func (s *S3Store) Put(ctx context.Context, cfg types.ModelConfig, rec *types.CatalogRecord) error {
	data, err := s.codec.encode(rec)
	if err != nil {
		return s.wrap("encode", cfg, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(cfg)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		if isPreconditionFailed(err) {
			s.logger.DebugContext(ctx, "catalog record already stored", "config", cfg.Key(), "bucket", s.bucket)
			return nil
		}
		return s.wrap("put", cfg, err)
	}
	s.logger.InfoContext(ctx, "catalog record stored",
		"config", cfg.Key(),
		"bucket", s.bucket,
		"key", s.key(cfg),
	)
	return nil
}

func (s *S3Store) wrap(op string, cfg types.ModelConfig, err error) error {
	return types.NewAppErrorWithDetails(types.ErrCodeInternalStore,
		fmt.Sprintf("s3 catalog %s failed", op), err,
		map[string]any{"config": cfg.Key(), "bucket": s.bucket, "key": s.key(cfg)})
}

func isNotFound(err error) bool {
	var nf *s3types.NotFound
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey"
	}
	return false
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "PreconditionFailed" || code == "ConditionalRequestConflict"
	}
	return false
}

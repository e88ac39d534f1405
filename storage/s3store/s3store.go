package s3store

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"

	"github.com/hedisam/tiersync/storage/objects"
)

const defaultMaxKeys = 1000

// API is the part of the S3 client used by the Store.
type API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
}

// Config describes how to reach an S3 compatible endpoint. Empty credentials fall back to the default AWS
// credential chain.
type Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	MaxKeys         int32
}

// Store implements objects.Store on top of an S3 client.
type Store struct {
	logger  *logrus.Logger
	api     API
	maxKeys int32
}

func New(logger *logrus.Logger, api API, maxKeys int32) *Store {
	if maxKeys <= 0 || maxKeys > defaultMaxKeys {
		maxKeys = defaultMaxKeys
	}

	return &Store{
		logger:  logger,
		api:     api,
		maxKeys: maxKeys,
	}
}

// Connect builds an S3 client for cfg and wraps it in a Store.
func Connect(ctx context.Context, logger *logrus.Logger, cfg Config) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return New(logger, client, cfg.MaxKeys), nil
}

// Ping checks that the bucket is reachable with the configured credentials.
func (s *Store) Ping(ctx context.Context, bucket string) error {
	_, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return fmt.Errorf("head bucket %q: %w", bucket, classify(err))
	}
	return nil
}

func (s *Store) List(ctx context.Context, bucket, prefix, token string) (*objects.Page, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(s.maxKeys),
	}
	if token != "" {
		input.ContinuationToken = aws.String(token)
	}

	out, err := s.api.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", classify(err))
	}

	page := &objects.Page{
		Records: make([]objects.Record, 0, len(out.Contents)),
	}
	for _, obj := range out.Contents {
		page.Records = append(page.Records, objects.Record{
			Bucket:       bucket,
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			StorageClass: string(obj.StorageClass),
		})
	}
	if aws.ToBool(out.IsTruncated) {
		page.NextToken = aws.ToString(out.NextContinuationToken)
	}

	return page, nil
}

func (s *Store) Head(ctx context.Context, bucket, key string) (*objects.Record, error) {
	out, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("head object: %w", classify(err))
	}

	return &objects.Record{
		Bucket:       bucket,
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		StorageClass: string(out.StorageClass),
	}, nil
}

func (s *Store) DeleteObjects(ctx context.Context, bucket string, keys []string) ([]objects.DeleteFailure, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	ids := make([]types.ObjectIdentifier, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, types.ObjectIdentifier{Key: aws.String(k)})
	}

	out, err := s.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(bucket),
		Delete: &types.Delete{
			Objects: ids,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("delete objects: %w", classify(err))
	}

	var failures []objects.DeleteFailure
	for _, e := range out.Errors {
		code := aws.ToString(e.Code)
		if code == noSuchKeyCode {
			continue
		}
		failures = append(failures, objects.DeleteFailure{
			Key:     aws.ToString(e.Key),
			Code:    code,
			Message: aws.ToString(e.Message),
		})
	}
	if len(failures) > 0 {
		s.logger.WithContext(ctx).WithFields(logrus.Fields{
			"bucket":   bucket,
			"failures": len(failures),
			"batch":    len(keys),
		}).Warn("Some objects could not be deleted")
	}

	return failures, nil
}

// SetStorageClass copies the object onto itself with the new storage class, keeping its metadata.
func (s *Store) SetStorageClass(ctx context.Context, bucket, key, storageClass string) error {
	_, err := s.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            aws.String(bucket),
		Key:               aws.String(key),
		CopySource:        aws.String(copySource(bucket, key)),
		StorageClass:      types.StorageClass(storageClass),
		MetadataDirective: types.MetadataDirectiveCopy,
	})
	if err != nil {
		return fmt.Errorf("copy object: %w", classify(err))
	}

	return nil
}

func copySource(bucket, key string) string {
	return url.PathEscape(bucket) + "/" + (&url.URL{Path: key}).EscapedPath()
}

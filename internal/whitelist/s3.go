package whitelist

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/raaihank/trace-sentinel/internal/config"
	"go.uber.org/zap"
)

// ObjectGetter is the subset of the S3 client used to read the whitelist
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads the whitelist from a single S3 object
type S3Source struct {
	client ObjectGetter
	bucket string
	key    string
}

// NewS3Source loads the default AWS credential chain and creates a client
func NewS3Source(ctx context.Context, cfg config.S3Source, logger *zap.Logger) (*S3Source, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	source := NewS3SourceWithClient(client, cfg.Bucket, cfg.Key)

	logger.Info("S3 whitelist source initialized",
		zap.String("object", source.Name()),
		zap.String("region", awsCfg.Region),
		zap.String("endpoint", cfg.Endpoint))

	return source, nil
}

// NewS3SourceWithClient wraps an existing client
func NewS3SourceWithClient(client ObjectGetter, bucket, key string) *S3Source {
	return &S3Source{client: client, bucket: bucket, key: key}
}

func (s *S3Source) Name() string {
	return "s3://" + s.bucket + "/" + s.key
}

func (s *S3Source) Fetch(ctx context.Context) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", s.Name(), err)
	}
	return out.Body, nil
}

package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type S3Options struct {
	Region     string
	Bucket     string
	Endpoint   string
	PublicRead bool
	PresignTTL time.Duration
}

type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	presign  *s3.PresignClient
	cb       *gobreaker.CircuitBreaker
	opts     S3Options
}

// NewS3Store builds the client from the default AWS credential chain. A
// non-empty Endpoint targets an S3 compatible server such as MinIO.
func NewS3Store(ctx context.Context, opts S3Options, log *zap.SugaredLogger) (*S3Store, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(opts.Region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "s3",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Infow("circuit breaker state", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		presign:  s3.NewPresignClient(client),
		cb:       cb,
		opts:     opts,
	}, nil
}

func (s *S3Store) Put(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.opts.Bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
		})
	})
	return err
}

// URL returns the public object URL when the bucket is public, otherwise a
// presigned GET valid for PresignTTL.
func (s *S3Store) URL(ctx context.Context, key string) (string, error) {
	if s.opts.PublicRead {
		escaped := url.PathEscape(key)
		if s.opts.Endpoint != "" {
			return fmt.Sprintf("%s/%s/%s", s.opts.Endpoint, s.opts.Bucket, escaped), nil
		}
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.opts.Bucket, s.opts.Region, escaped), nil
	}
	out, err := s.cb.Execute(func() (interface{}, error) {
		return s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.opts.Bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(s.opts.PresignTTL))
	})
	if err != nil {
		return "", err
	}
	return out.(*v4.PresignedHTTPRequest).URL, nil
}

package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3Objects interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type s3Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Config points S3Storage at a bucket. BaseEndpoint selects an S3-compatible
// service such as MinIO and switches to path-style addressing. PublicBaseURL is the
// portal address that stored URLs are rooted at; URLTTL bounds each presigned link.
type S3Config struct {
	PublicBaseURL string
	AccessKey    string
	SecretKey    string
	Region       string
	Bucket       string
	BaseEndpoint string
	URLTTL       time.Duration
}

// S3Storage stores proofs in a private S3 bucket. The URL recorded for a proof is a
// stable portal address (/uploads/<key>); Link presigns a short-lived GET each time
// that address is followed.
type S3Storage struct {
	client  s3Objects
	presign s3Presigner
	bucket  string
	baseURL string
	ttl     time.Duration
}

// NewS3Storage builds an S3 client from static credentials.
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("upload: empty s3 bucket")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Storage(client, s3.NewPresignClient(client), cfg.Bucket, cfg.PublicBaseURL, cfg.URLTTL), nil
}

func newS3Storage(client s3Objects, presign s3Presigner, bucket, baseURL string, ttl time.Duration) *S3Storage {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &S3Storage{client: client, presign: presign, bucket: bucket, baseURL: strings.TrimRight(baseURL, "/"), ttl: ttl}
}

func (s *S3Storage) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return s.baseURL + "/uploads/" + url.PathEscape(key), nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// Link returns a presigned GET for key, valid for the configured TTL.
func (s *S3Storage) Link(ctx context.Context, key string) (string, error) {
	if !validKey(key) {
		return "", fmt.Errorf("upload: invalid key %q", key)
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}
	return req.URL, nil
}

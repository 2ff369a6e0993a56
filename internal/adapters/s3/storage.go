package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Storage implements ports.ObjectStorage on an S3 bucket.
type Storage struct {
	client  putObjectAPI
	bucket  string
	baseURL string
}

// Options describes the bucket. Endpoint targets S3-compatible servers
// (MinIO, LocalStack) and switches to path-style addressing.
type Options struct {
	Bucket        string
	Region        string
	Endpoint      string
	PublicBaseURL string
}

// New loads AWS credentials from the default chain and returns a Storage.
func New(ctx context.Context, o Options) (*Storage, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(o.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
			so.UsePathStyle = true
		}
	})
	return newStorage(client, o), nil
}

func newStorage(client putObjectAPI, o Options) *Storage {
	base := strings.TrimRight(o.PublicBaseURL, "/")
	if base == "" {
		if o.Endpoint != "" {
			base = strings.TrimRight(o.Endpoint, "/") + "/" + o.Bucket
		} else {
			base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", o.Bucket, o.Region)
		}
	}
	return &Storage{client: client, bucket: o.Bucket, baseURL: base}
}

// Upload stores body under path and returns its public URL.
func (s *Storage) Upload(ctx context.Context, path, contentType string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	key := strings.TrimLeft(path, "/")
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return s.baseURL + "/" + key, nil
}

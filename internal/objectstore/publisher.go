package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Skotchmaster/online_store/internal/config"
	"github.com/Skotchmaster/online_store/internal/logging"
)

// PresignExpiry is how long a published reference stays readable.
const PresignExpiry = 7 * 24 * time.Hour

var ErrUploadFailed = errors.New("upload failed")

// Reference points at a stored object.
type Reference struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type ObjectPresigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type Publisher struct {
	putter    ObjectPutter
	presigner ObjectPresigner
	expiry    time.Duration
}

func NewPublisher(client *s3.Client) *Publisher {
	return NewPublisherWith(client, s3.NewPresignClient(client))
}

func NewPublisherWith(putter ObjectPutter, presigner ObjectPresigner) *Publisher {
	return &Publisher{putter: putter, presigner: presigner, expiry: PresignExpiry}
}

// NewS3Client builds a client from the S3 settings. Static credentials are
// used when both keys are set, otherwise the default AWS chain applies.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Publish writes data under directory + "local/" + SanitizeKey(key) and
// returns a presigned GET reference to it. Every failure wraps
// ErrUploadFailed. An object written before a presign failure is left in
// place.
func (p *Publisher) Publish(ctx context.Context, data []byte, key, directory, bucket string) (Reference, error) {
	if bucket == "" {
		return Reference{}, fmt.Errorf("%w: bucket is not configured", ErrUploadFailed)
	}

	objectKey := directory + "local/" + SanitizeKey(key)
	contentType := ContentType(objectKey)
	l := logging.FromContext(ctx).With("component", "objectstore", "bucket", bucket, "key", objectKey)

	_, err := p.putter.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		l.Error("put_object_failed", "error", err)
		return Reference{}, fmt.Errorf("%w: put %s: %v", ErrUploadFailed, objectKey, err)
	}

	req, err := p.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:              aws.String(bucket),
		Key:                 aws.String(objectKey),
		ResponseContentType: aws.String(contentType),
	}, s3.WithPresignExpires(p.expiry))
	if err != nil {
		l.Error("presign_failed", "error", err)
		return Reference{}, fmt.Errorf("%w: presign %s: %v", ErrUploadFailed, objectKey, err)
	}
	if req == nil || req.URL == "" {
		l.Error("presign_failed", "reason", "URL_NOT_RECEIVED")
		return Reference{}, fmt.Errorf("%w: URL_NOT_RECEIVED", ErrUploadFailed)
	}

	l.Info("object_published", "bytes", len(data))
	return Reference{URL: req.URL, Key: objectKey}, nil
}

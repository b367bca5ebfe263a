// Package attachments turns uploaded files into prompt attachments:
// images go to object storage and are referenced by URL, text files are
// inlined.
package attachments

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/sitecraft-ai/sitecraft-backend/config"
	"github.com/sitecraft-ai/sitecraft-backend/internal/logging"
)

type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Uploader struct {
	client     PutObjectAPI
	bucket     string
	publicBase string
	timeout    time.Duration
}

func NewUploader(client PutObjectAPI, bucket, publicBase string) *Uploader {
	return &Uploader{
		client:     client,
		bucket:     bucket,
		publicBase: strings.TrimRight(publicBase, "/"),
		timeout:    30 * time.Second,
	}
}

// NewS3Uploader builds an uploader from the default AWS credential
// chain. An empty bucket yields an uploader that never succeeds.
func NewS3Uploader(ctx context.Context, cfg config.StorageConfig) (*Uploader, error) {
	if cfg.Bucket == "" {
		return NewUploader(nil, "", ""), nil
	}
	awsConf, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	base := cfg.PublicBaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	return NewUploader(s3.NewFromConfig(awsConf), cfg.Bucket, base), nil
}

// Upload stores body and returns its public URL. Failures are logged
// and reported as ("", false); they never surface as errors.
func (u *Uploader) Upload(ctx context.Context, uid, name, contentType string, body io.Reader) (string, bool) {
	if u == nil || u.client == nil {
		return "", false
	}

	key := fmt.Sprintf("attachments/%s/%s%s", uid, uuid.NewString(), strings.ToLower(path.Ext(name)))

	// uploads run to completion even if the caller goes away
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.timeout)
	defer cancel()

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		logging.NewLogger(ctx).LogError("attachments.upload", err, "uid", uid, "name", name)
		return "", false
	}
	return u.publicBase + "/" + key, true
}

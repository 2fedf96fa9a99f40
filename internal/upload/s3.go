// Package upload ships the finished CSV to S3.
//
// Credentials come from the standard AWS credential chain (environment
// variables, shared credentials file, IAM roles) via aws-sdk-go-v2/config.
// Upload is optional and config-gated; a failed upload is logged by the
// caller and never fails the run — the local CSV is the primary output.
package upload

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mackerelops/alert-report/internal/logging"
	"github.com/mackerelops/alert-report/internal/timewindow"
)

// ObjectPutter is the slice of the S3 API the uploader needs.
// *s3.Client implements it.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader puts report files into one bucket under a fixed prefix.
type Uploader struct {
	client ObjectPutter
	bucket string
	prefix string
	logger *logging.Logger
}

// New creates an Uploader backed by a real S3 client. region may be
// empty, in which case the credential chain's region applies.
func New(ctx context.Context, bucket, prefix, region string, logger *logging.Logger) (*Uploader, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewWithClient(s3.NewFromConfig(cfg), bucket, prefix, logger), nil
}

// NewWithClient creates an Uploader with an explicit client. Intended
// for tests.
func NewWithClient(client ObjectPutter, bucket, prefix string, logger *logging.Logger) *Uploader {
	return &Uploader{client: client, bucket: bucket, prefix: prefix, logger: logger}
}

// Key returns the object key for a window's report: the CSV base name
// suffixed with the report month, e.g. "monthly/external_alerts_2024-02.csv".
func (u *Uploader) Key(localPath string, w timewindow.Window) string {
	base := path.Base(localPath)
	month := w.Start.Format("2006-01")
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext) + "_" + month + ext
	} else {
		base = base + "_" + month
	}
	return path.Join(u.prefix, base)
}

// UploadReport puts the CSV at localPath into the bucket.
func (u *Uploader) UploadReport(ctx context.Context, localPath string, w timewindow.Window) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open report %s: %w", localPath, err)
	}
	defer f.Close()

	key := u.Key(localPath, w)
	contentType := "text/csv"
	if _, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &u.bucket,
		Key:         &key,
		Body:        f,
		ContentType: &contentType,
	}); err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", u.bucket, key, err)
	}

	u.logger.Info().Str("bucket", u.bucket).Str("key", key).Msg("report_uploaded")
	return nil
}

package loaders

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"

	"github.com/airframesio/data-comparer/cmd/dataset"
)

// S3Options locates an object and configures the client. The object is
// decoded with File, whose Path is ignored.
type S3Options struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Key       string
	File      FileOptions
}

// S3Loader downloads an object and decodes it like a local file
type S3Loader struct {
	opts       S3Options
	downloader s3manageriface.DownloaderAPI
	logger     *slog.Logger
}

// NewS3Loader creates a session with static credentials and path-style addressing
func NewS3Loader(opts S3Options, logger *slog.Logger) (*S3Loader, error) {
	region := opts.Region
	if region == "" || region == "auto" {
		region = "us-east-1"
	}

	cfg := &aws.Config{
		Region:           aws.String(region),
		S3ForcePathStyle: aws.Bool(true),
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = aws.String(opts.Endpoint)
	}
	if opts.AccessKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(opts.AccessKey, opts.SecretKey, "")
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 session: %w", err)
	}
	return NewS3LoaderWithDownloader(opts, s3manager.NewDownloader(sess), logger), nil
}

// NewS3LoaderWithDownloader uses an existing downloader
func NewS3LoaderWithDownloader(opts S3Options, downloader s3manageriface.DownloaderAPI, logger *slog.Logger) *S3Loader {
	return &S3Loader{opts: opts, downloader: downloader, logger: logger}
}

// Describe returns the object URI
func (l *S3Loader) Describe() string {
	return fmt.Sprintf("s3://%s/%s", l.opts.Bucket, l.opts.Key)
}

// Load downloads the object into memory and decodes it
func (l *S3Loader) Load(ctx context.Context) (*dataset.Dataset, error) {
	if l.opts.Bucket == "" || l.opts.Key == "" {
		return nil, ErrInvalidS3URI
	}

	l.logger.Debug(fmt.Sprintf("Downloading %s", l.Describe()))
	buf := aws.NewWriteAtBuffer([]byte{})
	n, err := l.downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(l.opts.Bucket),
		Key:    aws.String(l.opts.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", l.Describe(), err)
	}
	l.logger.Debug(fmt.Sprintf("Downloaded %d bytes from %s", n, l.Describe()))

	d, err := decode(bytes.NewReader(buf.Bytes()), l.opts.Key, l.opts.File)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", l.Describe(), err)
	}
	return d, nil
}

// ParseS3URI splits s3://bucket/key
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidS3URI, uri)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidS3URI, uri)
	}
	return bucket, key, nil
}

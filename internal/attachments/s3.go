package attachments

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/JonMunkholm/labtrack/internal/records"
)

// objectPutter is the subset of the S3 client used here.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 stores files in a bucket served from PublicBaseURL.
type S3 struct {
	client  objectPutter
	bucket  string
	prefix  string
	baseURL string
	log     *slog.Logger
}

// S3Config configures the bucket uploader. Credentials come from the default
// AWS chain.
type S3Config struct {
	Bucket string
	Region string
	Prefix string
	// PublicBaseURL is where objects are readable, for example a CloudFront
	// distribution. Defaults to the virtual-hosted bucket URL.
	PublicBaseURL string
	Logger        *slog.Logger
}

// NewS3 loads AWS configuration and builds an uploader.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newS3(s3.NewFromConfig(awsCfg), cfg), nil
}

func newS3(client objectPutter, cfg S3Config) *S3 {
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &S3{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		baseURL: base,
		log:     log.With("component", "attachments", "backend", "s3"),
	}
}

func (s *S3) Upload(ctx context.Context, filename, contentType string, body io.Reader) (records.Attachment, error) {
	id := PublicID(filename)
	if id == "" {
		return records.Attachment{}, fmt.Errorf("%w: %q", ErrInvalidFile, filename)
	}

	key := id
	if strings.EqualFold(pathExt(filename), ".pdf") {
		key += ".pdf"
	}
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}

	// PutObject signs the payload and needs a seekable body.
	data, err := io.ReadAll(body)
	if err != nil {
		return records.Attachment{}, fmt.Errorf("%w: read %s: %w", ErrInvalidFile, filename, err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		s.log.Error("put object failed", "bucket", s.bucket, "key", key, "error", err)
		return records.Attachment{}, fmt.Errorf("%w: %s: %w", ErrUploadFailed, filename, err)
	}

	s.log.Info("uploaded", "file", filename, "key", key, "bytes", len(data))
	return records.Attachment{URL: s.baseURL + "/" + escapeKey(key), Name: DisplayName(filename)}, nil
}

func pathExt(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// Package publish uploads a finished release to S3.
//
// A release is the set of artifacts listed in the manifest, the SHA256 file
// and the manifest itself. Objects are stored under <prefix>/<version>/.
package publish

import (
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vango-dev/distkit/internal/checksum"
	"github.com/vango-dev/distkit/internal/config"
	"github.com/vango-dev/distkit/internal/errors"
	"github.com/vango-dev/distkit/internal/telemetry"
)

// Untagged is the key segment used when the release has no version tag.
const Untagged = "untagged"

// PutObjectAPI is the part of *s3.Client the publisher needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Object is one uploaded file.
type Object struct {
	Key  string
	Size int64
}

// Publisher uploads releases to one bucket.
type Publisher struct {
	client PutObjectAPI
	bucket string
	prefix string
	logger *slog.Logger
}

// NewClient creates an S3 client from the shared AWS configuration, with the
// region and endpoint overridden from cfg when set.
func NewClient(ctx context.Context, cfg config.PublishConfig) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.New("D705").Wrap(err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// CheckConfig returns D603 when no bucket is configured.
func CheckConfig(cfg config.PublishConfig) error {
	if cfg.Bucket == "" {
		return errors.New("D603").
			WithSuggestion(`Add "publish": {"bucket": "..."} to distkit.json`)
	}
	return nil
}

// New creates a publisher for the bucket in cfg.
func New(client PutObjectAPI, cfg config.PublishConfig, logger *slog.Logger) (*Publisher, error) {
	if err := CheckConfig(cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: logger,
	}, nil
}

// Key returns the object key for name in the given release version.
func (p *Publisher) Key(version, name string) string {
	if version == "" {
		version = Untagged
	}
	return path.Join(p.prefix, version, name)
}

// Publish uploads every artifact in the manifest at manifestPath, then the
// SHA256 file, then the manifest. The SHA256 file must exist.
func (p *Publisher) Publish(ctx context.Context, manifestPath, version string) (objs []Object, err error) {
	ctx, end := telemetry.StartSpan(ctx, "publish",
		attribute.String("bucket", p.bucket),
		attribute.String("version", version),
	)
	defer func() { end(err) }()

	names, err := checksum.ReadManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(manifestPath)
	sums := filepath.Join(dir, checksum.FileName)
	if _, err := os.Stat(sums); err != nil {
		return nil, errors.New("D705").
			WithDetail(checksum.FileName + " is missing next to the manifest.").
			WithSuggestion("Run: distkit dist-all").
			Wrap(err)
	}

	files := make([]string, 0, len(names)+2)
	for _, name := range names {
		files = append(files, filepath.Join(dir, name))
	}
	files = append(files, sums, manifestPath)

	for _, file := range files {
		obj, err := p.put(ctx, version, file)
		if err != nil {
			return objs, err
		}
		objs = append(objs, obj)
	}
	return objs, nil
}

func (p *Publisher) put(ctx context.Context, version, file string) (Object, error) {
	f, err := os.Open(file)
	if err != nil {
		return Object{}, errors.New("D705").Wrap(err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Object{}, errors.New("D705").Wrap(err)
	}

	name := filepath.Base(file)
	key := p.Key(version, name)
	p.logger.Debug("uploading", "bucket", p.bucket, "key", key, "size", info.Size())

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType(name)),
		Metadata: map[string]string{
			"release-version": version,
			"upload-time":     time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return Object{}, errors.New("D705").WithDetail("s3://" + p.bucket + "/" + key).Wrap(err)
	}
	return Object{Key: key, Size: info.Size()}, nil
}

func contentType(name string) string {
	if name == checksum.FileName || filepath.Ext(name) == ".txt" {
		return "text/plain; charset=utf-8"
	}
	return "application/octet-stream"
}

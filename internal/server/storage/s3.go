package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/remotefs/remotefs/internal/logging"
	"github.com/remotefs/remotefs/internal/remote"
)

// S3Config holds S3 connection settings.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	Region    string
}

// S3 serves a bucket (optionally under a key prefix) as the exported
// tree. Directories are inferred from key delimiters.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3 creates an S3 backend. A custom endpoint enables use with
// MinIO and other S3-compatible stores.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for MinIO
		}
	})

	backend := &S3{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	}); err != nil {
		logging.Warn("bucket check failed", zap.String("bucket", cfg.Bucket), zap.Error(err))
	}

	return backend, nil
}

// key maps a request path onto a bucket key.
func (b *S3) key(p string) string {
	if b.prefix == "" {
		return p
	}
	if p == "" {
		return b.prefix
	}
	return b.prefix + "/" + p
}

func (b *S3) List(ctx context.Context, p string) ([]remote.Entry, error) {
	prefix := b.key(p)
	if prefix != "" {
		prefix += "/"
	}

	var entries []remote.Entry
	seen := false
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		seen = seen || len(page.Contents) > 0 || len(page.CommonPrefixes) > 0

		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if name == "" {
				continue
			}
			entries = append(entries, remote.Entry{Name: name, IsDir: true})
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			entry := remote.Entry{Name: name, Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				entry.ModTime = *obj.LastModified
			}
			entries = append(entries, entry)
		}
	}

	// The bucket root is a valid empty directory; anything else with no
	// matching keys does not exist.
	if !seen && p != "" {
		return nil, ErrNotFound
	}
	return entries, nil
}

func (b *S3) Stat(ctx context.Context, p string) (remote.Entry, error) {
	if p == "" {
		return remote.Entry{Name: "", IsDir: true}, nil
	}

	head, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(p)),
	})
	if err == nil {
		entry := remote.Entry{Name: path.Base(p), Size: aws.ToInt64(head.ContentLength)}
		if head.LastModified != nil {
			entry.ModTime = *head.LastModified
		}
		return entry, nil
	}

	// Not an object; it is a directory iff any key lives under it.
	list, listErr := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		Prefix:  aws.String(b.key(p) + "/"),
		MaxKeys: aws.Int32(1),
	})
	if listErr != nil {
		return remote.Entry{}, fmt.Errorf("stat %s: %w", p, listErr)
	}
	if len(list.Contents) == 0 {
		return remote.Entry{}, ErrNotFound
	}
	return remote.Entry{Name: path.Base(p), IsDir: true}, nil
}

func (b *S3) Read(ctx context.Context, p string, offset, length int64) (io.ReadCloser, int64, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(p)),
	}
	if offset > 0 || length >= 0 {
		if length >= 0 {
			input.Range = aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
		} else {
			input.Range = aws.String(fmt.Sprintf("bytes=%d-", offset))
		}
	}

	obj, err := b.client.GetObject(ctx, input)
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("get object %s: %w", p, err)
	}

	size := aws.ToInt64(obj.ContentLength)
	if cr := aws.ToString(obj.ContentRange); cr != "" {
		// "bytes start-end/total"
		if idx := strings.LastIndexByte(cr, '/'); idx >= 0 {
			fmt.Sscanf(cr[idx+1:], "%d", &size)
		}
	}
	return obj.Body, size, nil
}

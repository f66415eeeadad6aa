package archive

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pmcore/pmcore/pkg/log"
)

// S3ArchiveConfig configures S3Backend. The teacher carries an
// S3ArchiveConfig/S3Archive pair with no implementation behind it
// (pkg/archive/s3Backend.go); this backend gives that shape a working
// body against the real SDK.
type S3ArchiveConfig struct {
	Bucket          string `json:"bucket"`
	Prefix          string `json:"prefix"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
}

// S3Backend fetches archive metadata logs from an S3-compatible object
// store, decompressing ".meta.gz" objects transparently like FSBackend.
type S3Backend struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Backend(ctx context.Context, cfg S3ArchiveConfig) (*S3Backend, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.Errorf("S3Backend: load config: %v", err)
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Backend{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (b *S3Backend) key(base, suffix string) string {
	if b.prefix == "" {
		return base + suffix
	}
	return strings.TrimSuffix(b.prefix, "/") + "/" + base + suffix
}

// Open fetches base's metadata log, trying the plain object first and
// falling back to the gzip-compressed one.
func (b *S3Backend) Open(base string) ([]byte, error) {
	ctx := context.Background()
	if data, err := b.getObject(ctx, b.key(base, ".meta"), false); err == nil {
		return data, nil
	}
	data, err := b.getObject(ctx, b.key(base, ".meta.gz"), true)
	if err != nil {
		log.Errorf("S3Backend.Open(%q): %v", base, err)
		return nil, fmt.Errorf("archive %q: no metadata object in bucket %q", base, b.bucket)
	}
	return data, nil
}

func (b *S3Backend) getObject(ctx context.Context, key string, gzipped bool) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(b.bucket), Key: aws.String(key)})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	if !gzipped {
		return io.ReadAll(out.Body)
	}
	r, err := gzip.NewReader(out.Body)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// List enumerates every "<base>.meta" / "<base>.meta.gz" object under
// the configured prefix.
func (b *S3Backend) List() ([]string, error) {
	ctx := context.Background()
	seen := make(map[string]bool)
	var bases []string
	var token *string
	for {
		out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(b.bucket),
			Prefix:            aws.String(b.prefix),
			ContinuationToken: token,
		})
		if err != nil {
			log.Errorf("S3Backend.List(): %v", err)
			return nil, err
		}
		for _, obj := range out.Contents {
			name := aws.ToString(obj.Key)
			var base string
			switch {
			case strings.HasSuffix(name, ".meta.gz"):
				base = strings.TrimSuffix(strings.TrimPrefix(name, b.prefix), ".meta.gz")
			case strings.HasSuffix(name, ".meta"):
				base = strings.TrimSuffix(strings.TrimPrefix(name, b.prefix), ".meta")
			default:
				continue
			}
			base = strings.TrimPrefix(base, "/")
			if !seen[base] {
				seen[base] = true
				bases = append(bases, base)
			}
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	return bases, nil
}

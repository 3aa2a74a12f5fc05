package classifier

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/prn-tf/fertilizer-advisor/internal/config"
)

// maxArtifactSize bounds how much of an artifact is read into memory.
const maxArtifactSize = 256 << 20

// Source fetches raw artifact bytes.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	String() string
}

// FileSource reads an artifact from the local filesystem.
type FileSource struct {
	Path string
}

// Fetch reads the whole file.
func (s FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readLimited(f)
}

func (s FileSource) String() string {
	return s.Path
}

// S3GetObjectAPI is the subset of the S3 client used to fetch artifacts.
type S3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads an artifact from an S3 compatible object store.
type S3Source struct {
	Client S3GetObjectAPI
	Bucket string
	Key    string
}

// Fetch downloads the object.
func (s S3Source) Fetch(ctx context.Context) ([]byte, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()

	return readLimited(out.Body)
}

func (s S3Source) String() string {
	return "s3://" + s.Bucket + "/" + s.Key
}

// readLimited reads r fully, failing if it exceeds maxArtifactSize.
func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxArtifactSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxArtifactSize {
		return nil, fmt.Errorf("artifact exceeds %d bytes", maxArtifactSize)
	}
	return data, nil
}

// ParseS3URI splits s3://bucket/key into its parts.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedSource, uri)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q needs both bucket and key", ErrUnsupportedSource, uri)
	}
	return bucket, key, nil
}

// NewS3Client builds an S3 client from cfg. Static credentials are used when
// both key parts are set; otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// SourceFor picks a Source for location: an s3:// URI or a file path.
func SourceFor(ctx context.Context, location string, cfg config.S3Config) (Source, error) {
	if location == "" {
		return nil, fmt.Errorf("%w: empty location", ErrUnsupportedSource)
	}

	if strings.HasPrefix(location, "s3://") {
		bucket, key, err := ParseS3URI(location)
		if err != nil {
			return nil, err
		}
		client, err := NewS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return S3Source{Client: client, Bucket: bucket, Key: key}, nil
	}

	if strings.Contains(location, "://") {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, location)
	}
	return FileSource{Path: location}, nil
}

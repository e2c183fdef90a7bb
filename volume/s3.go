package volume

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/janelia-flyem/recospark/box"
	"github.com/janelia-flyem/recospark/internal/common/logger"
	"github.com/janelia-flyem/recospark/internal/common/resources"
	"github.com/janelia-flyem/recospark/internal/common/retry"
)

// S3Config configures an S3Backend.
type S3Config struct {
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // for S3-compatible services (MinIO, etc.)
	DType           DType
	// Budget gates Get/Write calls by byte count against the shared
	// volume service. Nil disables gating.
	Budget *resources.BudgetGate
}

// S3Backend fetches and stores whole-box buffers as flat objects keyed
// by the box's global origin and shape, implementing Accessor and
// Writer against a bucket of raw scan-order voxel data.
type S3Backend struct {
	client *s3.Client
	bucket string
	prefix string
	dtype  DType
	budget *resources.BudgetGate
}

// NewS3Backend builds an S3Backend from cfg.
func NewS3Backend(ctx context.Context, cfg S3Config) (*S3Backend, error) {
	var awsCfg aws.Config
	var err error
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("volume: loading AWS config: %w", err)
	}

	var opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	logger.Info("volume: s3 backend initialised for bucket %s", cfg.Bucket)
	return &S3Backend{
		client: s3.NewFromConfig(awsCfg, opts...),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		dtype:  cfg.DType,
		budget: cfg.Budget,
	}, nil
}

func (s *S3Backend) objectName(origin box.Vec3, shape box.Vec3) string {
	return fmt.Sprintf("%d_%d_%d-%d_%d_%d.bin",
		origin[0], origin[1], origin[2], shape[0], shape[1], shape[2])
}

// classifyS3 marks err transient if it carries a 503/504 response or a
// network time-out; everything else stays permanent.
func classifyS3(err error) error {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		if TransientStatus(re.HTTPStatusCode()) {
			return Transient(err)
		}
		return err
	}
	if isTimeout(err) {
		return Transient(err)
	}
	return err
}

// Get implements Accessor by fetching the object named after b's
// global origin and shape.
func (s *S3Backend) Get(ctx context.Context, b box.Box) (Buffer, error) {
	if err := s.budget.Wait(ctx, int(b.Volume())*s.dtype.Size()); err != nil {
		return Buffer{}, fmt.Errorf("volume: s3 budget wait: %w", err)
	}
	key := fmt.Sprintf("%s/%s", s.prefix, s.objectName(b.Lo, b.Shape()))

	var buf Buffer
	err := retry.DoNested(ctx, func(ctx context.Context) error {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return classifyS3(fmt.Errorf("volume: s3 get %s: %w", key, err))
		}
		defer out.Body.Close()

		data, err := io.ReadAll(out.Body)
		if err != nil {
			// A failure mid-stream is a broken network read, not a
			// server verdict; always worth retrying.
			return Transient(fmt.Errorf("volume: s3 read body %s: %w", key, err))
		}
		buf = Buffer{Shape: [3]int64(b.Shape()), DType: s.dtype, Data: data}
		return nil
	}, IsTransient)
	if err != nil {
		return Buffer{}, err
	}
	return buf, nil
}

// Write implements Writer by storing buf's raw bytes under a key
// derived from origin and buf's shape; scale is folded into the
// object's prefix so successive pyramid levels don't collide.
func (s *S3Backend) Write(ctx context.Context, origin box.Vec3, scale int, buf Buffer) error {
	if err := s.budget.Wait(ctx, len(buf.Data)); err != nil {
		return fmt.Errorf("volume: s3 budget wait: %w", err)
	}
	key := fmt.Sprintf("%s/scale%d/%s", s.prefix, scale, s.objectName(origin, buf.ShapeVec()))
	err := retry.DoNested(ctx, func(ctx context.Context) error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(buf.Data),
		})
		if err != nil {
			return classifyS3(fmt.Errorf("volume: s3 put %s: %w", key, err))
		}
		return nil
	}, IsTransient)
	if err != nil {
		return err
	}
	logger.Debug("volume: s3 wrote %s (%d bytes)", key, len(buf.Data))
	return nil
}

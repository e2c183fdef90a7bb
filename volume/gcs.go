package volume

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/janelia-flyem/recospark/box"
	"github.com/janelia-flyem/recospark/internal/common/logger"
	"github.com/janelia-flyem/recospark/internal/common/resources"
	"github.com/janelia-flyem/recospark/internal/common/retry"
)

// GCSConfig configures a GCSBackend.
type GCSConfig struct {
	BucketName      string
	Prefix          string
	CredentialsJSON string // optional, else Application Default Credentials
	CredentialsFile string // optional
	DType           DType
	// Budget gates Get/Write calls by byte count against the shared
	// volume service. Nil disables gating.
	Budget *resources.BudgetGate
}

// GCSBackend is the Google Cloud Storage counterpart to S3Backend:
// whole-box buffers stored as flat objects keyed by origin and shape.
type GCSBackend struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
	dtype  DType
	budget *resources.BudgetGate
}

// NewGCSBackend builds a GCSBackend from cfg, verifying the bucket is
// reachable.
func NewGCSBackend(ctx context.Context, cfg GCSConfig) (*GCSBackend, error) {
	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	} else if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("volume: creating GCS client: %w", err)
	}
	bucket := client.Bucket(cfg.BucketName)
	if _, err := bucket.Attrs(ctx); err != nil {
		return nil, fmt.Errorf("volume: accessing bucket %s: %w", cfg.BucketName, err)
	}

	logger.Info("volume: gcs backend initialised for bucket %s", cfg.BucketName)
	return &GCSBackend{client: client, bucket: bucket, prefix: cfg.Prefix, dtype: cfg.DType, budget: cfg.Budget}, nil
}

func (g *GCSBackend) objectName(origin box.Vec3, shape box.Vec3) string {
	return fmt.Sprintf("%s/%d_%d_%d-%d_%d_%d.bin", g.prefix,
		origin[0], origin[1], origin[2], shape[0], shape[1], shape[2])
}

// classifyGCS marks err transient if it carries a 503/504 response or a
// network time-out; everything else stays permanent.
func classifyGCS(err error) error {
	var ge *googleapi.Error
	if errors.As(err, &ge) {
		if TransientStatus(ge.Code) {
			return Transient(err)
		}
		return err
	}
	if isTimeout(err) {
		return Transient(err)
	}
	return err
}

// Get implements Accessor.
func (g *GCSBackend) Get(ctx context.Context, b box.Box) (Buffer, error) {
	if err := g.budget.Wait(ctx, int(b.Volume())*g.dtype.Size()); err != nil {
		return Buffer{}, fmt.Errorf("volume: gcs budget wait: %w", err)
	}
	key := g.objectName(b.Lo, b.Shape())

	var buf Buffer
	err := retry.DoNested(ctx, func(ctx context.Context) error {
		reader, err := g.bucket.Object(key).NewReader(ctx)
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotExist) {
				return fmt.Errorf("volume: gcs object not found: %s", key)
			}
			return classifyGCS(fmt.Errorf("volume: gcs get %s: %w", key, err))
		}
		defer reader.Close()

		data, err := io.ReadAll(reader)
		if err != nil {
			return Transient(fmt.Errorf("volume: gcs read %s: %w", key, err))
		}
		buf = Buffer{Shape: [3]int64(b.Shape()), DType: g.dtype, Data: data}
		return nil
	}, IsTransient)
	if err != nil {
		return Buffer{}, err
	}
	return buf, nil
}

// Write implements Writer.
func (g *GCSBackend) Write(ctx context.Context, origin box.Vec3, scale int, buf Buffer) error {
	if err := g.budget.Wait(ctx, len(buf.Data)); err != nil {
		return fmt.Errorf("volume: gcs budget wait: %w", err)
	}
	key := fmt.Sprintf("scale%d/%s", scale, g.objectName(origin, buf.ShapeVec()))
	err := retry.DoNested(ctx, func(ctx context.Context) error {
		w := g.bucket.Object(key).NewWriter(ctx)
		if _, err := w.Write(buf.Data); err != nil {
			w.Close()
			return classifyGCS(fmt.Errorf("volume: gcs write %s: %w", key, err))
		}
		if err := w.Close(); err != nil {
			return classifyGCS(fmt.Errorf("volume: gcs close %s: %w", key, err))
		}
		return nil
	}, IsTransient)
	if err != nil {
		return err
	}
	logger.Debug("volume: gcs wrote %s (%d bytes)", key, len(buf.Data))
	return nil
}

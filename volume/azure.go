package volume

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/janelia-flyem/recospark/box"
	"github.com/janelia-flyem/recospark/internal/common/logger"
	"github.com/janelia-flyem/recospark/internal/common/resources"
	"github.com/janelia-flyem/recospark/internal/common/retry"
)

// AzureConfig configures an AzureBackend.
type AzureConfig struct {
	AccountName      string
	AccountKey       string
	ContainerName    string
	Prefix           string
	SASToken         string // optional, used instead of AccountKey
	ConnectionString string // optional, takes precedence over both above
	DType            DType
	// Budget gates Get/Write calls by byte count against the shared
	// volume service. Nil disables gating.
	Budget *resources.BudgetGate
}

// AzureBackend is the Azure Blob Storage counterpart to S3Backend and
// GCSBackend: whole-box buffers stored as flat blobs keyed by origin
// and shape.
type AzureBackend struct {
	client    *azblob.Client
	container string
	prefix    string
	dtype     DType
	budget    *resources.BudgetGate
}

// NewAzureBackend builds an AzureBackend from cfg, verifying the
// container is reachable.
func NewAzureBackend(ctx context.Context, cfg AzureConfig) (*AzureBackend, error) {
	var client *azblob.Client
	var err error

	switch {
	case cfg.ConnectionString != "":
		client, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	case cfg.SASToken != "":
		serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/?%s", cfg.AccountName, cfg.SASToken)
		client, err = azblob.NewClientWithNoCredential(serviceURL, nil)
	case cfg.AccountKey != "":
		var cred *azblob.SharedKeyCredential
		cred, err = azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if err != nil {
			return nil, fmt.Errorf("volume: azure shared key credential: %w", err)
		}
		serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	default:
		return nil, fmt.Errorf("volume: azure backend requires a connection string, SAS token, or account key")
	}
	if err != nil {
		return nil, fmt.Errorf("volume: creating azure client: %w", err)
	}

	if _, err := client.ServiceClient().NewContainerClient(cfg.ContainerName).GetProperties(ctx, nil); err != nil {
		return nil, fmt.Errorf("volume: accessing container %s: %w", cfg.ContainerName, err)
	}

	logger.Info("volume: azure backend initialised for container %s", cfg.ContainerName)
	return &AzureBackend{client: client, container: cfg.ContainerName, prefix: cfg.Prefix, dtype: cfg.DType, budget: cfg.Budget}, nil
}

func (a *AzureBackend) blobName(origin box.Vec3, shape box.Vec3) string {
	return fmt.Sprintf("%s/%d_%d_%d-%d_%d_%d.bin", a.prefix,
		origin[0], origin[1], origin[2], shape[0], shape[1], shape[2])
}

// classifyAzure marks err transient if it carries a 503/504 response or
// a network time-out; everything else stays permanent.
func classifyAzure(err error) error {
	var re *azcore.ResponseError
	if errors.As(err, &re) {
		if TransientStatus(re.StatusCode) {
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
func (a *AzureBackend) Get(ctx context.Context, b box.Box) (Buffer, error) {
	if err := a.budget.Wait(ctx, int(b.Volume())*a.dtype.Size()); err != nil {
		return Buffer{}, fmt.Errorf("volume: azure budget wait: %w", err)
	}
	name := a.blobName(b.Lo, b.Shape())

	var buf Buffer
	err := retry.DoNested(ctx, func(ctx context.Context) error {
		blobClient := a.client.ServiceClient().NewContainerClient(a.container).NewBlobClient(name)

		resp, err := blobClient.DownloadStream(ctx, nil)
		if err != nil {
			return classifyAzure(fmt.Errorf("volume: azure download %s: %w", name, err))
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return Transient(fmt.Errorf("volume: azure read %s: %w", name, err))
		}
		buf = Buffer{Shape: [3]int64(b.Shape()), DType: a.dtype, Data: data}
		return nil
	}, IsTransient)
	if err != nil {
		return Buffer{}, err
	}
	return buf, nil
}

// Write implements Writer.
func (a *AzureBackend) Write(ctx context.Context, origin box.Vec3, scale int, buf Buffer) error {
	if err := a.budget.Wait(ctx, len(buf.Data)); err != nil {
		return fmt.Errorf("volume: azure budget wait: %w", err)
	}
	name := fmt.Sprintf("scale%d/%s", scale, a.blobName(origin, buf.ShapeVec()))
	err := retry.DoNested(ctx, func(ctx context.Context) error {
		blobClient := a.client.ServiceClient().NewContainerClient(a.container).NewBlockBlobClient(name)
		if _, err := blobClient.UploadBuffer(ctx, buf.Data, nil); err != nil {
			return classifyAzure(fmt.Errorf("volume: azure upload %s: %w", name, err))
		}
		return nil
	}, IsTransient)
	if err != nil {
		return err
	}
	logger.Debug("volume: azure wrote %s (%d bytes)", name, len(buf.Data))
	return nil
}

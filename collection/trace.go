package collection

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/recospark/internal/common/logger"
)

// runPartitionTraced invokes fn for a single partition, tagging any
// returned error with the job and partition that produced it so
// worker-pool failures are attributable in logs.
func runPartitionTraced(ctx context.Context, jobID string, partition int, fn func(context.Context, int) error) error {
	logger.Debug("collection: job %s partition %d starting", jobID, partition)
	if err := fn(ctx, partition); err != nil {
		return fmt.Errorf("collection: job %s partition %d: %w", jobID, partition, err)
	}
	logger.Debug("collection: job %s partition %d done", jobID, partition)
	return nil
}

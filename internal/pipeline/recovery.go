package pipeline

import (
	"context"

	"github.com/vaultstream/vaultstream/internal/models"
	"github.com/vaultstream/vaultstream/internal/worker"
)

// RequeueStuck scans for videos left in `processing` by an unclean
// shutdown and resubmits them to pool, restarting each from step 1 of the
// orchestrator sequence. Relocating an already-moved source is idempotent
// (storagePath already equals the final path, so Run's Step 1 is a no-op).
func (o *Orchestrator) RequeueStuck(ctx context.Context, pool *worker.Pool) error {
	var stuck []models.Video
	if err := o.db.Where("status = ?", models.StatusProcessing).Find(&stuck).Error; err != nil {
		return err
	}

	for _, v := range stuck {
		videoID := v.ID
		o.log.Infow("pipeline: requeueing video stuck in processing", "videoId", videoID)
		pool.Submit(func() {
			o.Run(ctx, videoID)
		})
	}
	return nil
}

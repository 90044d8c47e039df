package videos

import (
	"context"
	"fmt"

	"fknsrs.biz/p/vidshare/internal/ctxtranscoder"
	"fknsrs.biz/p/vidshare/internal/jobqueue"
	"fknsrs.biz/p/vidshare/internal/queuenames"
)

// DeleteAsset removes a deleted video's asset from the transcoder. The
// payload is the asset id.
func DeleteAsset(ctx context.Context, w *jobqueue.Worker, j *jobqueue.Job) (string, error) {
	api, err := ctxtranscoder.Require(ctx)
	if err != nil {
		return "", jobqueue.Permanent(fmt.Errorf("videos.DeleteAsset: %w", err))
	}

	if err := api.DeleteAsset(ctx, j.Payload); err != nil {
		return "", fmt.Errorf("videos.DeleteAsset: %w", err)
	}

	return "deleted asset " + j.Payload, nil
}

func RegisterJobs(w *jobqueue.Worker) error {
	if err := w.Register(queuenames.VideoDeleteAsset, DeleteAsset); err != nil {
		return fmt.Errorf("videos.RegisterJobs: %w", err)
	}

	return nil
}

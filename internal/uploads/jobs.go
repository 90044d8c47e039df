package uploads

import (
	"context"
	"fmt"

	"fknsrs.biz/p/vidshare/internal/ctxobjectstore"
	"fknsrs.biz/p/vidshare/internal/jobqueue"
	"fknsrs.biz/p/vidshare/internal/queuenames"
)

// DeleteObject removes an object that is no longer referenced. The payload is
// the object key.
func DeleteObject(ctx context.Context, w *jobqueue.Worker, j *jobqueue.Job) (string, error) {
	store, err := ctxobjectstore.Require(ctx)
	if err != nil {
		return "", jobqueue.Permanent(fmt.Errorf("uploads.DeleteObject: %w", err))
	}

	if j.Payload == "" {
		return "", jobqueue.Permanent(fmt.Errorf("uploads.DeleteObject: empty object key"))
	}

	if err := store.Delete(ctx, j.Payload); err != nil {
		return "", fmt.Errorf("uploads.DeleteObject: %w", err)
	}

	return "deleted object " + j.Payload, nil
}

func RegisterJobs(w *jobqueue.Worker) error {
	if err := w.Register(queuenames.ObjectDelete, DeleteObject); err != nil {
		return fmt.Errorf("uploads.RegisterJobs: %w", err)
	}

	return nil
}

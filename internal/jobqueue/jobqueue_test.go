package jobqueue_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"fknsrs.biz/p/sorm"
	"github.com/stretchr/testify/assert"

	"fknsrs.biz/p/vidshare/internal/ctxdb"
	"fknsrs.biz/p/vidshare/internal/dbtest"
	"fknsrs.biz/p/vidshare/internal/jobqueue"
)

func addJob(t *testing.T, ctx context.Context, w *jobqueue.Worker, job *jobqueue.Job) {
	t.Helper()

	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		return w.Add(ctx, tx, job)
	}); err != nil {
		t.Fatal(err)
	}
}

func reload(t *testing.T, ctx context.Context, id int) jobqueue.Job {
	t.Helper()

	var job jobqueue.Job
	if err := sorm.FindFirstWhere(ctx, ctxdb.GetDB(ctx), &job, "where id = ?", id); err != nil {
		t.Fatal(err)
	}

	return job
}

func TestRunPendingSuccess(t *testing.T) {
	a := assert.New(t)

	ctx, _ := dbtest.Context(t)

	var payloads []string
	w := jobqueue.NewWorker(map[string]jobqueue.WorkerFunction{
		"echo": func(ctx context.Context, w *jobqueue.Worker, j *jobqueue.Job) (string, error) {
			payloads = append(payloads, j.Payload)
			return "ok " + j.Payload, nil
		},
	})

	job := jobqueue.Job{QueueName: "echo", Payload: "a"}
	addJob(t, ctx, w, &job)
	addJob(t, ctx, w, &jobqueue.Job{QueueName: "echo", Payload: "b"})

	n, err := w.RunPending(ctx)
	a.NoError(err)
	a.Equal(2, n)
	a.Equal([]string{"a", "b"}, payloads)

	stored := reload(t, ctx, job.ID)
	a.NotNil(stored.FinishedAt)
	a.Nil(stored.FailedAt)
	a.Equal(jobqueue.DefaultAttempts-1, stored.AttemptsRemaining)
}

func TestAddUnknownQueue(t *testing.T) {
	a := assert.New(t)

	ctx, _ := dbtest.Context(t)

	w := jobqueue.NewWorker(nil)

	err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		return w.Add(ctx, tx, &jobqueue.Job{QueueName: "missing"})
	})
	a.ErrorIs(err, jobqueue.ErrWorkerDoesNotExist)
}

func TestRetryThenFail(t *testing.T) {
	for _, tc := range []struct {
		name     string
		err      error
		attempts int
	}{
		{"Transient", errors.New("flaky"), 3},
		{"Permanent", jobqueue.Permanent(errors.New("broken")), 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			ctx, _ := dbtest.Context(t)

			calls := 0
			w := jobqueue.NewWorker(map[string]jobqueue.WorkerFunction{
				"fail": func(ctx context.Context, w *jobqueue.Worker, j *jobqueue.Job) (string, error) {
					calls++
					return "", tc.err
				},
			})

			var failures []error
			a.NoError(w.OnFailure("fail", func(ctx context.Context, w *jobqueue.Worker, j *jobqueue.Job, err error) error {
				failures = append(failures, err)
				return nil
			}))

			job := jobqueue.Job{QueueName: "fail", Payload: "x", AttemptsRemaining: 3, FailureDelay: time.Nanosecond}
			addJob(t, ctx, w, &job)

			n, err := w.RunPending(ctx)
			a.NoError(err)
			a.Equal(tc.attempts, n)
			a.Equal(tc.attempts, calls)

			if a.Len(failures, 1) {
				a.ErrorIs(failures[0], tc.err)
			}

			stored := reload(t, ctx, job.ID)
			a.NotNil(stored.FinishedAt)
			a.NotNil(stored.FailedAt)
			a.Len(stored.ErrorMessages, tc.attempts)
		})
	}
}

func TestPanicIsFailure(t *testing.T) {
	a := assert.New(t)

	ctx, _ := dbtest.Context(t)

	w := jobqueue.NewWorker(map[string]jobqueue.WorkerFunction{
		"panic": func(ctx context.Context, w *jobqueue.Worker, j *jobqueue.Job) (string, error) {
			panic("oh no")
		},
	})

	job := jobqueue.Job{QueueName: "panic", AttemptsRemaining: 1}
	addJob(t, ctx, w, &job)

	n, err := w.RunPending(ctx)
	a.NoError(err)
	a.Equal(1, n)

	stored := reload(t, ctx, job.ID)
	a.NotNil(stored.FailedAt)
	if a.Len(stored.ErrorMessages, 1) {
		a.Contains(stored.ErrorMessages[0], "oh no")
	}
}

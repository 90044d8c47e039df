// Package workflow runs title and description generation in the background.
//
// A run is a workflow_runs row plus a chain of job queue jobs, one per step.
// Each step job carries the run id as its payload, does its work, and enqueues
// the next step in the same transaction that records its result. Steps are
// retried by the queue; errors that cannot improve with a retry end the run.
package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"fknsrs.biz/p/sorm"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/vidshare/internal/apierror"
	"fknsrs.biz/p/vidshare/internal/ctxauth"
	"fknsrs.biz/p/vidshare/internal/ctxclock"
	"fknsrs.biz/p/vidshare/internal/ctxconfig"
	"fknsrs.biz/p/vidshare/internal/ctxdb"
	"fknsrs.biz/p/vidshare/internal/ctxgeneration"
	"fknsrs.biz/p/vidshare/internal/ctxhttpclient"
	"fknsrs.biz/p/vidshare/internal/ctxjobqueue"
	"fknsrs.biz/p/vidshare/internal/ctxlogger"
	"fknsrs.biz/p/vidshare/internal/ctxtranscoder"
	"fknsrs.biz/p/vidshare/internal/generation"
	"fknsrs.biz/p/vidshare/internal/jobqueue"
	"fknsrs.biz/p/vidshare/internal/ptr"
	"fknsrs.biz/p/vidshare/internal/queuenames"
	"fknsrs.biz/p/vidshare/internal/videos"
	"fknsrs.biz/p/vidshare/models"
)

var (
	ErrRunNotFound     = fmt.Errorf("workflow run not found")
	ErrVideoNotFound   = fmt.Errorf("video not found")
	ErrNoTranscript    = fmt.Errorf("video has no transcript")
	ErrEmptyTranscript = fmt.Errorf("transcript is empty")
)

func validKind(kind string) bool {
	return kind == models.WorkflowKindTitle || kind == models.WorkflowKindDescription
}

func enqueue(ctx context.Context, tx *sql.Tx, queueName, runID string) error {
	if _, err := ctxjobqueue.Enqueue(ctx, tx, queueName, runID, ctxconfig.GetConfig(ctx).WorkflowAttempts); err != nil {
		return fmt.Errorf("could not enqueue %s: %w", queueName, err)
	}

	return nil
}

// StartGeneration creates a run for one of the actor's videos and queues its
// first step. It returns as soon as the run is recorded.
func StartGeneration(ctx context.Context, videoID int, kind string) (*models.WorkflowRun, error) {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	if !validKind(kind) {
		return nil, apierror.New(apierror.BadRequest, "unknown generation kind %q", kind)
	}

	var run models.WorkflowRun
	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := videos.FindOwned(ctx, tx, videoID, actor.ID); err != nil {
			return err
		}

		now := ctxclock.NowOrReal(ctx)

		run = models.WorkflowRun{
			CreatedAt: now,
			UpdatedAt: now,
			RunID:     uuid.NewString(),
			Kind:      kind,
			VideoID:   videoID,
			UserID:    actor.ID,
			Step:      queuenames.WorkflowFetchVideo,
			Status:    models.WorkflowStatusPending,
		}

		if err := sorm.CreateRecord(ctx, tx, &run); err != nil {
			return fmt.Errorf("could not create run: %w", err)
		}

		return enqueue(ctx, tx, queuenames.WorkflowFetchVideo, run.RunID)
	}); err != nil {
		return nil, fmt.Errorf("workflow.StartGeneration: %w", err)
	}

	ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
		"workflow.run_id": run.RunID,
		"workflow.kind":   kind,
		"video.id":        videoID,
	}).Info("started generation")

	return &run, nil
}

// GetRun shows the actor one of their runs.
func GetRun(ctx context.Context, runID string) (*models.WorkflowRun, error) {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	var run models.WorkflowRun
	if err := sorm.FindFirstWhere(ctx, ctxdb.GetDB(ctx), &run, "where run_id = ? and user_id = ?", runID, actor.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.New(apierror.NotFound, "workflow run %s not found", runID)
		}

		return nil, fmt.Errorf("workflow.GetRun: %w", err)
	}

	return &run, nil
}

func findRun(ctx context.Context, q sorm.Querier, runID string) (*models.WorkflowRun, error) {
	var run models.WorkflowRun
	if err := sorm.FindFirstWhere(ctx, q, &run, "where run_id = ?", runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, jobqueue.Permanent(fmt.Errorf("%w: %s", ErrRunNotFound, runID))
		}

		return nil, fmt.Errorf("could not find run: %w", err)
	}

	return &run, nil
}

func findVideo(ctx context.Context, q sorm.Querier, run *models.WorkflowRun) (*models.Video, error) {
	v, err := videos.FindOwned(ctx, q, run.VideoID, run.UserID)
	if err != nil {
		if c := apierror.CodeOf(err); c == apierror.NotFound || c == apierror.Unauthorized {
			return nil, jobqueue.Permanent(fmt.Errorf("%w: %d", ErrVideoNotFound, run.VideoID))
		}

		return nil, err
	}

	return v, nil
}

func finished(run *models.WorkflowRun) bool {
	return run.Status == models.WorkflowStatusSucceeded || run.Status == models.WorkflowStatusFailed
}

// advance records a completed step and queues the next one, or marks the run
// succeeded after the last step.
func advance(ctx context.Context, tx *sql.Tx, run *models.WorkflowRun, step string) error {
	next := queuenames.NextWorkflowStep(step)

	run.UpdatedAt = ctxclock.NowOrReal(ctx)
	if next == "" {
		run.Status = models.WorkflowStatusSucceeded
	} else {
		run.Status = models.WorkflowStatusRunning
		run.Step = next
	}

	if err := sorm.SaveRecord(ctx, tx, run); err != nil {
		return fmt.Errorf("could not save run: %w", err)
	}

	if next == "" {
		return nil
	}

	return enqueue(ctx, tx, next, run.RunID)
}

// stepFunc does a step's work outside any transaction, recording results on
// run. A non-nil commit is run in the transaction that saves run.
type stepFunc func(ctx context.Context, run *models.WorkflowRun) (commit func(ctx context.Context, tx *sql.Tx) error, err error)

// step loads the run named by a job's payload and hands it to fn. Runs that
// have already finished are left alone.
func step(name string, fn stepFunc) jobqueue.WorkerFunction {
	return func(ctx context.Context, w *jobqueue.Worker, j *jobqueue.Job) (string, error) {
		ctx, l := ctxlogger.WithFields(ctx, logrus.Fields{"workflow.run_id": j.Payload, "workflow.step": name})

		run, err := findRun(ctx, ctxdb.GetDB(ctx), j.Payload)
		if err != nil {
			return "", fmt.Errorf("workflow.%s: %w", name, err)
		}

		if finished(run) {
			return "run already finished", nil
		}

		commit, err := fn(ctx, run)
		if err != nil {
			return "", fmt.Errorf("workflow.%s: %w", name, err)
		}

		if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
			if commit != nil {
				if err := commit(ctx, tx); err != nil {
					return err
				}
			}

			return advance(ctx, tx, run, name)
		}); err != nil {
			return "", fmt.Errorf("workflow.%s: %w", name, err)
		}

		l.Debug("finished step")

		return "finished " + name, nil
	}
}

func transcriptSource(v *models.Video) error {
	if v.PlaybackID == nil || v.TrackID == nil {
		return jobqueue.Permanent(fmt.Errorf("%w: video %d", ErrNoTranscript, v.ID))
	}

	return nil
}

// FetchVideo checks that the video still exists and has a transcript to work
// from.
var FetchVideo = step(queuenames.WorkflowFetchVideo, func(ctx context.Context, run *models.WorkflowRun) (func(context.Context, *sql.Tx) error, error) {
	v, err := findVideo(ctx, ctxdb.GetDB(ctx), run)
	if err != nil {
		return nil, err
	}

	return nil, transcriptSource(v)
})

var FetchTranscript = step(queuenames.WorkflowFetchTranscript, func(ctx context.Context, run *models.WorkflowRun) (func(context.Context, *sql.Tx) error, error) {
	api, err := ctxtranscoder.Require(ctx)
	if err != nil {
		return nil, jobqueue.Permanent(err)
	}

	v, err := findVideo(ctx, ctxdb.GetDB(ctx), run)
	if err != nil {
		return nil, err
	}

	if err := transcriptSource(v); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, api.TranscriptURL(*v.PlaybackID, *v.TrackID), nil)
	if err != nil {
		return nil, jobqueue.Permanent(fmt.Errorf("could not build transcript request: %w", err))
	}

	d, err := ctxhttpclient.Do(ctx, req)
	if err != nil {
		var statusErr *ctxhttpclient.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, jobqueue.Permanent(fmt.Errorf("%w: %w", ErrNoTranscript, err))
		}

		return nil, fmt.Errorf("could not fetch transcript: %w", err)
	}

	transcript := strings.TrimSpace(string(d))
	if transcript == "" {
		return nil, jobqueue.Permanent(ErrEmptyTranscript)
	}

	run.Transcript = &transcript

	return nil, nil
})

var Generate = step(queuenames.WorkflowGenerate, func(ctx context.Context, run *models.WorkflowRun) (func(context.Context, *sql.Tx) error, error) {
	g, err := ctxgeneration.Require(ctx)
	if err != nil {
		return nil, jobqueue.Permanent(err)
	}

	transcript := ptr.Deref(run.Transcript, "")
	if transcript == "" {
		return nil, jobqueue.Permanent(ErrEmptyTranscript)
	}

	prompt := generation.TitlePrompt
	if run.Kind == models.WorkflowKindDescription {
		prompt = generation.DescriptionPrompt
	}

	result, err := g.Generate(ctx, prompt, transcript)
	if err != nil {
		if errors.Is(err, generation.ErrEmptyResult) {
			return nil, jobqueue.Permanent(err)
		}

		return nil, fmt.Errorf("could not generate %s: %w", run.Kind, err)
	}

	run.Result = &result

	return nil, nil
})

// Persist writes the generated text onto the video. Titles longer than the
// video title limit are cut short.
var Persist = step(queuenames.WorkflowPersist, func(ctx context.Context, run *models.WorkflowRun) (func(context.Context, *sql.Tx) error, error) {
	result := ptr.Deref(run.Result, "")
	if result == "" {
		return nil, jobqueue.Permanent(generation.ErrEmptyResult)
	}

	if !validKind(run.Kind) {
		return nil, jobqueue.Permanent(fmt.Errorf("unknown generation kind %q", run.Kind))
	}

	return func(ctx context.Context, tx *sql.Tx) error {
		v, err := findVideo(ctx, tx, run)
		if err != nil {
			return err
		}

		if run.Kind == models.WorkflowKindTitle {
			title := strings.Trim(result, "\"' ")
			if r := []rune(title); len(r) > videos.MaxTitleLength {
				title = string(r[:videos.MaxTitleLength])
			}
			v.Title = title
		} else {
			v.Description = result
		}

		v.UpdatedAt = ctxclock.NowOrReal(ctx)

		if err := sorm.SaveRecord(ctx, tx, v); err != nil {
			return fmt.Errorf("could not save video: %w", err)
		}

		return nil
	}, nil
})

// Fail marks a run failed once one of its steps has given up.
func Fail(ctx context.Context, w *jobqueue.Worker, j *jobqueue.Job, runErr error) error {
	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		run, err := findRun(ctx, tx, j.Payload)
		if err != nil {
			if errors.Is(err, ErrRunNotFound) {
				return nil
			}
			return err
		}

		if finished(run) {
			return nil
		}

		run.Status = models.WorkflowStatusFailed
		run.Step = j.QueueName
		run.Error = ptr.To(runErr.Error())
		run.UpdatedAt = ctxclock.NowOrReal(ctx)

		return sorm.SaveRecord(ctx, tx, run)
	}); err != nil {
		return fmt.Errorf("workflow.Fail: %w", err)
	}

	ctxlogger.GetLogger(ctx).WithError(runErr).WithFields(logrus.Fields{"workflow.run_id": j.Payload}).Warn("generation failed")

	return nil
}

func Register(w *jobqueue.Worker) error {
	for name, fn := range map[string]jobqueue.WorkerFunction{
		queuenames.WorkflowFetchVideo:      FetchVideo,
		queuenames.WorkflowFetchTranscript: FetchTranscript,
		queuenames.WorkflowGenerate:        Generate,
		queuenames.WorkflowPersist:         Persist,
	} {
		if err := w.Register(name, fn); err != nil {
			return fmt.Errorf("workflow.Register: %w", err)
		}

		if err := w.OnFailure(name, Fail); err != nil {
			return fmt.Errorf("workflow.Register: %w", err)
		}
	}

	return nil
}

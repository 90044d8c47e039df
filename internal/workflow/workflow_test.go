package workflow_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"fknsrs.biz/p/sorm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"fknsrs.biz/p/vidshare/internal/apierror"
	"fknsrs.biz/p/vidshare/internal/config"
	"fknsrs.biz/p/vidshare/internal/ctxauth"
	"fknsrs.biz/p/vidshare/internal/ctxclock"
	"fknsrs.biz/p/vidshare/internal/ctxconfig"
	"fknsrs.biz/p/vidshare/internal/ctxdb"
	"fknsrs.biz/p/vidshare/internal/ctxgeneration"
	"fknsrs.biz/p/vidshare/internal/ctxhttpclient"
	"fknsrs.biz/p/vidshare/internal/ctxjobqueue"
	"fknsrs.biz/p/vidshare/internal/ctxtranscoder"
	"fknsrs.biz/p/vidshare/internal/dbtest"
	"fknsrs.biz/p/vidshare/internal/generation"
	"fknsrs.biz/p/vidshare/internal/jobqueue"
	"fknsrs.biz/p/vidshare/internal/ptr"
	"fknsrs.biz/p/vidshare/internal/queuenames"
	"fknsrs.biz/p/vidshare/internal/transcoder"
	"fknsrs.biz/p/vidshare/internal/workflow"
	"fknsrs.biz/p/vidshare/models"
)

type roundTripFunc func(r *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// transcripts serves text tracks by URL; anything else is a 404.
func transcripts(m map[string]string) *http.Client {
	return &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		body, ok := m[r.URL.String()]
		status := http.StatusOK
		if !ok {
			status = http.StatusNotFound
		}

		return &http.Response{
			StatusCode: status,
			Header:     http.Header{"content-type": []string{"text/plain"}},
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    r,
		}, nil
	})}
}

type env struct {
	ctx   context.Context
	clock *ctxclock.SteppingClock
	w     *jobqueue.Worker
	gen   *generation.Mock
	alice *models.User
	video *models.Video
}

func setup(t *testing.T, attempts int) *env {
	ctx, clock := dbtest.Context(t)

	w := jobqueue.NewWorker(nil)
	if err := workflow.Register(w); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.WorkflowAttempts = attempts

	gen := &generation.Mock{}

	ctx = ctxjobqueue.WithWorker(ctx, w)
	ctx = ctxconfig.WithConfig(ctx, cfg)
	ctx = ctxtranscoder.WithAPI(ctx, &transcoder.Mock{})
	ctx = ctxgeneration.WithGenerator(ctx, gen)
	ctx = ctxhttpclient.WithHTTPClient(ctx, transcripts(map[string]string{
		"https://stream.test/pb_1/text/tr_1.txt":     "  hello and welcome to my video \n",
		"https://stream.test/pb_2/text/tr_empty.txt": "\n\n",
	}))

	alice := dbtest.CreateUser(t, ctx, "alice")
	v := dbtest.CreateVideo(t, ctx, alice, "Untitled", func(v *models.Video) {
		v.PlaybackID = ptr.To("pb_1")
		v.TrackID = ptr.To("tr_1")
		v.TrackStatus = ptr.To("ready")
	})

	return &env{ctx: ctx, clock: clock, w: w, gen: gen, alice: alice, video: v}
}

func reloadRun(t *testing.T, ctx context.Context, runID string) models.WorkflowRun {
	var run models.WorkflowRun
	if err := sorm.FindFirstWhere(ctx, ctxdb.GetDB(ctx), &run, "where run_id = ?", runID); err != nil {
		t.Fatal(err)
	}
	return run
}

func reloadVideo(t *testing.T, ctx context.Context, id int) models.Video {
	var v models.Video
	if err := sorm.FindFirstWhere(ctx, ctxdb.GetDB(ctx), &v, "where id = ?", id); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestStartGeneration(t *testing.T) {
	e := setup(t, 3)
	bob := dbtest.CreateUser(t, e.ctx, "bob")

	for _, tc := range []struct {
		name string
		as   *models.User
		id   int
		kind string
		code apierror.Code
	}{
		{"Anonymous", nil, e.video.ID, models.WorkflowKindTitle, apierror.Unauthorized},
		{"NotOwner", bob, e.video.ID, models.WorkflowKindTitle, apierror.Unauthorized},
		{"Missing", e.alice, 9999, models.WorkflowKindTitle, apierror.NotFound},
		{"BadKind", e.alice, e.video.ID, "thumbnail", apierror.BadRequest},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := e.ctx
			if tc.as != nil {
				c = ctxauth.WithUser(e.ctx, tc.as)
			}

			_, err := workflow.StartGeneration(c, tc.id, tc.kind)
			assert.Equal(t, tc.code, apierror.CodeOf(err))
		})
	}

	t.Run("Queued", func(t *testing.T) {
		a := assert.New(t)

		run, err := workflow.StartGeneration(ctxauth.WithUser(e.ctx, e.alice), e.video.ID, models.WorkflowKindTitle)
		if !a.NoError(err) {
			return
		}

		a.NotEmpty(run.RunID)
		a.Equal(models.WorkflowStatusPending, run.Status)
		a.Equal(1, dbtest.Count(t, e.ctx, "select count(*) from jobs where queue_name = ? and payload = ? and attempts_remaining = 3", queuenames.WorkflowFetchVideo, run.RunID))

		got, err := workflow.GetRun(ctxauth.WithUser(e.ctx, e.alice), run.RunID)
		if a.NoError(err) {
			a.Equal(run.RunID, got.RunID)
		}

		_, err = workflow.GetRun(ctxauth.WithUser(e.ctx, bob), run.RunID)
		a.Equal(apierror.NotFound, apierror.CodeOf(err))
	})
}

func TestRunTitle(t *testing.T) {
	a := assert.New(t)

	e := setup(t, 3)
	e.gen.On("Generate", mock.Anything, generation.TitlePrompt, "hello and welcome to my video").Return(`"Welcome To My Video"`, nil)

	run, err := workflow.StartGeneration(ctxauth.WithUser(e.ctx, e.alice), e.video.ID, models.WorkflowKindTitle)
	if !a.NoError(err) {
		return
	}

	n, err := e.w.RunPending(e.ctx)
	a.NoError(err)
	a.Equal(4, n)

	stored := reloadRun(t, e.ctx, run.RunID)
	a.Equal(models.WorkflowStatusSucceeded, stored.Status)
	a.Equal(queuenames.WorkflowPersist, stored.Step)
	a.Equal("hello and welcome to my video", ptr.Deref(stored.Transcript, ""))
	a.Nil(stored.Error)

	a.Equal("Welcome To My Video", reloadVideo(t, e.ctx, e.video.ID).Title)

	e.gen.AssertExpectations(t)
}

func TestRunDescription(t *testing.T) {
	a := assert.New(t)

	e := setup(t, 3)
	e.gen.On("Generate", mock.Anything, generation.DescriptionPrompt, "hello and welcome to my video").Return("In this video I say hello.", nil)

	run, err := workflow.StartGeneration(ctxauth.WithUser(e.ctx, e.alice), e.video.ID, models.WorkflowKindDescription)
	if !a.NoError(err) {
		return
	}

	_, err = e.w.RunPending(e.ctx)
	a.NoError(err)

	a.Equal(models.WorkflowStatusSucceeded, reloadRun(t, e.ctx, run.RunID).Status)

	v := reloadVideo(t, e.ctx, e.video.ID)
	a.Equal("In this video I say hello.", v.Description)
	a.Equal("Untitled", v.Title)
}

func TestRunAborts(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(v *models.Video)
		gen    func(m *generation.Mock)
		step   string
		err    error
	}{
		{
			name:   "NoTranscript",
			mutate: func(v *models.Video) { v.TrackID = nil },
			step:   queuenames.WorkflowFetchVideo,
			err:    workflow.ErrNoTranscript,
		},
		{
			name:   "TranscriptMissing",
			mutate: func(v *models.Video) { v.TrackID = ptr.To("tr_gone") },
			step:   queuenames.WorkflowFetchTranscript,
			err:    workflow.ErrNoTranscript,
		},
		{
			name:   "TranscriptEmpty",
			mutate: func(v *models.Video) { v.PlaybackID = ptr.To("pb_2"); v.TrackID = ptr.To("tr_empty") },
			step:   queuenames.WorkflowFetchTranscript,
			err:    workflow.ErrEmptyTranscript,
		},
		{
			name: "EmptyResult",
			gen: func(m *generation.Mock) {
				m.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", generation.ErrEmptyResult)
			},
			step: queuenames.WorkflowGenerate,
			err:  generation.ErrEmptyResult,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			e := setup(t, 3)
			if tc.mutate != nil {
				tc.mutate(e.video)
				save(t, e.ctx, e.video)
			}
			if tc.gen != nil {
				tc.gen(e.gen)
			}

			run, err := workflow.StartGeneration(ctxauth.WithUser(e.ctx, e.alice), e.video.ID, models.WorkflowKindTitle)
			if !a.NoError(err) {
				return
			}

			_, err = e.w.RunPending(e.ctx)
			a.NoError(err)

			stored := reloadRun(t, e.ctx, run.RunID)
			a.Equal(models.WorkflowStatusFailed, stored.Status)
			a.Equal(tc.step, stored.Step)
			if a.NotNil(stored.Error) {
				a.Contains(*stored.Error, tc.err.Error())
			}

			a.Equal(1, dbtest.Count(t, e.ctx, "select count(*) from jobs where queue_name = ? and failed_at is not null and attempts_remaining = 2", tc.step))
			a.Equal("Untitled", reloadVideo(t, e.ctx, e.video.ID).Title)
		})
	}
}

func TestRunRetriesThenFails(t *testing.T) {
	a := assert.New(t)

	e := setup(t, 2)
	e.gen.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("upstream unavailable"))

	run, err := workflow.StartGeneration(ctxauth.WithUser(e.ctx, e.alice), e.video.ID, models.WorkflowKindTitle)
	if !a.NoError(err) {
		return
	}

	_, err = e.w.RunPending(e.ctx)
	a.NoError(err)
	a.Equal(models.WorkflowStatusRunning, reloadRun(t, e.ctx, run.RunID).Status)

	e.clock.Set(dbtest.Start.Add(time.Hour))

	_, err = e.w.RunPending(e.ctx)
	a.NoError(err)

	stored := reloadRun(t, e.ctx, run.RunID)
	a.Equal(models.WorkflowStatusFailed, stored.Status)
	if a.NotNil(stored.Error) {
		a.Contains(*stored.Error, "upstream unavailable")
	}

	e.gen.AssertNumberOfCalls(t, "Generate", 2)
}

func TestFinishedRunIsLeftAlone(t *testing.T) {
	a := assert.New(t)

	e := setup(t, 3)

	out, err := workflow.Persist(e.ctx, e.w, &jobqueue.Job{QueueName: queuenames.WorkflowPersist, Payload: "no-such-run"})
	a.True(jobqueue.IsPermanent(err))
	a.ErrorIs(err, workflow.ErrRunNotFound)
	a.Empty(out)

	run, err := workflow.StartGeneration(ctxauth.WithUser(e.ctx, e.alice), e.video.ID, models.WorkflowKindTitle)
	if !a.NoError(err) {
		return
	}

	run.Status = models.WorkflowStatusFailed
	save(t, e.ctx, run)

	out, err = workflow.FetchVideo(e.ctx, e.w, &jobqueue.Job{QueueName: queuenames.WorkflowFetchVideo, Payload: run.RunID})
	a.NoError(err)
	a.Equal("run already finished", out)
}

func save(t *testing.T, ctx context.Context, v interface{}) {
	t.Helper()

	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		return sorm.SaveRecord(ctx, tx, v)
	}); err != nil {
		t.Fatal(err)
	}
}

package jobqueue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"fknsrs.biz/p/sorm"
	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/vidshare/internal/catchpanic"
	"fknsrs.biz/p/vidshare/internal/ctxclock"
	"fknsrs.biz/p/vidshare/internal/ctxdb"
	"fknsrs.biz/p/vidshare/internal/ctxlogger"
)

// worker

var (
	ErrWorkerExists       = fmt.Errorf("worker already exists")
	ErrWorkerDoesNotExist = fmt.Errorf("worker does not exist")
	ErrNoPendingJobs      = fmt.Errorf("no pending jobs")
)

type WorkerFunction func(ctx context.Context, w *Worker, j *Job) (string, error)

// FailureFunction runs once when a job has failed for good, either with a
// permanent error or after its last attempt.
type FailureFunction func(ctx context.Context, w *Worker, j *Job, err error) error

type Worker struct {
	l  sync.RWMutex
	ch chan struct{}
	m  map[string]WorkerFunction
	f  map[string]FailureFunction
}

func NewWorker(workerFunctions map[string]WorkerFunction) *Worker {
	if workerFunctions == nil {
		workerFunctions = make(map[string]WorkerFunction)
	}

	return &Worker{
		ch: make(chan struct{}, 100),
		m:  workerFunctions,
		f:  make(map[string]FailureFunction),
	}
}

func (w *Worker) failIfAnyDoNotExist(queueNames []string) error {
	var a []string

	for _, queueName := range queueNames {
		if _, ok := w.m[queueName]; !ok {
			a = append(a, queueName)
		}
	}

	if len(a) > 0 {
		return fmt.Errorf("jobqueue.Worker.failIfAnyDoNotExist: worker(s) do not exist: %v: %w", a, ErrWorkerDoesNotExist)
	}

	return nil
}

func (w *Worker) failIfAnyExist(queueNames []string) error {
	var a []string

	for _, queueName := range queueNames {
		if _, ok := w.m[queueName]; ok {
			a = append(a, queueName)
		}
	}

	if len(a) > 0 {
		return fmt.Errorf("jobqueue.Worker.failIfAnyExist: worker(s) already exist: %v: %w", a, ErrWorkerExists)
	}

	return nil
}

// Add inserts job inside tx, so that it only becomes visible if the caller's
// transaction commits.
func (w *Worker) Add(ctx context.Context, tx *sql.Tx, job *Job) error {
	w.l.RLock()
	if err := w.failIfAnyDoNotExist([]string{job.QueueName}); err != nil {
		w.l.RUnlock()
		return fmt.Errorf("jobqueue.Worker.Add: %w", err)
	}
	w.l.RUnlock()

	now := ctxclock.NowOrReal(ctx)

	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.RunAfter.IsZero() {
		job.RunAfter = now
	}
	if job.FailureDelay == 0 {
		job.FailureDelay = DefaultFailureDelay
	}
	if job.AttemptsRemaining == 0 {
		job.AttemptsRemaining = DefaultAttempts
	}

	if err := sorm.CreateRecord(ctx, tx, job); err != nil {
		return fmt.Errorf("jobqueue.Worker.Add: could not create job record: %w", err)
	}

	select {
	case w.ch <- struct{}{}:
	default:
		// channel already full
	}

	return nil
}

func (w *Worker) Trigger() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

func (w *Worker) RegisterAll(workers map[string]WorkerFunction) error {
	var queueNames []string
	for queueName := range workers {
		queueNames = append(queueNames, queueName)
	}

	w.l.Lock()
	defer w.l.Unlock()

	if err := w.failIfAnyExist(queueNames); err != nil {
		return fmt.Errorf("jobqueue.Worker.RegisterAll: %w", err)
	}

	for queueName, workerFunc := range workers {
		w.m[queueName] = workerFunc
	}

	return nil
}

func (w *Worker) Register(queueName string, workerFunction WorkerFunction) error {
	if err := w.RegisterAll(map[string]WorkerFunction{queueName: workerFunction}); err != nil {
		return fmt.Errorf("jobqueue.Worker.Register: %w", err)
	}

	return nil
}

// OnFailure sets the failure function for a registered queue.
func (w *Worker) OnFailure(queueName string, fn FailureFunction) error {
	w.l.Lock()
	defer w.l.Unlock()

	if err := w.failIfAnyDoNotExist([]string{queueName}); err != nil {
		return fmt.Errorf("jobqueue.Worker.OnFailure: %w", err)
	}

	w.f[queueName] = fn

	return nil
}

func (w *Worker) GetQueueNames() []string {
	w.l.RLock()
	defer w.l.RUnlock()

	var queueNames []string

	for k := range w.m {
		queueNames = append(queueNames, k)
	}

	sort.Strings(queueNames)

	return queueNames
}

func (w *Worker) getFunctions(queueName string) (WorkerFunction, FailureFunction, bool) {
	w.l.RLock()
	defer w.l.RUnlock()

	fn, ok := w.m[queueName]

	return fn, w.f[queueName], ok
}

func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	db := ctxdb.GetDB(ctx)
	if db == nil {
		return false, fmt.Errorf("jobqueue.Worker.RunOnce: %w", ctxdb.ErrNoDB)
	}

	tx1, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("jobqueue.Worker.RunOnce: could not open transaction to find/reserve: %w", err)
	}
	defer tx1.Rollback()

	attempts := 25
again:
	attempts--
	job, err := findNextAndReserve(ctx, tx1, w.GetQueueNames(), ctxclock.NowOrReal(ctx), DefaultReservationPeriod)
	if err != nil {
		if strings.Contains(err.Error(), "database is locked") && attempts > 0 {
			time.Sleep(time.Duration(rand.Int63n(int64(time.Millisecond) * 500)))
			goto again
		}
		return false, fmt.Errorf("jobqueue.Worker.RunOnce: could not find/reserve job: %w", err)
	}

	if job == nil {
		return false, ErrNoPendingJobs
	}

	if err := tx1.Commit(); err != nil {
		return false, fmt.Errorf("jobqueue.Worker.RunOnce: could not commit transaction to find/reserve: %w", err)
	}

	ctx, l := ctxlogger.WithFields(ctx, logrus.Fields{
		"job.queue_name": job.QueueName,
		"job.id":         job.ID,
	})

	l.Info("found pending job, running function")

	workerFunction, failureFunction, ok := w.getFunctions(job.QueueName)
	if !ok {
		return false, fmt.Errorf("jobqueue.Worker.RunOnce: worker function not set for queue: %s", job.QueueName)
	}

	outputMessage, runErr := catchpanic.CatchErr1(func() (string, error) { return workerFunction(ctx, w, job) })

	var failed bool
	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		f, err := finish(ctx, tx, job, ctxclock.NowOrReal(ctx), runErr, outputMessage)
		failed = f
		return err
	}); err != nil {
		return false, fmt.Errorf("jobqueue.Worker.RunOnce: could not finish job: %w", err)
	}

	fields := logrus.Fields{"job.output_message": outputMessage, "job.attempts_remaining": job.AttemptsRemaining}

	switch {
	case runErr == nil:
		l.WithFields(fields).Info("finished job")
	case failed:
		l.WithFields(fields).WithError(runErr).Error("job failed")
	default:
		l.WithFields(fields).WithError(runErr).Warn("job attempt failed, will retry")
	}

	if failed && failureFunction != nil {
		if err := failureFunction(ctx, w, job, runErr); err != nil {
			return true, fmt.Errorf("jobqueue.Worker.RunOnce: failure function for %s returned an error: %w", job.QueueName, err)
		}
	}

	return true, nil
}

// RunPending runs jobs until none are due. It returns the number of attempts
// made.
func (w *Worker) RunPending(ctx context.Context) (int, error) {
	n := 0

	for {
		didRunJob, err := w.RunOnce(ctx)
		if errors.Is(err, ErrNoPendingJobs) {
			return n, nil
		}
		if didRunJob {
			n++
		}
		if err != nil {
			return n, err
		}
	}
}

func (w *Worker) Run(ctx context.Context) error {
	delay := time.Second * 5

	w.Trigger()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		case <-w.ch:
		}

		if didRunJob, err := w.RunOnce(ctx); err != nil && !errors.Is(err, ErrNoPendingJobs) {
			ctxlogger.GetLogger(ctx).WithError(err).Error("could not run job")
			delay = time.Second * 30
		} else if didRunJob {
			delay = 0
		} else {
			delay = time.Second * 30
		}
	}
}

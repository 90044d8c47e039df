package jobqueue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fknsrs.biz/p/sorm"

	"fknsrs.biz/p/vidshare/internal/sqltypes"
)

const (
	DefaultFailureDelay      = time.Second * 5
	DefaultAttempts          = 5
	DefaultReservationPeriod = time.Minute * 5
)

// permanent errors

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so that the job is not retried.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// job definition

type Job struct {
	ID                int `sql:",table:jobs"`
	CreatedAt         time.Time
	QueueName         string
	Payload           string
	RunAfter          time.Time
	FailureDelay      time.Duration
	AttemptsRemaining int
	ReservedAt        *time.Time
	ReservedUntil     *time.Time
	FinishedAt        *time.Time
	FailedAt          *time.Time
	ErrorMessages     sqltypes.JSONStringSlice
	OutputMessages    sqltypes.JSONStringSlice
}

func findNext(ctx context.Context, db sorm.Querier, queueNames []string, now time.Time) (*Job, error) {
	if len(queueNames) == 0 {
		return nil, nil
	}

	var parameters []interface{}
	var placeholders []string

	for i := range queueNames {
		parameters = append(parameters, queueNames[i])
		placeholders = append(placeholders, fmt.Sprintf("?%d", i+1))
	}

	parameters = append(parameters, now)

	query := fmt.Sprintf(
		"where queue_name in (%s) and run_after <= ?%d and (reserved_until is null or reserved_until < ?%d) and finished_at is null order by run_after asc, id asc",
		strings.Join(placeholders, ", "),
		len(parameters),
		len(parameters),
	)

	var job Job
	if err := sorm.FindFirstWhere(ctx, db, &job, query, parameters...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("jobqueue.findNext: could not find pending job record: %w", err)
	}

	return &job, nil
}

func reserve(ctx context.Context, tx *sql.Tx, job *Job, now time.Time, reserveDuration time.Duration) error {
	if job.ReservedUntil != nil && job.ReservedUntil.After(now) {
		return fmt.Errorf("jobqueue.reserve: can't reserve a job with a non-expired reservation")
	}
	if job.FinishedAt != nil {
		return fmt.Errorf("jobqueue.reserve: can't reserve a job that has already finished")
	}

	if reserveDuration == 0 {
		reserveDuration = DefaultReservationPeriod
	}

	reservedUntil := now.Add(reserveDuration)
	job.ReservedAt = &now
	job.ReservedUntil = &reservedUntil

	if err := sorm.SaveRecord(ctx, tx, job); err != nil {
		return fmt.Errorf("jobqueue.reserve: could not save job record: %w", err)
	}

	return nil
}

func findNextAndReserve(ctx context.Context, tx *sql.Tx, queueNames []string, now time.Time, reserveDuration time.Duration) (*Job, error) {
	j, err := findNext(ctx, tx, queueNames, now)
	if err != nil {
		return nil, fmt.Errorf("jobqueue.findNextAndReserve: could not find next job: %w", err)
	}

	if j == nil {
		return nil, nil
	}

	if err := reserve(ctx, tx, j, now, reserveDuration); err != nil {
		return nil, fmt.Errorf("jobqueue.findNextAndReserve: could not reserve job: %w", err)
	}

	return j, nil
}

// finish records the outcome of one attempt. A failed attempt with attempts
// left and a non-permanent error puts the job back in the queue after its
// failure delay; otherwise the job is finished, and marked failed if runErr is
// set. The return value reports whether the job has failed for good.
func finish(ctx context.Context, tx *sql.Tx, job *Job, now time.Time, runErr error, outputMessage string) (bool, error) {
	if job.FinishedAt != nil {
		return false, fmt.Errorf("jobqueue.finish: can't finish a job that has already finished")
	}

	var errorMessage string
	if runErr != nil {
		errorMessage = runErr.Error()
	}

	job.FinishedAt = &now
	job.ErrorMessages = append(job.ErrorMessages, errorMessage)
	job.OutputMessages = append(job.OutputMessages, outputMessage)

	if job.AttemptsRemaining > 0 {
		job.AttemptsRemaining--
	}

	failed := false

	if runErr != nil {
		if job.AttemptsRemaining > 0 && !IsPermanent(runErr) {
			job.RunAfter = now.Add(job.FailureDelay)
			job.ReservedAt = nil
			job.ReservedUntil = nil
			job.FinishedAt = nil
		} else {
			job.FailedAt = &now
			failed = true
		}
	}

	if err := sorm.SaveRecord(ctx, tx, job); err != nil {
		return false, fmt.Errorf("jobqueue.finish: could not save job record: %w", err)
	}

	return failed, nil
}

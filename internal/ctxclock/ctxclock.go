package ctxclock

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/vidshare/internal/ctxlogger"
)

// context registation

var clockKey int

func WithClock(ctx context.Context, c Clock) context.Context {
	if c == nil {
		c = NewRealClock()
	}

	return context.WithValue(ctx, &clockKey, c)
}

func GetClock(ctx context.Context) Clock {
	if v := ctx.Value(&clockKey); v != nil {
		return v.(Clock)
	}

	return nil
}

// Now reads the context clock. All timestamps written to the database come from
// here, in UTC, so stored values sort consistently.
func Now(ctx context.Context) (time.Time, error) {
	c := GetClock(ctx)
	if c == nil {
		return time.Time{}, fmt.Errorf("ctxclock.Now: %w", ErrNoClock)
	}

	t, err := c.Now()
	if err != nil {
		return time.Time{}, fmt.Errorf("ctxclock.Now: %w", err)
	}

	return t.UTC(), nil
}

// NowOrReal is Now, falling back to the wall clock when no clock is registered.
func NowOrReal(ctx context.Context) time.Time {
	if t, err := Now(ctx); err == nil {
		return t
	}

	return time.Now().UTC()
}

// middleware

func Register(c Clock) func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		next(rw, r.WithContext(WithClock(r.Context(), c)))
	}
}

func AddLoggerHooks() func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	mark := func(field string) ctxlogger.HookFunc {
		return func(rw http.ResponseWriter, r *http.Request, l logrus.FieldLogger) logrus.FieldLogger {
			now, err := Now(r.Context())
			if err != nil {
				l.WithError(err).Warn("clock middleware could not get current time")
				return l
			}

			return l.WithField(field, now.Format(time.RFC3339Nano))
		}
	}

	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		next(rw, r.WithContext(ctxlogger.AddHookPair(r.Context(), mark("http.request_start"), mark("http.response_end"))))
	}
}

// public interface

var (
	ErrNoTimesLeft = fmt.Errorf("ctxclock.ErrNoTimesLeft: no times left")
	ErrNoClock     = fmt.Errorf("ctxclock.ErrNoClock: no clock found in context")
)

type Clock interface {
	Now() (time.Time, error)
}

// real clock

type realClock struct{}

func NewRealClock() Clock {
	return &realClock{}
}

func (realClock) Now() (time.Time, error) {
	return time.Now(), nil
}

// static clock

type staticClock struct{ t time.Time }

func NewStaticClock(t time.Time) Clock {
	return &staticClock{t: t}
}

func (c *staticClock) Now() (time.Time, error) {
	return c.t, nil
}

// stepping clock, advances by a fixed amount on every read; used in tests that
// need distinct but predictable timestamps

type SteppingClock struct {
	m    sync.Mutex
	t    time.Time
	step time.Duration
}

func NewSteppingClock(start time.Time, step time.Duration) *SteppingClock {
	return &SteppingClock{t: start, step: step}
}

func (c *SteppingClock) Now() (time.Time, error) {
	c.m.Lock()
	defer c.m.Unlock()

	t := c.t
	c.t = c.t.Add(c.step)

	return t, nil
}

func (c *SteppingClock) Set(t time.Time) {
	c.m.Lock()
	defer c.m.Unlock()

	c.t = t
}

// testing clock

type TestClockResult struct {
	Time  time.Time
	Error error
}

type testClock struct {
	m sync.Mutex
	a []TestClockResult
	i int
}

func NewTestClock(results []TestClockResult) Clock {
	return &testClock{a: results}
}

func (c *testClock) Now() (time.Time, error) {
	c.m.Lock()
	defer c.m.Unlock()

	if c.i >= len(c.a) {
		return time.Time{}, fmt.Errorf("ctxclock.testClock.Now: %w", ErrNoTimesLeft)
	}

	r := c.a[c.i]

	c.i++

	return r.Time, r.Error
}

package ctxtimer

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/vidshare/internal/ctxclock"
	"fknsrs.biz/p/vidshare/internal/ctxlogger"
)

// context registration

var timerKey int

func WithTimer(ctx context.Context, t *Timer) context.Context {
	if t == nil {
		t = NewTimer()
	}

	return context.WithValue(ctx, &timerKey, t)
}

func GetTimer(ctx context.Context) *Timer {
	if v := ctx.Value(&timerKey); v != nil {
		return v.(*Timer)
	}

	return nil
}

// MarkNow records the context clock's current time under name.
func MarkNow(ctx context.Context, name string) error {
	t := GetTimer(ctx)
	if t == nil {
		return fmt.Errorf("ctxtimer.MarkNow: %w", ErrNoTimer)
	}

	now, err := ctxclock.Now(ctx)
	if err != nil {
		return fmt.Errorf("ctxtimer.MarkNow: %w", err)
	}

	t.Mark(name, now)

	return nil
}

// ElapsedNow is the time since MarkNow was called with the same name.
func ElapsedNow(ctx context.Context, name string) (time.Duration, error) {
	t := GetTimer(ctx)
	if t == nil {
		return 0, fmt.Errorf("ctxtimer.ElapsedNow: %w", ErrNoTimer)
	}

	now, err := ctxclock.Now(ctx)
	if err != nil {
		return 0, fmt.Errorf("ctxtimer.ElapsedNow: %w", err)
	}

	d, err := t.Elapsed(name, now)
	if err != nil {
		return 0, fmt.Errorf("ctxtimer.ElapsedNow: %w", err)
	}

	return d, nil
}

// middleware

const (
	timerNameRequest = "ctxtimer.request"
)

// Register puts a fresh timer on every request.
func Register() func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		next(rw, r.WithContext(WithTimer(r.Context(), NewTimer())))
	}
}

func AddLoggerHooks() func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		next(rw, r.WithContext(ctxlogger.AddHookPair(
			r.Context(),
			func(rw http.ResponseWriter, r *http.Request, l logrus.FieldLogger) logrus.FieldLogger {
				if err := MarkNow(r.Context(), timerNameRequest); err != nil {
					l.WithError(err).Warn("ctxtimer: could not mark request start")
				}

				return l
			},
			func(rw http.ResponseWriter, r *http.Request, l logrus.FieldLogger) logrus.FieldLogger {
				elapsed, err := ElapsedNow(r.Context(), timerNameRequest)
				if err != nil {
					l.WithError(err).Warn("ctxtimer: could not get elapsed time")
					return l
				}

				return l.WithField("http.duration", elapsed)
			},
		)))
	}
}

// public interface

var (
	ErrNoTimer = fmt.Errorf("ctxtimer.ErrNoTimer: no timer found")
	ErrNoMark  = fmt.Errorf("ctxtimer.ErrNoMark: no mark found with this name")
)

type Timer struct {
	rw    sync.RWMutex
	start map[string]time.Time
}

func NewTimer() *Timer {
	return &Timer{start: make(map[string]time.Time)}
}

func (t *Timer) Mark(name string, tt time.Time) {
	t.rw.Lock()
	defer t.rw.Unlock()

	t.start[name] = tt
}

func (t *Timer) Elapsed(name string, tt time.Time) (time.Duration, error) {
	t.rw.RLock()
	defer t.rw.RUnlock()

	start, ok := t.start[name]
	if !ok {
		return 0, ErrNoMark
	}

	return tt.Sub(start), nil
}

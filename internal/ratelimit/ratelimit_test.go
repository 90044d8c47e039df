package ratelimit_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/urfave/negroni/v2"

	"fknsrs.biz/p/vidshare/internal/ctxauth"
	"fknsrs.biz/p/vidshare/internal/ctxclock"
	"fknsrs.biz/p/vidshare/internal/dbtest"
	"fknsrs.biz/p/vidshare/internal/ratelimit"
	"fknsrs.biz/p/vidshare/models"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	s := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { c.Close() })

	return s, c
}

func TestAllowSlidingWindow(t *testing.T) {
	a := assert.New(t)

	_, c := newClient(t)
	l := ratelimit.New(c, 10, 10*time.Second)
	ctx := context.Background()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		res, err := l.Allow(ctx, "7", start.Add(time.Duration(i)*100*time.Millisecond))
		a.NoError(err)
		a.True(res.Allowed, "request %d", i)
		a.Equal(9-i, res.Remaining)
	}

	res, err := l.Allow(ctx, "7", start.Add(2*time.Second))
	a.NoError(err)
	a.False(res.Allowed)
	a.Equal(8*time.Second, res.RetryAfter)

	other, err := l.Allow(ctx, "8", start.Add(2*time.Second))
	a.NoError(err)
	a.True(other.Allowed)

	// the first request has left the window
	res, err = l.Allow(ctx, "7", start.Add(10*time.Second+50*time.Millisecond))
	a.NoError(err)
	a.True(res.Allowed)

	res, err = l.Allow(ctx, "7", start.Add(10*time.Second+60*time.Millisecond))
	a.NoError(err)
	a.False(res.Allowed)
}

func TestAllowRedisDown(t *testing.T) {
	a := assert.New(t)

	s, c := newClient(t)
	s.Close()

	_, err := ratelimit.New(c, 1, time.Second).Allow(context.Background(), "1", time.Now())
	a.Error(err)
}

func TestMiddleware(t *testing.T) {
	s, c := newClient(t)

	l := ratelimit.New(c, 2, 10*time.Second)
	user := &models.User{ID: 42, Name: "alice"}

	handler := func(withUser bool) http.Handler {
		n := negroni.New()
		n.UseFunc(func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
			ctx := dbtest.Logger(r.Context())
			ctx = ctxclock.WithClock(ctx, ctxclock.NewStaticClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
			if withUser {
				ctx = ctxauth.WithUser(ctx, user)
			}
			next(rw, r.WithContext(ctx))
		})
		n.UseFunc(l.Middleware())
		n.UseHandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			rw.WriteHeader(http.StatusNoContent)
		})
		return n
	}

	do := func(h http.Handler, method string) *httptest.ResponseRecorder {
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, httptest.NewRequest(method, "/videos", nil))
		return rw
	}

	t.Run("MutationsLimited", func(t *testing.T) {
		a := assert.New(t)

		h := handler(true)
		a.Equal(http.StatusNoContent, do(h, http.MethodPost).Code)
		a.Equal(http.StatusNoContent, do(h, http.MethodPost).Code)

		rw := do(h, http.MethodPost)
		a.Equal(http.StatusTooManyRequests, rw.Code)
		a.Equal("10", rw.Header().Get("retry-after"))
		a.Contains(rw.Body.String(), "TOO_MANY_REQUESTS")
	})

	t.Run("ReadsNotLimited", func(t *testing.T) {
		a := assert.New(t)

		a.Equal(http.StatusNoContent, do(handler(true), http.MethodGet).Code)
	})

	t.Run("AnonymousNotLimited", func(t *testing.T) {
		a := assert.New(t)

		a.Equal(http.StatusNoContent, do(handler(false), http.MethodPost).Code)
	})

	t.Run("FailOpen", func(t *testing.T) {
		a := assert.New(t)

		s.Close()

		a.Equal(http.StatusNoContent, do(handler(true), http.MethodPost).Code)
	})
}

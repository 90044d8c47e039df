// Package ratelimit admits or rejects requests per actor with a sliding window
// kept in a redis sorted set. Rejected requests are not queued.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/vidshare/internal/apierror"
	"fknsrs.biz/p/vidshare/internal/ctxauth"
	"fknsrs.biz/p/vidshare/internal/ctxclock"
	"fknsrs.biz/p/vidshare/internal/ctxlogger"
	"fknsrs.biz/p/vidshare/internal/httputil"
)

const (
	DefaultLimit  = 10
	DefaultWindow = 10 * time.Second
	keyPrefix     = "ratelimit:"
)

type Limiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
}

func New(client redis.Cmdable, limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}

	return &Limiter{client: client, limit: limit, window: window}
}

type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

func Key(actor string) string {
	return keyPrefix + actor
}

// Allow records one request for actor at now and reports whether it fits in
// the window. A rejected request is removed again so that it does not push
// the actor's window further out.
func (l *Limiter) Allow(ctx context.Context, actor string, now time.Time) (*Result, error) {
	key := Key(actor)
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(now.Add(-l.window).UnixNano(), 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
	countCmd := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("ratelimit.Limiter.Allow: could not update window: %w", err)
	}

	count := int(countCmd.Val())
	if count <= l.limit {
		return &Result{Allowed: true, Remaining: l.limit - count}, nil
	}

	if err := l.client.ZRem(ctx, key, member).Err(); err != nil {
		return nil, fmt.Errorf("ratelimit.Limiter.Allow: could not remove rejected request: %w", err)
	}

	oldest, err := l.client.ZRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("ratelimit.Limiter.Allow: could not read window start: %w", err)
	}

	retryAfter := l.window
	if len(oldest) > 0 {
		retryAfter = time.Unix(0, int64(oldest[0].Score)).Add(l.window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
	}

	return &Result{Allowed: false, RetryAfter: retryAfter}, nil
}

// Middleware limits signed-in users' mutations. Reads and anonymous requests
// pass through. If redis is unavailable the request is let through and the
// failure logged.
func (l *Limiter) Middleware() func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next(rw, r)
			return
		}

		user := ctxauth.GetUser(r.Context())
		if user == nil {
			next(rw, r)
			return
		}

		ctx := r.Context()
		actor := strconv.Itoa(user.ID)

		res, err := l.Allow(ctx, actor, ctxclock.NowOrReal(ctx))
		if err != nil {
			ctxlogger.GetLogger(ctx).WithError(err).WithField("ratelimit.key", Key(actor)).Error("rate limiter unavailable, allowing request")
			next(rw, r)
			return
		}

		rw.Header().Set("x-ratelimit-limit", strconv.Itoa(l.limit))
		rw.Header().Set("x-ratelimit-remaining", strconv.Itoa(res.Remaining))

		if !res.Allowed {
			ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
				"ratelimit.key":         Key(actor),
				"ratelimit.retry_after": res.RetryAfter,
			}).Info("rate limit exceeded")

			httputil.Error(rw, r, &apierror.Error{
				Code:       apierror.TooManyRequests,
				Message:    "Too many requests, try again shortly",
				RetryAfter: res.RetryAfter,
			})
			return
		}

		next(rw, r)
	}
}

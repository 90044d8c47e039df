package ctxlogger

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"
)

// context registration

var loggerKey int

func WithLogger(ctx context.Context, l logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, &loggerKey, l)
}

func GetLogger(ctx context.Context) logrus.FieldLogger {
	if v := ctx.Value(&loggerKey); v != nil {
		return v.(logrus.FieldLogger)
	}

	return logrus.StandardLogger()
}

// WithFields adds fields to the context's logger and stores the result back on a
// derived context.
func WithFields(ctx context.Context, fields logrus.Fields) (context.Context, logrus.FieldLogger) {
	l := GetLogger(ctx).WithFields(fields)
	return WithLogger(ctx, l), l
}

// middleware

var (
	hookListKey int
)

type HookFunc func(rw http.ResponseWriter, r *http.Request, l logrus.FieldLogger) logrus.FieldLogger

type hook struct {
	before HookFunc
	after  HookFunc
}

type hookList struct {
	a []hook
}

func (h *hookList) runBefore(rw http.ResponseWriter, r *http.Request, l logrus.FieldLogger) logrus.FieldLogger {
	for _, e := range h.a {
		if e.before != nil {
			l = e.before(rw, r, l)
		}
	}

	return l
}

func (h *hookList) runAfter(rw http.ResponseWriter, r *http.Request, l logrus.FieldLogger) logrus.FieldLogger {
	for _, e := range h.a {
		if e.after != nil {
			l = e.after(rw, r, l)
		}
	}

	return l
}

func getHookList(ctx context.Context) *hookList {
	if v := ctx.Value(&hookListKey); v != nil {
		return v.(*hookList)
	}

	return nil
}

// AddHookPair registers functions that decorate the request logger before the
// handler runs and after it returns. It must run after Register.
func AddHookPair(ctx context.Context, before, after HookFunc) context.Context {
	hooks := getHookList(ctx)
	if hooks == nil {
		hooks = &hookList{}
		ctx = context.WithValue(ctx, &hookListKey, hooks)
	}

	hooks.a = append(hooks.a, hook{before: before, after: after})

	return ctx
}

func Register(l logrus.FieldLogger) func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		ctx := context.WithValue(r.Context(), &hookListKey, &hookList{})
		next(rw, r.WithContext(WithLogger(ctx, l)))
	}
}

// Log writes "http request started" and "http request finished" entries, and
// leaves the request-scoped logger on the context for handlers.
func Log() func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		hooks := getHookList(r.Context())

		var l logrus.FieldLogger = GetLogger(r.Context()).WithFields(logrus.Fields{
			"http.method":     r.Method,
			"http.path":       r.URL.Path,
			"http.query":      r.URL.RawQuery,
			"http.host":       r.Host,
			"http.remote":     r.RemoteAddr,
			"http.user_agent": r.Header.Get("user-agent"),
		})

		if hooks != nil {
			l = hooks.runBefore(rw, r, l)
		}

		defer func() {
			if nrw, ok := rw.(interface {
				Status() int
				Size() int
			}); ok {
				l = l.WithFields(logrus.Fields{
					"http.status_code":   nrw.Status(),
					"http.response_size": nrw.Size(),
				})
			}

			if hooks != nil {
				l = hooks.runAfter(rw, r, l)
			}

			l.Info("http request finished")
		}()

		l.Info("http request started")

		next(rw, r.WithContext(WithLogger(r.Context(), l)))
	}
}

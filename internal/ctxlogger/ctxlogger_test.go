package ctxlogger

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/urfave/negroni/v2"
)

func TestGetLoggerDefault(t *testing.T) {
	a := assert.New(t)

	a.Equal(logrus.StandardLogger(), GetLogger(context.Background()))
}

func TestLogMiddleware(t *testing.T) {
	a := assert.New(t)

	l := logrus.New()
	l.SetOutput(io.Discard)
	h := test.NewLocal(l)

	n := negroni.New()
	n.UseFunc(Register(l))
	n.UseFunc(func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		next(rw, r.WithContext(AddHookPair(
			r.Context(),
			func(rw http.ResponseWriter, r *http.Request, l logrus.FieldLogger) logrus.FieldLogger {
				return l.WithField("hook.before", true)
			},
			func(rw http.ResponseWriter, r *http.Request, l logrus.FieldLogger) logrus.FieldLogger {
				return l.WithField("hook.after", true)
			},
		)))
	})
	n.UseFunc(Log())
	n.UseHandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		GetLogger(r.Context()).Info("inside handler")
		rw.WriteHeader(http.StatusTeapot)
	})

	rw := httptest.NewRecorder()
	n.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/videos?limit=5", nil))

	entries := h.AllEntries()
	if a.Len(entries, 3) {
		a.Equal("http request started", entries[0].Message)
		a.Equal(true, entries[0].Data["hook.before"])
		a.Equal(true, entries[1].Data["hook.before"])
		a.Equal("inside handler", entries[1].Message)
		a.Equal("/videos", entries[1].Data["http.path"])
		a.Equal("http request finished", entries[2].Message)
		a.Equal(http.StatusTeapot, entries[2].Data["http.status_code"])
		a.Equal(true, entries[2].Data["hook.after"])
	}
}

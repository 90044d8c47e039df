package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fknsrs.biz/p/vidshare/internal/apierror"
)

func TestError(t *testing.T) {
	for _, tc := range []struct {
		name       string
		err        error
		status     int
		body       string
		retryAfter string
	}{
		{"NotFound", apierror.New(apierror.NotFound, "video not found"), http.StatusNotFound, `{"error":{"code":"NOT_FOUND","message":"video not found"}}`, ""},
		{"Internal", errors.New("boom"), http.StatusInternalServerError, `{"error":{"code":"INTERNAL_SERVER_ERROR","message":"Something went wrong"}}`, ""},
		{"RateLimited", &apierror.Error{Code: apierror.TooManyRequests, Message: "slow down", RetryAfter: 1500 * time.Millisecond}, http.StatusTooManyRequests, `{"error":{"code":"TOO_MANY_REQUESTS","message":"slow down"}}`, "2"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			rw := httptest.NewRecorder()
			Error(rw, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)

			a.Equal(tc.status, rw.Code)
			a.JSONEq(tc.body, rw.Body.String())
			a.Equal(tc.retryAfter, rw.Header().Get("retry-after"))
		})
	}
}

func TestReadJSON(t *testing.T) {
	type body struct {
		Title string `json:"title"`
	}

	t.Run("OK", func(t *testing.T) {
		a := assert.New(t)

		var b body
		a.NoError(ReadJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"x"}`)), &b))
		a.Equal("x", b.Title)
	})

	t.Run("Malformed", func(t *testing.T) {
		a := assert.New(t)

		var b body
		err := ReadJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":`)), &b)
		a.Equal(apierror.BadRequest, apierror.CodeOf(err))
	})

	t.Run("UnknownField", func(t *testing.T) {
		a := assert.New(t)

		var b body
		err := ReadJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nope":1}`)), &b)
		a.Equal(apierror.BadRequest, apierror.CodeOf(err))
	})
}

func TestWriteText(t *testing.T) {
	a := assert.New(t)

	rw := httptest.NewRecorder()
	WriteText(rw, httptest.NewRequest(http.MethodPost, "/", nil), http.StatusOK, "Webhook received")

	a.Equal("Webhook received", rw.Body.String())
	a.Equal("text/plain; charset=utf-8", rw.Header().Get("content-type"))
}

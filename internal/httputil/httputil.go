package httputil

import (
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/vidshare/internal/apierror"
	"fknsrs.biz/p/vidshare/internal/ctxlogger"
)

const maxBodySize = 1 << 20

func WriteJSON(rw http.ResponseWriter, r *http.Request, status int, v interface{}) {
	rw.Header().Set("content-type", "application/json; charset=utf-8")
	rw.WriteHeader(status)

	if err := json.NewEncoder(rw).Encode(v); err != nil {
		ctxlogger.GetLogger(r.Context()).WithError(err).Warn("httputil.WriteJSON: could not write response")
	}
}

func WriteText(rw http.ResponseWriter, r *http.Request, status int, s string) {
	rw.Header().Set("content-type", "text/plain; charset=utf-8")
	rw.WriteHeader(status)

	if _, err := io.WriteString(rw, s); err != nil {
		ctxlogger.GetLogger(r.Context()).WithError(err).Warn("httputil.WriteText: could not write response")
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    apierror.Code `json:"code"`
	Message string        `json:"message"`
}

// Error writes err as {"error":{"code":..,"message":..}} with the status for
// its code. Internal errors are logged with their full chain.
func Error(rw http.ResponseWriter, r *http.Request, err error) {
	code := apierror.CodeOf(err)

	l := ctxlogger.GetLogger(r.Context()).WithFields(logrus.Fields{"http.error_code": code})
	if code == apierror.InternalServerError {
		l.WithError(err).Error("request failed")
	} else {
		l.WithError(err).Debug("request rejected")
	}

	if e, ok := apierror.As(err); ok && e.RetryAfter > 0 {
		rw.Header().Set("retry-after", strconv.Itoa(int(math.Ceil(e.RetryAfter.Seconds()))))
	}

	WriteJSON(rw, r, code.Status(), errorBody{Error: errorDetail{Code: code, Message: apierror.MessageOf(err)}})
}

// ReadJSON decodes a request body into v, reporting malformed input as
// BAD_REQUEST.
func ReadJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return apierror.Wrap(apierror.BadRequest, err, "invalid request body")
	}

	return nil
}

func NotFound(rw http.ResponseWriter, r *http.Request) {
	Error(rw, r, apierror.New(apierror.NotFound, "no route for %s %s", r.Method, r.URL.Path))
}

func MethodNotAllowed(rw http.ResponseWriter, r *http.Request) {
	Error(rw, r, apierror.New(apierror.BadRequest, "method %s not allowed for %s", r.Method, r.URL.Path))
}

package handlers

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"fknsrs.biz/p/vidshare/internal/apierror"
	"fknsrs.biz/p/vidshare/internal/pagination"
)

const maxWebhookBody = 1 << 20

func intVar(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil || n < 1 {
		return 0, apierror.New(apierror.BadRequest, "%s must be a positive integer", name)
	}

	return n, nil
}

// intQuery reads an optional integer query parameter; missing is zero.
func intQuery(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, apierror.Wrap(apierror.BadRequest, err, "%s must be an integer", name)
	}

	return n, nil
}

func timeList(r *http.Request) (pagination.Request[time.Time], error) {
	return pagination.FromQuery(r.URL.Query(), pagination.ParseTime)
}

func countList(r *http.Request) (pagination.Request[int], error) {
	return pagination.FromQuery(r.URL.Query(), pagination.ParseInt)
}

func readBody(r *http.Request) ([]byte, error) {
	d, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		return nil, apierror.Wrap(apierror.BadRequest, err, "could not read request body")
	}

	return d, nil
}

package httpcache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.etcd.io/bbolt"

	"fknsrs.biz/p/vidshare/internal/ctxclock"
)

func openStorage(t *testing.T) *BBoltStorage {
	t.Helper()

	db, err := bbolt.Open(filepath.Join(t.TempDir(), "cache.db"), 0644, nil)
	if err != nil {
		t.Fatalf("could not open bbolt: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewBBoltStorage(db)
}

func TestTransport(t *testing.T) {
	a := assert.New(t)

	hits := 0
	s := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Path == "/missing" {
			rw.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprintf(rw, "body %d", hits)
	}))
	defer s.Close()

	u, _ := url.Parse(s.URL)

	clock := ctxclock.NewSteppingClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 0)
	ctx := ctxclock.WithClock(context.Background(), clock)

	client := &http.Client{Transport: NewTransport(nil, openStorage(t), time.Hour, HostFilter(u.Host))}

	get := func(path string) (int, string) {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, s.URL+path, nil)
		res, err := client.Do(req)
		if !a.NoError(err) {
			return 0, ""
		}
		defer res.Body.Close()
		d, _ := io.ReadAll(res.Body)
		return res.StatusCode, string(d)
	}

	code, body := get("/track.txt")
	a.Equal(http.StatusOK, code)
	a.Equal("body 1", body)

	_, body = get("/track.txt")
	a.Equal("body 1", body)
	a.Equal(1, hits)

	code, _ = get("/missing")
	a.Equal(http.StatusNotFound, code)
	get("/missing")
	a.Equal(3, hits)

	clock.Set(time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC))

	_, body = get("/track.txt")
	a.Equal("body 4", body)
}

func TestTransportFilter(t *testing.T) {
	a := assert.New(t)

	hits := 0
	s := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer s.Close()

	client := &http.Client{Transport: NewTransport(nil, openStorage(t), time.Hour, HostFilter("stream.example.com"))}

	for i := 0; i < 2; i++ {
		res, err := client.Get(s.URL + "/video/v1/assets/1")
		if a.NoError(err) {
			res.Body.Close()
		}
	}

	a.Equal(2, hits)
}

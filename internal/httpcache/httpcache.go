// Package httpcache is an http.RoundTripper that keeps successful GET
// responses in bbolt. Transcripts for a given track never change once
// published, so they are fetched from the provider at most once per max age.
package httpcache

import (
	"bytes"
	"crypto/sha1"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"fknsrs.biz/p/vidshare/internal/ctxclock"
)

type cachedResponse struct {
	UpdatedAt  time.Time
	URL        string
	Status     string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *cachedResponse) makeResponse(req *http.Request) *http.Response {
	return &http.Response{
		Status:        r.Status,
		StatusCode:    r.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        r.Header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(r.Body)),
		ContentLength: int64(len(r.Body)),
		Request:       req,
	}
}

type Storage interface {
	Fetch(u *url.URL) (*cachedResponse, error)
	Save(u *url.URL, res *http.Response, now time.Time) (*cachedResponse, error)
}

var bboltBucketName = []byte("cache")

type BBoltStorage struct {
	db *bbolt.DB
}

func NewBBoltStorage(db *bbolt.DB) *BBoltStorage {
	return &BBoltStorage{db: db}
}

func makeBBoltKey(u *url.URL) []byte {
	h := sha1.New()
	io.WriteString(h, u.String())
	return []byte(filepath.Join(u.Host, hex.EncodeToString(h.Sum(nil))))
}

func (s *BBoltStorage) Fetch(u *url.URL) (*cachedResponse, error) {
	var r *cachedResponse

	if err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bboltBucketName)
		if b == nil {
			return nil
		}

		d := b.Get(makeBBoltKey(u))
		if d == nil {
			return nil
		}

		var cr cachedResponse
		if err := gob.NewDecoder(bytes.NewReader(d)).Decode(&cr); err != nil {
			return fmt.Errorf("could not decode entry: %w", err)
		}

		r = &cr

		return nil
	}); err != nil {
		return nil, fmt.Errorf("httpcache.BBoltStorage.Fetch: %w", err)
	}

	return r, nil
}

func (s *BBoltStorage) Save(u *url.URL, res *http.Response, now time.Time) (*cachedResponse, error) {
	d, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("httpcache.BBoltStorage.Save: could not read body: %w", err)
	}

	r := cachedResponse{
		UpdatedAt:  now,
		URL:        u.String(),
		Status:     res.Status,
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       d,
	}

	buf := bytes.NewBuffer(nil)
	if err := gob.NewEncoder(buf).Encode(r); err != nil {
		return nil, fmt.Errorf("httpcache.BBoltStorage.Save: could not encode entry: %w", err)
	}

	if err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bboltBucketName)
		if err != nil {
			return err
		}

		return b.Put(makeBBoltKey(u), buf.Bytes())
	}); err != nil {
		return nil, fmt.Errorf("httpcache.BBoltStorage.Save: %w", err)
	}

	return &r, nil
}

// Filter picks which requests may be served from the cache.
type Filter func(req *http.Request) bool

// HostFilter allows GET requests to any of hosts.
func HostFilter(hosts ...string) Filter {
	m := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		m[h] = true
	}

	return func(req *http.Request) bool {
		return m[req.URL.Host]
	}
}

type Transport struct {
	transport http.RoundTripper
	storage   Storage
	maxAge    time.Duration
	filter    Filter
}

// NewTransport wraps transport. A nil filter caches every GET.
func NewTransport(transport http.RoundTripper, storage Storage, maxAge time.Duration, filter Filter) *Transport {
	if transport == nil {
		transport = http.DefaultTransport
	}

	if maxAge == 0 {
		maxAge = time.Hour * 24
	}

	return &Transport{
		transport: transport,
		storage:   storage,
		maxAge:    maxAge,
		filter:    filter,
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet || (t.filter != nil && !t.filter(req)) {
		return t.transport.RoundTrip(req)
	}

	now := ctxclock.NowOrReal(req.Context())

	if cr, err := t.storage.Fetch(req.URL); err == nil && cr != nil && now.Sub(cr.UpdatedAt) < t.maxAge {
		return cr.makeResponse(req), nil
	}

	res, err := t.transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if res.StatusCode != http.StatusOK {
		return res, nil
	}
	defer res.Body.Close()

	cr, err := t.storage.Save(req.URL, res, now)
	if err != nil {
		return nil, fmt.Errorf("httpcache.Transport.RoundTrip: %w", err)
	}

	return cr.makeResponse(req), nil
}

package ctxhttpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// context registration

var httpClientKey int

func WithHTTPClient(ctx context.Context, httpClient *http.Client) context.Context {
	return context.WithValue(ctx, &httpClientKey, httpClient)
}

func GetHTTPClient(ctx context.Context) *http.Client {
	if v := ctx.Value(&httpClientKey); v != nil {
		return v.(*http.Client)
	}

	return http.DefaultClient
}

// middleware

func Register(httpClient *http.Client) func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		next(rw, r.WithContext(WithHTTPClient(r.Context(), httpClient)))
	}
}

// main interface

// StatusError is returned by Do when the response status is not 2xx.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Do sends req with the context's client and returns the full response body.
// Non-2xx responses are reported as *StatusError.
func Do(ctx context.Context, req *http.Request) ([]byte, error) {
	res, err := GetHTTPClient(ctx).Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("ctxhttpclient.Do: %w", err)
	}
	defer res.Body.Close()

	d, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("ctxhttpclient.Do: could not read response body: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body := string(d)
		if len(body) > 512 {
			body = body[:512]
		}

		return nil, &StatusError{Method: req.Method, URL: req.URL.String(), StatusCode: res.StatusCode, Body: body}
	}

	return d, nil
}

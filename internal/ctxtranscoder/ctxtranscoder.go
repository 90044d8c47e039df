package ctxtranscoder

import (
	"context"
	"fmt"
	"net/http"

	"fknsrs.biz/p/vidshare/internal/transcoder"
)

// context registration

var apiKey int

func WithAPI(ctx context.Context, api transcoder.API) context.Context {
	return context.WithValue(ctx, &apiKey, api)
}

func GetAPI(ctx context.Context) transcoder.API {
	if v := ctx.Value(&apiKey); v != nil {
		return v.(transcoder.API)
	}

	return nil
}

// middleware

func Register(api transcoder.API) func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		next(rw, r.WithContext(WithAPI(r.Context(), api)))
	}
}

// main interface

var (
	ErrNoAPI = fmt.Errorf("no transcoder found in context")
)

func Require(ctx context.Context) (transcoder.API, error) {
	api := GetAPI(ctx)
	if api == nil {
		return nil, ErrNoAPI
	}

	return api, nil
}

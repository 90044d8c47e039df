package ctxobjectstore

import (
	"context"
	"fmt"
	"net/http"

	"fknsrs.biz/p/vidshare/internal/objectstore"
)

// context registration

var storeKey int

func WithStore(ctx context.Context, s objectstore.Store) context.Context {
	return context.WithValue(ctx, &storeKey, s)
}

func GetStore(ctx context.Context) objectstore.Store {
	if v := ctx.Value(&storeKey); v != nil {
		return v.(objectstore.Store)
	}

	return nil
}

// middleware

func Register(s objectstore.Store) func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		next(rw, r.WithContext(WithStore(r.Context(), s)))
	}
}

// main interface

var (
	ErrNoStore = fmt.Errorf("no object store found in context")
)

func Require(ctx context.Context) (objectstore.Store, error) {
	s := GetStore(ctx)
	if s == nil {
		return nil, ErrNoStore
	}

	return s, nil
}

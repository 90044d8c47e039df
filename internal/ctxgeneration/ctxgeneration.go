package ctxgeneration

import (
	"context"
	"fmt"
	"net/http"

	"fknsrs.biz/p/vidshare/internal/generation"
)

// context registration

var generatorKey int

func WithGenerator(ctx context.Context, g generation.Generator) context.Context {
	return context.WithValue(ctx, &generatorKey, g)
}

func GetGenerator(ctx context.Context) generation.Generator {
	if v := ctx.Value(&generatorKey); v != nil {
		return v.(generation.Generator)
	}

	return nil
}

// middleware

func Register(g generation.Generator) func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		next(rw, r.WithContext(WithGenerator(r.Context(), g)))
	}
}

// main interface

var (
	ErrNoGenerator = fmt.Errorf("no generator found in context")
)

func Require(ctx context.Context) (generation.Generator, error) {
	g := GetGenerator(ctx)
	if g == nil {
		return nil, ErrNoGenerator
	}

	return g, nil
}

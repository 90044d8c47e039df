package ctxtimer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fknsrs.biz/p/vidshare/internal/ctxclock"
)

func TestElapsedNow(t *testing.T) {
	a := assert.New(t)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := ctxclock.WithClock(context.Background(), ctxclock.NewSteppingClock(start, 250*time.Millisecond))
	ctx = WithTimer(ctx, nil)

	a.NoError(MarkNow(ctx, "x"))

	d, err := ElapsedNow(ctx, "x")
	a.NoError(err)
	a.Equal(250*time.Millisecond, d)

	_, err = ElapsedNow(ctx, "y")
	a.ErrorIs(err, ErrNoMark)
}

func TestNoTimer(t *testing.T) {
	a := assert.New(t)

	a.ErrorIs(MarkNow(context.Background(), "x"), ErrNoTimer)
}

package subscriptions_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fknsrs.biz/p/vidshare/internal/apierror"
	"fknsrs.biz/p/vidshare/internal/ctxauth"
	"fknsrs.biz/p/vidshare/internal/dbtest"
	"fknsrs.biz/p/vidshare/internal/pagination"
	"fknsrs.biz/p/vidshare/internal/subscriptions"
)

func TestSubscribe(t *testing.T) {
	ctx, _ := dbtest.Context(t)

	alice := dbtest.CreateUser(t, ctx, "alice")
	bob := dbtest.CreateUser(t, ctx, "bob")
	carol := dbtest.CreateUser(t, ctx, "carol")

	dbtest.CreateVideo(t, ctx, bob, "bob's video", nil)

	aliceCtx := ctxauth.WithUser(ctx, alice)

	t.Run("Self", func(t *testing.T) {
		a := assert.New(t)

		a.Equal(apierror.BadRequest, apierror.CodeOf(subscriptions.Subscribe(aliceCtx, alice.ID)))
		a.Equal(apierror.BadRequest, apierror.CodeOf(subscriptions.Unsubscribe(aliceCtx, alice.ID)))
		a.Equal(0, dbtest.Count(t, ctx, "select count(*) from subscriptions"))
	})

	t.Run("Anonymous", func(t *testing.T) {
		a := assert.New(t)

		a.Equal(apierror.Unauthorized, apierror.CodeOf(subscriptions.Subscribe(ctx, bob.ID)))
	})

	t.Run("MissingCreator", func(t *testing.T) {
		a := assert.New(t)

		a.Equal(apierror.NotFound, apierror.CodeOf(subscriptions.Subscribe(aliceCtx, 9999)))
	})

	t.Run("SubscribeTwice", func(t *testing.T) {
		a := assert.New(t)

		a.NoError(subscriptions.Subscribe(aliceCtx, bob.ID))
		a.NoError(subscriptions.Subscribe(aliceCtx, bob.ID))
		a.NoError(subscriptions.Subscribe(aliceCtx, carol.ID))
		a.Equal(2, dbtest.Count(t, ctx, "select count(*) from subscriptions where viewer_id = ?", alice.ID))
	})

	t.Run("List", func(t *testing.T) {
		a := assert.New(t)

		page, err := subscriptions.List(aliceCtx, pagination.Request[time.Time]{Limit: 1})
		if !a.NoError(err) || !a.Len(page.Items, 1) {
			return
		}

		a.Equal(carol.ID, page.Items[0].CreatorID)
		a.Equal("carol", page.Items[0].CreatorName)
		a.NotNil(page.NextCursor)

		page, err = subscriptions.List(aliceCtx, pagination.Request[time.Time]{Limit: 1, Cursor: page.NextCursor})
		if a.NoError(err) && a.Len(page.Items, 1) {
			a.Equal(bob.ID, page.Items[0].CreatorID)
			a.Equal(1, page.Items[0].SubscriberCount)
			a.Equal(1, page.Items[0].VideoCount)
			a.Nil(page.NextCursor)
		}
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		a := assert.New(t)

		a.NoError(subscriptions.Unsubscribe(aliceCtx, bob.ID))
		a.Equal(apierror.NotFound, apierror.CodeOf(subscriptions.Unsubscribe(aliceCtx, bob.ID)))
		a.Equal(1, dbtest.Count(t, ctx, "select count(*) from subscriptions"))
	})
}

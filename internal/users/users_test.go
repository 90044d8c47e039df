package users_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fknsrs.biz/p/vidshare/internal/apierror"
	"fknsrs.biz/p/vidshare/internal/ctxauth"
	"fknsrs.biz/p/vidshare/internal/ctxdb"
	"fknsrs.biz/p/vidshare/internal/dbtest"
	"fknsrs.biz/p/vidshare/internal/subscriptions"
	"fknsrs.biz/p/vidshare/internal/users"
	"fknsrs.biz/p/vidshare/models"
)

func TestGetOne(t *testing.T) {
	ctx, _ := dbtest.Context(t)

	alice := dbtest.CreateUser(t, ctx, "alice")
	bob := dbtest.CreateUser(t, ctx, "bob")

	dbtest.CreateVideo(t, ctx, bob, "public", nil)
	dbtest.CreateVideo(t, ctx, bob, "private", func(v *models.Video) { v.Visibility = models.VisibilityPrivate })

	aliceCtx := ctxauth.WithUser(ctx, alice)
	bobCtx := ctxauth.WithUser(ctx, bob)

	if !assert.NoError(t, subscriptions.Subscribe(aliceCtx, bob.ID)) {
		return
	}

	for _, tc := range []struct {
		name       string
		as         *models.User
		videos     int
		subscribed bool
	}{
		{"Anonymous", nil, 1, false},
		{"Subscriber", alice, 1, true},
		{"Self", bob, 2, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			c := ctx
			if tc.as != nil {
				c = ctxauth.WithUser(ctx, tc.as)
			}

			p, err := users.GetOne(c, bob.ID)
			if !a.NoError(err) {
				return
			}

			a.Equal("bob", p.Name)
			a.Equal(1, p.SubscriberCount)
			a.Equal(tc.videos, p.VideoCount)
			a.Equal(tc.subscribed, p.ViewerSubscribed)
		})
	}

	t.Run("Missing", func(t *testing.T) {
		_, err := users.GetOne(bobCtx, 9999)
		assert.Equal(t, apierror.NotFound, apierror.CodeOf(err))
	})
}

func TestApplyIdentityEvent(t *testing.T) {
	ctx, _ := dbtest.Context(t)

	apply := func(t *testing.T, body string) error {
		ev, err := users.ParseIdentityEvent([]byte(body))
		if err != nil {
			return err
		}
		return users.ApplyIdentityEvent(ctx, ev)
	}

	find := func(t *testing.T) *models.User {
		u, err := ctxauth.FindUserByExternalID(ctx, ctxdb.GetDB(ctx), "user_2abc")
		if err != nil {
			t.Fatal(err)
		}
		return u
	}

	t.Run("Created", func(t *testing.T) {
		a := assert.New(t)

		a.NoError(apply(t, `{"type":"user.created","data":{"id":"user_2abc","first_name":"Ada","last_name":"Lovelace","image_url":"https://img.example.com/ada.png"}}`))

		if u := find(t); a.NotNil(u) {
			a.Equal("Ada Lovelace", u.Name)
			a.Equal("https://img.example.com/ada.png", u.ImageURL)
		}
	})

	t.Run("Updated", func(t *testing.T) {
		a := assert.New(t)

		a.NoError(apply(t, `{"type":"user.updated","data":{"id":"user_2abc","first_name":"Ada","last_name":null,"image_url":"https://img.example.com/ada2.png"}}`))

		if u := find(t); a.NotNil(u) {
			a.Equal("Ada", u.Name)
			a.Equal("https://img.example.com/ada2.png", u.ImageURL)
		}
		a.Equal(1, dbtest.Count(t, ctx, "select count(*) from users"))
	})

	t.Run("Deleted", func(t *testing.T) {
		a := assert.New(t)

		u := find(t)
		if !a.NotNil(u) {
			return
		}
		v := dbtest.CreateVideo(t, ctx, u, "video", nil)

		a.NoError(apply(t, `{"type":"user.deleted","data":{"id":"user_2abc","deleted":true}}`))
		a.Nil(find(t))
		a.Equal(0, dbtest.Count(t, ctx, "select count(*) from videos where id = ?", v.ID))

		a.NoError(apply(t, `{"type":"user.deleted","data":{"id":"user_2abc","deleted":true}}`))
	})

	for _, tc := range []struct {
		name string
		body string
		code apierror.Code
	}{
		{"InvalidJSON", `{`, apierror.BadRequest},
		{"NoType", `{"data":{"id":"x"}}`, apierror.BadRequest},
		{"NoData", `{"type":"user.created"}`, apierror.BadRequest},
		{"NoID", `{"type":"user.updated","data":{"first_name":"x"}}`, apierror.BadRequest},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, apierror.CodeOf(apply(t, tc.body)))
		})
	}

	t.Run("Ignored", func(t *testing.T) {
		assert.NoError(t, apply(t, `{"type":"session.created","data":{"id":"sess_1"}}`))
	})
}

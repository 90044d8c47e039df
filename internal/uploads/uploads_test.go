package uploads_test

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"fknsrs.biz/p/sorm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"fknsrs.biz/p/vidshare/internal/apierror"
	"fknsrs.biz/p/vidshare/internal/ctxauth"
	"fknsrs.biz/p/vidshare/internal/ctxdb"
	"fknsrs.biz/p/vidshare/internal/ctxobjectstore"
	"fknsrs.biz/p/vidshare/internal/dbtest"
	"fknsrs.biz/p/vidshare/internal/jobqueue"
	"fknsrs.biz/p/vidshare/internal/objectstore"
	"fknsrs.biz/p/vidshare/internal/queuenames"
	"fknsrs.biz/p/vidshare/internal/uploads"
	"fknsrs.biz/p/vidshare/models"
)

func reloadVideo(t *testing.T, ctx context.Context, id int) models.Video {
	var v models.Video
	if err := sorm.FindFirstWhere(ctx, ctxdb.GetDB(ctx), &v, "where id = ?", id); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestThumbnail(t *testing.T) {
	ctx, _ := dbtest.Context(t)

	alice := dbtest.CreateUser(t, ctx, "alice")
	bob := dbtest.CreateUser(t, ctx, "bob")
	v := dbtest.CreateVideo(t, ctx, alice, "video", nil)
	prefix := "thumbnails/" + strconv.Itoa(v.ID) + "/"

	store := &objectstore.Mock{}
	store.On("PresignPut", mock.Anything, mock.MatchedBy(func(key string) bool { return strings.HasPrefix(key, prefix) }), uploads.PresignExpiry).Return("https://upload.test/put", nil)
	store.On("Stat", mock.Anything, prefix+"first").Return(&objectstore.ObjectInfo{Key: prefix + "first"}, nil)
	store.On("Stat", mock.Anything, prefix+"second").Return(&objectstore.ObjectInfo{Key: prefix + "second"}, nil)
	store.On("Stat", mock.Anything, prefix+"missing").Return(nil, fmt.Errorf("stat: %w", objectstore.ErrNotFound))
	store.On("Delete", mock.Anything, prefix+"first").Return(nil).Once()

	aliceCtx := ctxobjectstore.WithStore(ctxauth.WithUser(ctx, alice), store)
	bobCtx := ctxobjectstore.WithStore(ctxauth.WithUser(ctx, bob), store)

	t.Run("Request", func(t *testing.T) {
		a := assert.New(t)

		target, err := uploads.RequestThumbnail(aliceCtx, v.ID)
		if a.NoError(err) {
			a.True(strings.HasPrefix(target.Key, prefix))
			a.Equal("https://upload.test/put", target.UploadURL)
		}

		_, err = uploads.RequestThumbnail(bobCtx, v.ID)
		a.Equal(apierror.Unauthorized, apierror.CodeOf(err))
	})

	t.Run("Errors", func(t *testing.T) {
		for _, tc := range []struct {
			name string
			ctx  context.Context
			key  string
			code apierror.Code
		}{
			{"NotOwner", bobCtx, prefix + "first", apierror.Unauthorized},
			{"WrongPrefix", aliceCtx, "thumbnails/9999/first", apierror.BadRequest},
			{"Traversal", aliceCtx, prefix + "../../banners/1/x", apierror.BadRequest},
			{"NotUploaded", aliceCtx, prefix + "missing", apierror.NotFound},
		} {
			t.Run(tc.name, func(t *testing.T) {
				_, err := uploads.CompleteThumbnail(tc.ctx, v.ID, tc.key)
				assert.Equal(t, tc.code, apierror.CodeOf(err))
			})
		}
	})

	t.Run("Complete", func(t *testing.T) {
		a := assert.New(t)

		out, err := uploads.CompleteThumbnail(aliceCtx, v.ID, prefix+"first")
		if a.NoError(err) {
			a.Equal("https://files.test/"+prefix+"first", *out.ThumbnailURL)
		}

		_, err = uploads.CompleteThumbnail(aliceCtx, v.ID, prefix+"first")
		a.NoError(err)

		_, err = uploads.CompleteThumbnail(aliceCtx, v.ID, prefix+"second")
		a.NoError(err)

		row := reloadVideo(t, ctx, v.ID)
		a.Equal(prefix+"second", *row.ThumbnailKey)
		a.Equal("https://files.test/"+prefix+"second", *row.ThumbnailURL)
	})

	store.AssertExpectations(t)
	store.AssertNumberOfCalls(t, "Delete", 1)
}

func TestBanner(t *testing.T) {
	a := assert.New(t)

	ctx, _ := dbtest.Context(t)

	alice := dbtest.CreateUser(t, ctx, "alice")
	prefix := "banners/" + strconv.Itoa(alice.ID) + "/"

	store := &objectstore.Mock{}
	store.On("PresignPut", mock.Anything, mock.Anything, uploads.PresignExpiry).Return("https://upload.test/put", nil)
	store.On("Stat", mock.Anything, prefix+"a").Return(&objectstore.ObjectInfo{}, nil)
	store.On("Stat", mock.Anything, prefix+"b").Return(&objectstore.ObjectInfo{}, nil)
	store.On("Delete", mock.Anything, prefix+"a").Return(nil).Once()

	aliceCtx := ctxobjectstore.WithStore(ctxauth.WithUser(ctx, alice), store)

	target, err := uploads.RequestBanner(aliceCtx)
	if a.NoError(err) {
		a.True(strings.HasPrefix(target.Key, prefix))
	}

	_, err = uploads.RequestBanner(ctxobjectstore.WithStore(ctx, store))
	a.Equal(apierror.Unauthorized, apierror.CodeOf(err))

	_, err = uploads.CompleteBanner(aliceCtx, "banners/9999/a")
	a.Equal(apierror.BadRequest, apierror.CodeOf(err))

	u, err := uploads.CompleteBanner(aliceCtx, prefix+"a")
	if a.NoError(err) {
		a.Equal("https://files.test/"+prefix+"a", *u.BannerURL)
	}

	u, err = uploads.CompleteBanner(aliceCtx, prefix+"b")
	if a.NoError(err) {
		a.Equal(prefix+"b", *u.BannerKey)
	}

	store.AssertExpectations(t)
}

func TestDeleteObjectJob(t *testing.T) {
	a := assert.New(t)

	store := &objectstore.Mock{}
	store.On("Delete", mock.Anything, "thumbnails/1/abc").Return(nil)

	ctx := ctxobjectstore.WithStore(context.Background(), store)

	out, err := uploads.DeleteObject(ctx, nil, &jobqueue.Job{QueueName: queuenames.ObjectDelete, Payload: "thumbnails/1/abc"})
	a.NoError(err)
	a.Equal("deleted object thumbnails/1/abc", out)

	_, err = uploads.DeleteObject(ctx, nil, &jobqueue.Job{QueueName: queuenames.ObjectDelete})
	a.True(jobqueue.IsPermanent(err))

	_, err = uploads.DeleteObject(context.Background(), nil, &jobqueue.Job{QueueName: queuenames.ObjectDelete, Payload: "x"})
	a.True(jobqueue.IsPermanent(err))

	store.AssertExpectations(t)
}

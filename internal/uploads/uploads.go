// Package uploads hands out presigned upload URLs for thumbnails and banners
// and links the uploaded objects once the client reports completion.
package uploads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fknsrs.biz/p/sorm"
	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/vidshare/internal/apierror"
	"fknsrs.biz/p/vidshare/internal/ctxauth"
	"fknsrs.biz/p/vidshare/internal/ctxclock"
	"fknsrs.biz/p/vidshare/internal/ctxdb"
	"fknsrs.biz/p/vidshare/internal/ctxlogger"
	"fknsrs.biz/p/vidshare/internal/ctxobjectstore"
	"fknsrs.biz/p/vidshare/internal/objectstore"
	"fknsrs.biz/p/vidshare/internal/ptr"
	"fknsrs.biz/p/vidshare/internal/videos"
	"fknsrs.biz/p/vidshare/models"
)

const PresignExpiry = 10 * time.Minute

type Target struct {
	Key       string `json:"key"`
	UploadURL string `json:"uploadUrl"`
}

func thumbnailPrefix(videoID int) string { return "thumbnails/" + strconv.Itoa(videoID) }
func bannerPrefix(userID int) string     { return "banners/" + strconv.Itoa(userID) }

func presign(ctx context.Context, store objectstore.Store, prefix string) (*Target, error) {
	key := objectstore.NewKey(prefix)

	u, err := store.PresignPut(ctx, key, PresignExpiry)
	if err != nil {
		return nil, fmt.Errorf("could not presign upload: %w", err)
	}

	return &Target{Key: key, UploadURL: u}, nil
}

func checkKey(key, prefix string) error {
	if !strings.HasPrefix(key, prefix+"/") || strings.Contains(key, "..") {
		return apierror.New(apierror.BadRequest, "object key %q was not issued for this upload", key)
	}

	return nil
}

func stat(ctx context.Context, store objectstore.Store, key string) error {
	if _, err := store.Stat(ctx, key); err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return apierror.New(apierror.NotFound, "object %q has not been uploaded", key)
		}

		return fmt.Errorf("could not stat object: %w", err)
	}

	return nil
}

// replace deletes previous from the store when the new key differs from it.
func replace(ctx context.Context, store objectstore.Store, previous *string, key string) error {
	if previous == nil || *previous == key {
		return nil
	}

	if err := store.Delete(ctx, *previous); err != nil {
		return fmt.Errorf("could not delete previous object: %w", err)
	}

	ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{"object.key": *previous}).Debug("deleted replaced object")

	return nil
}

func RequestThumbnail(ctx context.Context, videoID int) (*Target, error) {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	store, err := ctxobjectstore.Require(ctx)
	if err != nil {
		return nil, fmt.Errorf("uploads.RequestThumbnail: %w", err)
	}

	if _, err := videos.FindOwned(ctx, ctxdb.GetDB(ctx), videoID, actor.ID); err != nil {
		return nil, fmt.Errorf("uploads.RequestThumbnail: %w", err)
	}

	t, err := presign(ctx, store, thumbnailPrefix(videoID))
	if err != nil {
		return nil, fmt.Errorf("uploads.RequestThumbnail: %w", err)
	}

	return t, nil
}

// CompleteThumbnail makes an uploaded object the video's thumbnail. Reporting
// the current key again changes nothing.
func CompleteThumbnail(ctx context.Context, videoID int, key string) (*models.Video, error) {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	store, err := ctxobjectstore.Require(ctx)
	if err != nil {
		return nil, fmt.Errorf("uploads.CompleteThumbnail: %w", err)
	}

	if err := checkKey(key, thumbnailPrefix(videoID)); err != nil {
		return nil, err
	}

	var v *models.Video
	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		found, err := videos.FindOwned(ctx, tx, videoID, actor.ID)
		if err != nil {
			return err
		}
		v = found

		if ptr.Deref(v.ThumbnailKey, "") == key {
			return nil
		}

		if err := stat(ctx, store, key); err != nil {
			return err
		}

		if err := replace(ctx, store, v.ThumbnailKey, key); err != nil {
			return err
		}

		v.ThumbnailKey = ptr.To(key)
		v.ThumbnailURL = ptr.To(store.URL(key))
		v.UpdatedAt = ctxclock.NowOrReal(ctx)

		return sorm.SaveRecord(ctx, tx, v)
	}); err != nil {
		return nil, fmt.Errorf("uploads.CompleteThumbnail: %w", err)
	}

	return v, nil
}

func RequestBanner(ctx context.Context) (*Target, error) {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	store, err := ctxobjectstore.Require(ctx)
	if err != nil {
		return nil, fmt.Errorf("uploads.RequestBanner: %w", err)
	}

	t, err := presign(ctx, store, bannerPrefix(actor.ID))
	if err != nil {
		return nil, fmt.Errorf("uploads.RequestBanner: %w", err)
	}

	return t, nil
}

func CompleteBanner(ctx context.Context, key string) (*models.User, error) {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	store, err := ctxobjectstore.Require(ctx)
	if err != nil {
		return nil, fmt.Errorf("uploads.CompleteBanner: %w", err)
	}

	if err := checkKey(key, bannerPrefix(actor.ID)); err != nil {
		return nil, err
	}

	var u models.User
	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		if err := sorm.FindFirstWhere(ctx, tx, &u, "where id = ?", actor.ID); err != nil {
			return fmt.Errorf("could not reload user: %w", err)
		}

		if ptr.Deref(u.BannerKey, "") == key {
			return nil
		}

		if err := stat(ctx, store, key); err != nil {
			return err
		}

		if err := replace(ctx, store, u.BannerKey, key); err != nil {
			return err
		}

		u.BannerKey = ptr.To(key)
		u.BannerURL = ptr.To(store.URL(key))
		u.UpdatedAt = ctxclock.NowOrReal(ctx)

		return sorm.SaveRecord(ctx, tx, &u)
	}); err != nil {
		return nil, fmt.Errorf("uploads.CompleteBanner: %w", err)
	}

	return &u, nil
}

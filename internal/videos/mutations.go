package videos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"fknsrs.biz/p/sorm"
	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/vidshare/internal/apierror"
	"fknsrs.biz/p/vidshare/internal/ctxauth"
	"fknsrs.biz/p/vidshare/internal/ctxclock"
	"fknsrs.biz/p/vidshare/internal/ctxdb"
	"fknsrs.biz/p/vidshare/internal/ctxjobqueue"
	"fknsrs.biz/p/vidshare/internal/ctxlogger"
	"fknsrs.biz/p/vidshare/internal/ctxobjectstore"
	"fknsrs.biz/p/vidshare/internal/ctxtranscoder"
	"fknsrs.biz/p/vidshare/internal/ptr"
	"fknsrs.biz/p/vidshare/internal/queuenames"
	"fknsrs.biz/p/vidshare/internal/transcoder"
	"fknsrs.biz/p/vidshare/models"
)

const (
	DefaultTitle   = "Untitled"
	MaxTitleLength = 100
)

type Upload struct {
	Video     *models.Video `json:"video"`
	UploadURL string        `json:"uploadUrl"`
}

// CreateUpload opens a direct upload session with the transcoder and records
// a private video waiting for it.
func CreateUpload(ctx context.Context) (*Upload, error) {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	api, err := ctxtranscoder.Require(ctx)
	if err != nil {
		return nil, fmt.Errorf("videos.CreateUpload: %w", err)
	}

	upload, err := api.CreateUpload(ctx, strconv.Itoa(actor.ID))
	if err != nil {
		return nil, fmt.Errorf("videos.CreateUpload: %w", err)
	}

	now := ctxclock.NowOrReal(ctx)

	v := models.Video{
		CreatedAt:       now,
		UpdatedAt:       now,
		UserID:          actor.ID,
		Title:           DefaultTitle,
		Visibility:      models.VisibilityPrivate,
		TranscodeStatus: models.TranscodeStatusWaiting,
		UploadID:        ptr.To(upload.ID),
	}

	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		return sorm.CreateRecord(ctx, tx, &v)
	}); err != nil {
		return nil, fmt.Errorf("videos.CreateUpload: could not create video: %w", err)
	}

	ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{"video.id": v.ID, "video.upload_id": upload.ID}).Info("created upload")

	return &Upload{Video: &v, UploadURL: upload.URL}, nil
}

// UpdateInput holds the editable fields; nil fields are left alone. A
// CategoryID of zero clears the category.
type UpdateInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	CategoryID  *int    `json:"categoryId"`
	Visibility  *string `json:"visibility"`
}

func (in UpdateInput) validate() error {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return apierror.New(apierror.BadRequest, "title must not be empty")
		}
		if utf8.RuneCountInString(title) > MaxTitleLength {
			return apierror.New(apierror.BadRequest, "title must be at most %d characters", MaxTitleLength)
		}
	}

	if in.Visibility != nil && *in.Visibility != models.VisibilityPublic && *in.Visibility != models.VisibilityPrivate {
		return apierror.New(apierror.BadRequest, "visibility must be %q or %q", models.VisibilityPublic, models.VisibilityPrivate)
	}

	return nil
}

func Update(ctx context.Context, id int, in UpdateInput) (*models.Video, error) {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	if err := in.validate(); err != nil {
		return nil, err
	}

	var v *models.Video
	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		found, err := FindOwned(ctx, tx, id, actor.ID)
		if err != nil {
			return err
		}
		v = found

		if in.Title != nil {
			v.Title = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			v.Description = strings.TrimSpace(*in.Description)
		}
		if in.Visibility != nil {
			v.Visibility = *in.Visibility
		}
		if in.CategoryID != nil {
			if *in.CategoryID == 0 {
				v.CategoryID = nil
			} else {
				var c models.Category
				if err := sorm.FindFirstWhere(ctx, tx, &c, "where id = ?", *in.CategoryID); err != nil {
					if errors.Is(err, sql.ErrNoRows) {
						return apierror.New(apierror.BadRequest, "category %d does not exist", *in.CategoryID)
					}
					return fmt.Errorf("could not find category: %w", err)
				}
				v.CategoryID = ptr.To(c.ID)
			}
		}

		v.UpdatedAt = ctxclock.NowOrReal(ctx)

		return sorm.SaveRecord(ctx, tx, v)
	}); err != nil {
		return nil, fmt.Errorf("videos.Update: %w", err)
	}

	return v, nil
}

// Remove deletes a video. The transcoder asset and any stored thumbnail are
// cleaned up by jobs queued in the same transaction.
func Remove(ctx context.Context, id int) (*models.Video, error) {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	var v *models.Video
	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		found, err := FindOwned(ctx, tx, id, actor.ID)
		if err != nil {
			return err
		}
		v = found

		if _, err := tx.ExecContext(ctx, "delete from videos where id = ?", v.ID); err != nil {
			return fmt.Errorf("could not delete video: %w", err)
		}

		if v.AssetID != nil {
			if _, err := ctxjobqueue.Enqueue(ctx, tx, queuenames.VideoDeleteAsset, *v.AssetID, 0); err != nil {
				return err
			}
		}

		if v.ThumbnailKey != nil {
			if _, err := ctxjobqueue.Enqueue(ctx, tx, queuenames.ObjectDelete, *v.ThumbnailKey, 0); err != nil {
				return err
			}
		}

		return nil
	}); err != nil {
		return nil, fmt.Errorf("videos.Remove: %w", err)
	}

	ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{"video.id": v.ID}).Info("removed video")

	return v, nil
}

// StatusFromAsset maps a transcoder asset status onto a video status.
func StatusFromAsset(status string) string {
	switch status {
	case transcoder.AssetStatusReady:
		return models.TranscodeStatusReady
	case transcoder.AssetStatusErrored:
		return models.TranscodeStatusErrored
	default:
		return models.TranscodeStatusProcessing
	}
}

// ApplyAsset copies what the transcoder knows about an asset onto v. The
// status only moves forward.
func ApplyAsset(v *models.Video, asset *transcoder.Asset, api transcoder.API) {
	if asset.ID != "" {
		v.AssetID = ptr.To(asset.ID)
	}

	if status := StatusFromAsset(asset.Status); models.CanTransition(v.TranscodeStatus, status) {
		v.TranscodeStatus = status
	}

	if asset.PlaybackID != "" {
		v.PlaybackID = ptr.To(asset.PlaybackID)
		v.PreviewURL = ptr.To(api.PreviewURL(asset.PlaybackID))
		if v.ThumbnailKey == nil {
			v.ThumbnailURL = ptr.To(api.ThumbnailURL(asset.PlaybackID))
		}
	}

	if asset.DurationMS != nil {
		v.DurationMS = ptr.To(*asset.DurationMS)
	}

	if track := asset.TextTrack(); track != nil {
		v.TrackID = ptr.To(track.ID)
		if track.Status != "" {
			v.TrackStatus = ptr.To(track.Status)
		}
	}
}

// Revalidate asks the transcoder for the current state of a video's asset,
// for when a webhook was missed.
func Revalidate(ctx context.Context, id int) (*models.Video, error) {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	api, err := ctxtranscoder.Require(ctx)
	if err != nil {
		return nil, fmt.Errorf("videos.Revalidate: %w", err)
	}

	v, err := FindOwned(ctx, ctxdb.GetDB(ctx), id, actor.ID)
	if err != nil {
		return nil, err
	}

	if v.UploadID == nil {
		return nil, apierror.New(apierror.BadRequest, "video %d has no upload", id)
	}

	assetID := ptr.Deref(v.AssetID, "")
	if assetID == "" {
		upload, err := api.GetUpload(ctx, *v.UploadID)
		if err != nil {
			return nil, fmt.Errorf("videos.Revalidate: %w", err)
		}

		if upload.AssetID == "" {
			return nil, apierror.New(apierror.BadRequest, "upload for video %d has not produced an asset yet", id)
		}

		assetID = upload.AssetID
	}

	asset, err := api.GetAsset(ctx, assetID)
	if err != nil {
		if errors.Is(err, transcoder.ErrAssetNotFound) {
			return nil, apierror.Wrap(apierror.NotFound, err, "asset for video %d not found", id)
		}
		return nil, fmt.Errorf("videos.Revalidate: %w", err)
	}

	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		current, err := FindOwned(ctx, tx, id, actor.ID)
		if err != nil {
			return err
		}
		v = current

		ApplyAsset(v, asset, api)
		v.UpdatedAt = ctxclock.NowOrReal(ctx)

		return sorm.SaveRecord(ctx, tx, v)
	}); err != nil {
		return nil, fmt.Errorf("videos.Revalidate: %w", err)
	}

	return v, nil
}

// RestoreThumbnail drops an uploaded thumbnail in favour of the one the
// transcoder generates.
func RestoreThumbnail(ctx context.Context, id int) (*models.Video, error) {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	api, err := ctxtranscoder.Require(ctx)
	if err != nil {
		return nil, fmt.Errorf("videos.RestoreThumbnail: %w", err)
	}

	store, err := ctxobjectstore.Require(ctx)
	if err != nil {
		return nil, fmt.Errorf("videos.RestoreThumbnail: %w", err)
	}

	var v *models.Video
	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		found, err := FindOwned(ctx, tx, id, actor.ID)
		if err != nil {
			return err
		}
		v = found

		if v.PlaybackID == nil {
			return apierror.New(apierror.BadRequest, "video %d has not finished processing", id)
		}

		if v.ThumbnailKey != nil {
			if err := store.Delete(ctx, *v.ThumbnailKey); err != nil {
				return fmt.Errorf("could not delete stored thumbnail: %w", err)
			}
		}

		v.ThumbnailKey = nil
		v.ThumbnailURL = ptr.To(api.ThumbnailURL(*v.PlaybackID))
		v.UpdatedAt = ctxclock.NowOrReal(ctx)

		return sorm.SaveRecord(ctx, tx, v)
	}); err != nil {
		return nil, fmt.Errorf("videos.RestoreThumbnail: %w", err)
	}

	return v, nil
}

// GetStudio returns the full row of one of the actor's videos.
func GetStudio(ctx context.Context, id int) (*models.Video, error) {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	return FindOwned(ctx, ctxdb.GetDB(ctx), id, actor.ID)
}

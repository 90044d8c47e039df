// Package transcoding applies transcoder webhook events to video rows.
//
// Events find their video by upload id, or by asset id for track events. An
// event for a video we do not know about changes nothing. Status only moves
// forward, so replaying or reordering events cannot undo a ready or errored
// video.
package transcoding

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fknsrs.biz/p/sorm"
	"github.com/Jeffail/gabs/v2"
	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/vidshare/internal/apierror"
	"fknsrs.biz/p/vidshare/internal/ctxclock"
	"fknsrs.biz/p/vidshare/internal/ctxdb"
	"fknsrs.biz/p/vidshare/internal/ctxlogger"
	"fknsrs.biz/p/vidshare/internal/ctxtranscoder"
	"fknsrs.biz/p/vidshare/internal/ptr"
	"fknsrs.biz/p/vidshare/internal/transcoder"
	"fknsrs.biz/p/vidshare/internal/videos"
	"fknsrs.biz/p/vidshare/models"
)

const (
	EventAssetCreated    = "video.asset.created"
	EventAssetReady      = "video.asset.ready"
	EventAssetErrored    = "video.asset.errored"
	EventAssetDeleted    = "video.asset.deleted"
	EventAssetTrackReady = "video.asset.track.ready"
)

type Event struct {
	Type string
	Data *gabs.Container
}

// ParseEvent reads a webhook body of the form {"type": .., "data": {..}}.
func ParseEvent(body []byte) (*Event, error) {
	j, err := gabs.ParseJSON(body)
	if err != nil {
		return nil, apierror.Wrap(apierror.BadRequest, err, "invalid webhook body")
	}

	typ, _ := j.Path("type").Data().(string)
	if typ == "" {
		return nil, apierror.New(apierror.BadRequest, "webhook body has no type")
	}

	return &Event{Type: typ, Data: j.Path("data")}, nil
}

// Result says what Apply did.
type Result struct {
	VideoID int
	Changed bool
}

// Apply updates the video an event refers to. Unknown event types are
// ignored.
func Apply(ctx context.Context, ev *Event) (*Result, error) {
	switch ev.Type {
	case EventAssetCreated, EventAssetReady, EventAssetErrored, EventAssetDeleted, EventAssetTrackReady:
	default:
		ctxlogger.GetLogger(ctx).WithField("webhook.type", ev.Type).Debug("ignoring transcoder event")
		return &Result{}, nil
	}

	asset, err := transcoder.ParseAsset(ev.Data)
	if err != nil {
		return nil, apierror.Wrap(apierror.BadRequest, err, "webhook %s has no data", ev.Type)
	}

	var res Result
	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		if ev.Type == EventAssetTrackReady {
			res, err = applyTrack(ctx, tx, ev, asset)
		} else {
			res, err = applyAsset(ctx, tx, ev, asset)
		}
		return err
	}); err != nil {
		return nil, fmt.Errorf("transcoding.Apply: %w", err)
	}

	ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
		"webhook.type": ev.Type,
		"video.id":     res.VideoID,
		"changed":      res.Changed,
	}).Info("applied transcoder event")

	return &res, nil
}

func findBy(ctx context.Context, tx *sql.Tx, column, value string) (*models.Video, error) {
	var v models.Video
	if err := sorm.FindFirstWhere(ctx, tx, &v, "where "+column+" = ?", value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("could not find video by %s: %w", column, err)
	}

	return &v, nil
}

func applyAsset(ctx context.Context, tx *sql.Tx, ev *Event, asset *transcoder.Asset) (Result, error) {
	if asset.UploadID == "" {
		return Result{}, apierror.New(apierror.BadRequest, "webhook %s is missing data.upload_id", ev.Type)
	}

	v, err := findBy(ctx, tx, "upload_id", asset.UploadID)
	if err != nil || v == nil {
		return Result{}, err
	}

	if ev.Type == EventAssetDeleted {
		if _, err := tx.ExecContext(ctx, "delete from videos where id = ?", v.ID); err != nil {
			return Result{}, fmt.Errorf("could not delete video: %w", err)
		}

		return Result{VideoID: v.ID, Changed: true}, nil
	}

	before := *v

	switch ev.Type {
	case EventAssetCreated:
		if models.CanTransition(v.TranscodeStatus, models.TranscodeStatusProcessing) {
			v.TranscodeStatus = models.TranscodeStatusProcessing
		}
		if asset.ID != "" {
			v.AssetID = ptr.To(asset.ID)
		}
	case EventAssetReady:
		api, err := ctxtranscoder.Require(ctx)
		if err != nil {
			return Result{}, err
		}

		if asset.PlaybackID == "" {
			return Result{}, apierror.New(apierror.BadRequest, "webhook %s is missing a playback id", ev.Type)
		}

		asset.Status = transcoder.AssetStatusReady
		videos.ApplyAsset(v, asset, api)
	case EventAssetErrored:
		if models.CanTransition(v.TranscodeStatus, models.TranscodeStatusErrored) {
			v.TranscodeStatus = models.TranscodeStatusErrored
		}
		if asset.ID != "" {
			v.AssetID = ptr.To(asset.ID)
		}
	}

	if sameVideo(&before, v) {
		return Result{VideoID: v.ID}, nil
	}

	v.UpdatedAt = ctxclock.NowOrReal(ctx)

	if err := sorm.SaveRecord(ctx, tx, v); err != nil {
		return Result{}, fmt.Errorf("could not save video: %w", err)
	}

	return Result{VideoID: v.ID, Changed: true}, nil
}

// track events carry the track itself as data, with the owning asset's id.
func applyTrack(ctx context.Context, tx *sql.Tx, ev *Event, track *transcoder.Asset) (Result, error) {
	assetID, _ := ev.Data.Path("asset_id").Data().(string)
	if assetID == "" {
		return Result{}, apierror.New(apierror.BadRequest, "webhook %s is missing data.asset_id", ev.Type)
	}

	v, err := findBy(ctx, tx, "asset_id", assetID)
	if err != nil || v == nil {
		return Result{}, err
	}

	before := *v

	v.TrackID = ptr.To(track.ID)
	if track.Status != "" {
		v.TrackStatus = ptr.To(track.Status)
	}

	if sameVideo(&before, v) {
		return Result{VideoID: v.ID}, nil
	}

	v.UpdatedAt = ctxclock.NowOrReal(ctx)

	if err := sorm.SaveRecord(ctx, tx, v); err != nil {
		return Result{}, fmt.Errorf("could not save video: %w", err)
	}

	return Result{VideoID: v.ID, Changed: true}, nil
}

func sameVideo(a, b *models.Video) bool {
	return a.TranscodeStatus == b.TranscodeStatus &&
		ptr.Deref(a.AssetID, "") == ptr.Deref(b.AssetID, "") &&
		ptr.Deref(a.PlaybackID, "") == ptr.Deref(b.PlaybackID, "") &&
		ptr.Deref(a.PreviewURL, "") == ptr.Deref(b.PreviewURL, "") &&
		ptr.Deref(a.ThumbnailURL, "") == ptr.Deref(b.ThumbnailURL, "") &&
		ptr.Deref(a.TrackID, "") == ptr.Deref(b.TrackID, "") &&
		ptr.Deref(a.TrackStatus, "") == ptr.Deref(b.TrackStatus, "") &&
		ptr.Deref(a.DurationMS, -1) == ptr.Deref(b.DurationMS, -1)
}

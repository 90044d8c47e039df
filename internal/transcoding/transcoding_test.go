package transcoding_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"fknsrs.biz/p/vidshare/internal/apierror"
	"fknsrs.biz/p/vidshare/internal/ctxdb"
	"fknsrs.biz/p/vidshare/internal/ctxtranscoder"
	"fknsrs.biz/p/vidshare/internal/dbtest"
	"fknsrs.biz/p/vidshare/internal/ptr"
	"fknsrs.biz/p/vidshare/internal/transcoder"
	"fknsrs.biz/p/vidshare/internal/transcoding"
	"fknsrs.biz/p/vidshare/internal/videos"
	"fknsrs.biz/p/vidshare/models"
)

func apply(t *testing.T, ctx context.Context, body string) (*transcoding.Result, error) {
	t.Helper()

	ev, err := transcoding.ParseEvent([]byte(body))
	if err != nil {
		return nil, err
	}

	return transcoding.Apply(ctx, ev)
}

func reload(t *testing.T, ctx context.Context, id int) *models.Video {
	t.Helper()

	v, err := videos.Find(ctx, ctxdb.GetDB(ctx), id)
	if err != nil {
		t.Fatal(err)
	}

	return v
}

func waiting(v *models.Video) {
	v.Visibility = models.VisibilityPrivate
	v.TranscodeStatus = models.TranscodeStatusWaiting
	v.UploadID = ptr.To("up_1")
}

const (
	created = `{"type":"video.asset.created","data":{"id":"as_1","upload_id":"up_1","status":"preparing"}}`
	ready   = `{"type":"video.asset.ready","data":{"id":"as_1","upload_id":"up_1","status":"ready","duration":61.2,"playback_ids":[{"id":"pb_1"}]}}`
	errored = `{"type":"video.asset.errored","data":{"id":"as_1","upload_id":"up_1","status":"errored"}}`
)

func TestLifecycle(t *testing.T) {
	a := assert.New(t)

	ctx, _ := dbtest.Context(t)
	ctx = ctxtranscoder.WithAPI(ctx, &transcoder.Mock{})

	alice := dbtest.CreateUser(t, ctx, "alice")
	v := dbtest.CreateVideo(t, ctx, alice, "upload", waiting)

	res, err := apply(t, ctx, created)
	if a.NoError(err) {
		a.Equal(&transcoding.Result{VideoID: v.ID, Changed: true}, res)
	}

	got := reload(t, ctx, v.ID)
	a.Equal(models.TranscodeStatusProcessing, got.TranscodeStatus)
	a.Equal(ptr.To("as_1"), got.AssetID)

	_, err = apply(t, ctx, ready)
	a.NoError(err)

	got = reload(t, ctx, v.ID)
	a.Equal(models.TranscodeStatusReady, got.TranscodeStatus)
	a.Equal(ptr.To("pb_1"), got.PlaybackID)
	a.Equal(ptr.To(61200), got.DurationMS)
	a.Equal(ptr.To("https://image.test/pb_1/thumbnail.jpg"), got.ThumbnailURL)
	a.Equal(ptr.To("https://image.test/pb_1/animated.gif"), got.PreviewURL)

	t.Run("ReplayDoesNotRegress", func(t *testing.T) {
		a := assert.New(t)

		for _, body := range []string{created, errored, ready} {
			res, err := apply(t, ctx, body)
			if a.NoError(err) {
				a.False(res.Changed)
			}
		}

		after := reload(t, ctx, v.ID)
		a.Equal(models.TranscodeStatusReady, after.TranscodeStatus)
		a.True(got.UpdatedAt.Equal(after.UpdatedAt))
	})

	t.Run("TrackReady", func(t *testing.T) {
		a := assert.New(t)

		res, err := apply(t, ctx, `{"type":"video.asset.track.ready","data":{"id":"tr_1","type":"text","status":"ready","asset_id":"as_1"}}`)
		if a.NoError(err) {
			a.True(res.Changed)
		}

		after := reload(t, ctx, v.ID)
		a.Equal(ptr.To("tr_1"), after.TrackID)
		a.Equal(ptr.To("ready"), after.TrackStatus)
	})

	t.Run("Deleted", func(t *testing.T) {
		a := assert.New(t)

		_, err := apply(t, ctx, `{"type":"video.asset.deleted","data":{"id":"as_1","upload_id":"up_1"}}`)
		a.NoError(err)
		a.Equal(0, dbtest.Count(t, ctx, "select count(*) from videos"))
	})
}

func TestErrored(t *testing.T) {
	a := assert.New(t)

	ctx, _ := dbtest.Context(t)
	alice := dbtest.CreateUser(t, ctx, "alice")
	v := dbtest.CreateVideo(t, ctx, alice, "upload", waiting)

	_, err := apply(t, ctx, errored)
	a.NoError(err)
	a.Equal(models.TranscodeStatusErrored, reload(t, ctx, v.ID).TranscodeStatus)

	_, err = apply(t, ctx, created)
	a.NoError(err)
	a.Equal(models.TranscodeStatusErrored, reload(t, ctx, v.ID).TranscodeStatus)
}

func TestUnknownUpload(t *testing.T) {
	a := assert.New(t)

	ctx, _ := dbtest.Context(t)
	alice := dbtest.CreateUser(t, ctx, "alice")
	v := dbtest.CreateVideo(t, ctx, alice, "upload", waiting)

	res, err := apply(t, ctx, `{"type":"video.asset.created","data":{"id":"as_9","upload_id":"up_other"}}`)
	if a.NoError(err) {
		a.Equal(&transcoding.Result{}, res)
	}

	got := reload(t, ctx, v.ID)
	a.Equal(models.TranscodeStatusWaiting, got.TranscodeStatus)
	a.Nil(got.AssetID)
	a.True(v.UpdatedAt.Equal(got.UpdatedAt))
}

func TestBadEvents(t *testing.T) {
	ctx, _ := dbtest.Context(t)

	for _, tc := range []struct {
		name string
		body string
	}{
		{"NotJSON", `nope`},
		{"NoType", `{"data":{}}`},
		{"CreatedWithoutUploadID", `{"type":"video.asset.created","data":{"id":"as_1"}}`},
		{"CreatedWithoutData", `{"type":"video.asset.created"}`},
		{"TrackWithoutAsset", `{"type":"video.asset.track.ready","data":{"id":"tr_1"}}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			_, err := apply(t, ctx, tc.body)
			a.Equal(apierror.BadRequest, apierror.CodeOf(err))
		})
	}
}

func TestIgnoredEvent(t *testing.T) {
	a := assert.New(t)

	ctx, _ := dbtest.Context(t)

	res, err := apply(t, ctx, `{"type":"video.upload.created","data":{"id":"up_1"}}`)
	if a.NoError(err) {
		a.False(res.Changed)
	}
}

// Package playlists manages user playlists and the built-in history and liked
// collections.
package playlists

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fknsrs.biz/p/sorm"
	sb "fknsrs.biz/p/sqlbuilder"
	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/vidshare/internal/apierror"
	"fknsrs.biz/p/vidshare/internal/ctxauth"
	"fknsrs.biz/p/vidshare/internal/ctxclock"
	"fknsrs.biz/p/vidshare/internal/ctxdb"
	"fknsrs.biz/p/vidshare/internal/ctxlogger"
	"fknsrs.biz/p/vidshare/internal/pagination"
	"fknsrs.biz/p/vidshare/internal/videos"
	"fknsrs.biz/p/vidshare/models"
)

const MaxNameLength = 100

func find(ctx context.Context, q sorm.Querier, id int) (*models.Playlist, error) {
	var p models.Playlist
	if err := sorm.FindFirstWhere(ctx, q, &p, "where id = ?", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.New(apierror.NotFound, "playlist %d not found", id)
		}

		return nil, fmt.Errorf("could not find playlist: %w", err)
	}

	return &p, nil
}

func findOwned(ctx context.Context, q sorm.Querier, id, userID int) (*models.Playlist, error) {
	p, err := find(ctx, q, id)
	if err != nil {
		return nil, err
	}

	if p.UserID != userID {
		return nil, apierror.New(apierror.Unauthorized, "playlist %d belongs to another user", id)
	}

	return p, nil
}

type CreateInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func Create(ctx context.Context, in CreateInput) (*models.Playlist, error) {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apierror.New(apierror.BadRequest, "name must not be empty")
	}
	if len([]rune(name)) > MaxNameLength {
		return nil, apierror.New(apierror.BadRequest, "name must be at most %d characters", MaxNameLength)
	}

	now := ctxclock.NowOrReal(ctx)

	p := models.Playlist{
		CreatedAt:   now,
		UpdatedAt:   now,
		UserID:      actor.ID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
	}

	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		return sorm.CreateRecord(ctx, tx, &p)
	}); err != nil {
		return nil, fmt.Errorf("playlists.Create: %w", err)
	}

	ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{"playlist.id": p.ID}).Debug("created playlist")

	return &p, nil
}

func Remove(ctx context.Context, id int) (*models.Playlist, error) {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	var p *models.Playlist
	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		found, err := findOwned(ctx, tx, id, actor.ID)
		if err != nil {
			return err
		}
		p = found

		if _, err := tx.ExecContext(ctx, "delete from playlists where id = ?", id); err != nil {
			return fmt.Errorf("could not delete playlist: %w", err)
		}

		return nil
	}); err != nil {
		return nil, fmt.Errorf("playlists.Remove: %w", err)
	}

	return p, nil
}

// GetOne returns one of the actor's playlists. Playlists are not shared, so
// another user's playlist is reported as missing.
func GetOne(ctx context.Context, id int) (*models.PlaylistListing, error) {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	var p models.PlaylistListing
	if err := sorm.FindFirstWhere(ctx, ctxdb.GetDB(ctx), &p, "where id = ? and user_id = ?", id, actor.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.New(apierror.NotFound, "playlist %d not found", id)
		}

		return nil, fmt.Errorf("playlists.GetOne: %w", err)
	}

	return &p, nil
}

func updatedAtKey(p models.PlaylistListing) pagination.Cursor[time.Time] {
	return pagination.IntCursor(p.ID, p.UpdatedAt)
}

// List is the actor's playlists, most recently changed first.
func List(ctx context.Context, request pagination.Request[time.Time]) (*pagination.Page[models.PlaylistListing, time.Time], error) {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	t := models.PlaylistListingTable

	page, err := pagination.Fetch(ctx, ctxdb.GetDB(ctx), pagination.Query[models.PlaylistListing, time.Time]{
		SortColumn: t.C("UpdatedAt"),
		IDColumn:   t.C("ID"),
		Condition:  sb.BinaryOperator("=", t.C("UserID"), sb.Bind(actor.ID)),
		Key:        updatedAtKey,
	}, request)
	if err != nil {
		return nil, fmt.Errorf("playlists.List: %w", err)
	}

	return page, nil
}

type ForVideo struct {
	models.PlaylistListing
	ContainsVideo bool `json:"containsVideo"`
}

// ListForVideo is List with each playlist marked by whether it holds videoID.
func ListForVideo(ctx context.Context, videoID int, request pagination.Request[time.Time]) (*pagination.Page[ForVideo, time.Time], error) {
	page, err := List(ctx, request)
	if err != nil {
		return nil, err
	}

	contains := map[int]bool{}
	if len(page.Items) > 0 {
		var rows []models.PlaylistVideo
		if err := sorm.FindWhere(ctx, ctxdb.GetDB(ctx), &rows, "where video_id = ? and playlist_id in (select id from playlists where user_id = ?)", videoID, ctxauth.UserID(ctx)); err != nil {
			return nil, fmt.Errorf("playlists.ListForVideo: %w", err)
		}

		for _, r := range rows {
			contains[r.PlaylistID] = true
		}
	}

	items := make([]ForVideo, len(page.Items))
	for i, e := range page.Items {
		items[i] = ForVideo{PlaylistListing: e, ContainsVideo: contains[e.ID]}
	}

	return &pagination.Page[ForVideo, time.Time]{Items: items, NextCursor: page.NextCursor}, nil
}

func touch(ctx context.Context, tx *sql.Tx, p *models.Playlist, now time.Time) error {
	p.UpdatedAt = now

	if err := sorm.SaveRecord(ctx, tx, p); err != nil {
		return fmt.Errorf("could not update playlist: %w", err)
	}

	return nil
}

// AddVideo puts a video at the top of a playlist. Adding a video that is
// already there moves it back to the top.
func AddVideo(ctx context.Context, playlistID, videoID int) error {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return err
	}

	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		p, err := findOwned(ctx, tx, playlistID, actor.ID)
		if err != nil {
			return err
		}

		if _, err := videos.FindVisible(ctx, tx, videoID, actor.ID); err != nil {
			return err
		}

		now := ctxclock.NowOrReal(ctx)

		if _, err := tx.ExecContext(
			ctx,
			"insert into playlist_videos (playlist_id, video_id, created_at, updated_at) values (?, ?, ?, ?) "+
				"on conflict (playlist_id, video_id) do update set updated_at = excluded.updated_at",
			playlistID, videoID, now, now,
		); err != nil {
			return fmt.Errorf("could not insert playlist video: %w", err)
		}

		return touch(ctx, tx, p, now)
	}); err != nil {
		return fmt.Errorf("playlists.AddVideo: %w", err)
	}

	ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{"playlist.id": playlistID, "video.id": videoID}).Debug("added video to playlist")

	return nil
}

func RemoveVideo(ctx context.Context, playlistID, videoID int) error {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return err
	}

	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		p, err := findOwned(ctx, tx, playlistID, actor.ID)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, "delete from playlist_videos where playlist_id = ? and video_id = ?", playlistID, videoID)
		if err != nil {
			return fmt.Errorf("could not delete playlist video: %w", err)
		}

		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("could not delete playlist video: %w", err)
		} else if n == 0 {
			return apierror.New(apierror.NotFound, "video %d is not in playlist %d", videoID, playlistID)
		}

		return touch(ctx, tx, p, ctxclock.NowOrReal(ctx))
	}); err != nil {
		return fmt.Errorf("playlists.RemoveVideo: %w", err)
	}

	return nil
}

// Videos pages through a playlist's videos, most recently added first.
func Videos(ctx context.Context, playlistID int, request pagination.Request[time.Time]) (*pagination.Page[videos.CollectedVideo, time.Time], error) {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := findOwned(ctx, ctxdb.GetDB(ctx), playlistID, actor.ID); err != nil {
		return nil, fmt.Errorf("playlists.Videos: %w", err)
	}

	return videos.Collected(ctx, models.CollectionPlaylist, actor.ID, playlistID, request)
}

// History is the videos the actor has watched, most recent first.
func History(ctx context.Context, request pagination.Request[time.Time]) (*pagination.Page[videos.CollectedVideo, time.Time], error) {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	return videos.Collected(ctx, models.CollectionHistory, actor.ID, 0, request)
}

// Liked is the videos the actor currently likes, most recent first.
func Liked(ctx context.Context, request pagination.Request[time.Time]) (*pagination.Page[videos.CollectedVideo, time.Time], error) {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	return videos.Collected(ctx, models.CollectionLiked, actor.ID, 0, request)
}

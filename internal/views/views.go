// Package views records that a signed-in user watched a video. Each user
// counts once per video; watching again moves the video to the top of their
// history.
package views

import (
	"context"
	"database/sql"
	"fmt"

	"fknsrs.biz/p/vidshare/internal/ctxauth"
	"fknsrs.biz/p/vidshare/internal/ctxclock"
	"fknsrs.biz/p/vidshare/internal/ctxdb"
	"fknsrs.biz/p/vidshare/internal/videos"
)

func Record(ctx context.Context, videoID int) error {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return err
	}

	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := videos.FindVisible(ctx, tx, videoID, actor.ID); err != nil {
			return err
		}

		now := ctxclock.NowOrReal(ctx)

		if _, err := tx.ExecContext(
			ctx,
			"insert into video_views (user_id, video_id, created_at, updated_at) values (?, ?, ?, ?) "+
				"on conflict (user_id, video_id) do update set updated_at = excluded.updated_at",
			actor.ID, videoID, now, now,
		); err != nil {
			return fmt.Errorf("could not upsert view: %w", err)
		}

		return nil
	}); err != nil {
		return fmt.Errorf("views.Record: %w", err)
	}

	return nil
}

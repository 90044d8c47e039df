// Package reactions toggles likes and dislikes on videos and comments.
//
// Reacting with the type already held removes the reaction. Any other
// reaction is written with an upsert on (user, target), so a user never holds
// more than one reaction on a target, even when duplicate requests race.
package reactions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fknsrs.biz/p/sorm"
	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/vidshare/internal/apierror"
	"fknsrs.biz/p/vidshare/internal/ctxauth"
	"fknsrs.biz/p/vidshare/internal/ctxclock"
	"fknsrs.biz/p/vidshare/internal/ctxdb"
	"fknsrs.biz/p/vidshare/internal/ctxlogger"
	"fknsrs.biz/p/vidshare/internal/ptr"
	"fknsrs.biz/p/vidshare/internal/videos"
	"fknsrs.biz/p/vidshare/models"
)

// State is the actor's reaction after a toggle. Type is nil when the toggle
// removed it.
type State struct {
	Type *string `json:"type"`
}

type target struct {
	table  string
	column string
}

var (
	videoTarget   = target{table: "video_reactions", column: "video_id"}
	commentTarget = target{table: "comment_reactions", column: "comment_id"}
)

func toggle(ctx context.Context, tx *sql.Tx, t target, userID, targetID int, typ string, now time.Time) (*State, error) {
	res, err := tx.ExecContext(ctx, "delete from "+t.table+" where user_id = ? and "+t.column+" = ? and type = ?", userID, targetID, typ)
	if err != nil {
		return nil, fmt.Errorf("could not remove reaction: %w", err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("could not count removed reactions: %w", err)
	} else if n > 0 {
		return &State{}, nil
	}

	if _, err := tx.ExecContext(
		ctx,
		"insert into "+t.table+" (user_id, "+t.column+", type, created_at, updated_at) values (?, ?, ?, ?, ?) "+
			"on conflict (user_id, "+t.column+") do update set type = excluded.type, updated_at = excluded.updated_at",
		userID, targetID, typ, now, now,
	); err != nil {
		return nil, fmt.Errorf("could not upsert reaction: %w", err)
	}

	return &State{Type: &typ}, nil
}

func validate(typ string) error {
	if !models.ValidReaction(typ) {
		return apierror.New(apierror.BadRequest, "reaction must be %q or %q", models.ReactionLike, models.ReactionDislike)
	}

	return nil
}

// ToggleVideo toggles the actor's reaction of type typ on a video they can
// see.
func ToggleVideo(ctx context.Context, videoID int, typ string) (*State, error) {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	if err := validate(typ); err != nil {
		return nil, err
	}

	var state *State
	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := videos.FindVisible(ctx, tx, videoID, actor.ID); err != nil {
			return err
		}

		s, err := toggle(ctx, tx, videoTarget, actor.ID, videoID, typ, ctxclock.NowOrReal(ctx))
		state = s
		return err
	}); err != nil {
		return nil, fmt.Errorf("reactions.ToggleVideo: %w", err)
	}

	ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{"video.id": videoID, "reaction.type": ptr.Deref(state.Type, "")}).Debug("toggled video reaction")

	return state, nil
}

// ToggleComment toggles the actor's reaction of type typ on a comment.
func ToggleComment(ctx context.Context, commentID int, typ string) (*State, error) {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	if err := validate(typ); err != nil {
		return nil, err
	}

	var state *State
	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		var c models.Comment
		if err := sorm.FindFirstWhere(ctx, tx, &c, "where id = ?", commentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apierror.New(apierror.NotFound, "comment %d not found", commentID)
			}
			return fmt.Errorf("could not find comment: %w", err)
		}

		s, err := toggle(ctx, tx, commentTarget, actor.ID, commentID, typ, ctxclock.NowOrReal(ctx))
		state = s
		return err
	}); err != nil {
		return nil, fmt.Errorf("reactions.ToggleComment: %w", err)
	}

	ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{"comment.id": commentID, "reaction.type": ptr.Deref(state.Type, "")}).Debug("toggled comment reaction")

	return state, nil
}

// Package comments holds comments on videos, with one level of replies.
package comments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

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

const MaxLength = 2000

func find(ctx context.Context, q sorm.Querier, id int) (*models.Comment, error) {
	var c models.Comment
	if err := sorm.FindFirstWhere(ctx, q, &c, "where id = ?", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.New(apierror.NotFound, "comment %d not found", id)
		}

		return nil, fmt.Errorf("could not find comment: %w", err)
	}

	return &c, nil
}

type CreateInput struct {
	VideoID  int    `json:"videoId"`
	ParentID *int   `json:"parentId"`
	Value    string `json:"value"`
}

func Create(ctx context.Context, in CreateInput) (*models.Comment, error) {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	value := strings.TrimSpace(in.Value)
	if value == "" {
		return nil, apierror.New(apierror.BadRequest, "comment must not be empty")
	}
	if utf8.RuneCountInString(value) > MaxLength {
		return nil, apierror.New(apierror.BadRequest, "comment must be at most %d characters", MaxLength)
	}

	var c models.Comment
	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := videos.FindVisible(ctx, tx, in.VideoID, actor.ID); err != nil {
			return err
		}

		if in.ParentID != nil {
			parent, err := find(ctx, tx, *in.ParentID)
			if err != nil {
				if apierror.CodeOf(err) == apierror.NotFound {
					return apierror.New(apierror.BadRequest, "parent comment %d does not exist", *in.ParentID)
				}
				return err
			}

			if parent.VideoID != in.VideoID {
				return apierror.New(apierror.BadRequest, "parent comment %d is on another video", parent.ID)
			}

			if parent.ParentID != nil {
				return apierror.New(apierror.BadRequest, "cannot reply to a reply")
			}
		}

		now := ctxclock.NowOrReal(ctx)

		c = models.Comment{
			CreatedAt: now,
			UpdatedAt: now,
			VideoID:   in.VideoID,
			UserID:    actor.ID,
			ParentID:  in.ParentID,
			Value:     value,
		}

		return sorm.CreateRecord(ctx, tx, &c)
	}); err != nil {
		return nil, fmt.Errorf("comments.Create: %w", err)
	}

	ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{"comment.id": c.ID, "video.id": c.VideoID}).Debug("created comment")

	return &c, nil
}

// Remove deletes one of the actor's comments and its replies.
func Remove(ctx context.Context, id int) (*models.Comment, error) {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	var c *models.Comment
	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		found, err := find(ctx, tx, id)
		if err != nil {
			return err
		}
		c = found

		if c.UserID != actor.ID {
			return apierror.New(apierror.Unauthorized, "comment %d belongs to another user", id)
		}

		if _, err := tx.ExecContext(ctx, "delete from comments where id = ?", id); err != nil {
			return fmt.Errorf("could not delete comment: %w", err)
		}

		return nil
	}); err != nil {
		return nil, fmt.Errorf("comments.Remove: %w", err)
	}

	return c, nil
}

type Item struct {
	models.CommentListing
	ViewerReaction *string `json:"viewerReaction"`
}

type Page struct {
	pagination.Page[Item, time.Time]
	TotalCount int `json:"totalCount"`
}

func createdAtKey(c models.CommentListing) pagination.Cursor[time.Time] {
	return pagination.IntCursor(c.ID, c.CreatedAt)
}

// List pages through a video's top-level comments, or the replies to
// parentID, newest first. TotalCount is the number of top-level comments on
// the video.
func List(ctx context.Context, videoID int, parentID *int, request pagination.Request[time.Time]) (*Page, error) {
	db := ctxdb.GetDB(ctx)
	viewerID := ctxauth.UserID(ctx)

	if _, err := videos.FindVisible(ctx, db, videoID, viewerID); err != nil {
		return nil, err
	}

	t := models.CommentListingTable

	parent := sb.BinaryOperator("is", t.C("ParentID"), sb.Literal("null"))
	if parentID != nil {
		parent = sb.BinaryOperator("=", t.C("ParentID"), sb.Bind(*parentID))
	}

	page, err := pagination.Fetch(ctx, db, pagination.Query[models.CommentListing, time.Time]{
		SortColumn: t.C("CreatedAt"),
		IDColumn:   t.C("ID"),
		Condition:  pagination.And(sb.BinaryOperator("=", t.C("VideoID"), sb.Bind(videoID)), parent),
		Key:        createdAtKey,
	}, request)
	if err != nil {
		return nil, fmt.Errorf("comments.List: %w", err)
	}

	reactions := map[int]string{}
	if viewerID != 0 && len(page.Items) > 0 {
		var rows []models.CommentReaction
		if err := sorm.FindWhere(ctx, db, &rows, "where user_id = ? and comment_id in (select id from comments where video_id = ?)", viewerID, videoID); err != nil {
			return nil, fmt.Errorf("comments.List: could not find viewer reactions: %w", err)
		}

		for _, r := range rows {
			reactions[r.CommentID] = r.Type
		}
	}

	out := Page{Page: pagination.Page[Item, time.Time]{Items: make([]Item, len(page.Items)), NextCursor: page.NextCursor}}
	for i, e := range page.Items {
		out.Items[i] = Item{CommentListing: e}
		if typ, ok := reactions[e.ID]; ok {
			out.Items[i].ViewerReaction = &typ
		}
	}

	if err := db.QueryRowContext(ctx, "select count(*) from comments where video_id = ? and parent_id is null", videoID).Scan(&out.TotalCount); err != nil {
		return nil, fmt.Errorf("comments.List: could not count comments: %w", err)
	}

	return &out, nil
}

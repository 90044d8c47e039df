// Package subscriptions lets users follow creators.
package subscriptions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
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
	"fknsrs.biz/p/vidshare/models"
)

func checkCreator(ctx context.Context, q sorm.Querier, actor *models.User, creatorID int) error {
	if creatorID == actor.ID {
		return apierror.New(apierror.BadRequest, "cannot subscribe to yourself")
	}

	var u models.User
	if err := sorm.FindFirstWhere(ctx, q, &u, "where id = ?", creatorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apierror.New(apierror.NotFound, "user %d not found", creatorID)
		}

		return fmt.Errorf("could not find creator: %w", err)
	}

	return nil
}

// Subscribe is idempotent: subscribing twice keeps one row.
func Subscribe(ctx context.Context, creatorID int) error {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return err
	}

	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		if err := checkCreator(ctx, tx, actor, creatorID); err != nil {
			return err
		}

		now := ctxclock.NowOrReal(ctx)

		if _, err := tx.ExecContext(
			ctx,
			"insert into subscriptions (viewer_id, creator_id, created_at, updated_at) values (?, ?, ?, ?) "+
				"on conflict (viewer_id, creator_id) do nothing",
			actor.ID, creatorID, now, now,
		); err != nil {
			return fmt.Errorf("could not insert subscription: %w", err)
		}

		return nil
	}); err != nil {
		return fmt.Errorf("subscriptions.Subscribe: %w", err)
	}

	ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{"subscription.creator_id": creatorID}).Debug("subscribed")

	return nil
}

func Unsubscribe(ctx context.Context, creatorID int) error {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return err
	}

	if creatorID == actor.ID {
		return apierror.New(apierror.BadRequest, "cannot unsubscribe from yourself")
	}

	res, err := ctxdb.GetDB(ctx).ExecContext(ctx, "delete from subscriptions where viewer_id = ? and creator_id = ?", actor.ID, creatorID)
	if err != nil {
		return fmt.Errorf("subscriptions.Unsubscribe: %w", err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("subscriptions.Unsubscribe: %w", err)
	} else if n == 0 {
		return apierror.New(apierror.NotFound, "not subscribed to user %d", creatorID)
	}

	return nil
}

func subscribedAtKey(c models.CreatorListing) pagination.Cursor[time.Time] {
	return pagination.IntCursor(c.ID, c.UpdatedAt)
}

// List is the creators the actor subscribes to, most recent first.
func List(ctx context.Context, request pagination.Request[time.Time]) (*pagination.Page[models.CreatorListing, time.Time], error) {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	t := models.CreatorListingTable

	page, err := pagination.Fetch(ctx, ctxdb.GetDB(ctx), pagination.Query[models.CreatorListing, time.Time]{
		SortColumn: t.C("UpdatedAt"),
		IDColumn:   t.C("ID"),
		Condition:  sb.BinaryOperator("=", t.C("ViewerID"), sb.Bind(actor.ID)),
		Key:        subscribedAtKey,
	}, request)
	if err != nil {
		return nil, fmt.Errorf("subscriptions.List: %w", err)
	}

	return page, nil
}

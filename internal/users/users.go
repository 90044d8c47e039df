// Package users serves creator profiles and keeps the users table in step
// with the identity provider.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fknsrs.biz/p/sorm"

	"fknsrs.biz/p/vidshare/internal/apierror"
	"fknsrs.biz/p/vidshare/internal/ctxauth"
	"fknsrs.biz/p/vidshare/internal/ctxdb"
	"fknsrs.biz/p/vidshare/models"
)

type Profile struct {
	models.User
	SubscriberCount  int  `json:"subscriberCount"`
	VideoCount       int  `json:"videoCount"`
	ViewerSubscribed bool `json:"viewerSubscribed"`
}

// GetOne returns a user's public profile. VideoCount counts public videos
// only, unless the viewer is the user.
func GetOne(ctx context.Context, id int) (*Profile, error) {
	db := ctxdb.GetDB(ctx)
	viewerID := ctxauth.UserID(ctx)

	var p Profile
	if err := sorm.FindFirstWhere(ctx, db, &p.User, "where id = ?", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.New(apierror.NotFound, "user %d not found", id)
		}

		return nil, fmt.Errorf("users.GetOne: %w", err)
	}

	if err := db.QueryRowContext(
		ctx,
		"select "+
			"(select count(*) from subscriptions where creator_id = ?), "+
			"(select count(*) from videos where user_id = ? and (visibility = 'public' or user_id = ?)), "+
			"(select count(*) from subscriptions where creator_id = ? and viewer_id = ?)",
		id, id, viewerID, id, viewerID,
	).Scan(&p.SubscriberCount, &p.VideoCount, &p.ViewerSubscribed); err != nil {
		return nil, fmt.Errorf("users.GetOne: could not count: %w", err)
	}

	return &p, nil
}

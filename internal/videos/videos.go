// Package videos owns the video lifecycle: direct upload sessions, owner
// edits and removal, resyncs from the transcoder, and every keyset-paginated
// video list.
package videos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"fknsrs.biz/p/sorm"

	"fknsrs.biz/p/vidshare/internal/apierror"
	"fknsrs.biz/p/vidshare/models"
)

// Visible reports whether viewerID (zero for anonymous) may see v.
func Visible(v *models.Video, viewerID int) bool {
	return v.Visibility == models.VisibilityPublic || (viewerID != 0 && v.UserID == viewerID)
}

// Find loads a video row, failing with NOT_FOUND if there is none.
func Find(ctx context.Context, q sorm.Querier, id int) (*models.Video, error) {
	var v models.Video
	if err := sorm.FindFirstWhere(ctx, q, &v, "where id = ?", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.New(apierror.NotFound, "video %d not found", id)
		}

		return nil, fmt.Errorf("videos.Find: %w", err)
	}

	return &v, nil
}

// FindVisible is Find for videos that viewerID is allowed to see. Private
// videos belonging to someone else are reported as missing.
func FindVisible(ctx context.Context, q sorm.Querier, id, viewerID int) (*models.Video, error) {
	v, err := Find(ctx, q, id)
	if err != nil {
		return nil, err
	}

	if !Visible(v, viewerID) {
		return nil, apierror.New(apierror.NotFound, "video %d not found", id)
	}

	return v, nil
}

// FindOwned is Find for videos that userID must own.
func FindOwned(ctx context.Context, q sorm.Querier, id, userID int) (*models.Video, error) {
	v, err := Find(ctx, q, id)
	if err != nil {
		return nil, err
	}

	if v.UserID != userID {
		return nil, apierror.New(apierror.Unauthorized, "video %d belongs to another user", id)
	}

	return v, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// ListingsByID loads video listings keyed by id. Missing ids are absent from
// the map.
func ListingsByID(ctx context.Context, q sorm.Querier, ids []int) (map[int]models.VideoListing, error) {
	m := make(map[int]models.VideoListing, len(ids))
	if len(ids) == 0 {
		return m, nil
	}

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	var rows []models.VideoListing
	if err := sorm.FindWhere(ctx, q, &rows, "where id in ("+placeholders(len(ids))+")", args...); err != nil {
		return nil, fmt.Errorf("videos.ListingsByID: %w", err)
	}

	for _, row := range rows {
		m[row.ID] = row
	}

	return m, nil
}

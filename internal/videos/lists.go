package videos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fknsrs.biz/p/sorm"
	sb "fknsrs.biz/p/sqlbuilder"

	"fknsrs.biz/p/vidshare/internal/apierror"
	"fknsrs.biz/p/vidshare/internal/ctxauth"
	"fknsrs.biz/p/vidshare/internal/ctxdb"
	"fknsrs.biz/p/vidshare/internal/pagination"
	"fknsrs.biz/p/vidshare/models"
)

type Page = pagination.Page[models.VideoListing, time.Time]

func eq(column sb.AsExpr, v interface{}) sb.AsExpr {
	return sb.BinaryOperator("=", column, sb.Bind(v))
}

func updatedAtKey(v models.VideoListing) pagination.Cursor[time.Time] {
	return pagination.IntCursor(v.ID, v.UpdatedAt)
}

func viewCountKey(v models.VideoListing) pagination.Cursor[int] {
	return pagination.IntCursor(v.ID, v.ViewCount)
}

// Filter narrows the public lists. Zero fields are ignored.
type Filter struct {
	CategoryID int
	UserID     int
}

func (f Filter) condition() sb.AsExpr {
	t := models.VideoListingTable

	var category, user sb.AsExpr
	if f.CategoryID != 0 {
		category = eq(t.C("CategoryID"), f.CategoryID)
	}
	if f.UserID != 0 {
		user = eq(t.C("UserID"), f.UserID)
	}

	return pagination.And(eq(t.C("Visibility"), models.VisibilityPublic), category, user)
}

func byUpdatedAt(condition sb.AsExpr) pagination.Query[models.VideoListing, time.Time] {
	return pagination.Query[models.VideoListing, time.Time]{
		SortColumn: models.VideoListingTable.C("UpdatedAt"),
		IDColumn:   models.VideoListingTable.C("ID"),
		Condition:  condition,
		Key:        updatedAtKey,
	}
}

// ListPublic is the home feed: public videos, most recently updated first.
func ListPublic(ctx context.Context, f Filter, request pagination.Request[time.Time]) (*Page, error) {
	page, err := pagination.Fetch(ctx, ctxdb.GetDB(ctx), byUpdatedAt(f.condition()), request)
	if err != nil {
		return nil, fmt.Errorf("videos.ListPublic: %w", err)
	}

	return page, nil
}

// ListTrending orders public videos by view count.
func ListTrending(ctx context.Context, f Filter, request pagination.Request[int]) (*pagination.Page[models.VideoListing, int], error) {
	page, err := pagination.Fetch(ctx, ctxdb.GetDB(ctx), pagination.Query[models.VideoListing, int]{
		SortColumn: models.VideoListingTable.C("ViewCount"),
		IDColumn:   models.VideoListingTable.C("ID"),
		Condition:  f.condition(),
		Key:        viewCountKey,
	}, request)
	if err != nil {
		return nil, fmt.Errorf("videos.ListTrending: %w", err)
	}

	return page, nil
}

// ListSubscribed is the public videos of creators the actor subscribes to.
func ListSubscribed(ctx context.Context, request pagination.Request[time.Time]) (*Page, error) {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	subscribed := sb.BinaryOperator(
		"in",
		models.VideoListingTable.C("UserID"),
		sb.Literal(fmt.Sprintf("(select creator_id from subscriptions where viewer_id = %d)", actor.ID)),
	)

	page, err := pagination.Fetch(ctx, ctxdb.GetDB(ctx), byUpdatedAt(pagination.And(Filter{}.condition(), subscribed)), request)
	if err != nil {
		return nil, fmt.Errorf("videos.ListSubscribed: %w", err)
	}

	return page, nil
}

// Search matches public video titles containing query, ignoring case.
func Search(ctx context.Context, query string, categoryID int, request pagination.Request[time.Time]) (*Page, error) {
	query = strings.TrimSpace(query)

	var match sb.AsExpr
	if query != "" {
		match = sb.Ne(
			sb.Func(
				"instr",
				sb.Func("lower", models.VideoListingTable.C("Title")),
				sb.Bind(strings.ToLower(query)),
			),
			sb.Literal("0"),
		)
	}

	page, err := pagination.Fetch(ctx, ctxdb.GetDB(ctx), byUpdatedAt(pagination.And(Filter{CategoryID: categoryID}.condition(), match)), request)
	if err != nil {
		return nil, fmt.Errorf("videos.Search: %w", err)
	}

	return page, nil
}

// Suggestions lists other public videos, from the same category when the
// video has one.
func Suggestions(ctx context.Context, videoID int, request pagination.Request[time.Time]) (*Page, error) {
	db := ctxdb.GetDB(ctx)

	v, err := FindVisible(ctx, db, videoID, ctxauth.UserID(ctx))
	if err != nil {
		return nil, err
	}

	var f Filter
	if v.CategoryID != nil {
		f.CategoryID = *v.CategoryID
	}

	condition := pagination.And(
		f.condition(),
		sb.Ne(models.VideoListingTable.C("ID"), sb.Bind(v.ID)),
	)

	page, err := pagination.Fetch(ctx, db, byUpdatedAt(condition), request)
	if err != nil {
		return nil, fmt.Errorf("videos.Suggestions: %w", err)
	}

	return page, nil
}

// ListStudio is every video the actor owns, whatever its visibility or
// status.
func ListStudio(ctx context.Context, request pagination.Request[time.Time]) (*Page, error) {
	actor, err := ctxauth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	page, err := pagination.Fetch(ctx, ctxdb.GetDB(ctx), byUpdatedAt(eq(models.VideoListingTable.C("UserID"), actor.ID)), request)
	if err != nil {
		return nil, fmt.Errorf("videos.ListStudio: %w", err)
	}

	return page, nil
}

// CollectedVideo is a video in a history, liked or playlist collection.
type CollectedVideo struct {
	models.VideoListing
	CollectedAt time.Time `json:"collectedAt"`
}

func collectedAtKey(v models.VideoCollection) pagination.Cursor[time.Time] {
	return pagination.IntCursor(v.ID, v.CollectedAt)
}

// Collected pages through one of collectorID's collections, most recently
// added first. playlistID is only used for playlist collections. Private
// videos are only included for their owner.
func Collected(ctx context.Context, collection string, collectorID, playlistID int, request pagination.Request[time.Time]) (*pagination.Page[CollectedVideo, time.Time], error) {
	t := models.VideoCollectionTable
	db := ctxdb.GetDB(ctx)

	condition := pagination.And(
		eq(t.C("Collection"), collection),
		eq(t.C("CollectorID"), collectorID),
		eq(t.C("PlaylistID"), playlistID),
		sb.BooleanOperator(
			"or",
			eq(t.C("Visibility"), models.VisibilityPublic),
			eq(t.C("OwnerID"), collectorID),
		),
	)

	page, err := pagination.Fetch(ctx, db, pagination.Query[models.VideoCollection, time.Time]{
		SortColumn: t.C("CollectedAt"),
		IDColumn:   t.C("ID"),
		Condition:  condition,
		Key:        collectedAtKey,
	}, request)
	if err != nil {
		return nil, fmt.Errorf("videos.Collected: %w", err)
	}

	ids := make([]int, len(page.Items))
	for i, e := range page.Items {
		ids[i] = e.ID
	}

	listings, err := ListingsByID(ctx, db, ids)
	if err != nil {
		return nil, fmt.Errorf("videos.Collected: %w", err)
	}

	items := make([]CollectedVideo, 0, len(page.Items))
	for _, e := range page.Items {
		if l, ok := listings[e.ID]; ok {
			items = append(items, CollectedVideo{VideoListing: l, CollectedAt: e.CollectedAt})
		}
	}

	return &pagination.Page[CollectedVideo, time.Time]{Items: items, NextCursor: page.NextCursor}, nil
}

// Detail is a single video as shown on its watch page.
type Detail struct {
	models.VideoListing
	ViewerReaction      *string `json:"viewerReaction"`
	ViewerSubscribed    bool    `json:"viewerSubscribed"`
	UserSubscriberCount int     `json:"userSubscriberCount"`
}

func GetOne(ctx context.Context, id int) (*Detail, error) {
	db := ctxdb.GetDB(ctx)
	viewerID := ctxauth.UserID(ctx)

	var d Detail
	if err := sorm.FindFirstWhere(ctx, db, &d.VideoListing, "where id = ?", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.New(apierror.NotFound, "video %d not found", id)
		}

		return nil, fmt.Errorf("videos.GetOne: %w", err)
	}

	if d.Visibility != models.VisibilityPublic && d.UserID != viewerID {
		return nil, apierror.New(apierror.NotFound, "video %d not found", id)
	}

	if err := db.QueryRowContext(ctx, "select count(*) from subscriptions where creator_id = ?", d.UserID).Scan(&d.UserSubscriberCount); err != nil {
		return nil, fmt.Errorf("videos.GetOne: could not count subscribers: %w", err)
	}

	if viewerID == 0 {
		return &d, nil
	}

	var reaction models.VideoReaction
	switch err := sorm.FindFirstWhere(ctx, db, &reaction, "where user_id = ? and video_id = ?", viewerID, id); {
	case err == nil:
		d.ViewerReaction = &reaction.Type
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, fmt.Errorf("videos.GetOne: could not find viewer reaction: %w", err)
	}

	var n int
	if err := db.QueryRowContext(ctx, "select count(*) from subscriptions where viewer_id = ? and creator_id = ?", viewerID, d.UserID).Scan(&n); err != nil {
		return nil, fmt.Errorf("videos.GetOne: could not check subscription: %w", err)
	}
	d.ViewerSubscribed = n > 0

	return &d, nil
}

package dbtest

import (
	"context"
	"database/sql"
	"testing"

	"fknsrs.biz/p/sorm"

	"fknsrs.biz/p/vidshare/internal/ctxclock"
	"fknsrs.biz/p/vidshare/internal/ctxdb"
	"fknsrs.biz/p/vidshare/models"
)

// CreateUser inserts a user whose external id is "ext_" + name.
func CreateUser(t testing.TB, ctx context.Context, name string) *models.User {
	t.Helper()

	now := ctxclock.NowOrReal(ctx)

	user := models.User{
		CreatedAt:  now,
		UpdatedAt:  now,
		ExternalID: "ext_" + name,
		Name:       name,
		ImageURL:   "https://images.example.com/" + name + ".png",
	}

	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		return sorm.CreateRecord(ctx, tx, &user)
	}); err != nil {
		t.Fatalf("dbtest.CreateUser: %v", err)
	}

	return &user
}

// CreateVideo inserts a video owned by owner. mutate can adjust fields before
// the row is written.
func CreateVideo(t testing.TB, ctx context.Context, owner *models.User, title string, mutate func(v *models.Video)) *models.Video {
	t.Helper()

	now := ctxclock.NowOrReal(ctx)

	video := models.Video{
		CreatedAt:       now,
		UpdatedAt:       now,
		UserID:          owner.ID,
		Title:           title,
		Visibility:      models.VisibilityPublic,
		TranscodeStatus: models.TranscodeStatusReady,
	}

	if mutate != nil {
		mutate(&video)
	}

	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		return sorm.CreateRecord(ctx, tx, &video)
	}); err != nil {
		t.Fatalf("dbtest.CreateVideo: %v", err)
	}

	return &video
}

// Count runs a "select count(*)" style query.
func Count(t testing.TB, ctx context.Context, query string, args ...interface{}) int {
	t.Helper()

	var n int
	if err := ctxdb.GetDB(ctx).QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		t.Fatalf("dbtest.Count: %v", err)
	}

	return n
}

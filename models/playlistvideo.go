package models

import (
	"time"

	"fknsrs.biz/p/vidshare/internal/sqlbuilderutil"
)

var (
	PlaylistVideoTable *sqlbuilderutil.Table
)

func init() {
	PlaylistVideoTable = sqlbuilderutil.MustMakeTable(PlaylistVideo{})
}

type PlaylistVideo struct {
	ID         int `sql:",table:playlist_videos"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	PlaylistID int
	VideoID    int
}

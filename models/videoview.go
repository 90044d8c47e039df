package models

import (
	"time"

	"fknsrs.biz/p/vidshare/internal/sqlbuilderutil"
)

var (
	VideoViewTable *sqlbuilderutil.Table
)

func init() {
	VideoViewTable = sqlbuilderutil.MustMakeTable(VideoView{})
}

type VideoView struct {
	ID        int `sql:",table:video_views"`
	CreatedAt time.Time
	UpdatedAt time.Time
	UserID    int
	VideoID   int
}

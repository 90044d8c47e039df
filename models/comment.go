package models

import (
	"time"

	"fknsrs.biz/p/vidshare/internal/sqlbuilderutil"
)

var (
	CommentTable *sqlbuilderutil.Table
)

func init() {
	CommentTable = sqlbuilderutil.MustMakeTable(Comment{})
}

type Comment struct {
	ID        int       `sql:",table:comments" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	VideoID   int       `json:"videoId"`
	UserID    int       `json:"userId"`
	ParentID  *int      `json:"parentId"`
	Value     string    `json:"value"`
}

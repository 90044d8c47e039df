package models

import (
	"database/sql"
	"time"

	"fknsrs.biz/p/vidshare/internal/sqlbuilderutil"
	"fknsrs.biz/p/vidshare/internal/sqltypes"
)

var (
	CommentListingTable *sqlbuilderutil.Table
)

func init() {
	CommentListingTable = sqlbuilderutil.MustMakeTable(CommentListing{})
}

type CommentListing struct {
	ID           int       `sql:",table:comment_listings" json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	VideoID      int       `json:"videoId"`
	UserID       int       `json:"userId"`
	ParentID     *int      `json:"parentId"`
	Value        string    `json:"value"`
	UserName     string    `json:"userName"`
	UserImageURL string    `json:"userImageUrl"`
	LikeCount    int       `json:"likeCount"`
	DislikeCount int       `json:"dislikeCount"`
	ReplyCount   int       `json:"replyCount"`
}

func (s *CommentListing) OverrideScan(names []string, scanners []sql.Scanner) error {
	for i, name := range names {
		switch name {
		case "CreatedAt":
			scanners[i] = &sqltypes.TimeScanner{Value: &s.CreatedAt}
		case "UpdatedAt":
			scanners[i] = &sqltypes.TimeScanner{Value: &s.UpdatedAt}
		}
	}

	return nil
}

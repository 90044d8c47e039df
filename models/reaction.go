package models

import (
	"time"

	"fknsrs.biz/p/vidshare/internal/sqlbuilderutil"
)

var (
	VideoReactionTable   *sqlbuilderutil.Table
	CommentReactionTable *sqlbuilderutil.Table
)

func init() {
	VideoReactionTable = sqlbuilderutil.MustMakeTable(VideoReaction{})
	CommentReactionTable = sqlbuilderutil.MustMakeTable(CommentReaction{})
}

const (
	ReactionLike    = "like"
	ReactionDislike = "dislike"
)

func ValidReaction(s string) bool {
	return s == ReactionLike || s == ReactionDislike
}

type VideoReaction struct {
	ID        int `sql:",table:video_reactions"`
	CreatedAt time.Time
	UpdatedAt time.Time
	UserID    int
	VideoID   int
	Type      string
}

type CommentReaction struct {
	ID        int `sql:",table:comment_reactions"`
	CreatedAt time.Time
	UpdatedAt time.Time
	UserID    int
	CommentID int
	Type      string
}

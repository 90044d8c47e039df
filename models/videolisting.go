package models

import (
	"database/sql"
	"time"

	"fknsrs.biz/p/vidshare/internal/sqlbuilderutil"
	"fknsrs.biz/p/vidshare/internal/sqltypes"
)

var (
	VideoListingTable *sqlbuilderutil.Table
)

func init() {
	VideoListingTable = sqlbuilderutil.MustMakeTable(VideoListing{})
}

// VideoListing is a video with its owner and aggregate counts, computed at
// query time by the video_listings view.
type VideoListing struct {
	ID              int       `sql:",table:video_listings" json:"id"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	UserID          int       `json:"userId"`
	CategoryID      *int      `json:"categoryId"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Visibility      string    `json:"visibility"`
	ThumbnailURL    *string   `json:"thumbnailUrl"`
	PreviewURL      *string   `json:"previewUrl"`
	TranscodeStatus string    `json:"transcodeStatus"`
	PlaybackID      *string   `json:"playbackId"`
	DurationMS      *int      `sql:"duration_ms" json:"durationMs"`
	UserName        string    `json:"userName"`
	UserImageURL    string    `json:"userImageUrl"`
	ViewCount       int       `json:"viewCount"`
	LikeCount       int       `json:"likeCount"`
	DislikeCount    int       `json:"dislikeCount"`
}

func (s *VideoListing) OverrideScan(names []string, scanners []sql.Scanner) error {
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

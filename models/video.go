package models

import (
	"time"

	"fknsrs.biz/p/vidshare/internal/sqlbuilderutil"
)

var (
	VideoTable *sqlbuilderutil.Table
)

func init() {
	VideoTable = sqlbuilderutil.MustMakeTable(Video{})
}

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

const (
	TranscodeStatusWaiting    = "waiting"
	TranscodeStatusProcessing = "processing"
	TranscodeStatusReady      = "ready"
	TranscodeStatusErrored    = "errored"
)

// TranscodeStatusRank orders statuses along the only allowed direction of
// travel. ready and errored are both terminal.
func TranscodeStatusRank(status string) int {
	switch status {
	case TranscodeStatusWaiting:
		return 0
	case TranscodeStatusProcessing:
		return 1
	case TranscodeStatusReady, TranscodeStatusErrored:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether a video in status from may move to status to.
// Staying in the same status is allowed so that replayed events are harmless.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}

	return TranscodeStatusRank(to) > TranscodeStatusRank(from) && TranscodeStatusRank(from) < 2
}

type Video struct {
	ID              int       `sql:",table:videos" json:"id"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	UserID          int       `json:"userId"`
	CategoryID      *int      `json:"categoryId"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Visibility      string    `json:"visibility"`
	ThumbnailURL    *string   `json:"thumbnailUrl"`
	ThumbnailKey    *string   `json:"-"`
	PreviewURL      *string   `json:"previewUrl"`
	TranscodeStatus string    `json:"transcodeStatus"`
	UploadID        *string   `json:"uploadId"`
	AssetID         *string   `json:"assetId"`
	PlaybackID      *string   `json:"playbackId"`
	TrackID         *string   `json:"trackId"`
	TrackStatus     *string   `json:"trackStatus"`
	DurationMS      *int      `sql:"duration_ms" json:"durationMs"`
}

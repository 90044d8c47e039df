package models

import (
	"database/sql"
	"time"

	"fknsrs.biz/p/vidshare/internal/sqlbuilderutil"
	"fknsrs.biz/p/vidshare/internal/sqltypes"
)

var (
	VideoCollectionTable *sqlbuilderutil.Table
)

func init() {
	VideoCollectionTable = sqlbuilderutil.MustMakeTable(VideoCollection{})
}

const (
	CollectionHistory  = "history"
	CollectionLiked    = "liked"
	CollectionPlaylist = "playlist"
)

// VideoCollection is one video in a user's watch history, liked videos or a
// playlist, with the time it was added.
type VideoCollection struct {
	ID          int `sql:",table:video_collections"`
	Collection  string
	CollectorID int
	PlaylistID  int
	CollectedAt time.Time
	OwnerID     int
	Visibility  string
}

func (s *VideoCollection) OverrideScan(names []string, scanners []sql.Scanner) error {
	for i, name := range names {
		switch name {
		case "CollectedAt":
			scanners[i] = &sqltypes.TimeScanner{Value: &s.CollectedAt}
		}
	}

	return nil
}

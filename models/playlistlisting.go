package models

import (
	"database/sql"
	"time"

	"fknsrs.biz/p/vidshare/internal/sqlbuilderutil"
	"fknsrs.biz/p/vidshare/internal/sqltypes"
)

var (
	PlaylistListingTable *sqlbuilderutil.Table
)

func init() {
	PlaylistListingTable = sqlbuilderutil.MustMakeTable(PlaylistListing{})
}

type PlaylistListing struct {
	ID           int       `sql:",table:playlist_listings" json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	UserID       int       `json:"userId"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	VideoCount   int       `json:"videoCount"`
	ThumbnailURL *string   `json:"thumbnailUrl"`
}

func (s *PlaylistListing) OverrideScan(names []string, scanners []sql.Scanner) error {
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

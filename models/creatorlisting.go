package models

import (
	"database/sql"
	"time"

	"fknsrs.biz/p/vidshare/internal/sqlbuilderutil"
	"fknsrs.biz/p/vidshare/internal/sqltypes"
)

var (
	CreatorListingTable *sqlbuilderutil.Table
)

func init() {
	CreatorListingTable = sqlbuilderutil.MustMakeTable(CreatorListing{})
}

// CreatorListing is one of a viewer's subscriptions with the creator's
// public numbers.
type CreatorListing struct {
	ID              int       `sql:",table:creator_listings" json:"-"`
	UpdatedAt       time.Time `json:"subscribedAt"`
	ViewerID        int       `json:"-"`
	CreatorID       int       `json:"creatorId"`
	CreatorName     string    `json:"creatorName"`
	CreatorImageURL string    `json:"creatorImageUrl"`
	SubscriberCount int       `json:"subscriberCount"`
	VideoCount      int       `json:"videoCount"`
}

func (s *CreatorListing) OverrideScan(names []string, scanners []sql.Scanner) error {
	for i, name := range names {
		switch name {
		case "UpdatedAt":
			scanners[i] = &sqltypes.TimeScanner{Value: &s.UpdatedAt}
		}
	}

	return nil
}

package models

import (
	"time"

	"fknsrs.biz/p/vidshare/internal/sqlbuilderutil"
)

var (
	SubscriptionTable *sqlbuilderutil.Table
)

func init() {
	SubscriptionTable = sqlbuilderutil.MustMakeTable(Subscription{})
}

type Subscription struct {
	ID        int `sql:",table:subscriptions"`
	CreatedAt time.Time
	UpdatedAt time.Time
	ViewerID  int
	CreatorID int
}

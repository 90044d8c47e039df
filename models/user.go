package models

import (
	"time"

	"fknsrs.biz/p/vidshare/internal/sqlbuilderutil"
)

var (
	UserTable *sqlbuilderutil.Table
)

func init() {
	UserTable = sqlbuilderutil.MustMakeTable(User{})
}

type User struct {
	ID         int       `sql:",table:users" json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	ExternalID string    `json:"-"`
	Name       string    `json:"name"`
	ImageURL   string    `json:"imageUrl"`
	BannerURL  *string   `json:"bannerUrl"`
	BannerKey  *string   `json:"-"`
}

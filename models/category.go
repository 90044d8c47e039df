package models

import (
	"fknsrs.biz/p/vidshare/internal/sqlbuilderutil"
)

var (
	CategoryTable *sqlbuilderutil.Table
)

func init() {
	CategoryTable = sqlbuilderutil.MustMakeTable(Category{})
}

type Category struct {
	ID          int    `sql:",table:categories" json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

package categories

import (
	"context"
	"fmt"

	"fknsrs.biz/p/sorm"

	"fknsrs.biz/p/vidshare/internal/ctxdb"
	"fknsrs.biz/p/vidshare/models"
)

func List(ctx context.Context) ([]models.Category, error) {
	var a []models.Category
	if err := sorm.FindWhere(ctx, ctxdb.GetDB(ctx), &a, "order by name"); err != nil {
		return nil, fmt.Errorf("categories.List: %w", err)
	}

	if a == nil {
		a = []models.Category{}
	}

	return a, nil
}

package middlewares

import (
	"context"

	"bitbucket.org/mmdatafocus/exportflow_backend/models"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type itemReader struct {
	db *gorm.DB
}

func (r *itemReader) getItems(ctx context.Context, ids []int) []*dataloader.Result[*models.Item] {
	var results []models.Item
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error
	if err != nil {
		return handleError[*models.Item](len(ids), err)
	}

	resultMap := make(map[int]*models.Item)
	for i := range results {
		resultMap[results[i].ID] = &results[i]
	}

	loaderResults := make([]*dataloader.Result[*models.Item], 0, len(ids))
	for _, id := range ids {
		loaderResults = append(loaderResults, &dataloader.Result[*models.Item]{Data: resultMap[id]})
	}
	return loaderResults
}

func GetItem(ctx context.Context, id int) (*models.Item, error) {
	loaders := For(ctx)
	return loaders.ItemLoader.Load(ctx, id)()
}

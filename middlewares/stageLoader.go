package middlewares

import (
	"context"

	"bitbucket.org/mmdatafocus/exportflow_backend/models"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type stageReader struct {
	db *gorm.DB
}

func (r *stageReader) getStages(ctx context.Context, ids []int) []*dataloader.Result[*models.WorkflowStage] {
	var results []models.WorkflowStage
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error
	if err != nil {
		return handleError[*models.WorkflowStage](len(ids), err)
	}

	resultMap := make(map[int]*models.WorkflowStage)
	for i := range results {
		resultMap[results[i].ID] = &results[i]
	}

	loaderResults := make([]*dataloader.Result[*models.WorkflowStage], 0, len(ids))
	for _, id := range ids {
		loaderResults = append(loaderResults, &dataloader.Result[*models.WorkflowStage]{Data: resultMap[id]})
	}
	return loaderResults
}

func GetStage(ctx context.Context, id int) (*models.WorkflowStage, error) {
	loaders := For(ctx)
	return loaders.StageLoader.Load(ctx, id)()
}

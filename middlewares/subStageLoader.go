package middlewares

import (
	"context"

	"bitbucket.org/mmdatafocus/exportflow_backend/models"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type subStageReader struct {
	db *gorm.DB
}

func (r *subStageReader) getSubStages(ctx context.Context, ids []int) []*dataloader.Result[*models.WorkflowSubStage] {
	var results []models.WorkflowSubStage
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error
	if err != nil {
		return handleError[*models.WorkflowSubStage](len(ids), err)
	}

	resultMap := make(map[int]*models.WorkflowSubStage)
	for i := range results {
		resultMap[results[i].ID] = &results[i]
	}

	loaderResults := make([]*dataloader.Result[*models.WorkflowSubStage], 0, len(ids))
	for _, id := range ids {
		loaderResults = append(loaderResults, &dataloader.Result[*models.WorkflowSubStage]{Data: resultMap[id]})
	}
	return loaderResults
}

func GetSubStage(ctx context.Context, id int) (*models.WorkflowSubStage, error) {
	loaders := For(ctx)
	return loaders.SubStageLoader.Load(ctx, id)()
}

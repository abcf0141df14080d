package middlewares

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/exportflow_backend/config"
	"bitbucket.org/mmdatafocus/exportflow_backend/models"
	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders batch per-request lookups so history and list endpoints resolve
// stage/sub-stage/item/user names without N+1 queries.
type Loaders struct {
	StageLoader    *dataloader.Loader[int, *models.WorkflowStage]
	SubStageLoader *dataloader.Loader[int, *models.WorkflowSubStage]
	ItemLoader     *dataloader.Loader[int, *models.Item]
	UserLoader     *dataloader.Loader[int, *models.User]
}

func NewLoaders(conn *gorm.DB) *Loaders {
	stageReader := &stageReader{db: conn}
	subStageReader := &subStageReader{db: conn}
	itemReader := &itemReader{db: conn}
	userReader := &userReader{db: conn}

	return &Loaders{
		StageLoader:    dataloader.NewBatchedLoader(stageReader.getStages, dataloader.WithWait[int, *models.WorkflowStage](time.Millisecond)),
		SubStageLoader: dataloader.NewBatchedLoader(subStageReader.getSubStages, dataloader.WithWait[int, *models.WorkflowSubStage](time.Millisecond)),
		ItemLoader:     dataloader.NewBatchedLoader(itemReader.getItems, dataloader.WithWait[int, *models.Item](time.Millisecond)),
		UserLoader:     dataloader.NewBatchedLoader(userReader.getUsers, dataloader.WithWait[int, *models.User](time.Millisecond)),
	}
}

func LoaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		loader := NewLoaders(config.GetDB())
		ctx := context.WithValue(c.Request.Context(), loadersKey, loader)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func For(ctx context.Context) *Loaders {
	return ctx.Value(loadersKey).(*Loaders)
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}

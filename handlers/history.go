package handlers

import (
	"context"
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/exportflow_backend/middlewares"
	"bitbucket.org/mmdatafocus/exportflow_backend/models"
	"github.com/gin-gonic/gin"
)

// movementHistoryView is a history entry with stage/sub-stage/user names
// resolved for display. Resolution goes through the request's dataloaders so
// a page of entries costs a handful of batched queries.
type movementHistoryView struct {
	*models.ItemMovementHistory
	ItemSku          string  `json:"item_sku,omitempty"`
	FromStageName    *string `json:"from_stage_name,omitempty"`
	FromSubStageName *string `json:"from_sub_stage_name,omitempty"`
	ToStageName      string  `json:"to_stage_name"`
	ToSubStageName   *string `json:"to_sub_stage_name,omitempty"`
	MovedByName      string  `json:"moved_by_name"`
}

func ListItemMovements(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	entries, err := models.ListItemMovements(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, resolveMovementViews(c.Request.Context(), entries, false))
}

// ListReworkMovements lists recent rework hops across the organization for
// bottleneck reporting.
func ListReworkMovements(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	entries, err := models.ListReworkMovements(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, resolveMovementViews(c.Request.Context(), entries, true))
}

func resolveMovementViews(ctx context.Context, entries []*models.ItemMovementHistory, withSku bool) []*movementHistoryView {
	views := make([]*movementHistoryView, 0, len(entries))
	for _, entry := range entries {
		view := &movementHistoryView{ItemMovementHistory: entry}

		if entry.FromStageId != nil {
			if stage, err := middlewares.GetStage(ctx, *entry.FromStageId); err == nil && stage != nil {
				view.FromStageName = &stage.Name
			}
		}
		if entry.FromSubStageId != nil {
			if subStage, err := middlewares.GetSubStage(ctx, *entry.FromSubStageId); err == nil && subStage != nil {
				view.FromSubStageName = &subStage.Name
			}
		}
		if stage, err := middlewares.GetStage(ctx, entry.ToStageId); err == nil && stage != nil {
			view.ToStageName = stage.Name
		}
		if entry.ToSubStageId != nil {
			if subStage, err := middlewares.GetSubStage(ctx, *entry.ToSubStageId); err == nil && subStage != nil {
				view.ToSubStageName = &subStage.Name
			}
		}
		if user, err := middlewares.GetUser(ctx, entry.MovedBy); err == nil && user != nil {
			view.MovedByName = user.Name
		}
		if withSku {
			if item, err := middlewares.GetItem(ctx, entry.ItemId); err == nil && item != nil {
				view.ItemSku = item.Sku
			}
		}
		views = append(views, view)
	}
	return views
}

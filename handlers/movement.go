package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/exportflow_backend/workflow"
	"github.com/gin-gonic/gin"
)

type forwardMovementInput struct {
	Items  []workflow.MovementRequest `json:"items" binding:"required,min=1,dive"`
	Target *workflow.Position         `json:"target"`
}

type reworkMovementInput struct {
	Items            []workflow.MovementRequest `json:"items" binding:"required,min=1,dive"`
	TargetStageId    int                        `json:"target_stage_id" binding:"required"`
	TargetSubStageId *int                       `json:"target_sub_stage_id"`
	Reason           string                     `json:"reason" binding:"required"`
}

// MoveForward advances quantity for a batch of items. 200 when every item
// succeeded, 207 on partial success, 422 when all failed.
func MoveForward(c *gin.Context) {
	var input forwardMovementInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	result, err := workflow.MoveForward(c.Request.Context(), input.Items, input.Target)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(movementStatus(result), result)
}

func MoveToRework(c *gin.Context) {
	var input reworkMovementInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	result, err := workflow.MoveToRework(c.Request.Context(), input.Items, input.TargetStageId, input.TargetSubStageId, input.Reason)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(movementStatus(result), result)
}

func movementStatus(result *workflow.MovementResult) int {
	switch {
	case len(result.Failed) == 0:
		return http.StatusOK
	case len(result.Succeeded) == 0:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusMultiStatus
	}
}

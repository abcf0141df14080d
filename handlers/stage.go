package handlers

import (
	"errors"
	"net/http"

	"bitbucket.org/mmdatafocus/exportflow_backend/models"
	"bitbucket.org/mmdatafocus/exportflow_backend/utils"
	"bitbucket.org/mmdatafocus/exportflow_backend/workflow"
	"github.com/gin-gonic/gin"
)

func ListWorkflowStages(c *gin.Context) {
	stages, err := models.ListWorkflowStages(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, stages)
}

func GetWorkflowStage(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	stage, err := models.GetWorkflowStage(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusNotFound, err)
		return
	}
	c.JSON(http.StatusOK, stage)
}

// ListSubsequentStages returns the stages strictly after the given one, in
// workflow order: the candidate targets for a forward movement out of it.
func ListSubsequentStages(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	stages, err := models.ListWorkflowStages(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	subsequent, err := workflow.SubsequentStages(stages, id)
	if err != nil {
		respondError(c, http.StatusNotFound, err)
		return
	}
	c.JSON(http.StatusOK, subsequent)
}

func CreateWorkflowStage(c *gin.Context) {
	if !requireManager(c) {
		return
	}
	var input models.NewWorkflowStage
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	stage, err := models.CreateWorkflowStage(c.Request.Context(), &input)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusCreated, stage)
}

func UpdateWorkflowStage(c *gin.Context) {
	if !requireManager(c) {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.NewWorkflowStage
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	stage, err := models.UpdateWorkflowStage(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusOK, stage)
}

func DeleteWorkflowStage(c *gin.Context) {
	if !requireManager(c) {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	stage, err := models.DeleteWorkflowStage(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusOK, stage)
}

type moveStageInput struct {
	Direction string `json:"direction" binding:"required,oneof=up down"`
}

func MoveWorkflowStage(c *gin.Context) {
	if !requireManager(c) {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input moveStageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	stage, err := models.MoveWorkflowStage(c.Request.Context(), id, input.Direction)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusOK, stage)
}

func CreateWorkflowSubStage(c *gin.Context) {
	if !requireManager(c) {
		return
	}
	stageId, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.NewWorkflowSubStage
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	subStage, err := models.CreateWorkflowSubStage(c.Request.Context(), stageId, &input)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusCreated, subStage)
}

func UpdateWorkflowSubStage(c *gin.Context) {
	if !requireManager(c) {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.NewWorkflowSubStage
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	subStage, err := models.UpdateWorkflowSubStage(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusOK, subStage)
}

func DeleteWorkflowSubStage(c *gin.Context) {
	if !requireManager(c) {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	subStage, err := models.DeleteWorkflowSubStage(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusOK, subStage)
}

func MoveWorkflowSubStage(c *gin.Context) {
	if !requireManager(c) {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input moveStageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	subStage, err := models.MoveWorkflowSubStage(c.Request.Context(), id, input.Direction)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusOK, subStage)
}

// requireManager rejects workflow-settings mutations from Member profiles.
func requireManager(c *gin.Context) bool {
	role, ok := utils.GetProfileRoleFromContext(c.Request.Context())
	if !ok || !models.ProfileRole(role).CanManage() {
		respondError(c, http.StatusForbidden, errors.New("owner or admin role is required"))
		return false
	}
	return true
}

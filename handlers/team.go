package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/exportflow_backend/models"
	"github.com/gin-gonic/gin"
)

func ListTeam(c *gin.Context) {
	team, err := models.ListTeam(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, team)
}

func AddTeamMember(c *gin.Context) {
	var input models.NewTeamMember
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	profile, err := models.AddTeamMember(c.Request.Context(), &input)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusCreated, profile)
}

type updateRoleInput struct {
	Role models.ProfileRole `json:"role" binding:"required"`
}

func UpdateProfileRole(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input updateRoleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	profile, err := models.UpdateProfileRole(c.Request.Context(), id, input.Role)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

type toggleActiveInput struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

func ToggleActiveProfile(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input toggleActiveInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	profile, err := models.ToggleActiveProfile(c.Request.Context(), id, *input.IsActive)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

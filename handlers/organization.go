package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/exportflow_backend/models"
	"github.com/gin-gonic/gin"
)

func CreateOrganization(c *gin.Context) {
	var input models.NewOrganization
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	organization, err := models.CreateOrganization(c.Request.Context(), &input)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusCreated, organization)
}

func GetOrganization(c *gin.Context) {
	organization, err := models.GetOrganization(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusNotFound, err)
		return
	}
	c.JSON(http.StatusOK, organization)
}

func UpdateOrganization(c *gin.Context) {
	var input models.NewOrganization
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	organization, err := models.UpdateOrganization(c.Request.Context(), &input)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusOK, organization)
}

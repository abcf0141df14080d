package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/exportflow_backend/models"
	"github.com/gin-gonic/gin"
)

func ListPackagingReminders(c *gin.Context) {
	var status *models.ReminderStatus
	if v := c.Query("status"); v != "" {
		s := models.ReminderStatus(v)
		status = &s
	}

	reminders, err := models.ListPackagingReminders(c.Request.Context(), status)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, reminders)
}

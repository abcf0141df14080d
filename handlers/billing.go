package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/exportflow_backend/models"
	"github.com/gin-gonic/gin"
)

func GetSubscription(c *gin.Context) {
	subscription, err := models.GetSubscription(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusNotFound, err)
		return
	}
	c.JSON(http.StatusOK, subscription)
}

type changePlanInput struct {
	Plan models.SubscriptionPlan `json:"plan" binding:"required"`
}

func ChangeSubscriptionPlan(c *gin.Context) {
	var input changePlanInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	subscription, err := models.ChangeSubscriptionPlan(c.Request.Context(), input.Plan)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusOK, subscription)
}

func CancelSubscription(c *gin.Context) {
	subscription, err := models.CancelSubscription(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusOK, subscription)
}

func ListBillingInvoices(c *gin.Context) {
	invoices, err := models.ListBillingInvoices(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, invoices)
}

func MarkInvoicePaid(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	invoice, err := models.MarkInvoicePaid(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

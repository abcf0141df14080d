package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/exportflow_backend/models"
	"bitbucket.org/mmdatafocus/exportflow_backend/utils"
	"github.com/gin-gonic/gin"
)

func ListExportOrders(c *gin.Context) {
	var status *models.OrderStatus
	if v := utils.NilIfEmpty(c.Query("status")); v != nil {
		s := models.OrderStatus(*v)
		status = &s
	}
	buyerName := utils.NilIfEmpty(c.Query("buyer_name"))

	orders, err := models.ListExportOrders(c.Request.Context(), status, buyerName)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func GetExportOrder(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	order, err := models.GetExportOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusNotFound, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func CreateExportOrder(c *gin.Context) {
	var input models.NewExportOrder
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := models.CreateExportOrder(c.Request.Context(), &input)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func UpdateExportOrder(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.NewExportOrder
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := models.UpdateExportOrder(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type orderStatusInput struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

func UpdateExportOrderStatus(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input orderStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := models.UpdateExportOrderStatus(c.Request.Context(), id, input.Status)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func DeleteExportOrder(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	order, err := models.DeleteExportOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

package handlers

import (
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/exportflow_backend/models"
	"github.com/gin-gonic/gin"
)

func ListItems(c *gin.Context) {
	var orderId *int
	if v := c.Query("order_id"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "order_id must be an integer"})
			return
		}
		orderId = &parsed
	}
	var status *models.ItemStatus
	if v := c.Query("status"); v != "" {
		s := models.ItemStatus(v)
		status = &s
	}

	items, err := models.ListItems(c.Request.Context(), orderId, status)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func GetItem(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	item, err := models.GetItem(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusNotFound, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func CreateItem(c *gin.Context) {
	var input models.NewItem
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	item, err := models.CreateItem(c.Request.Context(), &input)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func UpdateItem(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.UpdateItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	item, err := models.UpdateItem(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func DeleteItem(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	item, err := models.DeleteItem(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// ListItemAllocations returns where an item's quantity currently sits.
func ListItemAllocations(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	allocations, err := models.ListItemAllocations(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, allocations)
}

func ListStageAllocations(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	allocations, err := models.ListStageAllocations(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, allocations)
}

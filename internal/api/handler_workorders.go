package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"device-maintenance-backend/internal/model"
)

// GetWorkOrders returns work orders, optionally filtered by ?status=.
func (h *Handler) GetWorkOrders(c *gin.Context) {
	q := h.store.DB().Preload("ServiceRequest").Preload("ServiceRequest.Device")
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var workOrders []model.WorkOrder
	if err := q.Order("created_at DESC").Limit(200).Find(&workOrders).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve work orders"})
		return
	}
	c.JSON(http.StatusOK, workOrders)
}

type updateWorkOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateWorkOrderStatus moves a work order to a new status through the
// propagation cascade, so the parent service request and its timestamps stay
// consistent with the change.
func (h *Handler) UpdateWorkOrderStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid work order ID"})
		return
	}

	var req updateWorkOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wo, err := h.propagator.Apply(c.Request.Context(), id, req.Status)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "work order not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, wo)
}

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"device-maintenance-backend/internal/model"
)

// deviceStatusResponse flattens a device with its current availability.
type deviceStatusResponse struct {
	model.Device
	IsAvailable    bool       `json:"isAvailable"`
	DownSince      *time.Time `json:"downSince,omitempty"`
	DowntimeReason string     `json:"downtimeReason,omitempty"`
}

// GetDevices returns every device with its availability derived from open
// downtime records.
func (h *Handler) GetDevices(c *gin.Context) {
	db := h.store.DB()

	var devices []model.Device
	if err := db.Preload("Department").Find(&devices).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve devices"})
		return
	}

	var open []model.DeviceDowntime
	if err := db.Where("end_time IS NULL").Find(&open).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve downtimes"})
		return
	}
	openByDevice := make(map[int64]model.DeviceDowntime, len(open))
	for _, dt := range open {
		openByDevice[dt.DeviceID] = dt
	}

	response := make([]deviceStatusResponse, 0, len(devices))
	for _, device := range devices {
		entry := deviceStatusResponse{Device: device, IsAvailable: true}
		if dt, ok := openByDevice[device.ID]; ok {
			entry.IsAvailable = false
			start := dt.StartTime
			entry.DownSince = &start
			entry.DowntimeReason = dt.Reason
		}
		response = append(response, entry)
	}
	c.JSON(http.StatusOK, response)
}

// GetDeviceDowntime returns the downtime history for one device, optionally
// bounded with ?from= (RFC3339).
func (h *Handler) GetDeviceDowntime(c *gin.Context) {
	deviceID, err := strconv.ParseInt(c.Param("device_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid device ID"})
		return
	}

	q := h.store.DB().Where("device_id = ?", deviceID)
	if fromParam := c.Query("from"); fromParam != "" {
		from, err := time.Parse(time.RFC3339, fromParam)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'from' timestamp format. Use RFC3339."})
			return
		}
		q = q.Where("start_time >= ?", from)
	}

	var downtimes []model.DeviceDowntime
	if err := q.Order("start_time DESC").Find(&downtimes).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve downtime history"})
		return
	}
	c.JSON(http.StatusOK, downtimes)
}

// GetSpareParts returns the spare-part inventory with its stock condition.
func (h *Handler) GetSpareParts(c *gin.Context) {
	var parts []model.SparePart
	if err := h.store.DB().Order("part_number").Find(&parts).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve spare parts"})
		return
	}
	c.JSON(http.StatusOK, parts)
}

// GetNotifications returns the most recent notifications, newest first.
func (h *Handler) GetNotifications(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	var notifications []model.Notification
	if err := h.store.DB().Order("created_at DESC").Limit(limit).Find(&notifications).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve notifications"})
		return
	}
	c.JSON(http.StatusOK, notifications)
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type runSchedulerRequest struct {
	Task   string `json:"task"`
	DryRun bool   `json:"dry_run"`
}

// RunSchedulerTask triggers a maintenance task immediately, mirroring the
// "run now" CLI entry point. With dry_run the task evaluates and logs but
// persists nothing.
func (h *Handler) RunSchedulerTask(c *gin.Context) {
	var req runSchedulerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Task == "" {
		req.Task = "all"
	}

	result, err := h.scheduler.RunTask(c.Request.Context(), req.Task, req.DryRun)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": req.Task, "dry_run": req.DryRun, "result": result})
}

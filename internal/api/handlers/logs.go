package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dragon-zzuni/smart-assistant/internal/services"
)

// LogHandler handles log listing requests
type LogHandler struct {
	logService *services.LogService
}

// NewLogHandler creates a new LogHandler instance
func NewLogHandler(logService *services.LogService) *LogHandler {
	return &LogHandler{logService: logService}
}

// ListLogs returns persisted log entries filtered by run, level, module,
// action and time range (unix seconds)
func (h *LogHandler) ListLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	query := services.LogQuery{
		RunID:  c.Query("run_id"),
		Level:  c.Query("level"),
		Module: c.Query("module"),
		Action: c.Query("action"),
		Page:   page,
		Limit:  limit,
	}
	if since, err := strconv.ParseInt(c.Query("since"), 10, 64); err == nil {
		t := time.Unix(since, 0)
		query.StartTime = &t
	}
	if until, err := strconv.ParseInt(c.Query("until"), 10, 64); err == nil {
		t := time.Unix(until, 0)
		query.EndTime = &t
	}

	result, err := h.logService.QueryLogs(query)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to query logs")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"total": result.Total,
			"logs":  result.Logs,
		},
	})
}

// GetRunLogs returns every log entry of one run in the order it was written
func (h *LogHandler) GetRunLogs(c *gin.Context) {
	logs, err := h.logService.GetLogsByRunID(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to query logs")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"run_id": c.Param("id"),
			"logs":   logs,
		},
	})
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dragon-zzuni/smart-assistant/internal/database/models"
	"github.com/dragon-zzuni/smart-assistant/internal/domain"
	"github.com/dragon-zzuni/smart-assistant/internal/services"
)

// RunHandler handles pipeline run requests
type RunHandler struct {
	assistant *services.AssistantService
}

// NewRunHandler creates a new RunHandler instance
func NewRunHandler(assistant *services.AssistantService) *RunHandler {
	return &RunHandler{assistant: assistant}
}

// RunResponse summarizes a run for API clients
type RunResponse struct {
	ID             string          `json:"id"`
	State          domain.RunState `json:"state"`
	Trigger        string          `json:"trigger"`
	Mode           string          `json:"mode"`
	Collected      int             `json:"collected"`
	Normalized     int             `json:"normalized"`
	Coalesced      int             `json:"coalesced"`
	Fallbacks      int             `json:"fallbacks"`
	TodoItems      int             `json:"todo_items"`
	SourceFailures int             `json:"source_failures"`
	Error          string          `json:"error,omitempty"`
	StartedAt      int64           `json:"started_at"`
	FinishedAt     int64           `json:"finished_at,omitempty"`
}

func toRunResponse(run *models.Run) RunResponse {
	resp := RunResponse{
		ID:             run.ID,
		State:          run.State,
		Trigger:        run.Trigger,
		Mode:           run.Mode,
		Collected:      run.Collected,
		Normalized:     run.Normalized,
		Coalesced:      run.Coalesced,
		Fallbacks:      run.Fallbacks,
		TodoItems:      run.TodoItems,
		SourceFailures: run.SourceFailures,
		Error:          run.Error,
		StartedAt:      run.StartedAt.Unix(),
	}
	if run.FinishedAt != nil {
		resp.FinishedAt = run.FinishedAt.Unix()
	}
	return resp
}

// TriggerRun executes one run and returns its todo list
func (h *RunHandler) TriggerRun(c *gin.Context) {
	// The run outlives a client that disconnects mid-way
	ctx := context.WithoutCancel(c.Request.Context())

	result, err := h.assistant.RunWithTrigger(ctx, services.TriggerAPI)
	switch {
	case errors.Is(err, services.ErrNothingCollected):
		respondError(c, http.StatusUnprocessableEntity, "NOTHING_COLLECTED", err.Error())
		return
	case errors.Is(err, services.ErrRunInProgress):
		respondError(c, http.StatusConflict, "RUN_IN_PROGRESS", "Another run is still active")
		return
	case err != nil:
		respondError(c, http.StatusInternalServerError, "RUN_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"run_id":          result.RunID,
			"state":           result.State,
			"mode":            result.Mode,
			"messages":        len(result.Messages),
			"fallbacks":       result.Fallbacks,
			"source_failures": result.SourceFailures,
			"todo":            result.Todo,
		},
	})
}

// ListRuns returns the most recent runs
func (h *RunHandler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	runs, err := h.assistant.ListRuns(limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list runs")
		return
	}

	items := make([]RunResponse, 0, len(runs))
	for i := range runs {
		items = append(items, toRunResponse(&runs[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"runs": items,
		},
	})
}

// TodoResponse is one todo item of a stored run
type TodoResponse struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Priority        string `json:"priority"`
	Type            string `json:"type"`
	Deadline        string `json:"deadline,omitempty"`
	DueDate         string `json:"due_date,omitempty"`
	Requester       string `json:"requester"`
	Status          string `json:"status"`
	SourceMessageID string `json:"source_message_id"`
	SourcePlatform  string `json:"source_platform"`
}

func toTodoResponse(rec models.TodoRecord) TodoResponse {
	resp := TodoResponse{
		ID:              rec.ItemID,
		Title:           rec.Title,
		Description:     rec.Description,
		Priority:        rec.Priority,
		Type:            rec.Type,
		Deadline:        rec.Deadline,
		Requester:       rec.Requester,
		Status:          rec.Status,
		SourceMessageID: rec.SourceMessageID,
		SourcePlatform:  rec.SourcePlatform,
	}
	if rec.DueDate != nil {
		resp.DueDate = rec.DueDate.Format(time.DateOnly)
	}
	return resp
}

// GetLatestRun returns the latest successful run with its todo items
func (h *RunHandler) GetLatestRun(c *gin.Context) {
	run, ok := h.latestRun(c)
	if !ok {
		return
	}

	todos := make([]TodoResponse, 0, len(run.Todos))
	for _, rec := range run.Todos {
		todos = append(todos, toTodoResponse(rec))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"run":   toRunResponse(run),
			"todos": todos,
		},
	})
}

// GetLatestReport returns the plain-text report of the latest successful run
func (h *RunHandler) GetLatestReport(c *gin.Context) {
	run, ok := h.latestRun(c)
	if !ok {
		return
	}
	c.String(http.StatusOK, run.Report)
}

func (h *RunHandler) latestRun(c *gin.Context) (*models.Run, bool) {
	run, err := h.assistant.GetLatestRun()
	if errors.Is(err, services.ErrRunNotFound) {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "No completed run yet")
		return nil, false
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load run")
		return nil, false
	}
	return run, true
}

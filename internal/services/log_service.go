package services

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/dragon-zzuni/smart-assistant/internal/database/models"
	"github.com/dragon-zzuni/smart-assistant/internal/domain"
)

// LogService persists pipeline events so they can be listed later
type LogService struct {
	db       *gorm.DB
	logLevel models.LogLevel
}

// NewLogService creates a new LogService instance
func NewLogService(db *gorm.DB) *LogService {
	return &LogService{
		db:       db,
		logLevel: models.LogLevelInfo, // Default log level
	}
}

// NewLogServiceWithLevel creates a new LogService instance with specified log level
func NewLogServiceWithLevel(db *gorm.DB, level string) *LogService {
	return &LogService{
		db:       db,
		logLevel: parseLogLevel(level),
	}
}

// parseLogLevel converts a string to LogLevel
func parseLogLevel(level string) models.LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return models.LogLevelDebug
	case "INFO":
		return models.LogLevelInfo
	case "WARN", "WARNING":
		return models.LogLevelWarn
	case "ERROR":
		return models.LogLevelError
	default:
		return models.LogLevelInfo
	}
}

var levelPriority = map[models.LogLevel]int{
	models.LogLevelDebug: 0,
	models.LogLevelInfo:  1,
	models.LogLevelWarn:  2,
	models.LogLevelError: 3,
}

// shouldLog checks if a log entry should be recorded based on log level
func (s *LogService) shouldLog(level models.LogLevel) bool {
	return levelPriority[level] >= levelPriority[s.logLevel]
}

// LogEntry represents a log entry to be created
type LogEntry struct {
	RunID   string
	Level   models.LogLevel
	Module  models.LogModule
	Action  string
	Message string
	Details interface{} // Will be serialized to JSON
}

// Log creates a new log entry. A nil service or database drops the entry.
func (s *LogService) Log(entry LogEntry) error {
	if s == nil || s.db == nil {
		return nil
	}
	if !s.shouldLog(entry.Level) {
		return nil
	}

	var detailsJSON string
	if entry.Details != nil {
		bytes, err := json.Marshal(entry.Details)
		if err != nil {
			detailsJSON = "{}"
		} else {
			detailsJSON = string(bytes)
		}
	}

	log := &models.Log{
		RunID:   entry.RunID,
		Level:   string(entry.Level),
		Module:  string(entry.Module),
		Action:  entry.Action,
		Message: entry.Message,
		Details: detailsJSON,
	}

	return s.db.Create(log).Error
}

// LogInfo creates an INFO level log entry
func (s *LogService) LogInfo(runID string, module models.LogModule, action, message string, details interface{}) error {
	return s.Log(LogEntry{RunID: runID, Level: models.LogLevelInfo, Module: module, Action: action, Message: message, Details: details})
}

// LogWarn creates a WARN level log entry
func (s *LogService) LogWarn(runID string, module models.LogModule, action, message string, details interface{}) error {
	return s.Log(LogEntry{RunID: runID, Level: models.LogLevelWarn, Module: module, Action: action, Message: message, Details: details})
}

// LogError creates an ERROR level log entry
func (s *LogService) LogError(runID string, module models.LogModule, action, message string, details interface{}) error {
	return s.Log(LogEntry{RunID: runID, Level: models.LogLevelError, Module: module, Action: action, Message: message, Details: details})
}

// LogDebug creates a DEBUG level log entry
func (s *LogService) LogDebug(runID string, module models.LogModule, action, message string, details interface{}) error {
	return s.Log(LogEntry{RunID: runID, Level: models.LogLevelDebug, Module: module, Action: action, Message: message, Details: details})
}

// ===== Pipeline Logging =====

// RunDetails represents details for run-level log entries
type RunDetails struct {
	Trigger  string `json:"trigger,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Count    int    `json:"count,omitempty"`
	ErrorMsg string `json:"error_msg,omitempty"`
}

// LogRunStarted logs the start of a run
func (s *LogService) LogRunStarted(runID, trigger string) error {
	return s.LogInfo(runID, models.LogModulePipeline, "run_started", "Run started", RunDetails{Trigger: trigger})
}

// LogStateTransition logs a run moving between states with the item count
// at the new state
func (s *LogService) LogStateTransition(runID string, from, to domain.RunState, count int) error {
	return s.LogDebug(runID, models.LogModulePipeline, "transition", "Run state changed", RunDetails{
		From:  string(from),
		To:    string(to),
		Count: count,
	})
}

// LogSourceFailure logs a source whose contribution was dropped
func (s *LogService) LogSourceFailure(runID, source string, err error) error {
	return s.LogWarn(runID, models.LogModuleSources, "source_unavailable", "Source unavailable: "+source, RunDetails{ErrorMsg: err.Error()})
}

// LogRunFinished logs a successful run
func (s *LogService) LogRunFinished(runID string, todoItems int, duration time.Duration) error {
	return s.LogInfo(runID, models.LogModulePipeline, "run_finished", "Run finished", map[string]interface{}{
		"todo_items":  todoItems,
		"duration_ms": duration.Milliseconds(),
	})
}

// LogRunFailed logs a failed run
func (s *LogService) LogRunFailed(runID string, err error) error {
	return s.LogError(runID, models.LogModulePipeline, "run_failed", "Run failed", RunDetails{ErrorMsg: err.Error()})
}

// LogSinkFailure logs an output sink that could not deliver
func (s *LogService) LogSinkFailure(runID, sink string, err error) error {
	return s.LogWarn(runID, models.LogModuleNotify, "sink_failed", "Sink failed: "+sink, RunDetails{ErrorMsg: err.Error()})
}

// ===== API Request Logging =====

// APIRequestDetails represents details for API request logs
type APIRequestDetails struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	StatusCode int    `json:"status_code"`
	Duration   int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
	UserAgent  string `json:"user_agent,omitempty"`
}

// LogAPIRequest logs an API request
func (s *LogService) LogAPIRequest(method, path string, statusCode int, durationMs int64, clientIP, userAgent string) error {
	level := models.LogLevelInfo
	if statusCode >= 400 && statusCode < 500 {
		level = models.LogLevelWarn
	} else if statusCode >= 500 {
		level = models.LogLevelError
	}

	return s.Log(LogEntry{
		Level:   level,
		Module:  models.LogModuleAPI,
		Action:  "request",
		Message: method + " " + path,
		Details: APIRequestDetails{
			Method:     method,
			Path:       path,
			StatusCode: statusCode,
			Duration:   durationMs,
			ClientIP:   clientIP,
			UserAgent:  userAgent,
		},
	})
}

// LogAPIKeyValidation logs an API key validation attempt
func (s *LogService) LogAPIKeyValidation(success bool, clientIP string) error {
	level := models.LogLevelDebug
	message := "API key validated successfully"
	status := "valid"

	if !success {
		level = models.LogLevelWarn
		message = "API key validation failed"
		status = "invalid"
	}

	return s.Log(LogEntry{
		Level:   level,
		Module:  models.LogModuleAPI,
		Action:  "api_key_validation",
		Message: message,
		Details: map[string]string{"client_ip": clientIP, "status": status},
	})
}

// LogAPIKeyReset logs an API key reset event
func (s *LogService) LogAPIKeyReset() error {
	return s.LogInfo("", models.LogModuleCLI, "api_key_reset", "API key reset", nil)
}

// ===== Log Query Methods =====

// LogQuery represents query parameters for log retrieval
type LogQuery struct {
	RunID     string
	Level     string
	Module    string
	Action    string
	StartTime *time.Time
	EndTime   *time.Time
	Page      int
	Limit     int
}

// LogQueryResult represents the result of a log query
type LogQueryResult struct {
	Total int64
	Logs  []models.Log
}

// QueryLogs retrieves logs based on query parameters
func (s *LogService) QueryLogs(query LogQuery) (*LogQueryResult, error) {
	db := s.db.Model(&models.Log{})

	if query.RunID != "" {
		db = db.Where("run_id = ?", query.RunID)
	}
	if query.Level != "" {
		db = db.Where("level = ?", strings.ToUpper(query.Level))
	}
	if query.Module != "" {
		db = db.Where("module = ?", query.Module)
	}
	if query.Action != "" {
		db = db.Where("action = ?", query.Action)
	}
	if query.StartTime != nil {
		db = db.Where("created_at >= ?", query.StartTime)
	}
	if query.EndTime != nil {
		db = db.Where("created_at <= ?", query.EndTime)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, err
	}

	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 50
	}

	offset := (query.Page - 1) * query.Limit

	var logs []models.Log
	if err := db.Order("created_at DESC, id DESC").Offset(offset).Limit(query.Limit).Find(&logs).Error; err != nil {
		return nil, err
	}

	return &LogQueryResult{
		Total: total,
		Logs:  logs,
	}, nil
}

// GetLogsByRunID retrieves the logs of one run in the order they were written
func (s *LogService) GetLogsByRunID(runID string) ([]models.Log, error) {
	var logs []models.Log
	if err := s.db.Where("run_id = ?", runID).Order("id ASC").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

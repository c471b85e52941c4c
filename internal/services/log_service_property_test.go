package services

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dragon-zzuni/smart-assistant/internal/database/models"
	"github.com/dragon-zzuni/smart-assistant/internal/domain"
)

func setupLogTestDB(t *testing.T) (*gorm.DB, func()) {
	tmpFile, err := os.CreateTemp("", "log_test_*.db")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	tmpFile.Close()

	db, err := gorm.Open(sqlite.Open(tmpFile.Name()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("Failed to open database: %v", err)
	}

	if err := db.AutoMigrate(&models.Log{}); err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("Failed to migrate: %v", err)
	}

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		os.Remove(tmpFile.Name())
	}

	return db, cleanup
}

func TestProperty_LogCompleteness_APIRequest(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("api_request_level_follows_status", prop.ForAll(
		func(statusCode int) bool {
			db, cleanup := setupLogTestDB(t)
			defer cleanup()

			service := NewLogService(db)
			beforeTime := time.Now().Add(-time.Second)

			if err := service.LogAPIRequest("GET", "/api/runs", statusCode, 12, "127.0.0.1", "TestAgent"); err != nil {
				return false
			}

			var log models.Log
			if err := db.First(&log).Error; err != nil {
				return false
			}

			want := string(models.LogLevelInfo)
			if statusCode >= 500 {
				want = string(models.LogLevelError)
			} else if statusCode >= 400 {
				want = string(models.LogLevelWarn)
			}

			return log.Level == want &&
				log.Module == string(models.LogModuleAPI) &&
				log.Action == "request" &&
				log.Message == "GET /api/runs" &&
				log.CreatedAt.After(beforeTime)
		},
		gen.IntRange(200, 599),
	))

	properties.TestingRun(t)
}

func TestProperty_LogLevelFiltering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	levels := []models.LogLevel{models.LogLevelDebug, models.LogLevelInfo, models.LogLevelWarn, models.LogLevelError}

	properties.Property("entries_below_minimum_level_are_dropped", prop.ForAll(
		func(minIdx, entryIdx int) bool {
			db, cleanup := setupLogTestDB(t)
			defer cleanup()

			service := NewLogServiceWithLevel(db, string(levels[minIdx]))
			err := service.Log(LogEntry{
				RunID:   "run-1",
				Level:   levels[entryIdx],
				Module:  models.LogModulePipeline,
				Action:  "level_check",
				Message: "level_check",
			})
			if err != nil {
				return false
			}

			var count int64
			db.Model(&models.Log{}).Count(&count)
			if entryIdx >= minIdx {
				return count == 1
			}
			return count == 0
		},
		gen.IntRange(0, 3),
		gen.IntRange(0, 3),
	))

	properties.TestingRun(t)
}

func TestLogService_RunEvents(t *testing.T) {
	db, cleanup := setupLogTestDB(t)
	defer cleanup()

	service := NewLogServiceWithLevel(db, "debug")
	require.NoError(t, service.LogRunStarted("run-1", "manual"))
	require.NoError(t, service.LogStateTransition("run-1", "", domain.RunCollected, 5))
	require.NoError(t, service.LogSourceFailure("run-1", "imap:me", errors.New("dial tcp: refused")))
	require.NoError(t, service.LogRunFinished("run-1", 3, 1500*time.Millisecond))
	require.NoError(t, service.LogRunStarted("run-2", "scheduled"))

	logs, err := service.GetLogsByRunID("run-1")
	require.NoError(t, err)
	require.Len(t, logs, 4)
	assert.Equal(t, "run_started", logs[0].Action)
	assert.Equal(t, "transition", logs[1].Action)
	assert.Contains(t, logs[1].Details, `"to":"collected"`)
	assert.Equal(t, string(models.LogModuleSources), logs[2].Module)
	assert.Equal(t, string(models.LogLevelWarn), logs[2].Level)
	assert.Contains(t, logs[2].Details, "refused")
	assert.Contains(t, logs[3].Details, `"duration_ms":1500`)

	result, err := service.QueryLogs(LogQuery{Module: string(models.LogModuleSources)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.Total)

	result, err = service.QueryLogs(LogQuery{Action: "run_started", Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.Total)
	assert.Len(t, result.Logs, 1)
}

func TestLogService_NilDatabaseDropsEntries(t *testing.T) {
	var service *LogService
	assert.NoError(t, service.LogRunStarted("run-1", "manual"))
	assert.NoError(t, NewLogService(nil).LogRunFailed("run-1", errors.New("boom")))
}

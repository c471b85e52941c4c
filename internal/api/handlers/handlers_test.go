package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragon-zzuni/smart-assistant/internal/database"
	"github.com/dragon-zzuni/smart-assistant/internal/services"
	"github.com/dragon-zzuni/smart-assistant/internal/sources"
)

const sampleChat = `[
	{"channel": "dev", "username": "김과장", "body": "긴급: 오늘까지 배포 결과 검토 부탁드립니다", "timestamp": "2024-03-05 10:00:00", "type": "chat"},
	{"channel": "dev", "username": "lee", "body": "회의는 내일 오후 3시입니다", "timestamp": "2024-03-05 11:00:00", "type": "chat"}
]`

type testEnv struct {
	router     *gin.Engine
	logService *services.LogService
}

func setupHandlerTest(t *testing.T, withChat bool) *testEnv {
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	db, err := database.Initialize(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	chatDir := filepath.Join(dir, "chats")
	require.NoError(t, os.MkdirAll(chatDir, 0755))
	if withChat {
		require.NoError(t, os.WriteFile(filepath.Join(chatDir, "dev.json"), []byte(sampleChat), 0644))
	}

	logService := services.NewLogServiceWithLevel(db, "DEBUG")
	assistant := services.NewAssistantService(db, logService, services.AssistantOptions{
		Sources: []sources.Source{sources.NewChatDirSource(chatDir)},
	})

	runHandler := NewRunHandler(assistant)
	logHandler := NewLogHandler(logService)

	router := gin.New()
	router.POST("/api/runs", runHandler.TriggerRun)
	router.GET("/api/runs", runHandler.ListRuns)
	router.GET("/api/runs/latest", runHandler.GetLatestRun)
	router.GET("/api/runs/latest/report", runHandler.GetLatestReport)
	router.GET("/api/runs/:id/logs", logHandler.GetRunLogs)
	router.GET("/api/logs", logHandler.ListLogs)

	return &testEnv{router: router, logService: logService}
}

func (e *testEnv) do(method, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func TestTriggerRun_ThenReadLatest(t *testing.T) {
	env := setupHandlerTest(t, true)

	w := env.do("POST", "/api/runs")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeEnvelope(t, w)
	assert.True(t, created.Success)

	var run struct {
		RunID    string `json:"run_id"`
		State    string `json:"state"`
		Mode     string `json:"mode"`
		Messages int    `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(created.Data, &run))
	assert.Equal(t, "todo_built", run.State)
	assert.Equal(t, "local", run.Mode)
	assert.Equal(t, 2, run.Messages)

	w = env.do("GET", "/api/runs/latest")
	require.Equal(t, http.StatusOK, w.Code)
	var latest struct {
		Run   RunResponse    `json:"run"`
		Todos []TodoResponse `json:"todos"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &latest))
	assert.Equal(t, run.RunID, latest.Run.ID)
	assert.Equal(t, "api", latest.Run.Trigger)
	assert.Equal(t, latest.Run.TodoItems, len(latest.Todos))

	w = env.do("GET", "/api/runs/latest/report")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.NotEmpty(t, w.Body.String())

	w = env.do("GET", "/api/runs?limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Runs []RunResponse `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &listed))
	require.Len(t, listed.Runs, 1)
	assert.Equal(t, run.RunID, listed.Runs[0].ID)
}

func TestTriggerRun_NothingCollected(t *testing.T) {
	env := setupHandlerTest(t, false)

	w := env.do("POST", "/api/runs")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "NOTHING_COLLECTED", decodeEnvelope(t, w).Error.Code)

	// A failed run is listed but never served as the latest one
	w = env.do("GET", "/api/runs")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do("GET", "/api/runs/latest")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeEnvelope(t, w).Error.Code)

	w = env.do("GET", "/api/runs/latest/report")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTriggerRun_ConcurrentRequestsNeverOverlap(t *testing.T) {
	env := setupHandlerTest(t, true)

	var wg sync.WaitGroup
	codes := make([]int, 4)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = env.do("POST", "/api/runs").Code
		}(i)
	}
	wg.Wait()

	created := 0
	for _, code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
		default:
			t.Fatalf("unexpected status %d", code)
		}
	}
	assert.GreaterOrEqual(t, created, 1)
}

func TestListLogs_FiltersByRun(t *testing.T) {
	env := setupHandlerTest(t, true)

	w := env.do("POST", "/api/runs")
	require.Equal(t, http.StatusCreated, w.Code)
	var run struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &run))

	require.NoError(t, env.logService.LogInfo("other-run", "pipeline", "run_started", "unrelated", nil))

	w = env.do("GET", "/api/logs?run_id="+run.RunID+"&limit=100")
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Total int64 `json:"total"`
		Logs  []struct {
			RunID  string `json:"run_id"`
			Module string `json:"module"`
		} `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &page))
	require.NotEmpty(t, page.Logs)
	assert.Equal(t, int64(len(page.Logs)), page.Total)
	for _, entry := range page.Logs {
		assert.Equal(t, run.RunID, entry.RunID)
	}

	w = env.do("GET", "/api/logs?module=pipeline&action=run_started")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &page))
	assert.GreaterOrEqual(t, page.Total, int64(1))
}

func TestGetRunLogs_InWriteOrder(t *testing.T) {
	env := setupHandlerTest(t, true)

	w := env.do("POST", "/api/runs")
	require.Equal(t, http.StatusCreated, w.Code)
	var run struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &run))

	w = env.do("GET", "/api/runs/"+run.RunID+"/logs")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		RunID string `json:"run_id"`
		Logs  []struct {
			RunID  string `json:"run_id"`
			Action string `json:"action"`
		} `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &body))
	assert.Equal(t, run.RunID, body.RunID)
	require.NotEmpty(t, body.Logs)
	assert.Equal(t, "run_started", body.Logs[0].Action)
	assert.Equal(t, "run_finished", body.Logs[len(body.Logs)-1].Action)
	for _, entry := range body.Logs {
		assert.Equal(t, run.RunID, entry.RunID)
	}

	w = env.do("GET", "/api/runs/unknown/logs")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &body))
	assert.Empty(t, body.Logs)
}

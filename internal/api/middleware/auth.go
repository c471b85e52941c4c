package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dragon-zzuni/smart-assistant/internal/services"
)

const (
	// APIKeyHeader is the header name for API key
	APIKeyHeader = "X-API-Key"
	// APIKeyLength is the key size in random bytes; the key is hex encoded
	APIKeyLength = 32

	apiKeyFile = "api_key.txt"
)

// APIKeyManager holds the single API key of the service, persisted under the
// data directory so that `key show` and the server agree on it
type APIKeyManager struct {
	path string

	mu  sync.RWMutex
	key string
}

// NewAPIKeyManager loads the stored key, creating one on first use
func NewAPIKeyManager(dataDir string) (*APIKeyManager, error) {
	m := &APIKeyManager{path: filepath.Join(dataDir, apiKeyFile)}

	data, err := os.ReadFile(m.path)
	if key := strings.TrimSpace(string(data)); err == nil && key != "" {
		m.key = key
		return m, nil
	}

	if _, err := m.Reset(); err != nil {
		return nil, err
	}
	return m, nil
}

// Key returns the current API key
func (m *APIKeyManager) Key() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.key
}

// Validate reports whether key matches the current key in constant time
func (m *APIKeyManager) Validate(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.key != "" && subtle.ConstantTimeCompare([]byte(m.key), []byte(key)) == 1
}

// Reset replaces the key on disk and in memory; the old key stops working
func (m *APIKeyManager) Reset() (string, error) {
	buf := make([]byte, APIKeyLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	key := hex.EncodeToString(buf)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return "", err
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(key), 0600); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return "", err
	}

	m.key = key
	return key, nil
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "AUTH_FAILED",
			"message": message,
		},
	})
}

// APIKeyMiddleware validates API key for all requests. logService may be nil.
func APIKeyMiddleware(apiKeyManager *APIKeyManager, logService *services.LogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(APIKeyHeader)
		if apiKey == "" {
			logService.LogAPIKeyValidation(false, c.ClientIP())
			abortUnauthorized(c, "API key is required")
			return
		}

		if !apiKeyManager.Validate(apiKey) {
			logService.LogAPIKeyValidation(false, c.ClientIP())
			abortUnauthorized(c, "Invalid API key")
			return
		}

		logService.LogAPIKeyValidation(true, c.ClientIP())
		c.Next()
	}
}

// RequestLogger persists one log entry per API request
func RequestLogger(logService *services.LogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logService.LogAPIRequest(
			c.Request.Method,
			c.FullPath(),
			c.Writer.Status(),
			time.Since(start).Milliseconds(),
			c.ClientIP(),
			c.Request.UserAgent(),
		)
	}
}

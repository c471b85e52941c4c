package handlers

import (
	"github.com/gin-gonic/gin"
)

// respondError writes the standard error body
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

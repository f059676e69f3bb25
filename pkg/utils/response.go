package utils

import "github.com/gin-gonic/gin"

// ErrorResponse writes a JSON error body with the given status code.
func ErrorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"error": message,
	})
}

package utils

import (
	"time"

	"github.com/gin-gonic/gin"
)

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// JSONResponse sends the success envelope
func JSONResponse(c *gin.Context, status int, data any, message string) {
	c.JSON(status, gin.H{
		"success":   true,
		"message":   message,
		"data":      data,
		"timestamp": now(),
	})
}

// JSONError sends the failure envelope. message is shown to users as is.
func JSONError(c *gin.Context, status int, err error, message string) {
	c.JSON(status, gin.H{
		"success":   false,
		"message":   message,
		"error":     err.Error(),
		"timestamp": now(),
	})
}

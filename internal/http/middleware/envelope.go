package middleware

import "github.com/gin-gonic/gin"

// abortEnvelope aborts with the API error envelope. It mirrors
// handlers.Fail, which this package cannot import.
func abortEnvelope(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success":    false,
		"data":       nil,
		"error":      code,
		"message":    msg,
		"meta":       gin.H{},
		"request_id": c.Writer.Header().Get(requestIDHeader),
	})
}

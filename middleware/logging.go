package middleware

import (
	"time"

	"github.com/LovationAdmin/horizon-api/utils"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs every request through utils.LogAPIRequest once the
// handler chain has finished.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		userID := ""
		if user := GetUser(c); user != nil {
			userID = user.ID
		}
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		utils.LogAPIRequest(c.Request.Method, path, userID, c.Writer.Status(), time.Since(start).String())
	}
}

package middleware

import (
	"fmt"
	"net/http"

	"battery-dispatch/internal/api/models"
	"battery-dispatch/internal/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler middleware turns panics into a JSON 500
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Errorw("panic in handler", "path", c.Request.URL.Path, "panic", recovered)
		msg := "An unexpected error occurred"
		switch v := recovered.(type) {
		case string:
			msg = v
		case error:
			msg = v.Error()
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INTERNAL_ERROR",
				Message: msg,
				Details: map[string]interface{}{"panic": fmt.Sprint(recovered)},
			},
		})
	})
}

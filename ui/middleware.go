package ui

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"leadscope/internal/errors"
	"leadscope/ui/middleware"
)

// setupMiddleware configures Gin middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestLogger(s.logger))
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		s.logger.Error().Interface("panic", recovered).Str("path", c.FullPath()).Msg("handler panicked")
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
			Code:    errors.CodeInternalError,
			Message: "internal server error",
		})
	}))
}

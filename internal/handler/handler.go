package handler

import (
	"net/http"
	"strconv"

	"pastpapers/internal/logger"
	"pastpapers/internal/middleware"
	"pastpapers/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// auditEntry captures who made the request, for the audit trail.
func auditEntry(c *gin.Context) service.AuditEntry {
	return service.AuditEntry{
		UserID:    middleware.CurrentUserID(c),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

func internalError(c *gin.Context, msg string, err error, fields ...zap.Field) {
	logger.Error(c, msg, err, fields...)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

package handler

import (
	"net/http"

	"pastpapers/internal/service"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	analytics *service.AnalyticsService
}

func NewAdminHandler(analytics *service.AnalyticsService) *AdminHandler {
	return &AdminHandler{analytics: analytics}
}

func (h *AdminHandler) Analytics(c *gin.Context) {
	a, err := h.analytics.Summary(c.Request.Context())
	if err != nil {
		internalError(c, "failed to fetch analytics", err)
		return
	}
	c.JSON(http.StatusOK, a)
}

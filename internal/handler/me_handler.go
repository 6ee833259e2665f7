package handler

import (
	"errors"
	"net/http"

	"pastpapers/internal/middleware"
	"pastpapers/internal/repository"
	"pastpapers/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type MeHandler struct {
	auth  *service.AuthService
	sales *service.SaleService
	users *repository.UserRepository
}

func NewMeHandler(auth *service.AuthService, sales *service.SaleService, users *repository.UserRepository) *MeHandler {
	return &MeHandler{auth: auth, sales: sales, users: users}
}

func (h *MeHandler) Me(c *gin.Context) {
	u, err := h.auth.Me(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		internalError(c, "failed to load user", err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// Purchases lists the papers the user has bought, newest first.
func (h *MeHandler) Purchases(c *gin.Context) {
	list, err := h.sales.Purchases(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		internalError(c, "failed to fetch purchases", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *MeHandler) UpdateFCMToken(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.users.UpdateFCMToken(c.Request.Context(), middleware.GetUserID(c), req.Token); err != nil {
		internalError(c, "failed to save token", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

package handler

import (
	"errors"
	"net/http"
	"strconv"

	"pastpapers/internal/auth"
	"pastpapers/internal/domain"
	"pastpapers/internal/models"
	"pastpapers/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	svc   *service.AuthService
	audit *service.AuditService
}

func NewAuthHandler(svc *service.AuthService, audit *service.AuditService) *AuthHandler {
	return &AuthHandler{svc: svc, audit: audit}
}

type RegisterRequest struct {
	Username  string `json:"username" binding:"required,min=3,max=64"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"firstName" binding:"max=100"`
	LastName  string `json:"lastName" binding:"max=100"`
}

// LoginRequest takes a username or an email address in Username.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, pair, err := h.svc.Register(c.Request.Context(), service.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailExists), errors.Is(err, service.ErrUsernameExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			internalError(c, "registration failed", err)
		}
		return
	}
	c.JSON(http.StatusCreated, tokenResponse(u, pair))
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, pair, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.loginFailed(c, err)
		return
	}
	h.auditLogin(c, u, domain.AuditLogin)
	c.JSON(http.StatusOK, tokenResponse(u, pair))
}

// AdminLogin only succeeds for ADMIN accounts.
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, pair, err := h.svc.AdminLogin(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.loginFailed(c, err)
		return
	}
	h.auditLogin(c, u, domain.AuditAdminLogin)
	resp := tokenResponse(u, pair)
	resp["success"] = true
	resp["admin"] = gin.H{"id": u.ID, "username": u.Username}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pair, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
			return
		}
		internalError(c, "refresh failed", err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h *AuthHandler) loginFailed(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCreds):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	case errors.Is(err, service.ErrNotAdmin):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		internalError(c, "login failed", err)
	}
}

func (h *AuthHandler) auditLogin(c *gin.Context, u *models.User, action string) {
	entry := auditEntry(c)
	entry.UserID = &u.ID
	entry.Action = action
	entry.Resource = "user"
	entry.ResourceID = strconv.FormatUint(uint64(u.ID), 10)
	h.audit.Record(c.Request.Context(), entry)
}

func tokenResponse(u *models.User, pair *auth.TokenPair) gin.H {
	return gin.H{
		"user":         u,
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    pair.ExpiresIn,
	}
}

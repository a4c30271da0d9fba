package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"attendconsole/internal/auth"
)

type AuthHandler struct {
	tokens *auth.Tokens
	admin  auth.Admin
}

func NewAuthHandler(tokens *auth.Tokens, admin auth.Admin) *AuthHandler {
	return &AuthHandler{tokens: tokens, admin: admin}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	if err := h.admin.Verify(req.Username, req.Password); err != nil {
		if errors.Is(err, auth.ErrLoginDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		slog.Warn("admin login failed", "username", req.Username, "ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}

	h.issue(c, req.Username, auth.RoleAdmin)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}

	claims, err := h.tokens.Parse(req.RefreshToken, auth.KindRefresh)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	h.issue(c, claims.Subject, claims.Role)
}

func (h *AuthHandler) issue(c *gin.Context, subject, role string) {
	pair, err := h.tokens.Issue(subject, role)
	if err != nil {
		slog.Error("token issue failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

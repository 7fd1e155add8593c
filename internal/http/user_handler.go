package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-sync/internal/domain"
	"user-sync/internal/service"
)

// UserHandler mantiene dependencias para endpoints de usuarios.
type UserHandler struct {
	logger   *zap.Logger
	userServ *service.UserService
}

// NewUserHandler crea una instancia de UserHandler con dependencias necesarias.
func NewUserHandler(logger *zap.Logger, userServ *service.UserService) *UserHandler {
	return &UserHandler{
		logger:   logger,
		userServ: userServ,
	}
}

// UpdateName maneja PUT /api/users/:id/update-name.
func (h *UserHandler) UpdateName(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid update name request", zap.Error(err))
		c.JSON(http.StatusBadRequest, errorBody(http.StatusBadRequest, "invalid request"))
		return
	}

	id, ok := h.ownedUserID(c)
	if !ok {
		return
	}
	user, err := h.userServ.UpdateName(c.Request.Context(), id, req.Name)
	if err != nil {
		respondError(c, h.logger, "update name", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdatePassword maneja PUT /api/users/:id/update-password.
func (h *UserHandler) UpdatePassword(c *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required,strong_password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid update password request", zap.Error(err))
		c.JSON(http.StatusBadRequest, errorBody(http.StatusBadRequest, "password is not strong enough"))
		return
	}

	id, ok := h.ownedUserID(c)
	if !ok {
		return
	}
	if err := h.userServ.UpdatePassword(c.Request.Context(), id, req.Password); err != nil {
		respondError(c, h.logger, "update password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "User's password updated",
	})
}

// SyncAuth0 maneja POST /api/users/sync-auth0, invocado por las Actions de Auth0.
func (h *UserHandler) SyncAuth0(c *gin.Context) {
	var req struct {
		UserID        string     `json:"user_id" binding:"required"`
		Email         string     `json:"email" binding:"required,email"`
		EmailVerified *bool      `json:"email_verified" binding:"required"`
		Name          *string    `json:"name"`
		Picture       *string    `json:"picture"`
		LastLoginAt   *time.Time `json:"last_login_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid sync request", zap.Error(err))
		c.JSON(http.StatusBadRequest, errorBody(http.StatusBadRequest, "invalid request"))
		return
	}

	user, err := h.userServ.CreateOrUpdateFromAuth0(c.Request.Context(), req.UserID, domain.SyncAttributes{
		Name:          req.Name,
		EmailVerified: *req.EmailVerified,
		Picture:       req.Picture,
		LastLoginAt:   req.LastLoginAt,
	}, req.Email)
	if err != nil {
		respondError(c, h.logger, "sync auth0 user", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// MyProfile maneja GET /api/users/my-profile: trae el perfil de Auth0 y lo sincroniza.
func (h *UserHandler) MyProfile(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	user, err := h.userServ.SyncProfile(c.Request.Context(), claims.Subject)
	if err != nil {
		respondError(c, h.logger, "my profile", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ownedUserID valida que el :id de la ruta pertenezca al sujeto del token.
func (h *UserHandler) ownedUserID(c *gin.Context) (string, bool) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return "", false
	}
	id := c.Param("id")
	if _, err := h.userServ.EnsureOwner(c.Request.Context(), id, claims.Subject); err != nil {
		respondError(c, h.logger, "ownership check", err)
		return "", false
	}
	return id, true
}

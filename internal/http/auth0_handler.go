package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-sync/internal/domain"
	"user-sync/internal/service"
)

// Auth0Handler atiende los callbacks de registro y login enviados desde Auth0.
type Auth0Handler struct {
	logger   *zap.Logger
	userServ *service.UserService
}

func NewAuth0Handler(logger *zap.Logger, userServ *service.UserService) *Auth0Handler {
	return &Auth0Handler{
		logger:   logger,
		userServ: userServ,
	}
}

// Register maneja POST /api/auth0/register.
func (h *Auth0Handler) Register(c *gin.Context) {
	var req struct {
		UserID        string  `json:"user_id" binding:"required"`
		Email         string  `json:"email" binding:"required,email"`
		EmailVerified *bool   `json:"email_verified" binding:"required"`
		Name          *string `json:"name"`
		Picture       *string `json:"picture"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		c.JSON(http.StatusBadRequest, errorBody(http.StatusBadRequest, "invalid request"))
		return
	}

	user, err := h.userServ.CreateOrUpdateFromAuth0(c.Request.Context(), req.UserID, domain.SyncAttributes{
		Name:          req.Name,
		EmailVerified: *req.EmailVerified,
		Picture:       req.Picture,
	}, req.Email)
	if err != nil {
		respondError(c, h.logger, "register", err)
		return
	}
	c.JSON(http.StatusOK, successResponse(user, "User registered"))
}

// UpdateLastLogin maneja PUT /api/auth0/update-last-login.
func (h *Auth0Handler) UpdateLastLogin(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid last login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, errorBody(http.StatusBadRequest, "invalid request"))
		return
	}

	user, err := h.userServ.UpdateLastLogin(c.Request.Context(), req.UserID, time.Now())
	if err != nil {
		respondError(c, h.logger, "update last login", err)
		return
	}
	c.JSON(http.StatusOK, successResponse(user, "Last login updated"))
}

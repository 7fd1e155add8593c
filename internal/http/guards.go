package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-sync/internal/service"
)

// EmailVerifiedGuard exige que el usuario local del token tenga el email verificado.
func EmailVerifiedGuard(logger *zap.Logger, users *service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetAuthClaims(c)
		if ok && users != nil {
			user, err := users.GetByAuth0ID(c.Request.Context(), claims.Subject)
			if err == nil && user.EmailVerified {
				c.Next()
				return
			}
			if err != nil && !errors.Is(err, service.ErrUserNotFound) {
				logger.Warn("email verified guard lookup failed", zap.String("sub", claims.Subject), zap.Error(err))
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"statusCode": http.StatusForbidden,
			"error":      "Forbidden",
			"message":    "Email not verified",
			"type":       "EmailNotVerified",
		})
	}
}

// IPWhitelistGuard solo deja pasar direcciones configuradas. Una lista vacia rechaza todo.
func IPWhitelistGuard(whitelist []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(whitelist))
	for _, ip := range whitelist {
		if ip = strings.TrimSpace(ip); ip != "" {
			allowed[ip] = struct{}{}
		}
	}
	return func(c *gin.Context) {
		if _, ok := allowed[callerIP(c)]; ok {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody(http.StatusBadRequest, "IP not whitelisted"))
	}
}

// callerIP toma la primera entrada de X-Forwarded-For o la direccion remota.
func callerIP(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	return c.RemoteIP()
}

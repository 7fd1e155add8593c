package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-sync/internal/service"
)

const authClaimsKey = "auth_claims"

// JWTAuthMiddleware valida access tokens de Auth0 y guarda claims en el contexto.
// Si hay servicio de usuarios, registra la actividad de sesion sin bloquear la peticion.
func JWTAuthMiddleware(logger *zap.Logger, jwtSvc *service.JWTService, users *service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtSvc == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "jwt not configured"})
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		token := strings.TrimSpace(header[len("Bearer "):])
		claims, err := jwtSvc.ParseAccessToken(c.Request.Context(), token)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, service.ErrJWTExpired) {
				msg = "token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		c.Set(authClaimsKey, claims)

		if users != nil {
			err := users.TouchSession(c.Request.Context(), claims.Subject, time.Now())
			if err != nil && !errors.Is(err, service.ErrUserNotFound) {
				logger.Warn("touch session failed", zap.String("sub", claims.Subject), zap.Error(err))
			}
		}
		c.Next()
	}
}

// GetAuthClaims obtiene claims de JWT desde el contexto.
func GetAuthClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}

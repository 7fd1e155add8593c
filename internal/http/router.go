package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-sync/internal/service"
)

// RouterDeps agrupa lo que necesita el router.
type RouterDeps struct {
	JWT         *service.JWTService
	Users       *service.UserService
	IPWhitelist []string
	UserH       *UserHandler
	Auth0H      *Auth0Handler
}

// NewRouter configura el router de Gin con middlewares y rutas bajo /api.
func NewRouter(logger *zap.Logger, deps RouterDeps) *gin.Engine {
	registerValidations()

	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authn := JWTAuthMiddleware(logger, deps.JWT, deps.Users)
	verified := EmailVerifiedGuard(logger, deps.Users)
	whitelisted := IPWhitelistGuard(deps.IPWhitelist)

	auth0 := api.Group("/auth0", authn)
	auth0.POST("/register", deps.Auth0H.Register)
	auth0.PUT("/update-last-login", deps.Auth0H.UpdateLastLogin)
	auth0.PUT("/last-login", deps.Auth0H.UpdateLastLogin)

	users := api.Group("/users", authn)
	users.GET("/my-profile", verified, deps.UserH.MyProfile)
	users.PUT("/:id/update-name", verified, deps.UserH.UpdateName)
	users.PUT("/:id/update-password", verified, deps.UserH.UpdatePassword)
	users.POST("/sync-auth0", whitelisted, deps.UserH.SyncAuth0)
	users.POST("/sync-register", whitelisted, deps.UserH.SyncAuth0)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}

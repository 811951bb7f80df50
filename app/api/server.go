package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/catalog-comb/app/auth"
	"github.com/lysyi3m/catalog-comb/app/cfg"
	"github.com/lysyi3m/catalog-comb/app/ratelimit"
)

const (
	identityKey = "identity"
	tokenKey    = "token"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, authLimiter *ratelimit.KeyedRateLimiter) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	r.Use(identityMiddleware(handler.auth))

	setupRoutes(r, handler, authLimiter)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, authLimiter *ratelimit.KeyedRateLimiter) {
	r.GET("/health", handler.GetHealth)
	r.GET("/sources", handler.ListSources)

	authGroup := r.Group("/auth")
	authGroup.Use(rateLimitMiddleware(authLimiter))
	{
		authGroup.POST("/signup", handler.SignUp)
		authGroup.POST("/login", handler.Login)
		authGroup.POST("/logout", requireIdentity(), handler.Logout)
		authGroup.POST("/password-reset", handler.RequestPasswordReset)
		authGroup.POST("/password-reset/confirm", handler.ConfirmPasswordReset)
		authGroup.GET("/me", requireIdentity(), handler.GetMe)
		authGroup.PATCH("/me", requireIdentity(), handler.UpdateMe)
	}

	sessions := r.Group("/sessions")
	{
		sessions.POST("", handler.CreateSession)
		sessions.GET("/:id", handler.GetSession)
		sessions.PATCH("/:id/state", handler.UpdateState)
		sessions.POST("/:id/retry", handler.RetrySession)
		sessions.DELETE("/:id", handler.DeleteSession)
		sessions.PUT("/:id/items/:item/overlay", requireIdentity(), handler.SetOverlay)
	}

	r.GET("/favorites", requireIdentity(), handler.ListFavorites)

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service":     "Catalog Comb",
			"version":     cfg.GetVersion(),
			"description": "Remote game catalog browser with per-user favorites and ratings",
			"endpoints": map[string]string{
				"health":    "/health",
				"sources":   "/sources",
				"auth":      "/auth/{signup,login,logout,me,password-reset}",
				"sessions":  "/sessions, /sessions/<id>, /sessions/<id>/state, /sessions/<id>/retry",
				"overlay":   "/sessions/<id>/items/<item>/overlay (PUT, requires Authorization: Bearer <token>)",
				"favorites": "/favorites?source=<name> (requires Authorization: Bearer <token>)",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}

// identityMiddleware resolves a bearer token to an identity when one is sent.
// Requests without a token continue signed out; a bad token is rejected.
func identityMiddleware(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid authorization header",
				"message": "Use Authorization: Bearer <token>",
			})
			return
		}

		identity, err := authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid token",
				"message": "The provided token is not valid or has expired",
			})
			return
		}

		c.Set(identityKey, identity)
		c.Set(tokenKey, token)
		c.Next()
	}
}

func requireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentIdentity(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Authentication required",
				"message": "Provide a token in Authorization: Bearer <token>",
			})
			return
		}
		c.Next()
	}
}

func rateLimitMiddleware(limiter *ratelimit.KeyedRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if !limiter.Allow(key) {
			slog.Warn("Rate limit exceeded", "ip", key, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please try again later."})
			return
		}
		c.Next()
	}
}

func currentIdentity(c *gin.Context) *auth.Identity {
	value, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, _ := value.(*auth.Identity)
	return identity
}

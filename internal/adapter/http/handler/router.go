package handler

import (
	"idle-market/config"
	"idle-market/internal/adapter/http/middleware"
	redisStore "idle-market/internal/adapter/storage/redis"
	"idle-market/internal/core/ports"
	"idle-market/internal/metrics"
	"idle-market/pkg/apperror"
	"idle-market/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	ListingSvc     ports.ListingService
	QuerySvc       ports.MarketQueryService
	TokenSvc       ports.TokenService
	Paging         Paging
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	RateLimits     config.RateLimitConfig
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Feed           gin.HandlerFunc    // nil = live feed disabled
	Mode           string
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	mode := deps.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(metrics.Middleware())
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.NoRoute(func(c *gin.Context) {
		response.Error(c, apperror.ErrNotFound("route"))
	})

	// Health check (deep, pings every configured dependency)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	rules := middleware.RateLimitRules(deps.RateLimits)

	// Helper: return rate limiter middleware if enabled, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil || !deps.RateLimits.Enabled {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	if deps.Feed != nil {
		v1.GET("/feed", rl(middleware.GroupRead), deps.Feed)
	}

	// Every market route identifies the caller by bearer token.
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	listingHandler := NewListingHandler(deps.ListingSvc, deps.QuerySvc, deps.Paging)
	accountHandler := NewAccountHandler(deps.QuerySvc, listingHandler)

	listings := v1.Group("/listings", jwtAuth)
	{
		listings.POST("", rl(middleware.GroupWrite), listingHandler.Create)
		listings.GET("", rl(middleware.GroupRead), listingHandler.List)
		listings.GET("/:id", rl(middleware.GroupRead), listingHandler.Get)
		listings.POST("/:id/purchase", rl(middleware.GroupWrite), listingHandler.Purchase)
		listings.POST("/:id/claim", rl(middleware.GroupWrite), listingHandler.Claim)
		listings.POST("/:id/cancel", rl(middleware.GroupWrite), listingHandler.Cancel)
	}

	accounts := v1.Group("/accounts/me", jwtAuth)
	{
		accounts.GET("", rl(middleware.GroupRead), accountHandler.Me)
		accounts.GET("/listings", rl(middleware.GroupRead), accountHandler.MyListings)
	}

	return r
}

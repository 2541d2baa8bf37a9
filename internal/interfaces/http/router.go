package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/orris-inc/checkout/docs"
	"github.com/orris-inc/checkout/internal/infrastructure/config"
	"github.com/orris-inc/checkout/internal/interfaces/http/handlers"
	"github.com/orris-inc/checkout/internal/interfaces/http/middleware"
	"github.com/orris-inc/checkout/internal/shared/logger"
	"github.com/orris-inc/checkout/internal/shared/version"
)

// ChallengeCallbackPath is where challenge frames report their load event.
const ChallengeCallbackPath = "/api/checkout/challenge"

// Router represents the HTTP router configuration
type Router struct {
	engine           *gin.Engine
	checkoutHandler  *handlers.CheckoutHandler
	challengeHandler *handlers.ChallengeHandler
	rateLimiter      *middleware.RateLimiter
	logger           logger.Interface
}

// NewRouter builds the router. Every handler runs against the shopper session
// of its request. rateLimiter may be nil.
func NewRouter(shoppers handlers.ShopperSource, rateLimiter *middleware.RateLimiter, log logger.Interface) *Router {
	return &Router{
		engine:           gin.New(),
		checkoutHandler:  handlers.NewCheckoutHandler(shoppers, log.Named("http.checkout")),
		challengeHandler: handlers.NewChallengeHandler(shoppers, log.Named("http.challenge")),
		rateLimiter:      rateLimiter,
		logger:           log,
	}
}

// SetupRoutes configures all HTTP routes
func (r *Router) SetupRoutes(cfg *config.Config) {
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Logger(r.logger))
	r.engine.Use(middleware.Recovery(r.logger))
	r.engine.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	r.engine.GET("/health", r.health)
	r.engine.GET("/version", r.version)

	if cfg.Server.Mode != gin.ReleaseMode {
		r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.setupPageRoutes()
	r.setupCheckoutRoutes()
}

// setupPageRoutes serves the document of a paused checkout
func (r *Router) setupPageRoutes() {
	r.engine.GET("/checkout/page", r.challengeHandler.CurrentPage)
}

// setupCheckoutRoutes configures the JSON checkout API
func (r *Router) setupCheckoutRoutes() {
	api := r.engine.Group("/api/checkout")
	api.Use(middleware.SecurityHeaders(), middleware.APIVersion())
	{
		api.POST("/payments", r.limit(), r.checkoutHandler.Pay)
		api.POST("/verify", r.checkoutHandler.Verify)
		api.GET("/payment-methods", r.checkoutHandler.ListPaymentMethods)

		api.GET("/cards", r.checkoutHandler.ListCards)
		api.POST("/cards", r.limit(), r.checkoutHandler.SaveCard)
		api.DELETE("/cards/:id", r.checkoutHandler.RemoveCard)

		api.GET("/fields", r.checkoutHandler.MountedContexts)
		api.POST("/fields", r.checkoutHandler.MountFields)
		api.DELETE("/fields", r.checkoutHandler.UnmountFields)

		api.GET("/page", r.challengeHandler.CurrentPageJSON)
		api.POST("/challenge/:frameID/loaded", r.challengeHandler.FrameLoaded)
	}
}

func (r *Router) limit() gin.HandlerFunc {
	if r.rateLimiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return r.rateLimiter.Limit()
}

func (r *Router) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (r *Router) version(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get())
}

// GetEngine returns the gin engine
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

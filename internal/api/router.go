package api

import (
	"net/http"
	"time"

	"github.com/example/ec-storefront/internal/api/middleware"
	"github.com/example/ec-storefront/internal/auth"
	"github.com/example/ec-storefront/internal/domain/account"
	"github.com/example/ec-storefront/internal/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig carries the cross-cutting dependencies of the router.
type RouterConfig struct {
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
}

func NewRouter(handlers *Handlers, authHandlers *AuthHandlers, jwtService *auth.JWTService, cfg RouterConfig) *gin.Engine {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Observability(cfg.Logger, cfg.Metrics))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", IdempotencyKeyHeader, middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))

	r.POST("/auth/register", authHandlers.Register)
	r.POST("/auth/login", authHandlers.Login)
	r.POST("/auth/logout", authHandlers.Logout)

	r.GET("/products", handlers.GetProducts)
	r.GET("/products/:id", handlers.GetProduct)

	// Authenticated
	authed := r.Group("/", middleware.AuthMiddleware(jwtService))
	{
		authed.GET("/me", authHandlers.Me)
		authed.GET("/me/products", handlers.GetMyProducts)

		// Products
		authed.POST("/products", handlers.CreateProduct)
		authed.PUT("/products/:id", handlers.UpdateProduct)
		authed.DELETE("/products/:id", handlers.DeleteProduct)
		authed.POST("/products/:id/stock", handlers.AdjustStock)

		// Cart
		authed.GET("/cart", handlers.GetCart)
		authed.DELETE("/cart", handlers.ClearCart)
		authed.POST("/cart/items", handlers.AddToCart)
		authed.POST("/cart/items/:productId/increase", handlers.IncreaseCartItem)
		authed.POST("/cart/items/:productId/decrease", handlers.DecreaseCartItem)
		authed.DELETE("/cart/items/:productId", handlers.RemoveFromCart)

		// Addresses
		authed.GET("/addresses", handlers.GetAddresses)
		authed.POST("/addresses", handlers.AddAddress)
		authed.DELETE("/addresses/:id", handlers.RemoveAddress)

		// Orders
		authed.POST("/orders", handlers.PlaceOrder)
		authed.GET("/orders", handlers.GetOrders)
		authed.GET("/orders/:id", handlers.GetOrder)
		authed.PUT("/orders/:id/cancel", handlers.CancelOrder)
	}

	admin := r.Group("/admin", middleware.AuthMiddleware(jwtService), middleware.RequireRole(account.RoleAdmin))
	{
		admin.PUT("/orders/:id/ship", handlers.ShipOrder)
		admin.PUT("/orders/:id/deliver", handlers.DeliverOrder)
	}

	return r
}

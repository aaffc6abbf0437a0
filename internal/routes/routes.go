package routes

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vivekcuts/vivekcuts-backend/internal/handlers"
	"github.com/vivekcuts/vivekcuts-backend/internal/middleware"
	"github.com/vivekcuts/vivekcuts-backend/internal/services"
	"go.uber.org/zap"
)

// Deps is everything the router hands out to handlers.
type Deps struct {
	AllowedOrigins []string
	JWTSecret      string

	// TrustedProxies and TrustedPlatform decide which forwarding headers
	// c.ClientIP() may read. Both empty means the peer address only.
	TrustedProxies  []string
	TrustedPlatform string

	OTP      *services.OTPService
	Payments *services.PaymentService
	Auth     *services.AuthService
	Catalog  *services.CatalogService
	Orders   *services.OrderService
	Hub      *services.Hub

	// LocalStorage is set only when files are served from disk.
	LocalStorage *services.LocalStorage
	DB           handlers.Pinger
	Log          *zap.Logger
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(deps.TrustedProxies); err != nil {
		deps.Log.Error("invalid trusted proxies, ignoring forwarding headers", zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.TrustedPlatform = trustedPlatform(deps.TrustedPlatform)
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(deps.Log))

	corsConfig := cors.DefaultConfig()
	if len(deps.AllowedOrigins) == 0 || deps.AllowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = deps.AllowedOrigins
	}
	corsConfig.AllowHeaders = []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	r.Use(cors.New(corsConfig))

	r.GET("/healthz", handlers.Health(deps.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Storefront delivery
	r.POST("/send-otp", handlers.SendOTP(deps.OTP))
	r.POST("/verify-otp", handlers.VerifyOTP(deps.OTP))
	r.POST("/create-razorpay-order", handlers.CreateRazorpayOrder(deps.Payments))
	r.POST("/verify-payment", handlers.VerifyPayment(deps.Payments))

	if deps.LocalStorage != nil {
		r.GET("/downloads/:token", handlers.ServeDownload(deps.LocalStorage))
	}

	api := r.Group("/api")
	{
		api.GET("/products", handlers.ListProducts(deps.Catalog))
		api.GET("/products/:id", handlers.GetProduct(deps.Catalog))

		loginThrottle := middleware.NewIPThrottle(12*time.Second, 5)
		api.POST("/admin/login", loginThrottle.Middleware(), handlers.AdminLogin(deps.Auth))

		api.GET("/admin/ws", middleware.AdminAuth(deps.JWTSecret, true), handlers.WebSocketHandler(deps.Hub))

		admin := api.Group("/admin")
		admin.Use(middleware.AdminAuth(deps.JWTSecret, false))
		{
			admin.POST("/products", handlers.CreateProduct(deps.Catalog))
			admin.PUT("/products/:id", handlers.UpdateProduct(deps.Catalog))
			admin.DELETE("/products/:id", handlers.DeleteProduct(deps.Catalog))
			admin.POST("/uploads", handlers.UploadFile(deps.Catalog))

			admin.GET("/orders", handlers.ListOrders(deps.Orders))
			admin.POST("/orders/:id/resend", handlers.ResendOrderLink(deps.Orders))
			admin.GET("/email-logs/failed", handlers.FailedEmails(deps.Orders))
		}
	}

	return r
}

func trustedPlatform(name string) string {
	switch strings.ToLower(name) {
	case "":
		return ""
	case "cloudflare":
		return gin.PlatformCloudflare
	case "google", "appengine":
		return gin.PlatformGoogleAppEngine
	default:
		return name
	}
}

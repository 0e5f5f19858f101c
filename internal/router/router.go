package router

import (
	"context"
	"time"

	"salonshop/config"
	"salonshop/internal/domain"
	"salonshop/internal/handler"
	"salonshop/internal/metrics"
	"salonshop/internal/middleware"
	"salonshop/internal/repository"
	"salonshop/internal/service"
	"salonshop/internal/ws"
	"salonshop/pkg/cloudinary"
	"salonshop/pkg/events"
	"salonshop/pkg/payment"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Deps are the external clients built in main. Images and Events may be nil.
type Deps struct {
	Gateway payment.Gateway
	Images  cloudinary.ImageStore
	Events  *events.Publisher
}

func Setup(cfg *config.Config, db *gorm.DB, deps Deps) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), metrics.Instrument())

	// Repositories
	userRepo := repository.NewUserRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)

	adminHub := ws.NewHub()

	// Services
	authSvc := service.NewAuthService(cfg, userRepo)
	if err := authSvc.SeedAdmin(); err != nil {
		log.Error().Err(err).Msg("[AUTH] admin seed failed")
	}
	fcmSvc := service.NewFCMService(cfg.Firebase.ServiceAccountPath)
	if fcmSvc != nil {
		log.Info().Msg("[FCM] push notifications enabled")
	} else {
		log.Info().Msg("[FCM] push notifications disabled: set FIREBASE_SERVICE_ACCOUNT_PATH to enable")
	}
	notifSvc := service.NewNotificationService(notificationRepo, userRepo, adminHub, fcmSvc, deps.Events)
	orderSvc := service.NewOrderService(orderRepo, productRepo, notifSvc)
	paymentSvc := service.NewPaymentService(orderRepo, notifSvc, deps.Gateway, cfg.Mpesa.CallbackURL())
	deliverySvc := service.NewDeliveryService(deliveryRepo, orderRepo, notifSvc)

	if stub, ok := deps.Gateway.(*payment.StubGateway); ok {
		stub.OnConfirm = func(ctx context.Context, cb *payment.Callback) {
			if err := paymentSvc.HandleCallback(ctx, cb); err != nil {
				log.Error().Err(err).Msg("[STUB] synthetic callback failed")
			}
		}
	}

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc)
	productHandler := handler.NewProductHandler(productRepo)
	uploadHandler := handler.NewUploadHandler(deps.Images, productRepo)
	orderHandler := handler.NewOrderHandler(orderSvc)
	mpesaHandler := handler.NewMpesaHandler(paymentSvc)
	mpesaWebhookHandler := handler.NewMpesaWebhookHandler(paymentSvc)
	adminHandler := handler.NewAdminHandler(orderSvc, authSvc, adminRepo)
	notificationHandler := handler.NewNotificationHandler(notifSvc)
	driverHandler := handler.NewDriverHandler(deliverySvc)

	authMw := middleware.AuthRequired(&cfg.JWT)
	optionalAuth := middleware.OptionalAuth(&cfg.JWT)

	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	r.GET("/metrics", metrics.Handler())

	// Gateway callbacks bypass the rate limiter.
	webhooks := r.Group("/api/v1/webhooks")
	webhooks.POST("/mpesa", mpesaWebhookHandler.Handle)

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(cfg.Server.RateLimit, 60*time.Second)))
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/fcm-token", authMw, authHandler.UpdateDeviceToken)
		}

		api.GET("/products", productHandler.List)
		api.GET("/products/:id", productHandler.Get)

		// Guests can check out; a signed-in customer gets the order on their account.
		api.POST("/orders", optionalAuth, orderHandler.Create)
		api.GET("/orders", authMw, orderHandler.ListMine)
		api.GET("/orders/:id", authMw, orderHandler.Get)

		payments := api.Group("/payments/mpesa")
		{
			payments.POST("/stk-push", mpesaHandler.STKPush)
			payments.POST("/query", mpesaHandler.Query)
		}

		admin := api.Group("/admin")
		admin.Use(authMw, middleware.RequireRole(domain.RoleAdmin))
		{
			admin.GET("/orders", adminHandler.ListOrders)
			admin.GET("/orders/:id", orderHandler.Get)
			admin.PATCH("/orders/:id/status", adminHandler.UpdateOrderStatus)
			admin.PATCH("/orders/:id/payment-reference", adminHandler.SetPaymentReference)
			admin.GET("/users", adminHandler.ListUsers)
			admin.POST("/users", adminHandler.CreateStaff)
			admin.PATCH("/users/:id/role", adminHandler.UpdateUserRole)
			admin.POST("/products", productHandler.Create)
			admin.PUT("/products/:id", productHandler.Update)
			admin.DELETE("/products/:id", productHandler.Delete)
			admin.POST("/products/:id/image", uploadHandler.UploadProductImage)
			admin.GET("/notifications", notificationHandler.List)
			admin.PUT("/notifications/:id/read", notificationHandler.MarkRead)
			admin.PUT("/notifications/read-all", notificationHandler.MarkAllRead)
		}

		driver := api.Group("/driver")
		driver.Use(authMw, middleware.RequireRole(domain.RoleDriver))
		{
			driver.GET("/jobs", driverHandler.AvailableJobs)
			driver.POST("/jobs/:orderId/accept", driverHandler.Accept)
			driver.GET("/deliveries/active", driverHandler.Active)
			driver.GET("/deliveries/completed", driverHandler.Completed)
			driver.POST("/deliveries/:id/advance", driverHandler.Advance)
		}
	}

	r.GET("/ws/admin", ws.UpgradeAdminWS(&cfg.JWT, adminHub))

	return r
}

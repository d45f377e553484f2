package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	handlers "github.com/clinicore/billing-engine/internal/adapter/handler/http"
	"github.com/clinicore/billing-engine/internal/config"
	"github.com/clinicore/billing-engine/internal/middleware/auth"
	"github.com/clinicore/billing-engine/internal/usecase"
	"github.com/clinicore/billing-engine/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Services are the use cases exposed over HTTP
type Services struct {
	Plans         *usecase.PlanService
	Coupons       *usecase.CouponService
	CouponAdmin   *usecase.CouponAdminService
	Checkout      *usecase.CheckoutService
	Subscriptions *usecase.SubscriptionService
	Webhooks      *usecase.WebhookService
}

type Server struct {
	config   *config.Config
	logger   *zap.Logger
	echo     *echo.Echo
	services Services
}

func NewServer(cfg *config.Config, logger *zap.Logger, services Services) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewRequestValidator()

	s := &Server{
		config:   cfg,
		logger:   logger,
		echo:     e,
		services: services,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupMiddleware() {
	logger.WithEchoLogger(s.echo, s.logger)

	s.echo.Use(middleware.RequestID())
	s.echo.Use(logger.NewEchoRequestLogger(s.logger))
	s.echo.Use(middleware.Recover())

	origins := s.config.Server.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE},
	}))
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
		})
	})

	plansHandler := handlers.NewPlansHandler(s.logger, s.services.Plans)
	couponHandler := handlers.NewCouponHandler(s.logger, s.services.Coupons, s.services.CouponAdmin)
	checkoutHandler := handlers.NewCheckoutHandler(s.logger, s.services.Checkout)
	subscriptionHandler := handlers.NewSubscriptionHandler(s.logger, s.services.Subscriptions)
	webhookHandler := handlers.NewWebhookHandler(s.logger, s.services.Webhooks)

	jwtConfig := auth.JWTConfig{
		Secret: s.config.Auth.JWTSecret,
		Logger: s.logger,
	}

	// API v1 routes
	v1 := s.echo.Group("/api/v1")

	// Public routes (no authentication required)
	v1.GET("/plans", plansHandler.GetPlans)
	v1.GET("/plans/discounts", plansHandler.GetDiscountTable)
	v1.GET("/coupons/:code/validate", couponHandler.ValidateCoupon)
	v1.POST("/checkout/quote", checkoutHandler.Quote)

	// Protected routes (require JWT authentication)
	protected := v1.Group("", auth.JWTMiddleware(jwtConfig))
	protected.POST("/checkout", checkoutHandler.CreateSubscription)
	protected.GET("/coupons/available", couponHandler.ListAvailableCoupons)

	subscriptions := protected.Group("/subscriptions")
	subscriptions.GET("", subscriptionHandler.ListSubscriptions)
	subscriptions.GET("/:id", subscriptionHandler.GetSubscription)
	subscriptions.GET("/:id/events", subscriptionHandler.ListEvents)
	subscriptions.POST("/:id/cancel", subscriptionHandler.CancelSubscription)
	subscriptions.POST("/:id/pause", subscriptionHandler.PauseSubscription)
	subscriptions.POST("/:id/resume", subscriptionHandler.ResumeSubscription)

	// Operator routes
	admin := protected.Group("/admin", auth.RequireRole(s.logger, s.config.Auth.AdminRole))
	admin.GET("/coupons", couponHandler.ListCoupons)
	admin.POST("/coupons", couponHandler.CreateCoupon)
	admin.GET("/coupons/report.csv", couponHandler.UsageReport)
	admin.PUT("/coupons/:code", couponHandler.UpdateCoupon)
	admin.POST("/coupons/:code/deactivate", couponHandler.DeactivateCoupon)
	admin.POST("/coupons/:code/uses", couponHandler.CorrectUses)
	admin.GET("/coupons/:code/redemptions", couponHandler.ListRedemptions)
	admin.GET("/subscriptions/:id/events", subscriptionHandler.AdminListEvents)
	admin.POST("/subscriptions/:id/cancel", subscriptionHandler.AdminCancelSubscription)

	// Provider webhooks (outside API versioning, authenticated by signature)
	s.echo.POST("/webhooks/:provider", webhookHandler.HandleWebhook)
}

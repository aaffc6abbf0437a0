package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/vivekcuts/vivekcuts-backend/internal/config"
	"github.com/vivekcuts/vivekcuts-backend/internal/database"
	"github.com/vivekcuts/vivekcuts-backend/internal/repositories"
	"github.com/vivekcuts/vivekcuts-backend/internal/routes"
	"github.com/vivekcuts/vivekcuts-backend/internal/services"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger, migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply migrations before serving")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, logger *zap.Logger, migrate bool) error {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return err
		}
		cfg.JWTSecret = secret
		logger.Warn("JWT_SECRET not set, using a per-process secret; admin sessions and local download links end on restart")
	}

	db, err := database.InitDB(cfg.Database, logger)
	if err != nil {
		return err
	}
	if migrate {
		if err := database.RunMigrations(db); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = services.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	storage, err := services.NewStorage(cfg.Storage, cfg.PublicBaseURL, cfg.JWTSecret, logger)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	localStorage, _ := storage.(*services.LocalStorage)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := services.NewHub(cfg.AllowedOrigins, logger)
	go hub.Run(hubCtx)

	var events services.EventPublisher = services.NewHubPublisher(hub)
	if redisClient != nil {
		relay := services.NewRedisPublisher(redisClient, logger)
		events = relay
		go func() {
			if err := relay.Relay(hubCtx, hub); err != nil {
				logger.Error("order event relay stopped", zap.Error(err))
			}
		}()
	}

	var limiter services.Limiter
	if cfg.RateLimit.Backend == config.RateLimitBackendRedis {
		limiter = services.NewRedisLimiter(redisClient, cfg.RateLimit.Max, cfg.RateLimit.Window)
	} else {
		limiter = services.NewSQLLimiter(repositories.NewRateLimitRepository(db), cfg.RateLimit.Max, cfg.RateLimit.Window)
	}

	var gateway services.PaymentGateway
	if cfg.Razorpay.Configured() {
		gateway = services.NewRazorpayClient(cfg.Razorpay.BaseURL, cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret)
	} else {
		logger.Warn("Razorpay credentials missing, paid checkout disabled")
	}

	verifications := repositories.NewVerificationRepository(db)
	products := repositories.NewProductRepository(db)
	orders := repositories.NewOrderRepository(db)
	emailLogs := repositories.NewEmailLogRepository(db)
	admins := repositories.NewAdminRepository(db)

	tasks := services.NewTaskRunner(logger, 10*time.Second)
	mailer := services.NewMailer(cfg.Mail)
	delivery := services.NewDelivery(storage, mailer, emailLogs, tasks, events, cfg.OTP.DownloadLinkTTL, logger)

	otpService := services.NewOTPService(
		verifications,
		products,
		orders,
		limiter,
		services.NewTurnstileVerifier(cfg.Captcha.SecretKey, cfg.Captcha.VerifyURL),
		mailer,
		delivery,
		services.OTPConfig{
			CodeTTL:     cfg.OTP.TTL,
			MaxAttempts: cfg.OTP.MaxAttempts,
			QuotaMax:    cfg.RateLimit.Max,
		},
		logger,
	)

	router := routes.NewRouter(routes.Deps{
		AllowedOrigins:  cfg.AllowedOrigins,
		JWTSecret:       cfg.JWTSecret,
		TrustedProxies:  cfg.TrustedProxies,
		TrustedPlatform: cfg.TrustedPlatform,
		OTP:             otpService,
		Payments:        services.NewPaymentService(gateway, products, orders, delivery, cfg.Razorpay.Currency, logger),
		Auth:            services.NewAuthService(admins, cfg.JWTSecret, logger),
		Catalog:         services.NewCatalogService(products, storage, logger),
		Orders:          services.NewOrderService(orders, products, emailLogs, delivery, logger),
		Hub:             hub,
		LocalStorage:    localStorage,
		DB:              sqlDB,
		Log:             logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr), zap.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	tasks.Wait()
	stopHub()
	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

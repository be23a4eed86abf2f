package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pgmhq/pgm-backend/internal/admins"
	"github.com/pgmhq/pgm-backend/internal/bootstrap"
	"github.com/pgmhq/pgm-backend/internal/config"
	"github.com/pgmhq/pgm-backend/internal/handler"
	"github.com/pgmhq/pgm-backend/internal/health"
	"github.com/pgmhq/pgm-backend/internal/identity"
	"github.com/pgmhq/pgm-backend/internal/otp"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: search configs/pgm.yaml)")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(*configPath, logger); err != nil {
		logger.Fatal("pgm-server exited with error", zap.Error(err))
	}
}

func run(configPath string, logger *zap.Logger) error {
	// ── Configuration ────────────────────────────────────────────────────────
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.File == "" {
		logger.Warn("no config file found, using defaults and env vars")
	} else {
		logger.Info("config loaded", zap.String("file", cfg.File))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Database ─────────────────────────────────────────────────────────────
	db, err := bootstrap.Postgres(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	res := &bootstrap.Resources{DB: db}
	defer res.Close()
	logger.Info("connected to postgres")

	// ── OTP engine ───────────────────────────────────────────────────────────
	store, err := bootstrap.OTPStore(ctx, cfg, res, logger)
	if err != nil {
		return err
	}
	mailer := bootstrap.Mailer(cfg.Email, logger)

	engine := otp.NewEngine(store, otp.NewDigitGenerator(), mailer, cfg.OTP.Expiry(), logger)
	engine.SetMetricsRecord(handler.RecordOTPEvent)
	logger.Info("otp engine ready", zap.Duration("expiry", engine.Expiry()))

	sweeper := otp.NewSweeper(engine, cfg.OTP.SweepInterval, logger)
	if err := sweeper.Start(); err != nil {
		return err
	}

	// ── Wire up layers ───────────────────────────────────────────────────────
	tokens, err := identity.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Server.IssuerURL, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("auth.jwt_secret: %w", err)
	}

	adminSvc := admins.NewService(admins.NewRepository(db), engine, logger)
	authHandler := handler.NewAuthHandler(adminSvc, tokens, logger)

	checker := health.New(health.Config{}, logger)
	checker.SetMetricsRecord(handler.RecordHealthCheck)
	checker.Register("postgres", db.Ping)
	if res.Redis != nil {
		checker.Register("redis", func(ctx context.Context) error { return res.Redis.Ping(ctx).Err() })
	}

	// ── HTTP Router ──────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsOrigins := cfg.Server.CORSOrigins
	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(corsOrigins),
		MaxAge:           12 * time.Hour,
	}))

	// Security headers
	router.Use(func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Cache-Control", "no-store")
		c.Next()
	})

	// Request body size limit (64 KB)
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 64<<10)
		c.Next()
	})

	if rps := cfg.Server.RateLimitRPS; rps > 0 {
		burst := int(rps * 2)
		if burst < 1 {
			burst = 1
		}
		router.Use(handler.RateLimiter(ctx, rps, burst))
	}

	router.Use(handler.PrometheusMiddleware())
	router.Use(requestLogger(logger))

	router.GET("/healthz", handler.HealthHandler(checker))
	router.GET("/metrics", handler.MetricsHandler())

	v1 := router.Group("/api/v1")
	authHandler.Register(v1)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		logger.Info("pgm HTTP listening", zap.Int("port", cfg.Server.Port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-srvErr:
		runErr = fmt.Errorf("http listen: %w", runErr)
	}
	logger.Info("shutting down pgm-server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
	sweeper.Stop(shutdownCtx)

	logger.Info("pgm-server stopped")
	return runErr
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

// requestLogger returns a Gin middleware that logs each request with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/taskvault/taskvault-api/internal/core/port"
	"github.com/taskvault/taskvault-api/internal/infra/config"
	"github.com/taskvault/taskvault-api/internal/infra/database"
	kafkainfra "github.com/taskvault/taskvault-api/internal/infra/kafka"
	"github.com/taskvault/taskvault-api/internal/infra/logger"
	"github.com/taskvault/taskvault-api/internal/infra/mail"
	redisinfra "github.com/taskvault/taskvault-api/internal/infra/redis"
	"github.com/taskvault/taskvault-api/internal/infra/security"
	"github.com/taskvault/taskvault-api/internal/infra/telemetry"
	postgresrepo "github.com/taskvault/taskvault-api/internal/repository/postgres"
	redisrepo "github.com/taskvault/taskvault-api/internal/repository/redis"
	"github.com/taskvault/taskvault-api/internal/transport/http/middleware"
	"github.com/taskvault/taskvault-api/internal/transport/http/routes"
	"github.com/taskvault/taskvault-api/internal/usecase"
)

// Application owns the wired service graph and the HTTP server lifecycle.
type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	tracer *telemetry.TracerProvider
}

// New builds the full dependency graph from configuration.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	var tracer *telemetry.TracerProvider
	if cfg.Telemetry.OTLPEndpoint != "" {
		tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	tokens, err := security.NewTokenService(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret, cfg.App.Name)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init token service: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)
	otpStore := redisrepo.NewOTPRepository(redisClient.Client(), cfg.Redis.OTPPrefix)
	grantStore := redisrepo.NewResetGrantRepository(redisClient.Client(), "taskvault:reset-grant")

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	var mailer port.Mailer
	if cfg.SMTP.Host != "" {
		mailer = mail.NewSMTPMailer(cfg.SMTP, log)
	} else {
		log.Info("smtp not configured, passcodes are logged and surfaced in responses")
		mailer = mail.NewDevMailer(log)
	}

	if cfg.Uploads.Dir != "" {
		if err := os.MkdirAll(cfg.Uploads.Dir, 0o755); err != nil {
			pool.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("create uploads dir: %w", err)
		}
	}

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: "taskvault:rate-limit",
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	metrics, err := middleware.NewHTTPMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	otpManager := usecase.NewOTPManager(otpStore, repos.Users, mailer, log)
	authService := usecase.NewAuthService(repos.Users, otpManager, tokens, eventPublisher, log)
	registrationService := usecase.NewRegistrationService(repos.Users, otpManager, authService, eventPublisher, log)
	userService := usecase.NewUserService(repos.Users, log)
	taskService := usecase.NewTaskService(repos.Tasks, log)
	passwordResetService := usecase.NewPasswordResetService(repos.Users, otpManager, grantStore, eventPublisher, log)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Metrics:     metrics,
		Tokens:      tokens,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:          authService,
			Registration:  registrationService,
			Users:         userService,
			Tasks:         taskService,
			PasswordReset: passwordResetService,
			OTPs:          otpManager,
		},
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		tracer: tracer,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.tracer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = a.tracer.Shutdown(shutdownCtx)
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting taskvault API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

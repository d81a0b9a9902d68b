package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/taskvault/taskvault-api/internal/infra/config"
	"github.com/taskvault/taskvault-api/internal/infra/security"
	"github.com/taskvault/taskvault-api/internal/transport/http/handlers"
	"github.com/taskvault/taskvault-api/internal/transport/http/middleware"
	"github.com/taskvault/taskvault-api/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth          *usecase.AuthService
	Registration  *usecase.RegistrationService
	Users         *usecase.UserService
	Tasks         *usecase.TaskService
	PasswordReset *usecase.PasswordResetService
	OTPs          *usecase.OTPManager
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Services    ServiceSet
	Tokens      *security.TokenService
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.CORS.AllowedOrigins))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	authMiddleware := middleware.RequireAuth(deps.Tokens)

	healthOptions := make([]handlers.HealthOption, 0, 2)

	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}

	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if dir := deps.Config.Uploads.Dir; dir != "" {
		r.Static("/uploads", dir)
	}

	cookies := handlers.NewCookieHelper(deps.Config.Cookie, deps.Config.App.IsProduction())

	api := r.Group("/api/v1")
	{
		authHandler := handlers.NewAuthHandler(
			deps.Services.Auth,
			deps.Services.Registration,
			deps.Services.OTPs,
			cookies,
			deps.Config.Uploads.Dir,
			deps.Logger,
		)
		passwordHandler := handlers.NewPasswordHandler(deps.Services.PasswordReset, deps.Services.OTPs, deps.Logger)

		authGroup := api.Group("/auth")
		authGroup.POST("/register", withRule(deps, registerRule(deps), authHandler.Register)...)
		authGroup.POST("/verify-otp", withRule(deps, loginRule(deps), authHandler.VerifyOTP)...)
		authGroup.POST("/resend-otp", withRule(deps, passwordResetRule(deps), authHandler.ResendOTP)...)
		authGroup.POST("/login", withRule(deps, loginRule(deps), authHandler.Login)...)
		authGroup.POST("/login-otp", withRule(deps, loginRule(deps), authHandler.LoginOTP)...)
		authGroup.POST("/refresh-token", withRule(deps, refreshRule(deps), authHandler.RefreshToken)...)
		authGroup.POST("/logout", authHandler.Logout)

		authGroup.POST("/forgot-password", withRule(deps, passwordResetRule(deps), passwordHandler.ForgotPassword)...)
		authGroup.POST("/verify-forgot-password-otp", withRule(deps, passwordResetRule(deps), passwordHandler.VerifyForgotPasswordOTP)...)
		authGroup.POST("/change-password", middleware.OptionalAuth(deps.Tokens), passwordHandler.ChangePassword)

		profileHandler := handlers.NewProfileHandler(deps.Services.Users, authHandler, deps.Config.Uploads.Dir, deps.Logger)
		authGroup.GET("/profile", authMiddleware, profileHandler.Get)
		authGroup.PUT("/profile", authMiddleware, profileHandler.Update)

		taskHandler := handlers.NewTaskHandler(deps.Services.Tasks, deps.Logger)
		taskGroup := api.Group("/tasks")
		taskGroup.Use(authMiddleware)
		taskGroup.POST("", taskHandler.Create)
		taskGroup.GET("", taskHandler.List)
		taskGroup.GET("/:id", taskHandler.Get)
		taskGroup.PUT("/:id", taskHandler.Update)
		taskGroup.DELETE("/:id", taskHandler.Delete)
	}

	return r
}

// withRule prefixes the handler with a rate-limit middleware when the rule is
// enabled, and falls through to the bare handler otherwise.
func withRule(deps Dependencies, rule *middleware.RateLimitRule, handler gin.HandlerFunc) []gin.HandlerFunc {
	if deps.RateLimiter == nil || rule == nil {
		return []gin.HandlerFunc{handler}
	}
	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(*rule), handler}
}

func loginRule(deps Dependencies) *middleware.RateLimitRule {
	return buildRule(deps, "auth_login_ip", deps.Config.RateLimit.LoginMaxAttempts)
}

func registerRule(deps Dependencies) *middleware.RateLimitRule {
	return buildRule(deps, "auth_register_ip", deps.Config.RateLimit.RegisterMaxAttempts)
}

func refreshRule(deps Dependencies) *middleware.RateLimitRule {
	return buildRule(deps, "auth_refresh_ip", deps.Config.RateLimit.RefreshMaxAttempts)
}

func passwordResetRule(deps Dependencies) *middleware.RateLimitRule {
	return buildRule(deps, "password_reset_ip", deps.Config.RateLimit.PasswordResetMaxAttempts)
}

func buildRule(deps Dependencies, name string, limit int) *middleware.RateLimitRule {
	if deps.Config == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	return &middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}
}

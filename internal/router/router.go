package router

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"

	"bookshelf/internal/config"
	apperrors "bookshelf/internal/errors"
	"bookshelf/internal/handler"
)

// TokenValidator resolves a presented session token to the subject email.
type TokenValidator interface {
	Validate(token string) (string, error)
}

// Deps bundles everything the routes need.
type Deps struct {
	Config      *config.Config
	Logger      *slog.Logger
	Tokens      TokenValidator
	Gatherer    prometheus.Gatherer
	AuthHandler *handler.AuthHandler
	Health      *handler.HealthHandler
}

// Register wires routes and middleware.
func Register(e *echo.Echo, deps Deps) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))
	e.Use(middleware.Recover())

	// Add validator
	e.Validator = NewValidator()

	e.GET("/healthz", deps.Health.Check)
	if deps.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	authGroup := e.Group(deps.Config.AuthPrefix())

	// Public routes
	authGroup.POST("/register", deps.AuthHandler.Register)
	authGroup.POST("/verify_registration", deps.AuthHandler.VerifyRegistration)
	authGroup.POST("/login", deps.AuthHandler.Login)
	authGroup.POST("/logout", deps.AuthHandler.Logout)

	// Secured routes (require a valid session token)
	authGroup.POST("/refresh_token", deps.AuthHandler.Refresh, RequireToken(deps.Tokens))
}

// RequireToken accepts a session token from the Authorization bearer header or the
// access_token cookie and stores the subject email under handler.IdentityContextKey.
// Every rejection produces the same 401 response.
func RequireToken(tokens TokenValidator) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  handler.IdentityContextKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ,cookie:" + handler.AccessTokenCookie,
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			return tokens.Validate(auth)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return unauthorized()
		},
	})
}

func unauthorized() error {
	httpErr := apperrors.MapErrorToHTTP(apperrors.ErrInvalidToken)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}
			if v.Error != nil && v.Status >= http.StatusInternalServerError {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			logger.LogAttrs(context.Background(), level, "request", attrs...)
			return nil
		},
	})
}

// NewValidator reports field errors under their json names.
func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &CustomValidator{validator: v}
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

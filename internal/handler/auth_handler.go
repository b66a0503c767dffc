package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"bookshelf/internal/errors"
	"bookshelf/internal/model"
	"bookshelf/internal/service"
)

// Cookie names set on successful authentication.
const (
	AccessTokenCookie = "access_token"
	LoggedInCookie    = "logged_in"
)

// IdentityContextKey is where the token middleware stores the authenticated email.
const IdentityContextKey = "user"

// CookieConfig controls session cookie attributes that depend on the deployment.
type CookieConfig struct {
	Secure bool
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService service.AuthService
	cookies     CookieConfig
	now         func() time.Time
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{authService: authService, cookies: cookies, now: time.Now}
}

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Email           string  `json:"email" validate:"required,email"`
	Password        string  `json:"password" validate:"required,min=8"`
	ConfirmPassword string  `json:"confirm_password" validate:"required"`
	FirstName       *string `json:"first_name,omitempty" validate:"omitempty,max=255"`
	LastName        *string `json:"last_name,omitempty" validate:"omitempty,max=255"`
	Photo           *string `json:"photo,omitempty" validate:"omitempty,url"`
}

// VerifyRequest represents an OTP verification request.
type VerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,number"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// UserResponse wraps a created user.
type UserResponse struct {
	Status string      `json:"status"`
	User   *model.User `json:"user"`
}

// AuthResponse represents an authentication response.
type AuthResponse struct {
	Status      string      `json:"status"`
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int         `json:"expires_in"`
	User        *model.User `json:"user"`
}

// Register godoc
// @Summary Register a new user
// @Description Creates an unverified account and issues a verification code. Registering again while verification is pending issues a new code and returns 403.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration data"
// @Success 201 {object} UserResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.authService.Register(c.Request().Context(), service.RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Photo:           req.Photo,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusCreated, UserResponse{Status: "success", User: user})
}

// VerifyRegistration godoc
// @Summary Verify a registration code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body VerifyRequest true "Email and code"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/verify_registration [post]
func (h *AuthHandler) VerifyRegistration(c echo.Context) error {
	var req VerifyRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	session, err := h.authService.VerifyRegistration(c.Request().Context(), req.Email, req.OTP)
	if err != nil {
		return toHTTPError(err)
	}
	return h.respondSession(c, session)
}

// Login godoc
// @Summary Login user
// @Description Unknown email and wrong password produce the same response. An unverified account receives a new code and 403.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	session, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return toHTTPError(err)
	}
	return h.respondSession(c, session)
}

// Refresh godoc
// @Summary Refresh access token
// @Description Requires a valid token in the Authorization header or the access_token cookie.
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} AuthResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/refresh_token [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	email, ok := c.Get(IdentityContextKey).(string)
	if !ok || email == "" {
		return toHTTPError(errors.ErrInvalidToken)
	}

	session, err := h.authService.Refresh(c.Request().Context(), email)
	if err != nil {
		return toHTTPError(err)
	}
	return h.respondSession(c, session)
}

// Logout godoc
// @Summary Logout user
// @Description Clears the session cookies. Issued tokens stay valid until they expire.
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(h.cookie(AccessTokenCookie, "", -1, true))
	c.SetCookie(h.cookie(LoggedInCookie, "", -1, false))
	return c.JSON(http.StatusOK, map[string]string{"status": "success"})
}

func (h *AuthHandler) respondSession(c echo.Context, session *service.Session) error {
	maxAge := int(session.ExpiresIn / time.Second)
	c.SetCookie(h.cookie(AccessTokenCookie, session.AccessToken, maxAge, true))
	c.SetCookie(h.cookie(LoggedInCookie, "True", maxAge, false))

	return c.JSON(http.StatusOK, AuthResponse{
		Status:      "success",
		AccessToken: session.AccessToken,
		TokenType:   "bearer",
		ExpiresIn:   maxAge,
		User:        session.User,
	})
}

func (h *AuthHandler) cookie(name, value string, maxAge int, httpOnly bool) *http.Cookie {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: httpOnly,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		cookie.Expires = h.now().Add(time.Duration(maxAge) * time.Second)
	}
	return cookie
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid request body",
			Code:  string(errors.KindValidation),
		})
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: validationMessage(err),
			Code:  string(errors.KindValidation),
		})
	}
	return nil
}

func toHTTPError(err error) *echo.HTTPError {
	httpErr := errors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}

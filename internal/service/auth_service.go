package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"bookshelf/internal/auth"
	apperrors "bookshelf/internal/errors"
	"bookshelf/internal/metrics"
	"bookshelf/internal/model"
	"bookshelf/internal/notify"
	"bookshelf/internal/repository"
)

// dummyPassword is hashed once at construction so that logins for unknown emails
// spend the same time in the hasher as logins with a wrong password.
const dummyPassword = "bookshelf-timing-equalizer"

// RegisterInput carries a self-registration request.
type RegisterInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	FirstName       *string
	LastName        *string
	Photo           *string
}

// Session is the result of a successful authentication.
type Session struct {
	AccessToken string
	ExpiresIn   time.Duration
	User        *model.User
}

// TokenIssuer mints session tokens for a user email.
type TokenIssuer interface {
	IssueDefault(email string) (string, error)
	AccessTTL() time.Duration
}

// AuthService handles registration, verification, login and token refresh.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*model.User, error)
	VerifyRegistration(ctx context.Context, email, otp string) (*Session, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	Refresh(ctx context.Context, email string) (*Session, error)
}

type authService struct {
	users      repository.UserRepository
	hasher     auth.PasswordHasher
	otps       auth.OTPGenerator
	tokens     TokenIssuer
	dispatcher notify.OTPDispatcher
	logger     *slog.Logger
	dummyHash  string
	now        func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	users repository.UserRepository,
	hasher auth.PasswordHasher,
	otps auth.OTPGenerator,
	tokens TokenIssuer,
	dispatcher notify.OTPDispatcher,
	logger *slog.Logger,
) (AuthService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &authService{
		users:      users,
		hasher:     hasher,
		otps:       otps,
		tokens:     tokens,
		dispatcher: dispatcher,
		logger:     logger.With(slog.String("component", "auth_service")),
		dummyHash:  dummyHash,
		now:        time.Now,
	}, nil
}

// Register creates an unverified account and issues its first verification code.
// Registering again while the account is pending issues a fresh code and fails with ErrForbidden.
func (s *authService) Register(ctx context.Context, in RegisterInput) (_ *model.User, err error) {
	defer s.record(metrics.OpRegister, &err)

	if in.Password != in.ConfirmPassword {
		return nil, apperrors.ErrPasswordMismatch
	}
	email := model.NormalizeEmail(in.Email)

	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Verified {
			return nil, apperrors.ErrConflict
		}
		current, err := s.reissueOTP(ctx, existing)
		if err != nil {
			return nil, err
		}
		if current != nil {
			// Verified between our read and the code rotation.
			return nil, apperrors.ErrConflict
		}
		return nil, apperrors.ErrForbidden
	case !errors.Is(err, repository.ErrNotFound):
		return nil, s.wrap(err, email, "check account existence")
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, s.wrap(err, email, "hash password")
	}
	code, err := s.otps.Generate()
	if err != nil {
		return nil, s.wrap(err, email, "generate otp")
	}

	created, err := s.users.Insert(ctx, &model.User{
		Email:        email,
		PasswordHash: passwordHash,
		Verified:     false,
		OTP:          &code,
		Role:         model.DefaultRole,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Photo:        in.Photo,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			// Lost an insert race against a concurrent registration.
			return nil, apperrors.ErrConflict
		}
		return nil, s.wrap(err, email, "create user")
	}

	s.dispatch(ctx, created.Email, code, notify.PurposeRegistration)
	s.logger.InfoContext(ctx, "user registered", slog.String("email", created.Email), slog.String("user_id", created.ID.String()))
	return created.Sanitized(), nil
}

// VerifyRegistration completes a pending verification when otp matches the stored code.
func (s *authService) VerifyRegistration(ctx context.Context, email, otp string) (session *Session, err error) {
	defer s.record(metrics.OpVerify, &err)

	email = model.NormalizeEmail(email)
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrIncorrectEmail
		}
		return nil, s.wrap(err, email, "find user")
	}

	if !user.HasPendingOTP() || subtle.ConstantTimeCompare([]byte(*user.OTP), []byte(otp)) != 1 {
		return nil, apperrors.ErrIncorrectCode
	}

	verified := true
	updated, err := s.users.ConditionalUpdate(ctx, user.ID,
		repository.UserCondition{OTP: &otp},
		repository.UserChanges{ClearOTP: true, Verified: &verified},
	)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, s.wrap(err, email, "mark user verified")
	}

	s.logger.InfoContext(ctx, "user verified", slog.String("email", updated.Email))
	return s.newSession(updated)
}

// Login checks credentials. Unknown emails and wrong passwords fail identically.
// An unverified account gets a fresh code and fails with ErrForbidden.
func (s *authService) Login(ctx context.Context, email, password string) (session *Session, err error) {
	defer s.record(metrics.OpLogin, &err)

	email = model.NormalizeEmail(email)
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, s.wrap(err, email, "find user")
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}

	if !user.Verified {
		current, err := s.reissueOTP(ctx, user)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, apperrors.ErrForbidden
		}
		user = current
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("email", user.Email))
	return s.newSession(user)
}

// Refresh mints a new token for an identity that already passed token validation.
func (s *authService) Refresh(ctx context.Context, email string) (session *Session, err error) {
	defer s.record(metrics.OpRefresh, &err)

	email = model.NormalizeEmail(email)
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, s.wrap(err, email, "find user")
	}
	return s.newSession(user)
}

// reissueOTP replaces the pending code of an unverified user in one conditional update.
// When the account was verified concurrently no code is issued and the verified record is
// returned instead; it is nil after a successful rotation.
func (s *authService) reissueOTP(ctx context.Context, user *model.User) (*model.User, error) {
	code, err := s.otps.Generate()
	if err != nil {
		return nil, s.wrap(err, user.Email, "generate otp")
	}

	unverified := false
	updated, err := s.users.ConditionalUpdate(ctx, user.ID,
		repository.UserCondition{Verified: &unverified},
		repository.UserChanges{OTP: &code},
	)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return s.reloadVerified(ctx, user)
		}
		return nil, s.wrap(err, user.Email, "reissue otp")
	}

	s.dispatch(ctx, updated.Email, code, notify.PurposeResend)
	return nil, nil
}

// reloadVerified explains a missed rotation: the record is either gone or now verified.
func (s *authService) reloadVerified(ctx context.Context, user *model.User) (*model.User, error) {
	current, err := s.users.FindByID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, s.wrap(err, user.Email, "reload user")
	}
	if !current.Verified {
		return nil, apperrors.ErrNotFound
	}
	return current, nil
}

func (s *authService) newSession(user *model.User) (*Session, error) {
	token, err := s.tokens.IssueDefault(user.Email)
	if err != nil {
		return nil, s.wrap(err, user.Email, "issue token")
	}
	return &Session{AccessToken: token, ExpiresIn: s.tokens.AccessTTL(), User: user.Sanitized()}, nil
}

// dispatch hands the code to delivery. Failures are logged only: the account state is already
// persisted and the user can request another code by retrying.
func (s *authService) dispatch(ctx context.Context, email, code, purpose string) {
	metrics.RecordOTPIssued(purpose)
	if s.dispatcher == nil {
		return
	}
	msg := notify.OTPMessage{Email: email, Code: code, Purpose: purpose, IssuedAt: s.now().UTC()}
	if err := s.dispatcher.Dispatch(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "otp dispatch failed",
			slog.String("email", email),
			slog.String("purpose", purpose),
			slog.Any("error", err),
		)
	}
}

func (s *authService) wrap(err error, email, action string) error {
	return oops.In("auth_service").With("email", email).Wrapf(err, "%s", action)
}

func (s *authService) record(operation string, errp *error) {
	if *errp == nil {
		metrics.RecordOperation(operation, "")
		return
	}
	code := apperrors.MapErrorToHTTP(*errp).Code
	metrics.RecordOperation(operation, code)
	if code == "INTERNAL_ERROR" {
		s.logger.Error("auth operation failed", slog.String("operation", operation), slog.Any("error", *errp))
	}
}

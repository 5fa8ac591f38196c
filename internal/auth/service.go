// Package auth implements the account credential lifecycle and request
// authentication.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/tourbook-backend/internal/resource"
	"github.com/angelmondragon/tourbook-backend/internal/users"
	pkgAuth "github.com/angelmondragon/tourbook-backend/pkg/auth"
	"github.com/angelmondragon/tourbook-backend/pkg/config"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/mailer"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	invalidCredentialsMessage = "Incorrect email or password"
	missingCredentialsMessage = "Please provide email and password!"
	notLoggedInMessage        = "You are not logged in! Please log in to get access."
	invalidTokenMessage       = "Invalid or expired token. Please log in again!"
	userGoneMessage           = "The user belonging to this token no longer exists."
	passwordChangedMessage    = "User recently changed password! Please log in again."
	sessionEndedMessage       = "This session has ended. Please log in again."
	resetInvalidMessage       = "Token is invalid or has expired"
	resetSentMessage          = "If that email is registered, a reset link is on its way."
	resetMailFailedMessage    = "There was an error sending the email. Try again later!"
	minPasswordLength         = 8
)

// Failure reasons reported to the metrics recorder.
const (
	ReasonBadCredentials  = "bad_credentials"
	ReasonInvalidToken    = "invalid_token"
	ReasonRevoked         = "revoked"
	ReasonUserGone        = "user_gone"
	ReasonPasswordChanged = "password_changed"
)

// Service defines the behavior needed by the auth controller and the
// access control middleware.
type Service interface {
	Signup(ctx context.Context, req SignupRequest) (*Session, error)
	Login(ctx context.Context, req LoginRequest) (*Session, error)
	Logout(ctx context.Context, claims *pkgAuth.AccessTokenClaims) error
	Authenticate(ctx context.Context, token string) (*Principal, error)
	ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (string, error)
	ResetPassword(ctx context.Context, token string, req ResetPasswordRequest) (*Session, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, req UpdatePasswordRequest) (*Session, error)
}

// Principal is an authenticated caller.
type Principal struct {
	User   *models.User
	Claims *pkgAuth.AccessTokenClaims
}

type passwordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

type revocationList interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Recorder counts authentication failures by reason.
type Recorder interface {
	AuthFailure(reason string)
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	DB          *gorm.DB
	Hasher      passwordHasher
	Revocations revocationList
	Mailer      mailer.Mailer
	Logger      *logger.Logger
	Metrics     Recorder
	JWTConfig   config.JWTConfig
	ResetTTL    time.Duration
	PublicURL   string
	Now         func() time.Time
}

type service struct {
	db          *gorm.DB
	users       *users.Repository
	accounts    *resource.Service[models.User, *models.User]
	hasher      passwordHasher
	revocations revocationList
	mailer      mailer.Mailer
	logg        *logger.Logger
	metrics     Recorder
	jwtCfg      config.JWTConfig
	resetTTL    time.Duration
	publicURL   string
	now         func() time.Time
}

// NewService constructs the auth service. Revocations and Metrics are
// optional.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database is required")
	}
	if params.Hasher == nil {
		return nil, fmt.Errorf("password hasher is required")
	}
	if params.Mailer == nil {
		return nil, fmt.Errorf("mailer is required")
	}
	clock := params.Now
	if clock == nil {
		clock = time.Now
	}
	// Tokens carry microsecond issue times; password changes are stamped
	// at the same precision so a fresh session is never stale.
	now := func() time.Time { return clock().UTC().Truncate(time.Microsecond) }
	resetTTL := params.ResetTTL
	if resetTTL <= 0 {
		resetTTL = 10 * time.Minute
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		db:          params.DB,
		users:       users.NewRepository(params.DB),
		accounts:    resource.NewService[models.User](params.DB, users.Descriptor),
		hasher:      params.Hasher,
		revocations: params.Revocations,
		mailer:      params.Mailer,
		logg:        logg,
		metrics:     params.Metrics,
		jwtCfg:      params.JWTConfig,
		resetTTL:    resetTTL,
		publicURL:   strings.TrimRight(params.PublicURL, "/"),
		now:         now,
	}, nil
}

func (s *service) Signup(ctx context.Context, req SignupRequest) (*Session, error) {
	if err := checkNewPassword(req.Password, req.PasswordConfirm); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Active:       true,
	}
	if err := s.accounts.Insert(ctx, user); err != nil {
		return nil, err
	}

	msg := mailer.Welcome(user.Email, user.Name, s.publicURL+"/me")
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("welcome mail failed: %v", err))
	}
	return s.issue(user, s.now())
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, missingCredentialsMessage)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.fail(ReasonBadCredentials)
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	valid, err := s.hasher.Verify(req.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		s.fail(ReasonBadCredentials)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return s.issue(user, s.now())
}

// Logout revokes the presented token until it would have expired.
func (s *service) Logout(ctx context.Context, claims *pkgAuth.AccessTokenClaims) error {
	if claims == nil || s.revocations == nil || claims.ID == "" {
		return nil
	}
	if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAtTime()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke token")
	}
	return nil
}

// Authenticate resolves a bearer token into its user. Every failure is
// NotAuthenticated.
func (s *service) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if strings.TrimSpace(token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, notLoggedInMessage)
	}

	claims, err := pkgAuth.ParseAccessToken(s.jwtCfg, s.now(), token)
	if err != nil {
		s.fail(ReasonInvalidToken)
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, invalidTokenMessage)
	}

	if s.revocations != nil {
		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check token revocation")
		}
		if revoked {
			s.fail(ReasonRevoked)
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, sessionEndedMessage)
		}
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.fail(ReasonUserGone)
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, userGoneMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	if user.ChangedPasswordAfter(claims.IssuedAtTime()) {
		s.fail(ReasonPasswordChanged)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, passwordChangedMessage)
	}
	return &Principal{User: user, Claims: claims}, nil
}

func (s *service) issue(user *models.User, now time.Time) (*Session, error) {
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, now, user.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &Session{Token: token, ExpiresAt: now.Add(s.jwtCfg.TokenTTL()), User: user}, nil
}

func (s *service) fail(reason string) {
	if s.metrics != nil {
		s.metrics.AuthFailure(reason)
	}
}

func checkNewPassword(password, confirm string) error {
	var problems []string
	if len([]rune(password)) < minPasswordLength {
		problems = append(problems, fmt.Sprintf("A password must have at least %d characters", minPasswordLength))
	}
	if password != confirm {
		problems = append(problems, "Passwords are not the same!")
	}
	if len(problems) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "Invalid input data. "+strings.Join(problems, ". ")).WithDetails(problems)
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/mailer"
	"github.com/angelmondragon/tourbook-backend/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ForgotPassword mails a reset link when the e-mail belongs to an account.
// The response is the same whether or not it does.
func (s *service) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (string, error) {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return resetSentMessage, nil
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	plain, digest, err := security.NewResetToken()
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate reset token")
	}
	expires := s.now().Add(s.resetTTL)
	if err := s.users.SetResetToken(ctx, user.ID, &digest, &expires); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store reset token")
	}

	link := fmt.Sprintf("%s/api/v1/users/resetPassword/%s", s.publicURL, plain)
	if err := s.mailer.Send(ctx, mailer.PasswordReset(user.Email, user.Name, link, s.resetTTL)); err != nil {
		if clearErr := s.users.SetResetToken(ctx, user.ID, nil, nil); clearErr != nil {
			s.logg.Error(ctx, "clear reset token", clearErr)
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, resetMailFailedMessage)
	}
	return resetSentMessage, nil
}

// ResetPassword redeems a reset token. Expired tokens are cleared.
func (s *service) ResetPassword(ctx context.Context, token string, req ResetPasswordRequest) (*Session, error) {
	invalid := pkgerrors.New(pkgerrors.CodeValidation, resetInvalidMessage).WithDetails([]string{resetInvalidMessage})
	if token == "" {
		return nil, invalid
	}

	digest := security.HashResetToken(token)
	user, err := s.users.FindByResetToken(ctx, digest)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalid
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup reset token")
	}

	now := s.now()
	if user.PasswordResetExpiresAt == nil || !now.Before(*user.PasswordResetExpiresAt) {
		if err := s.users.SetResetToken(ctx, user.ID, nil, nil); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear reset token")
		}
		return nil, invalid
	}

	if err := checkNewPassword(req.Password, req.PasswordConfirm); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	redeemed, err := s.users.RedeemResetToken(ctx, user.ID, digest, hash, now.UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store password")
	}
	if !redeemed {
		return nil, invalid
	}
	user.PasswordChangedAt = &now
	user.PasswordResetTokenHash = nil
	user.PasswordResetExpiresAt = nil
	return s.issue(user, now)
}

// UpdatePassword changes the caller's password after re-checking the
// current one, then issues a fresh token.
func (s *service) UpdatePassword(ctx context.Context, userID uuid.UUID, req UpdatePasswordRequest) (*Session, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, userGoneMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	valid, err := s.hasher.Verify(req.PasswordCurrent, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		s.fail(ReasonBadCredentials)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Your current password is wrong.")
	}
	if err := checkNewPassword(req.Password, req.PasswordConfirm); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.setPassword(ctx, user.ID, req.Password, now); err != nil {
		return nil, err
	}
	user.PasswordChangedAt = &now
	return s.issue(user, now)
}

func (s *service) setPassword(ctx context.Context, userID uuid.UUID, password string, changedAt time.Time) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	if err := s.users.SetPassword(ctx, userID, hash, changedAt.UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store password")
	}
	return nil
}

package users

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/tourbook-backend/internal/repo"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes user persistence used by authentication. Every lookup
// ignores deactivated accounts.
type Repository struct {
	repo.Base
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Bind(tx)}
}

func (r *Repository) active(ctx context.Context) *gorm.DB {
	return r.Scoped(ctx, activeOnly)
}

// FindByEmail retrieves the active user matching email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	email = strings.ToLower(strings.TrimSpace(email))
	if err := r.active(ctx).Where("email = ?", email).Take(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads an active user by id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.active(ctx).Where("id = ?", id).Take(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByResetToken loads the active user holding the reset token digest.
// Expiry is checked by the caller so an expired token can be cleared.
func (r *Repository) FindByResetToken(ctx context.Context, digest string) (*models.User, error) {
	var user models.User
	if err := r.active(ctx).Where("password_reset_token = ?", digest).Take(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// SetResetToken stores or clears the reset token digest and its expiry.
func (r *Repository) SetResetToken(ctx context.Context, id uuid.UUID, digest *string, expiresAt *time.Time) error {
	return r.DB(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"password_reset_token":      digest,
			"password_reset_expires_at": expiresAt,
		}).Error
}

// SetPassword replaces the credential, records when it changed and clears
// any outstanding reset token.
func (r *Repository) SetPassword(ctx context.Context, id uuid.UUID, hash string, changedAt time.Time) error {
	return r.DB(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"password_hash":             hash,
			"password_changed_at":       changedAt,
			"password_reset_token":      nil,
			"password_reset_expires_at": nil,
		}).Error
}

// RedeemResetToken sets a new credential only while digest is still the
// stored reset token, and clears it in the same statement. It reports false
// when the token was already used or replaced.
func (r *Repository) RedeemResetToken(ctx context.Context, id uuid.UUID, digest, hash string, changedAt time.Time) (bool, error) {
	res := r.DB(ctx).
		Model(&models.User{}).
		Where("id = ? AND password_reset_token = ?", id, digest).
		Updates(map[string]any{
			"password_hash":             hash,
			"password_changed_at":       changedAt,
			"password_reset_token":      nil,
			"password_reset_expires_at": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Deactivate hides the account from every lookup.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.DB(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("active", false).Error
}

func activeOnly(q *gorm.DB) *gorm.DB {
	return q.Where(ActiveScope)
}

package models

import (
	"strings"
	"time"

	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/google/uuid"
)

const DefaultUserPhoto = "default.jpg"

// User is an account. Inactive users are invisible to every lookup.
type User struct {
	ID                     uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name                   string     `gorm:"column:name;not null" json:"name"`
	Email                  string     `gorm:"column:email;not null;uniqueIndex" json:"email,omitempty"`
	Photo                  string     `gorm:"column:photo;not null" json:"photo"`
	Role                   enums.Role `gorm:"column:role;type:text;not null" json:"role,omitempty"`
	PasswordHash           string     `gorm:"column:password_hash;not null" json:"-"`
	PasswordChangedAt      *time.Time `gorm:"column:password_changed_at" json:"-"`
	PasswordResetTokenHash *string    `gorm:"column:password_reset_token;index" json:"-"`
	PasswordResetExpiresAt *time.Time `gorm:"column:password_reset_expires_at" json:"-"`
	Active                 bool       `gorm:"column:active;not null;index" json:"-"`
	CreatedAt              time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt              time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (u *User) GetID() uuid.UUID   { return u.ID }
func (u *User) SetID(id uuid.UUID) { u.ID = id }

func (u *User) Normalize() {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Photo == "" {
		u.Photo = DefaultUserPhoto
	}
	if u.Role == "" {
		u.Role = enums.RoleUser
	}
}

func (u *User) Validate() error {
	var v violations
	v.check(u.Name != "", "Please tell us your name!")
	v.check(u.Email != "", "Please provide your email")
	v.check(u.Email == "" || isEmail(u.Email), "Please provide a valid email")
	v.check(u.Role.IsValid(), "Role is either: admin, lead-guide, guide, user")
	v.check(u.PasswordHash != "", "Please provide a password")
	return v.result()
}

// ChangedPasswordAfter reports whether credentials changed after issuedAt.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return issuedAt.Before(*u.PasswordChangedAt)
}

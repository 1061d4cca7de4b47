package models

import (
	"strings"
	"time"

	"blog/internal/lib/password"
)

// User is a registered account. PassHash is always a bcrypt digest: the only
// ways to set it are NewUser and SetPassword.
type User struct {
	ID        string
	Username  string
	Email     string
	PassHash  password.Hash
	Role      Role
	Bio       string
	AvatarURL string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser builds a user with a freshly hashed password.
func NewUser(username, email, plain string, role Role, cost int) (*User, error) {
	if !role.Valid() {
		return nil, ErrUnknownRole
	}

	hash, err := password.New(plain, cost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &User{
		Username:  strings.TrimSpace(username),
		Email:     NormalizeEmail(email),
		PassHash:  hash,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// SetPassword replaces the stored hash with one derived from plain.
func (u *User) SetPassword(plain string, cost int) error {
	hash, err := password.New(plain, cost)
	if err != nil {
		return err
	}
	u.PassHash = hash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// NormalizeEmail is the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

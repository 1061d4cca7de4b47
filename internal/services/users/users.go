package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"blog/internal/domain/models"
	"blog/internal/lib/password"
	"blog/internal/lib/sl"
	"blog/internal/storage"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrForbidden         = errors.New("forbidden")
	ErrEmailTaken        = errors.New("email already in use")
	ErrUsernameTaken     = errors.New("username already taken")
	ErrInvalidUsername   = errors.New("invalid username")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrInvalidPassword   = errors.New("invalid password")
)

type UserStore interface {
	UserByID(ctx context.Context, userID string) (*models.User, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, userID string) error
	Users(ctx context.Context, page models.Page) (models.List[*models.User], error)
}

type TokenRevoker interface {
	RemoveUserRefreshTokens(ctx context.Context, userID string) (int64, error)
}

// ContentCascader removes what a deleted user authored, now or later.
type ContentCascader interface {
	CascadeUserContent(ctx context.Context, userID string) error
}

type TextSanitizer interface {
	Text(raw string) string
}

type Users struct {
	logger     *slog.Logger
	store      UserStore
	tokens     TokenRevoker
	cascader   ContentCascader
	sanitizer  TextSanitizer
	bcryptCost int
}

// ProfileUpdate carries the fields of a partial update. Nil means unchanged.
type ProfileUpdate struct {
	Username  *string
	Email     *string
	Bio       *string
	AvatarURL *string
	Password  *string
}

func New(
	logger *slog.Logger,
	store UserStore,
	tokens TokenRevoker,
	cascader ContentCascader,
	sanitizer TextSanitizer,
	bcryptCost int,
) *Users {
	return &Users{
		logger:     logger,
		store:      store,
		tokens:     tokens,
		cascader:   cascader,
		sanitizer:  sanitizer,
		bcryptCost: bcryptCost,
	}
}

func (u *Users) Profile(ctx context.Context, userID string) (*models.User, error) {
	const op = "users.Profile"

	user, err := u.store.UserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapNotFound(err))
	}
	return user, nil
}

// UpdateProfile applies upd to the user. A password change signs the user
// out everywhere by revoking all refresh tokens.
func (u *Users) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*models.User, error) {
	const op = "users.UpdateProfile"
	log := u.logger.With(
		slog.String("op", op),
		slog.String("userID", userID),
	)

	user, err := u.store.UserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapNotFound(err))
	}

	if upd.Email != nil {
		email := models.NormalizeEmail(*upd.Email)
		if email != user.Email {
			if err := u.ensureFree(ctx, u.store.EmailTaken, email, ErrEmailTaken); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			user.Email = email
		}
	}
	if upd.Username != nil {
		username := u.sanitizer.Text(*upd.Username)
		if username == "" {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidUsername)
		}
		if username != user.Username {
			if err := u.ensureFree(ctx, u.store.UsernameTaken, username, ErrUsernameTaken); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			user.Username = username
		}
	}
	if upd.Bio != nil {
		user.Bio = u.sanitizer.Text(*upd.Bio)
	}
	if upd.AvatarURL != nil {
		user.AvatarURL = strings.TrimSpace(*upd.AvatarURL)
	}

	passwordChanged := false
	if upd.Password != nil {
		if err := user.SetPassword(*upd.Password, u.bcryptCost); err != nil {
			if errors.Is(err, password.ErrEmpty) || errors.Is(err, password.ErrTooLong) {
				return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidPassword, err)
			}
			log.Error("failed to hash password", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		passwordChanged = true
	}
	user.UpdatedAt = time.Now().UTC()

	if err := u.store.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			log.Warn("profile update collides with another user", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, conflict(err))
		}
		log.Error("failed to update user", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, mapNotFound(err))
	}

	if passwordChanged {
		n, err := u.tokens.RemoveUserRefreshTokens(ctx, user.ID)
		if err != nil {
			log.Error("failed to revoke refresh tokens", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		log.Info("password changed, sessions revoked", slog.Int64("revoked", n))
	}

	log.Info("profile updated")

	return user, nil
}

// DeleteAccount removes the caller's own account.
func (u *Users) DeleteAccount(ctx context.Context, userID string) error {
	const op = "users.DeleteAccount"

	if err := u.delete(ctx, op, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListUsers lists all users. Admin only.
func (u *Users) ListUsers(ctx context.Context, actor *models.User, page models.Page) (models.List[*models.User], error) {
	const op = "users.ListUsers"

	if !actor.IsAdmin() {
		return models.List[*models.User]{}, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	list, err := u.store.Users(ctx, models.NewPage(page.Number, page.Limit))
	if err != nil {
		u.logger.Error("failed to list users", slog.String("op", op), sl.Err(err))
		return list, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

// DeleteUser removes another user's account. Admin only.
func (u *Users) DeleteUser(ctx context.Context, actor *models.User, userID string) error {
	const op = "users.DeleteUser"

	if !actor.IsAdmin() {
		u.logger.Warn("non-admin tried to delete a user",
			slog.String("op", op),
			slog.String("actorID", actor.ID),
		)
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	if err := u.delete(ctx, op, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// delete removes the user, revokes their sessions and hands the authored
// content to the cascader.
func (u *Users) delete(ctx context.Context, op, userID string) error {
	log := u.logger.With(
		slog.String("op", op),
		slog.String("userID", userID),
	)

	if err := u.store.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrUserNotFound
		}
		log.Error("failed to delete user", sl.Err(err))
		return err
	}

	if _, err := u.tokens.RemoveUserRefreshTokens(ctx, userID); err != nil {
		log.Error("failed to revoke refresh tokens", sl.Err(err))
		return err
	}

	if err := u.cascader.CascadeUserContent(ctx, userID); err != nil {
		log.Error("failed to cascade user content", sl.Err(err))
		return err
	}

	log.Info("user deleted")

	return nil
}

func (u *Users) ensureFree(
	ctx context.Context,
	taken func(context.Context, string) (bool, error),
	value string,
	errTaken error,
) error {
	ok, err := taken(ctx, value)
	if err != nil {
		return err
	}
	if ok {
		return errTaken
	}
	return nil
}

// conflict maps a unique index violation to the field that caused it.
func conflict(err error) error {
	switch {
	case errors.Is(err, storage.ErrUsernameExists):
		return ErrUsernameTaken
	case errors.Is(err, storage.ErrEmailExists):
		return ErrEmailTaken
	default:
		return ErrUserAlreadyExists
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, storage.ErrUserNotFound) {
		return ErrUserNotFound
	}
	return err
}

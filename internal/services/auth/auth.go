package auth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"blog/internal/domain/models"
	"blog/internal/lib/jwt"
	"blog/internal/lib/password"
	"blog/internal/lib/sl"
	"blog/internal/storage"
)

type Auth struct {
	logger        *slog.Logger
	userSaver     UserSaver
	userProvider  UserProvider
	uniqueness    UniquenessChecker
	tokenStore    RefreshTokenStore
	tokens        TokenManager
	sanitizer     TextSanitizer
	adminEmails   map[string]struct{}
	refreshPepper string
	bcryptCost    int
}

type UserSaver interface {
	SaveUser(ctx context.Context, user *models.User) (uid string, err error)
}

type UserProvider interface {
	User(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, userID string) (*models.User, error)
}

type UniquenessChecker interface {
	EmailTaken(ctx context.Context, email string) (bool, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
}

type RefreshTokenStore interface {
	RecordRefreshToken(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	RefreshTokenExists(ctx context.Context, tokenHash string) (bool, error)
	RemoveRefreshToken(ctx context.Context, tokenHash, userID string) error
}

type TokenManager interface {
	IssueAccess(userID string) (string, time.Time, error)
	IssueRefresh(userID string) (string, time.Time, error)
	Verify(token string, class jwt.Class) (*jwt.Claims, error)
}

// TextSanitizer strips markup from free-text profile fields.
type TextSanitizer interface {
	Text(raw string) string
}

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidPassword      = errors.New("invalid password")
	ErrInvalidUsername      = errors.New("invalid username")
	ErrUserAlreadyExists    = errors.New("user already exists")
	ErrEmailTaken           = errors.New("email already in use")
	ErrUsernameTaken        = errors.New("username already taken")
	ErrForbiddenRole        = errors.New("role not permitted")
	ErrRefreshTokenRequired = errors.New("refresh token required")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")
	ErrAccessTokenExpired   = errors.New("access token expired")
	ErrInvalidAccessToken   = errors.New("invalid access token")
)

// Config is the read-only part of the session settings.
type Config struct {
	AdminEmails   []string
	RefreshPepper string
	BcryptCost    int
}

// Session is what a successful register or login hands to the transport:
// the profile, the access token for the body and the refresh token for the
// cookie.
type Session struct {
	User             *models.User
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     models.Role
	Bio      string
}

// New returns a new instance of the Auth service.
func New(
	logger *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	uniqueness UniquenessChecker,
	tokenStore RefreshTokenStore,
	tokens TokenManager,
	sanitizer TextSanitizer,
	cfg Config,
) *Auth {
	admins := make(map[string]struct{}, len(cfg.AdminEmails))
	for _, e := range cfg.AdminEmails {
		admins[models.NormalizeEmail(e)] = struct{}{}
	}

	return &Auth{
		logger:        logger,
		userSaver:     userSaver,
		userProvider:  userProvider,
		uniqueness:    uniqueness,
		tokenStore:    tokenStore,
		tokens:        tokens,
		sanitizer:     sanitizer,
		adminEmails:   admins,
		refreshPepper: cfg.RefreshPepper,
		bcryptCost:    cfg.BcryptCost,
	}
}

// Register creates a user and opens a session for it. The admin role is only
// granted to emails on the allow-list.
func (a *Auth) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	const op = "auth.Register"
	log := a.logger.With(
		slog.String("op", op),
		slog.String("email", in.Email),
	)
	log.Info("register request", slog.String("role", in.Role.String()))

	if in.Role == models.RoleAdmin && !a.IsAdminEmail(in.Email) {
		log.Warn("admin role requested outside allow-list")
		return nil, fmt.Errorf("%s: %w", op, ErrForbiddenRole)
	}

	username := a.sanitizer.Text(in.Username)
	if username == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidUsername)
	}

	if err := a.checkUnique(ctx, in.Email, username); err != nil {
		log.Warn("uniqueness check failed", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := models.NewUser(username, in.Email, in.Password, in.Role, a.bcryptCost)
	if err != nil {
		if errors.Is(err, password.ErrEmpty) || errors.Is(err, password.ErrTooLong) {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidPassword, err)
		}
		log.Error("failed to build user", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user.Bio = a.sanitizer.Text(in.Bio)

	if _, err := a.userSaver.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			log.Warn("user already exists", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, conflict(err))
		}
		log.Error("failed to save user", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", slog.String("userID", user.ID))

	session, err := a.openSession(ctx, user)
	if err != nil {
		log.Error("failed to open session", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return session, nil
}

// Login checks credentials and opens a new session. Sessions opened earlier
// stay valid.
func (a *Auth) Login(ctx context.Context, email, plain string) (*Session, error) {
	const op = "auth.Login"
	log := a.logger.With(slog.String("op", op))
	log.Info("login request", slog.String("email", email))

	user, err := a.userProvider.User(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		log.Error("failed to get user", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !user.PassHash.Matches(plain) {
		log.Warn("invalid password")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	session, err := a.openSession(ctx, user)
	if err != nil {
		log.Error("failed to open session", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in", slog.String("userID", user.ID))

	return session, nil
}

// Refresh exchanges a recorded refresh token for a new access token. The
// refresh token itself is not rotated.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (string, error) {
	const op = "auth.Refresh"
	log := a.logger.With(slog.String("op", op))
	log.Info("refresh request")

	if refreshToken == "" {
		return "", fmt.Errorf("%s: %w", op, ErrRefreshTokenRequired)
	}

	exists, err := a.tokenStore.RefreshTokenExists(ctx, a.hashRefreshToken(refreshToken))
	if err != nil {
		log.Error("failed to look up refresh token", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		// Records are pruned once the signed expiry passes, so a naturally
		// expired token is usually missing from the store by now.
		if _, err := a.tokens.Verify(refreshToken, jwt.ClassRefresh); errors.Is(err, jwt.ErrExpiredCredential) {
			log.Warn("refresh token expired and pruned")
			return "", fmt.Errorf("%s: %w", op, ErrRefreshTokenExpired)
		}
		log.Warn("refresh token not recorded")
		return "", fmt.Errorf("%s: %w", op, ErrRefreshTokenNotFound)
	}

	claims, err := a.tokens.Verify(refreshToken, jwt.ClassRefresh)
	if err != nil {
		if errors.Is(err, jwt.ErrExpiredCredential) {
			log.Warn("refresh token expired")
			return "", fmt.Errorf("%s: %w", op, ErrRefreshTokenExpired)
		}
		log.Warn("refresh token invalid", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, ErrInvalidRefreshToken)
	}

	accessToken, _, err := a.tokens.IssueAccess(claims.UserID)
	if err != nil {
		log.Error("failed to generate access token", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("access token refreshed", slog.String("userID", claims.UserID))

	return accessToken, nil
}

// Logout removes the refresh token record, but only when it belongs to
// userID. An empty token or an unknown record is not an error.
func (a *Auth) Logout(ctx context.Context, userID, refreshToken string) error {
	const op = "auth.Logout"
	log := a.logger.With(
		slog.String("op", op),
		slog.String("userID", userID),
	)

	if refreshToken == "" {
		log.Info("logout without refresh token")
		return nil
	}

	if err := a.tokenStore.RemoveRefreshToken(ctx, a.hashRefreshToken(refreshToken), userID); err != nil {
		log.Error("failed to remove refresh token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged out")

	return nil
}

// Authenticate resolves an access token to the user it was issued for.
func (a *Auth) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	const op = "auth.Authenticate"

	if accessToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidAccessToken)
	}

	claims, err := a.tokens.Verify(accessToken, jwt.ClassAccess)
	if err != nil {
		if errors.Is(err, jwt.ErrExpiredCredential) {
			return nil, fmt.Errorf("%s: %w", op, ErrAccessTokenExpired)
		}
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidAccessToken)
	}

	user, err := a.userProvider.UserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidAccessToken)
		}
		a.logger.Error("failed to get user",
			slog.String("op", op),
			slog.String("userID", claims.UserID),
			sl.Err(err),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// IsAdminEmail reports whether email is on the admin allow-list.
func (a *Auth) IsAdminEmail(email string) bool {
	_, ok := a.adminEmails[models.NormalizeEmail(email)]
	return ok
}

func (a *Auth) checkUnique(ctx context.Context, email, username string) error {
	taken, err := a.uniqueness.EmailTaken(ctx, email)
	if err != nil {
		return err
	}
	if taken {
		return ErrEmailTaken
	}

	taken, err = a.uniqueness.UsernameTaken(ctx, username)
	if err != nil {
		return err
	}
	if taken {
		return ErrUsernameTaken
	}

	return nil
}

// conflict maps a unique index violation to the field that caused it.
func conflict(err error) error {
	switch {
	case errors.Is(err, storage.ErrEmailExists):
		return ErrEmailTaken
	case errors.Is(err, storage.ErrUsernameExists):
		return ErrUsernameTaken
	default:
		return ErrUserAlreadyExists
	}
}

// openSession issues a token pair for user and records the refresh token.
func (a *Auth) openSession(ctx context.Context, user *models.User) (*Session, error) {
	accessToken, accessExp, err := a.tokens.IssueAccess(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refreshToken, refreshExp, err := a.tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	if err := a.tokenStore.RecordRefreshToken(ctx, a.hashRefreshToken(refreshToken), user.ID, refreshExp); err != nil {
		return nil, fmt.Errorf("record refresh token: %w", err)
	}

	return &Session{
		User:             user,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// hashRefreshToken computes SHA-256 hash of the token with pepper.
func (a *Auth) hashRefreshToken(token string) string {
	return HashRefreshToken(token, a.refreshPepper)
}

// HashRefreshToken is the key refresh tokens are stored under.
func HashRefreshToken(token, pepper string) string {
	h := sha256.Sum256([]byte(token + pepper))
	return base64.RawURLEncoding.EncodeToString(h[:])
}

package users_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"blog/internal/domain/models"
	"blog/internal/lib/sanitize"
	"blog/internal/services/users"
	"blog/internal/storage/memory"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passDefault = "Abcd1234!"

type recordingCascader struct {
	mu   sync.Mutex
	ids  []string
	fail error
}

func (r *recordingCascader) CascadeUserContent(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fail != nil {
		return r.fail
	}
	r.ids = append(r.ids, userID)
	return nil
}

type fixture struct {
	users    *users.Users
	store    *memory.Storage
	cascader *recordingCascader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	cascader := &recordingCascader{}
	return &fixture{
		users:    users.New(slog.New(slog.DiscardHandler), store, store, cascader, sanitize.New(), 4),
		store:    store,
		cascader: cascader,
	}
}

func (f *fixture) user(t *testing.T, role models.Role) *models.User {
	t.Helper()

	u, err := models.NewUser(randomUsername(), gofakeit.Email(), passDefault, role, 4)
	require.NoError(t, err)
	_, err = f.store.SaveUser(context.Background(), u)
	require.NoError(t, err)
	return u
}

func ptr[T any](v T) *T { return &v }

func TestProfile(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, models.RoleUser)

	got, err := f.users.Profile(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)

	_, err = f.users.Profile(context.Background(), "missing")
	require.ErrorIs(t, err, users.ErrUserNotFound)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, models.RoleUser)

	got, err := f.users.UpdateProfile(ctx, u.ID, users.ProfileUpdate{
		Username:  ptr("  renamed  "),
		Email:     ptr(" NEW@Example.com "),
		Bio:       ptr("<b>hello</b>"),
		AvatarURL: ptr("https://img.example/a.png"),
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Username)
	assert.Equal(t, "new@example.com", got.Email)
	assert.Equal(t, "hello", got.Bio)
	assert.Equal(t, "https://img.example/a.png", got.AvatarURL)
	assert.True(t, got.PassHash.Matches(passDefault), "password untouched")

	stored, err := f.store.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", stored.Username)
}

func TestUpdateProfile_Conflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, models.RoleUser)
	other := f.user(t, models.RoleUser)

	_, err := f.users.UpdateProfile(ctx, u.ID, users.ProfileUpdate{Email: ptr(other.Email)})
	require.ErrorIs(t, err, users.ErrEmailTaken)

	_, err = f.users.UpdateProfile(ctx, u.ID, users.ProfileUpdate{Username: ptr(other.Username)})
	require.ErrorIs(t, err, users.ErrUsernameTaken)

	// Keeping your own values is not a conflict.
	_, err = f.users.UpdateProfile(ctx, u.ID, users.ProfileUpdate{Email: ptr(u.Email), Username: ptr(u.Username)})
	require.NoError(t, err)

	_, err = f.users.UpdateProfile(ctx, "missing", users.ProfileUpdate{})
	require.ErrorIs(t, err, users.ErrUserNotFound)
}

func TestUpdateProfile_UsernameMarkupStripped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, models.RoleUser)

	got, err := f.users.UpdateProfile(ctx, u.ID, users.ProfileUpdate{
		Username: ptr("<b>bold</b>name<script>alert(1)</script>"),
	})
	require.NoError(t, err)
	assert.Equal(t, "boldname", got.Username)

	_, err = f.users.UpdateProfile(ctx, u.ID, users.ProfileUpdate{
		Username: ptr("<img src=x onerror=alert(1)>"),
	})
	require.ErrorIs(t, err, users.ErrInvalidUsername)
}

// racingStore reports every value as free, so the unique indexes are the
// only thing left to catch a collision.
type racingStore struct {
	*memory.Storage
}

func (racingStore) EmailTaken(context.Context, string) (bool, error)    { return false, nil }
func (racingStore) UsernameTaken(context.Context, string) (bool, error) { return false, nil }

func TestUpdateProfile_IndexConflictNamesTheField(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, models.RoleUser)
	other := f.user(t, models.RoleUser)

	svc := users.New(slog.New(slog.DiscardHandler), racingStore{f.store}, f.store, f.cascader, sanitize.New(), 4)

	_, err := svc.UpdateProfile(ctx, u.ID, users.ProfileUpdate{Username: ptr(other.Username)})
	require.ErrorIs(t, err, users.ErrUsernameTaken)
	assert.NotErrorIs(t, err, users.ErrEmailTaken)

	_, err = svc.UpdateProfile(ctx, u.ID, users.ProfileUpdate{Email: ptr(other.Email)})
	require.ErrorIs(t, err, users.ErrEmailTaken)
	assert.NotErrorIs(t, err, users.ErrUsernameTaken)
}

func TestUpdateProfile_PasswordRevokesSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, models.RoleUser)
	other := f.user(t, models.RoleUser)

	exp := time.Now().Add(time.Hour)
	require.NoError(t, f.store.RecordRefreshToken(ctx, "h1", u.ID, exp))
	require.NoError(t, f.store.RecordRefreshToken(ctx, "h2", u.ID, exp))
	require.NoError(t, f.store.RecordRefreshToken(ctx, "h3", other.ID, exp))

	got, err := f.users.UpdateProfile(ctx, u.ID, users.ProfileUpdate{Password: ptr("N3w-passw0rd")})
	require.NoError(t, err)
	assert.True(t, got.PassHash.Matches("N3w-passw0rd"))
	assert.False(t, got.PassHash.Matches(passDefault))
	assert.Equal(t, 1, f.store.RefreshTokenCount())

	_, err = f.users.UpdateProfile(ctx, u.ID, users.ProfileUpdate{Password: ptr("")})
	require.ErrorIs(t, err, users.ErrInvalidPassword)
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, models.RoleUser)

	require.NoError(t, f.store.RecordRefreshToken(ctx, "h1", u.ID, time.Now().Add(time.Hour)))

	require.NoError(t, f.users.DeleteAccount(ctx, u.ID))

	_, err := f.store.UserByID(ctx, u.ID)
	require.Error(t, err)
	assert.Zero(t, f.store.RefreshTokenCount())
	assert.Equal(t, []string{u.ID}, f.cascader.ids)

	require.ErrorIs(t, f.users.DeleteAccount(ctx, u.ID), users.ErrUserNotFound)
}

func TestDeleteAccount_CascadeFailure(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, models.RoleUser)

	f.cascader.fail = errors.New("queue down")
	require.Error(t, f.users.DeleteAccount(context.Background(), u.ID))
}

func TestListUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, models.RoleAdmin)
	u := f.user(t, models.RoleUser)

	_, err := f.users.ListUsers(ctx, u, models.Page{})
	require.ErrorIs(t, err, users.ErrForbidden)

	list, err := f.users.ListUsers(ctx, admin, models.NewPage(1, 1))
	require.NoError(t, err)
	assert.EqualValues(t, 2, list.Total)
	require.Len(t, list.Items, 1)
	assert.Equal(t, u.ID, list.Items[0].ID, "newest first")
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, models.RoleAdmin)
	u := f.user(t, models.RoleUser)
	other := f.user(t, models.RoleUser)

	require.ErrorIs(t, f.users.DeleteUser(ctx, u, other.ID), users.ErrForbidden)

	require.NoError(t, f.users.DeleteUser(ctx, admin, other.ID))
	assert.Equal(t, []string{other.ID}, f.cascader.ids)

	require.ErrorIs(t, f.users.DeleteUser(ctx, admin, other.ID), users.ErrUserNotFound)
}

func randomUsername() string {
	return "user" + gofakeit.Password(true, false, true, false, false, 10)
}

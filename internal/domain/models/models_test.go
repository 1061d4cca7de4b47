package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestParseRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{in: "", want: RoleUser},
		{in: "user", want: RoleUser},
		{in: "admin", want: RoleAdmin},
		{in: "Admin", wantErr: true},
		{in: "root", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownRole)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRole_JSON(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(struct {
		Role Role `json:"role"`
	}{Role: RoleAdmin})
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"admin"}`, string(b))

	var out struct {
		Role Role `json:"role"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"role":"user"}`), &out))
	assert.Equal(t, RoleUser, out.Role)

	require.Error(t, json.Unmarshal([]byte(`{"role":"owner"}`), &out))

	_, err = json.Marshal(struct{ R Role }{R: Role(42)})
	require.Error(t, err)
}

func TestNewUser_HashesPassword(t *testing.T) {
	t.Parallel()

	u, err := NewUser(" alice ", " Alice@Example.COM ", "Abcd1234!", RoleUser, bcrypt.MinCost)
	require.NoError(t, err)

	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.NotEqual(t, "Abcd1234!", string(u.PassHash))
	assert.True(t, u.PassHash.Matches("Abcd1234!"))
	assert.False(t, u.IsAdmin())
}

func TestNewUser_RejectsUnknownRole(t *testing.T) {
	t.Parallel()

	_, err := NewUser("bob", "bob@example.com", "Abcd1234!", Role(0), bcrypt.MinCost)
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestSetPassword(t *testing.T) {
	t.Parallel()

	u, err := NewUser("carol", "carol@example.com", "Abcd1234!", RoleAdmin, bcrypt.MinCost)
	require.NoError(t, err)
	old := u.PassHash

	require.NoError(t, u.SetPassword("Efgh5678?", bcrypt.MinCost))
	assert.NotEqual(t, string(old), string(u.PassHash))
	assert.True(t, u.PassHash.Matches("Efgh5678?"))
	assert.False(t, u.PassHash.Matches("Abcd1234!"))
	assert.True(t, u.IsAdmin())

	require.Error(t, u.SetPassword("", bcrypt.MinCost))
	assert.True(t, u.PassHash.Matches("Efgh5678?"))
}

func TestNewPage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Page{Number: 1, Limit: DefaultPageLimit}, NewPage(0, 0))
	assert.Equal(t, Page{Number: 3, Limit: MaxPageLimit}, NewPage(3, 1000))
	assert.Equal(t, int64(20), NewPage(3, 10).Skip())
}

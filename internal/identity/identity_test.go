package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uncryptgame/uncrypt-client/internal/kvstore"
)

func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test_secret"))
	require.NoError(t, err)
	return tok
}

func TestResolverAnonymousByDefault(t *testing.T) {
	r := NewResolver(kvstore.NewMemory())
	assert.False(t, r.IsAuthenticated())
	_, ok := r.Credential()
	assert.False(t, ok)
}

func TestResolverRoundTrip(t *testing.T) {
	r := NewResolver(kvstore.NewMemory())
	tok := mintToken(t, jwt.MapClaims{"id": "u1", "exp": time.Now().Add(time.Hour).Unix()})

	require.NoError(t, r.SaveCredential(Credential{Token: tok, UserID: "u1", Username: "ada"}))
	require.True(t, r.IsAuthenticated())

	c, ok := r.Credential()
	require.True(t, ok)
	assert.Equal(t, "u1", c.UserID)
	assert.Equal(t, "ada", c.Username)

	require.NoError(t, r.ClearCredential())
	assert.False(t, r.IsAuthenticated())
}

func TestResolverTreatsExpiredTokenAsAnonymous(t *testing.T) {
	r := NewResolver(kvstore.NewMemory())
	tok := mintToken(t, jwt.MapClaims{"id": "u1", "exp": time.Now().Add(-time.Minute).Unix()})

	require.NoError(t, r.SaveCredential(Credential{Token: tok, UserID: "u1", Username: "ada"}))
	assert.False(t, r.IsAuthenticated())
	_, ok := r.Credential()
	assert.False(t, ok)
}

func TestResolverAcceptsTokenWithoutExp(t *testing.T) {
	r := NewResolver(kvstore.NewMemory())
	tok := mintToken(t, jwt.MapClaims{"id": "u1"})

	require.NoError(t, r.SaveCredential(Credential{Token: tok, UserID: "u1"}))
	assert.True(t, r.IsAuthenticated())
}

func TestResolverDiscardsGarbage(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "garbage"},
		{"missing token", `{"userId":"u1"}`},
		{"unparseable token", `{"token":"not.a.jwt","userId":"u1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := kvstore.NewMemory()
			require.NoError(t, store.Set(kvstore.KeyCredential, tt.raw))
			r := NewResolver(store)
			assert.False(t, r.IsAuthenticated())
		})
	}
}

package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uncryptgame/uncrypt-client/internal/api"
	"github.com/uncryptgame/uncrypt-client/internal/backendtest"
	"github.com/uncryptgame/uncrypt-client/internal/config"
	"github.com/uncryptgame/uncrypt-client/internal/identity"
	"github.com/uncryptgame/uncrypt-client/internal/kvstore"
)

func newTestClient(t *testing.T, backend http.Handler) (*api.Client, kvstore.Store, *identity.Resolver) {
	t.Helper()
	ts := httptest.NewServer(backend)
	t.Cleanup(ts.Close)
	store := kvstore.NewMemory()
	ids := identity.NewResolver(store)
	client := api.New(config.APIConfig{BaseURL: ts.URL, Timeout: 5 * time.Second}, store, ids)
	return client, store, ids
}

func TestStartPersistsCorrelationIDs(t *testing.T) {
	backend := backendtest.New()
	client, store, _ := newTestClient(t, backend)

	data, err := client.Start(context.Background(), api.StartOptions{Difficulty: config.DifficultyNormal})
	require.NoError(t, err)
	require.NotEmpty(t, data.GameID)
	assert.Equal(t, len([]rune(data.EncryptedParagraph)), len([]rune(data.Display)))
	assert.NotEmpty(t, data.OriginalLetters)

	gameID, ok, err := store.Get(kvstore.KeyGameID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, backend.LastGameID(), gameID)

	sessionID, ok, _ := store.Get(kvstore.KeySessionID)
	require.True(t, ok)
	assert.NotEmpty(t, sessionID)
}

func TestGuessAgainstKnownSolution(t *testing.T) {
	backend := backendtest.New()
	backend.NextPlain = "HELLO WORLD"
	client, _, _ := newTestClient(t, backend)
	ctx := context.Background()

	data, err := client.Start(ctx, api.StartOptions{})
	require.NoError(t, err)

	sol := backend.Solution(data.GameID)
	require.NotEmpty(t, sol)
	var cipherH string
	for c, p := range sol {
		if p == "H" {
			cipherH = c
		}
	}
	require.NotEmpty(t, cipherH)

	res, err := client.Guess(ctx, data.GameID, cipherH, "H")
	require.NoError(t, err)
	assert.Contains(t, res.CorrectlyGuessed, cipherH)
	assert.Equal(t, 0, res.Mistakes)
	assert.Contains(t, res.Display, "H")
}

func TestGuessSessionExpired(t *testing.T) {
	backend := backendtest.New()
	client, _, _ := newTestClient(t, backend)
	ctx := context.Background()

	data, err := client.Start(ctx, api.StartOptions{})
	require.NoError(t, err)

	backend.ExpireNextMove = true
	backend.ReplacementID = "fresh-game-id"
	_, err = client.Guess(ctx, data.GameID, "A", "B")
	require.Error(t, err)
	se, ok := api.IsSessionExpired(err)
	require.True(t, ok)
	assert.Equal(t, "fresh-game-id", se.NewGameID)
}

func TestStatusWithoutCredentialIsAuthRequired(t *testing.T) {
	client, _, _ := newTestClient(t, backendtest.New())
	_, err := client.Status(context.Background())
	assert.ErrorIs(t, err, api.ErrAuthRequired)
}

func TestLoginLogoutCredentialLifecycle(t *testing.T) {
	client, _, ids := newTestClient(t, backendtest.New())
	ctx := context.Background()

	u, err := client.Login(ctx, "ada", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "ada", u.Username)
	assert.True(t, ids.IsAuthenticated())

	require.NoError(t, client.Logout(ctx))
	assert.False(t, ids.IsAuthenticated())
}

// A reissued game id must not overwrite the stored one when the stored value
// changed while the request was in flight: the late response belongs to a
// superseded session.
func TestReissuedGameIDDoesNotClobberNewerSession(t *testing.T) {
	var store kvstore.Store
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The newer session took over while this request was in flight.
		_ = store.Set(kvstore.KeyGameID, "newer-session")
		w.Header().Set("X-Game-Id", "stale-reissue")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"display":"", "mistakes":0}`))
	})
	client, s, _ := newTestClient(t, backend)
	store = s
	require.NoError(t, store.Set(kvstore.KeyGameID, "old-session"))

	_, err := client.Guess(context.Background(), "old-session", "A", "B")
	require.NoError(t, err)

	v, _, _ := store.Get(kvstore.KeyGameID)
	assert.Equal(t, "newer-session", v)
}

func TestBackendErrorIsSurfaced(t *testing.T) {
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":"daily quota exhausted"}`))
	})
	client, _, _ := newTestClient(t, backend)

	_, err := client.Start(context.Background(), api.StartOptions{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "daily quota exhausted"))
	_, expired := api.IsSessionExpired(err)
	assert.False(t, expired)
}

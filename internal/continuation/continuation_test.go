package continuation_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uncryptgame/uncrypt-client/internal/api"
	"github.com/uncryptgame/uncrypt-client/internal/backendtest"
	"github.com/uncryptgame/uncrypt-client/internal/config"
	"github.com/uncryptgame/uncrypt-client/internal/continuation"
	"github.com/uncryptgame/uncrypt-client/internal/game"
	"github.com/uncryptgame/uncrypt-client/internal/identity"
	"github.com/uncryptgame/uncrypt-client/internal/kvstore"
	"github.com/uncryptgame/uncrypt-client/internal/strategy"
)

type rig struct {
	backend *backendtest.Server
	store   kvstore.Store
	ids     *identity.Resolver
	machine *game.Machine
	coord   *continuation.Coordinator
}

func newRig(t *testing.T) *rig {
	t.Helper()
	backend := backendtest.New()
	ts := httptest.NewServer(backend)
	t.Cleanup(ts.Close)

	store := kvstore.NewMemory()
	ids := identity.NewResolver(store)
	cfg := &config.Config{
		API:   config.APIConfig{BaseURL: ts.URL, Timeout: 5 * time.Second},
		Game:  config.GameConfig{Ruleset: config.RulesetClassic, Placeholder: '█', CommitAnonymousWins: true},
		Daily: config.DailyConfig{ResumeOnCompleted: true, Marker: "-daily-"},
	}
	client := api.New(cfg.API, store, ids)
	selector := strategy.NewSelector(client, ids, store, cfg)
	machine := game.NewMachine(cfg, store, ids, client, selector)
	return &rig{
		backend: backend,
		store:   store,
		ids:     ids,
		machine: machine,
		coord:   continuation.NewCoordinator(ids, selector, machine),
	}
}

func (r *rig) login(t *testing.T) {
	t.Helper()
	tok := r.backend.MintToken("u1", "ada")
	require.NoError(t, r.ids.SaveCredential(identity.Credential{Token: tok, UserID: "u1", Username: "ada"}))
}

func TestCheckForActiveGameAnonymousIsSilent(t *testing.T) {
	r := newRig(t)
	res, err := r.coord.CheckForActiveGame(context.Background())
	require.NoError(t, err)
	assert.False(t, res.HasActive)
}

func TestCheckForActiveGameAuthenticated(t *testing.T) {
	r := newRig(t)
	r.login(t)
	ctx := context.Background()

	res, err := r.coord.CheckForActiveGame(ctx)
	require.NoError(t, err)
	assert.False(t, res.HasActive)

	out := r.machine.StartGame(ctx, game.StartRequest{Custom: true, Options: api.StartOptions{Difficulty: config.DifficultyHard}})
	require.True(t, out.Success)

	res, err = r.coord.CheckForActiveGame(ctx)
	require.NoError(t, err)
	assert.True(t, res.HasActive)
	require.NotNil(t, res.Stats)
	assert.Equal(t, "hard", res.Stats.Difficulty)
}

// Resuming rebuilds the session from the server snapshot. The letter mapping
// must only contain letters the player already guessed: the reverse-mapping
// table covers the whole alphabet and would otherwise reveal the puzzle.
func TestContinueActiveGameRestoresSession(t *testing.T) {
	r := newRig(t)
	r.backend.NextPlain = "HELLO WORLD"
	r.login(t)
	ctx := context.Background()

	out := r.machine.StartGame(ctx, game.StartRequest{Custom: true})
	require.True(t, out.Success)
	gameID := r.machine.Session().GameID
	sol := r.backend.Solution(gameID)
	var cipherL string
	for c, p := range sol {
		if p == "L" {
			cipherL = c
		}
	}
	require.True(t, r.machine.SubmitGuess(ctx, cipherL, "L").Success)

	// Simulate an app reload: local state gone, server still has the game.
	r.machine.ResetGame()
	require.Nil(t, r.machine.Session())

	res := r.coord.ContinueActiveGame(ctx)
	require.NoError(t, res.Err)
	assert.True(t, res.Success)

	sess := r.machine.Session()
	require.NotNil(t, sess)
	assert.Equal(t, gameID, sess.GameID)
	assert.True(t, sess.Guessed[cipherL])
	assert.Contains(t, sess.Display, "L")
	assert.Equal(t, map[string]string{cipherL: "L"}, sess.Mapping)
	assert.Equal(t, game.PhaseActive, r.machine.Phase())
}

func TestContinueActiveGameSessionExpired(t *testing.T) {
	r := newRig(t)
	r.login(t)
	ctx := context.Background()

	// No active game server-side: continue-game reports the game as gone.
	res := r.coord.ContinueActiveGame(ctx)
	assert.True(t, res.SessionExpired)
	assert.False(t, res.Success)
	assert.Nil(t, r.machine.Session())
}

package strategy_test

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
	"github.com/uncryptgame/uncrypt-client/internal/identity"
	"github.com/uncryptgame/uncrypt-client/internal/kvstore"
	"github.com/uncryptgame/uncrypt-client/internal/strategy"
)

type rig struct {
	backend  *backendtest.Server
	store    kvstore.Store
	ids      *identity.Resolver
	client   *api.Client
	cfg      *config.Config
	selector *strategy.Selector
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
		Game:  config.GameConfig{Ruleset: config.RulesetClassic, Placeholder: '█'},
		Daily: config.DailyConfig{ResumeOnCompleted: true, Marker: "-daily-"},
	}
	client := api.New(cfg.API, store, ids)
	return &rig{
		backend:  backend,
		store:    store,
		ids:      ids,
		client:   client,
		cfg:      cfg,
		selector: strategy.NewSelector(client, ids, store, cfg),
	}
}

func (r *rig) login(t *testing.T) {
	t.Helper()
	require.NoError(t, r.ids.SaveCredential(identity.Credential{
		Token:    r.backend.MintToken("u1", "ada"),
		UserID:   "u1",
		Username: "ada",
	}))
}

func TestPick(t *testing.T) {
	tests := []struct {
		name                                         string
		authed, wantsDaily, customRequested, idDaily bool
		want                                         strategy.Kind
	}{
		{"anonymous defaults to daily", false, false, false, false, strategy.KindAnonymousDaily},
		{"anonymous explicit daily", false, true, false, false, strategy.KindAnonymousDaily},
		{"anonymous custom opt-in", false, false, true, false, strategy.KindAnonymousStandard},
		{"anonymous custom beats daily request", false, true, true, false, strategy.KindAnonymousStandard},
		{"authenticated default", true, false, false, false, strategy.KindAuthenticatedStandard},
		{"authenticated daily request", true, true, false, false, strategy.KindAuthenticatedDaily},
		{"authenticated sticky daily id", true, false, false, true, strategy.KindAuthenticatedDaily},
		{"custom overrides sticky daily id", true, false, true, true, strategy.KindAuthenticatedStandard},
		{"explicit daily wins over custom", true, true, true, false, strategy.KindAuthenticatedDaily},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strategy.Pick(tt.authed, tt.wantsDaily, tt.customRequested, tt.idDaily)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectorReadsStoredDailyTag(t *testing.T) {
	r := newRig(t)
	r.login(t)
	require.NoError(t, r.store.Set(kvstore.KeyGameID, "2026-08-31-daily-abc123"))

	assert.Equal(t, strategy.KindAuthenticatedDaily, r.selector.Select(false, false).Kind())
	assert.Equal(t, strategy.KindAuthenticatedStandard, r.selector.Select(false, true).Kind())
}

func TestAnonymousStandardIsStateless(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.store.Set(kvstore.KeyGameID, "leftover"))
	require.NoError(t, r.store.Set(kvstore.KeySnapshot, "{}"))

	strat := r.selector.Select(false, true)
	require.Equal(t, strategy.KindAnonymousStandard, strat.Kind())

	res, err := strat.Initialize(context.Background(), api.StartOptions{})
	require.NoError(t, err)
	require.NotNil(t, res.Data)
	assert.NotEqual(t, "leftover", res.Data.GameID)

	_, err = strat.Continue(context.Background())
	assert.ErrorIs(t, err, strategy.ErrAnonymousOperation)
	_, err = strat.CheckActive(context.Background())
	assert.ErrorIs(t, err, strategy.ErrAnonymousOperation)
}

func TestAnonymousDailyStartsTodaysPuzzle(t *testing.T) {
	r := newRig(t)
	strat := r.selector.Select(true, false)
	require.Equal(t, strategy.KindAnonymousDaily, strat.Kind())

	res, err := strat.Initialize(context.Background(), api.StartOptions{})
	require.NoError(t, err)
	require.NotNil(t, res.Data)
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), res.Data.DailyDate)
	assert.Contains(t, res.Data.GameID, "-daily-")
}

func TestAuthenticatedStandardSurfacesActiveGame(t *testing.T) {
	r := newRig(t)
	r.login(t)
	ctx := context.Background()

	strat := r.selector.Select(false, true)
	require.Equal(t, strategy.KindAuthenticatedStandard, strat.Kind())

	first, err := strat.Initialize(ctx, api.StartOptions{Difficulty: config.DifficultyHard})
	require.NoError(t, err)
	require.NotNil(t, first.Data)

	second, err := strat.Initialize(ctx, api.StartOptions{})
	require.NoError(t, err)
	assert.True(t, second.ActiveGameExists)
	assert.Nil(t, second.Data)
	require.NotNil(t, second.Stats)
	assert.Equal(t, "hard", second.Stats.Difficulty)
}

func TestAuthenticatedDailyResumesAfterCompletion(t *testing.T) {
	r := newRig(t)
	r.login(t)
	ctx := context.Background()

	// An unfinished standard game exists, then today's daily gets completed.
	std := r.selector.Select(false, true)
	started, err := std.Initialize(ctx, api.StartOptions{})
	require.NoError(t, err)
	require.NotNil(t, started.Data)
	r.backend.DailyCompleted = true

	daily := r.selector.Select(true, false)
	res, err := daily.Initialize(ctx, api.StartOptions{})
	require.NoError(t, err)
	assert.True(t, res.Continued)
	require.NotNil(t, res.Data)
	assert.Equal(t, started.Data.GameID, res.Data.GameID)
	assert.NotNil(t, res.Stats)
}

func TestAuthenticatedDailyReportsCompletionWhenResumeDisabled(t *testing.T) {
	r := newRig(t)
	r.cfg.Daily.ResumeOnCompleted = false
	r.login(t)
	r.backend.DailyCompleted = true

	res, err := r.selector.Select(true, false).Initialize(context.Background(), api.StartOptions{})
	require.NoError(t, err)
	assert.True(t, res.AlreadyCompleted)
	assert.Nil(t, res.Data)
}

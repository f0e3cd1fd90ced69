// internal/strategy/strategy.go
//
// Game strategy selection for the Uncrypt client.
// Four variants share one capability interface:
//   - anonymous standard: always stateless, never resumable.
//   - anonymous daily: default mode for anonymous users.
//   - authenticated standard: checks for an active game before starting.
//   - authenticated daily: honors per-user "already completed today".
//
// The decision policy lives in Pick, a pure function, so daily-challenge
// exclusivity is testable without any network or storage.

package strategy

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/uncryptgame/uncrypt-client/internal/api"
	"github.com/uncryptgame/uncrypt-client/internal/config"
	"github.com/uncryptgame/uncrypt-client/internal/identity"
	"github.com/uncryptgame/uncrypt-client/internal/kvstore"
)

// ErrAnonymousOperation is returned when an anonymous-mode strategy is asked
// for an authenticated-only capability (continue saved game, active-game
// stats). Callers present a "log in to use this" affordance, they do not
// treat it as a bug.
var ErrAnonymousOperation = errors.New("strategy: operation requires a logged-in account")

// Kind identifies a strategy variant.
type Kind string

const (
	KindAnonymousStandard     Kind = "anonymous_standard"
	KindAnonymousDaily        Kind = "anonymous_daily"
	KindAuthenticatedStandard Kind = "authenticated_standard"
	KindAuthenticatedDaily    Kind = "authenticated_daily"
)

// InitResult is the outcome of Initialize. Exactly one of the signal fields
// is meaningful: Data on a started (or resumed) game, ActiveGameExists when a
// standard start was blocked by an in-progress game, AlreadyCompleted when
// today's challenge is done and nothing was resumable.
type InitResult struct {
	Data             *api.GameData
	ActiveGameExists bool
	Stats            *api.GameStats
	AlreadyCompleted bool
	// Continued marks a daily Initialize that fell back to resuming an
	// abandoned standard game.
	Continued bool
}

// CheckResult is the outcome of CheckActive.
type CheckResult struct {
	HasActive bool
	Stats     *api.GameStats
}

// Strategy is the common capability surface the state machine drives.
type Strategy interface {
	Kind() Kind
	Initialize(ctx context.Context, opts api.StartOptions) (*InitResult, error)
	Continue(ctx context.Context) (*api.GameData, error)
	Abandon(ctx context.Context) error
	CheckActive(ctx context.Context) (*CheckResult, error)
}

// Selector builds strategies from live auth and session state.
type Selector struct {
	api   *api.Client
	ids   *identity.Resolver
	store kvstore.Store
	cfg   *config.Config
}

func NewSelector(client *api.Client, ids *identity.Resolver, store kvstore.Store, cfg *config.Config) *Selector {
	return &Selector{api: client, ids: ids, store: store, cfg: cfg}
}

// Select resolves the strategy for the requested mode against current
// identity and any stored game id.
func (s *Selector) Select(wantsDaily, customRequested bool) Strategy {
	authed := s.ids.IsAuthenticated()
	gameID, _, _ := s.store.Get(kvstore.KeyGameID)
	idTaggedDaily := gameID != "" && strings.Contains(gameID, s.cfg.Daily.Marker)

	switch Pick(authed, wantsDaily, customRequested, idTaggedDaily) {
	case KindAnonymousStandard:
		return &anonymousStandard{api: s.api, store: s.store}
	case KindAnonymousDaily:
		return &anonymousDaily{api: s.api, store: s.store}
	case KindAuthenticatedDaily:
		return &authenticatedDaily{api: s.api, store: s.store, cfg: s.cfg}
	default:
		return &authenticatedStandard{api: s.api, store: s.store}
	}
}

// Pick is the pure decision function from (auth state, daily requested,
// custom requested, stored-id-is-daily) to a strategy kind.
//
//   - Anonymous users default into the daily puzzle; they must explicitly
//     opt into a custom game.
//   - An authenticated user with a stored daily-tagged game id stays in
//     daily mode unless a custom game is explicitly requested.
func Pick(authed, wantsDaily, customRequested, storedIDDaily bool) Kind {
	if !authed {
		if customRequested {
			return KindAnonymousStandard
		}
		return KindAnonymousDaily
	}
	if wantsDaily || (storedIDDaily && !customRequested) {
		return KindAuthenticatedDaily
	}
	return KindAuthenticatedStandard
}

// dateKey returns YYYY-MM-DD in UTC, the backend's daily-challenge key.
func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// clearLocalSession drops the stored game id and recovery snapshot.
func clearLocalSession(store kvstore.Store) error {
	if err := store.Delete(kvstore.KeyGameID); err != nil {
		return err
	}
	return store.Delete(kvstore.KeySnapshot)
}

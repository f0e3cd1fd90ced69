// internal/continuation/continuation.go
//
// Session continuation: on login or app reload, ask the backend for an
// in-progress game and offer to resume it. Finding one never auto-resumes;
// the result is surfaced so the caller can prompt the player (accept/dismiss)
// instead of silently overwriting an intent to start fresh.

package continuation

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/uncryptgame/uncrypt-client/internal/api"
	"github.com/uncryptgame/uncrypt-client/internal/game"
	"github.com/uncryptgame/uncrypt-client/internal/identity"
	"github.com/uncryptgame/uncrypt-client/internal/strategy"
)

// CheckResult reports whether an in-progress game exists server-side.
type CheckResult struct {
	HasActive bool
	Stats     *api.GameStats
}

// ContinueResult is the outcome of accepting the resume prompt.
type ContinueResult struct {
	Success        bool
	SessionExpired bool
	Err            error
}

// Coordinator queries for and restores abandoned sessions.
type Coordinator struct {
	ids      *identity.Resolver
	selector *strategy.Selector
	machine  *game.Machine
}

func NewCoordinator(ids *identity.Resolver, selector *strategy.Selector, machine *game.Machine) *Coordinator {
	return &Coordinator{ids: ids, selector: selector, machine: machine}
}

// CheckForActiveGame asks the backend for an in-progress game. Anonymous
// users have nothing resumable server-side, so this silently reports none.
func (c *Coordinator) CheckForActiveGame(ctx context.Context) (CheckResult, error) {
	if !c.ids.IsAuthenticated() {
		return CheckResult{}, nil
	}
	strat := c.selector.Select(false, true)
	res, err := strat.CheckActive(ctx)
	if errors.Is(err, strategy.ErrAnonymousOperation) {
		return CheckResult{}, nil
	}
	if err != nil {
		return CheckResult{}, err
	}
	if res.HasActive {
		log.Info().Msg("found in-progress game, awaiting player's decision")
	}
	return CheckResult{HasActive: res.HasActive, Stats: res.Stats}, nil
}

// ContinueActiveGame fetches the server snapshot and reconstructs the full
// session: display, mistakes, elapsed time, and the letter mapping rebuilt
// from the reverse-mapping table restricted to already-guessed letters.
func (c *Coordinator) ContinueActiveGame(ctx context.Context) ContinueResult {
	strat := c.selector.Select(false, true)
	data, err := strat.Continue(ctx)
	if err != nil {
		if _, expired := api.IsSessionExpired(err); expired {
			return ContinueResult{SessionExpired: true, Err: err}
		}
		return ContinueResult{Err: err}
	}
	if err := c.machine.Restore(data); err != nil {
		return ContinueResult{Err: err}
	}
	log.Info().Str("gameId", data.GameID).Int("timeSpent", data.TimeSpentSeconds).Msg("session resumed")
	return ContinueResult{Success: true}
}

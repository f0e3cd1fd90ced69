// internal/strategy/standard.go
//
// Standard (non-daily) strategies for anonymous and authenticated play.

package strategy

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/uncryptgame/uncrypt-client/internal/api"
	"github.com/uncryptgame/uncrypt-client/internal/kvstore"
)

// anonymousStandard never persists a resumable session: every call clears any
// previous game id first, so anonymous play is always stateless/fresh.
type anonymousStandard struct {
	api   *api.Client
	store kvstore.Store
}

func (s *anonymousStandard) Kind() Kind { return KindAnonymousStandard }

func (s *anonymousStandard) Initialize(ctx context.Context, opts api.StartOptions) (*InitResult, error) {
	if err := clearLocalSession(s.store); err != nil {
		return nil, err
	}
	data, err := s.api.Start(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &InitResult{Data: data}, nil
}

func (s *anonymousStandard) Continue(ctx context.Context) (*api.GameData, error) {
	return nil, ErrAnonymousOperation
}

func (s *anonymousStandard) Abandon(ctx context.Context) error {
	// Nothing to abandon server-side for a stateless session.
	return clearLocalSession(s.store)
}

func (s *anonymousStandard) CheckActive(ctx context.Context) (*CheckResult, error) {
	return nil, ErrAnonymousOperation
}

// authenticatedStandard checks for an active game before starting a new one
// and surfaces it to the caller rather than silently overwriting it.
type authenticatedStandard struct {
	api   *api.Client
	store kvstore.Store
}

func (s *authenticatedStandard) Kind() Kind { return KindAuthenticatedStandard }

func (s *authenticatedStandard) Initialize(ctx context.Context, opts api.StartOptions) (*InitResult, error) {
	check, err := s.api.CheckActive(ctx)
	if err != nil {
		// An auth failure propagates distinctly so the caller can fall back
		// to anonymous behavior; other errors are transport failures.
		return nil, err
	}
	if check.HasActiveGame {
		log.Info().Msg("active game exists, not starting a new one")
		return &InitResult{ActiveGameExists: true, Stats: check.GameStats}, nil
	}
	data, err := s.api.Start(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &InitResult{Data: data}, nil
}

func (s *authenticatedStandard) Continue(ctx context.Context) (*api.GameData, error) {
	return s.api.Continue(ctx)
}

func (s *authenticatedStandard) Abandon(ctx context.Context) error {
	if err := s.api.Abandon(ctx); err != nil {
		return err
	}
	return s.store.Delete(kvstore.KeySnapshot)
}

func (s *authenticatedStandard) CheckActive(ctx context.Context) (*CheckResult, error) {
	check, err := s.api.CheckActive(ctx)
	if err != nil {
		return nil, err
	}
	return &CheckResult{HasActive: check.HasActiveGame, Stats: check.GameStats}, nil
}

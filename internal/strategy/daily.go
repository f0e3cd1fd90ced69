// internal/strategy/daily.go
//
// Daily-challenge strategies. The daily puzzle is keyed to today's UTC date;
// completion is tracked per-user server-side for authenticated players only.

package strategy

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/uncryptgame/uncrypt-client/internal/api"
	"github.com/uncryptgame/uncrypt-client/internal/config"
	"github.com/uncryptgame/uncrypt-client/internal/kvstore"
)

// anonymousDaily is the default mode for anonymous users. The server cannot
// track completion for them, so every Initialize simply starts (or restarts)
// today's puzzle fresh.
type anonymousDaily struct {
	api   *api.Client
	store kvstore.Store
}

func (s *anonymousDaily) Kind() Kind { return KindAnonymousDaily }

func (s *anonymousDaily) Initialize(ctx context.Context, opts api.StartOptions) (*InitResult, error) {
	if err := clearLocalSession(s.store); err != nil {
		return nil, err
	}
	data, err := s.api.StartDaily(ctx, dateKey(time.Now()), opts.HardcoreMode)
	if err != nil {
		return nil, err
	}
	return &InitResult{Data: data}, nil
}

func (s *anonymousDaily) Continue(ctx context.Context) (*api.GameData, error) {
	return nil, ErrAnonymousOperation
}

func (s *anonymousDaily) Abandon(ctx context.Context) error {
	return clearLocalSession(s.store)
}

func (s *anonymousDaily) CheckActive(ctx context.Context) (*CheckResult, error) {
	return nil, ErrAnonymousOperation
}

// authenticatedDaily first checks whether today's challenge was already
// completed server-side. If so it can look for an abandoned-but-incomplete
// game to resume instead of restarting, and otherwise reports completion
// without starting a new attempt.
type authenticatedDaily struct {
	api   *api.Client
	store kvstore.Store
	cfg   *config.Config
}

func (s *authenticatedDaily) Kind() Kind { return KindAuthenticatedDaily }

func (s *authenticatedDaily) Initialize(ctx context.Context, opts api.StartOptions) (*InitResult, error) {
	data, err := s.api.StartDaily(ctx, dateKey(time.Now()), opts.HardcoreMode)
	if err != nil {
		return nil, err
	}
	if !data.AlreadyCompleted {
		return &InitResult{Data: data}, nil
	}

	log.Info().Str("date", dateKey(time.Now())).Msg("daily challenge already completed")
	if !s.cfg.Daily.ResumeOnCompleted {
		return &InitResult{AlreadyCompleted: true}, nil
	}

	// Completed today: fall back to an abandoned standard game if one exists.
	check, err := s.api.CheckActive(ctx)
	if err != nil || !check.HasActiveGame {
		return &InitResult{AlreadyCompleted: true}, nil
	}
	resumed, err := s.api.Continue(ctx)
	if err != nil {
		return &InitResult{AlreadyCompleted: true}, nil
	}
	return &InitResult{Data: resumed, Continued: true, Stats: check.GameStats}, nil
}

func (s *authenticatedDaily) Continue(ctx context.Context) (*api.GameData, error) {
	return s.api.Continue(ctx)
}

func (s *authenticatedDaily) Abandon(ctx context.Context) error {
	if err := s.api.Abandon(ctx); err != nil {
		return err
	}
	return s.store.Delete(kvstore.KeySnapshot)
}

func (s *authenticatedDaily) CheckActive(ctx context.Context) (*CheckResult, error) {
	check, err := s.api.CheckActive(ctx)
	if err != nil {
		return nil, err
	}
	return &CheckResult{HasActive: check.HasActiveGame, Stats: check.GameStats}, nil
}

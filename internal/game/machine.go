// internal/game/machine.go
//
// The game state machine: owns the active Session, applies guess/hint
// transitions, performs local win detection, and reconciles optimistic local
// state with server-confirmed win data.
// Concurrency discipline:
//   - One mutex guards all session mutation.
//   - A generation counter invalidates responses from superseded sessions
//     (reset/restart) instead of relying on cancellation.
//   - A monotonic request sequence discards guess/hint responses that arrive
//     after a later response has already been merged.
//   - Single in-flight flags gate startGame and win verification against
//     duplicate invocation.

package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/uncryptgame/uncrypt-client/internal/api"
	"github.com/uncryptgame/uncrypt-client/internal/config"
	"github.com/uncryptgame/uncrypt-client/internal/identity"
	"github.com/uncryptgame/uncrypt-client/internal/kvstore"
	"github.com/uncryptgame/uncrypt-client/internal/strategy"
)

// ErrBusy is returned when an operation is rejected because an equivalent one
// is already in flight.
var ErrBusy = errors.New("game: another operation is in flight")

// Phase machine events.
const (
	eventStart      = "start"
	eventLocalWin   = "local_win"
	eventConfirmWin = "confirm_win"
	eventRevert     = "revert"
	eventLose       = "lose"
	eventReset      = "reset"
)

func newPhaseFSM() *fsm.FSM {
	all := []string{
		string(PhaseNotStarted), string(PhaseActive),
		string(PhasePendingVerification), string(PhaseWon), string(PhaseLost),
	}
	return fsm.NewFSM(
		string(PhaseNotStarted),
		fsm.Events{
			{Name: eventStart, Src: all, Dst: string(PhaseActive)},
			{Name: eventLocalWin, Src: []string{string(PhaseActive)}, Dst: string(PhasePendingVerification)},
			{Name: eventConfirmWin, Src: []string{string(PhaseActive), string(PhasePendingVerification)}, Dst: string(PhaseWon)},
			{Name: eventRevert, Src: []string{string(PhasePendingVerification)}, Dst: string(PhaseActive)},
			{Name: eventLose, Src: []string{string(PhaseActive), string(PhasePendingVerification)}, Dst: string(PhaseLost)},
			{Name: eventReset, Src: all, Dst: string(PhaseNotStarted)},
		},
		fsm.Callbacks{},
	)
}

// Machine coordinates the active session with the remote authority.
type Machine struct {
	mu       sync.Mutex
	cfg      *config.Config
	store    kvstore.Store
	ids      *identity.Resolver
	api      *api.Client
	selector *strategy.Selector

	phases *fsm.FSM
	sess   *Session

	generation uint64
	nextSeq    uint64
	mergedSeq  uint64

	initializing bool
	verifying    bool
	highlight    *time.Timer
}

func NewMachine(cfg *config.Config, store kvstore.Store, ids *identity.Resolver, client *api.Client, selector *strategy.Selector) *Machine {
	return &Machine{
		cfg:      cfg,
		store:    store,
		ids:      ids,
		api:      client,
		selector: selector,
		phases:   newPhaseFSM(),
	}
}

// StartRequest describes which mode to start and with which options.
type StartRequest struct {
	Daily   bool
	Custom  bool
	Options api.StartOptions
}

// StartOutcome is the result-with-flags of StartGame. Success means a session
// is now active; the other flags explain why one is not.
type StartOutcome struct {
	Success          bool
	ActiveGameExists bool
	AlreadyCompleted bool
	Continued        bool
	Stats            *api.GameStats
	Err              error
}

// GuessOutcome is the result-with-flags of SubmitGuess and GetHint.
type GuessOutcome struct {
	Success             bool
	Rejected            bool // invalid local input, no network call was made
	SessionExpired      bool // caller must restart via StartGame
	Stale               bool // response superseded, state unchanged
	Won                 bool
	Lost                bool
	PendingVerification bool
	Revealed            []string // ciphertext letters revealed by this move
	Err                 error
}

// VerifyOutcome is the result of a win verification round-trip.
type VerifyOutcome struct {
	Confirmed    bool
	Reverted     bool
	Inconclusive bool
}

// ------------------------------- StartGame ---------------------------------

// StartGame selects a strategy for the requested mode and installs the
// returned session. Errors are reported in the outcome, never panicked or
// thrown; a credential rejected by the server triggers one fallback attempt
// as anonymous.
func (m *Machine) StartGame(ctx context.Context, req StartRequest) StartOutcome {
	m.mu.Lock()
	if m.initializing {
		m.mu.Unlock()
		return StartOutcome{Err: ErrBusy}
	}
	m.initializing = true
	gen := m.generation
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.initializing = false
		m.mu.Unlock()
	}()

	strat := m.selector.Select(req.Daily, req.Custom)
	res, err := strat.Initialize(ctx, req.Options)
	if errors.Is(err, api.ErrAuthRequired) {
		log.Warn().Str("strategy", string(strat.Kind())).Msg("credential rejected, falling back to anonymous")
		if cerr := m.ids.ClearCredential(); cerr != nil {
			log.Warn().Err(cerr).Msg("clear rejected credential")
		}
		strat = m.selector.Select(req.Daily, req.Custom)
		res, err = strat.Initialize(ctx, req.Options)
	}
	if err != nil {
		log.Error().Err(err).Msg("start game failed")
		return StartOutcome{Err: err}
	}
	if res.ActiveGameExists {
		return StartOutcome{ActiveGameExists: true, Stats: res.Stats}
	}
	if res.AlreadyCompleted {
		return StartOutcome{AlreadyCompleted: true}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		// Session was reset while the start request was in flight.
		return StartOutcome{Err: ErrBusy}
	}
	if err := m.installLocked(res.Data, req.Options); err != nil {
		return StartOutcome{Err: err}
	}
	return StartOutcome{Success: true, Continued: res.Continued, Stats: res.Stats}
}

// installLocked replaces the current session with one built from server data.
// Used by StartGame for fresh games and by Restore for continued ones.
func (m *Machine) installLocked(data *api.GameData, opts api.StartOptions) error {
	if data == nil || data.GameID == "" {
		return fmt.Errorf("game: server returned no game data")
	}

	cipher := strings.ToUpper(data.EncryptedParagraph)
	display := data.Display
	raw := cipher
	hardcore := data.HardcoreMode || opts.HardcoreMode
	if hardcore {
		cipher, display = FilterHardcore(cipher, display)
	}
	if len([]rune(cipher)) != len([]rune(display)) {
		return fmt.Errorf("game: ciphertext/display length mismatch (%d vs %d)",
			len([]rune(cipher)), len([]rune(display)))
	}

	diff := opts.Difficulty
	if data.Difficulty != "" {
		diff = config.DifficultyFromString(data.Difficulty)
	}
	if diff == "" {
		diff = config.DifficultyNormal
	}
	maxMistakes := data.MaxMistakes
	if maxMistakes <= 0 {
		maxMistakes = m.cfg.MistakeLimits()[diff]
	}

	guessed := make(map[string]bool, len(data.CorrectlyGuessed))
	for _, l := range data.CorrectlyGuessed {
		guessed[strings.ToUpper(l)] = true
	}
	// reverse_mapping only appears on continued sessions. Entries for letters
	// the player has not guessed yet must never reach the client mapping:
	// they would reveal the puzzle.
	mapping := map[string]string{}
	if len(data.ReverseMapping) > 0 {
		inverted := lo.Invert(data.ReverseMapping)
		mapping = lo.PickBy(inverted, func(cipherLetter, _ string) bool {
			return guessed[cipherLetter]
		})
	}

	startedAt := time.Now()
	if data.TimeSpentSeconds > 0 {
		startedAt = startedAt.Add(-time.Duration(data.TimeSpentSeconds) * time.Second)
	}

	m.sess = &Session{
		GameID:        data.GameID,
		Ciphertext:    cipher,
		RawCiphertext: raw,
		Display:       display,
		Mistakes:      data.Mistakes,
		MaxMistakes:   maxMistakes,
		Guessed:       guessed,
		Mapping:       mapping,
		Frequency:     LetterFrequency(cipher),
		Hardcore:      hardcore,
		Difficulty:    diff,
		Daily:         data.DailyDate != "" || strings.Contains(data.GameID, m.cfg.Daily.Marker),
		DailyDate:     data.DailyDate,
		StartedAt:     startedAt,
	}
	// New session, new generation: a late guess/hint response issued against
	// the previous session must never merge into this one.
	m.generation++
	m.nextSeq, m.mergedSeq = 0, 0
	m.clearHighlightLocked()
	m.transition(eventStart)

	if err := m.store.Set(kvstore.KeyGameID, data.GameID); err != nil {
		log.Warn().Err(err).Msg("persist game id")
	}
	m.writeSnapshot()
	log.Info().Str("gameId", data.GameID).Str("difficulty", string(diff)).
		Bool("hardcore", hardcore).Bool("daily", m.sess.Daily).Msg("session installed")
	return nil
}

// Restore installs a continued session from a server snapshot.
func (m *Machine) Restore(data *api.GameData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	opts := api.StartOptions{
		Difficulty:   config.DifficultyFromString(data.Difficulty),
		HardcoreMode: data.HardcoreMode,
	}
	return m.installLocked(data, opts)
}

// ------------------------------ SelectLetter -------------------------------

// SelectLetter updates the transient selection. Selecting an
// already-guessed letter is a no-op returning false; an empty letter clears
// the selection.
func (m *Machine) SelectLetter(letter string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil || m.phaseLocked() != PhaseActive {
		return false
	}
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if letter == "" {
		m.sess.Selected = ""
		return true
	}
	if len(letter) != 1 || letter[0] < 'A' || letter[0] > 'Z' {
		return false
	}
	if m.sess.Guessed[letter] {
		return false
	}
	m.sess.Selected = letter
	return true
}

// ------------------------------- SubmitGuess -------------------------------

// SubmitGuess sends one letter guess and merges the authoritative response.
// A failed guess is never auto-retried: resubmission is an explicit user
// action, so mistakes cannot be double-counted.
func (m *Machine) SubmitGuess(ctx context.Context, cipherLetter, plainLetter string) GuessOutcome {
	cipherLetter = strings.ToUpper(strings.TrimSpace(cipherLetter))
	plainLetter = strings.ToUpper(strings.TrimSpace(plainLetter))

	m.mu.Lock()
	if m.sess == nil || m.phaseLocked() != PhaseActive ||
		cipherLetter == "" || plainLetter == "" || m.sess.Guessed[cipherLetter] {
		m.mu.Unlock()
		return GuessOutcome{Rejected: true}
	}
	gameID := m.sess.GameID
	gen := m.generation
	m.nextSeq++
	seq := m.nextSeq
	m.mu.Unlock()

	res, err := m.api.Guess(ctx, gameID, cipherLetter, plainLetter)
	if err != nil {
		if se, ok := api.IsSessionExpired(err); ok {
			m.adoptReplacementID(gen, se.NewGameID)
			return GuessOutcome{SessionExpired: true, Err: err}
		}
		return GuessOutcome{Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil || m.generation != gen || seq < m.mergedSeq {
		return GuessOutcome{Stale: true}
	}
	m.mergedSeq = seq

	m.mergeDisplayLocked(res.Display)
	m.sess.Mistakes = res.Mistakes
	newly := m.mergeGuessedLocked(res.CorrectlyGuessed)
	if lo.Contains(newly, cipherLetter) {
		m.sess.Mapping[cipherLetter] = plainLetter
		m.markLastCorrectLocked(cipherLetter, gen)
		if m.sess.Selected == cipherLetter {
			m.sess.Selected = ""
		}
	}
	m.writeSnapshot()

	out := m.resolveOutcomeLocked(res, gen)
	out.Revealed = newly
	return out
}

// --------------------------------- GetHint ---------------------------------

// GetHint asks the server to reveal a letter of its choosing. The response
// carries no explicit mapping diff, so newly revealed letters are correlated
// against the updated display to rebuild the mapping.
func (m *Machine) GetHint(ctx context.Context) GuessOutcome {
	m.mu.Lock()
	if m.sess == nil || m.phaseLocked() != PhaseActive {
		m.mu.Unlock()
		return GuessOutcome{Rejected: true}
	}
	gameID := m.sess.GameID
	gen := m.generation
	m.nextSeq++
	seq := m.nextSeq
	m.mu.Unlock()

	res, err := m.api.Hint(ctx, gameID)
	if err != nil {
		if se, ok := api.IsSessionExpired(err); ok {
			m.adoptReplacementID(gen, se.NewGameID)
			return GuessOutcome{SessionExpired: true, Err: err}
		}
		return GuessOutcome{Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil || m.generation != gen || seq < m.mergedSeq {
		return GuessOutcome{Stale: true}
	}
	m.mergedSeq = seq

	m.mergeDisplayLocked(res.Display)
	m.sess.Mistakes = res.Mistakes
	newly := m.mergeGuessedLocked(res.CorrectlyGuessed)
	for _, letter := range newly {
		if plain := m.plainForCipherLocked(letter); plain != "" {
			m.sess.Mapping[letter] = plain
		}
		if m.sess.Selected == letter {
			m.sess.Selected = ""
		}
	}
	if len(newly) > 0 {
		m.markLastCorrectLocked(newly[0], gen)
	}
	m.writeSnapshot()

	out := m.resolveOutcomeLocked(res, gen)
	out.Revealed = newly
	return out
}

// ------------------------------ verification -------------------------------

// VerifyWin performs one server round-trip to confirm a pending local win.
// Inconclusive outcomes (no credential, no active game, transport failure)
// leave the session pending; the UI keeps treating it as "still playing".
func (m *Machine) VerifyWin(ctx context.Context) VerifyOutcome {
	m.mu.Lock()
	gen := m.generation
	m.mu.Unlock()
	return m.verify(ctx, gen)
}

func (m *Machine) verify(ctx context.Context, gen uint64) VerifyOutcome {
	m.mu.Lock()
	if m.verifying || m.generation != gen || m.phaseLocked() != PhasePendingVerification {
		m.mu.Unlock()
		return VerifyOutcome{Inconclusive: true}
	}
	if _, ok := m.ids.Credential(); !ok {
		// Anonymous sessions cannot be server-verified.
		m.mu.Unlock()
		return VerifyOutcome{Inconclusive: true}
	}
	m.verifying = true
	m.mu.Unlock()

	res, err := m.api.Status(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifying = false
	if m.generation != gen || m.phaseLocked() != PhasePendingVerification {
		return VerifyOutcome{Inconclusive: true}
	}
	if err != nil || res.Error != "" || (!res.HasActiveGame && !res.HasWon) {
		log.Debug().Err(err).Msg("win verification inconclusive, staying pending")
		return VerifyOutcome{Inconclusive: true}
	}
	if res.HasWon {
		m.commitWinLocked(res.WinData)
		return VerifyOutcome{Confirmed: true}
	}
	// Server explicitly says not won: back to play.
	m.transition(eventRevert)
	return VerifyOutcome{Reverted: true}
}

// scheduleVerificationLocked kicks off async verification for a pending win.
// Skipped entirely for anonymous sessions.
func (m *Machine) scheduleVerificationLocked(gen uint64) {
	if _, ok := m.ids.Credential(); !ok {
		return
	}
	timeout := m.cfg.API.Timeout
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		m.verify(ctx, gen)
	}()
}

// ---------------------------- reset & abandon ------------------------------

// ResetGame unconditionally returns to NotStarted, discarding all session
// state and invalidating any in-flight responses via the generation counter.
func (m *Machine) ResetGame() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	m.clearHighlightLocked()
	m.sess = nil
	m.verifying = false
	m.nextSeq, m.mergedSeq = 0, 0
	m.transition(eventReset)
	m.dropStoredSessionLocked()
}

// dropStoredSessionLocked clears the persisted game id and recovery snapshot
// once the session is resolved, so the stale id never rides the correlation
// header of the next start.
func (m *Machine) dropStoredSessionLocked() {
	if err := m.store.Delete(kvstore.KeyGameID); err != nil {
		log.Warn().Err(err).Msg("clear game id")
	}
	m.clearSnapshot()
}

// AbandonGame drops the current game server-side (when the mode supports it)
// and resets locally.
func (m *Machine) AbandonGame(ctx context.Context) error {
	m.mu.Lock()
	daily := m.sess != nil && m.sess.Daily
	m.mu.Unlock()

	strat := m.selector.Select(daily, false)
	err := strat.Abandon(ctx)
	m.ResetGame()
	return err
}

// -------------------------------- accessors --------------------------------

// Phase reports the current lifecycle state.
func (m *Machine) Phase() Phase {
	return Phase(m.phases.Current())
}

// Session returns a copy of the current session, or nil when not started.
func (m *Machine) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil
	}
	cp := *m.sess
	cp.Guessed = lo.Assign(map[string]bool{}, m.sess.Guessed)
	cp.Mapping = lo.Assign(map[string]string{}, m.sess.Mapping)
	cp.Frequency = lo.Assign(map[string]int{}, m.sess.Frequency)
	return &cp
}

// ------------------------------- internals ---------------------------------

func (m *Machine) phaseLocked() Phase {
	return Phase(m.phases.Current())
}

// transition applies a phase event; a no-op transition (same state) is fine.
func (m *Machine) transition(event string) {
	err := m.phases.Event(context.Background(), event)
	if err == nil {
		return
	}
	var noop fsm.NoTransitionError
	if errors.As(err, &noop) {
		return
	}
	log.Warn().Err(err).Str("event", event).Str("phase", m.phases.Current()).Msg("phase transition rejected")
}

// resolveOutcomeLocked runs loss detection, in-band win handling and local
// win detection against the merged state.
func (m *Machine) resolveOutcomeLocked(res *api.GuessResponse, gen uint64) GuessOutcome {
	out := GuessOutcome{Success: true}
	switch {
	case res.GameWon:
		if _, authed := m.ids.Credential(); !authed && !m.cfg.Game.CommitAnonymousWins {
			m.transition(eventLocalWin)
			out.PendingVerification = true
			return out
		}
		wd := &api.WinData{Mistakes: m.sess.Mistakes}
		if res.Score != nil {
			wd.Score = *res.Score
		}
		m.commitWinLocked(wd)
		out.Won = true
	case m.sess.MaxMistakes > 0 && m.sess.Mistakes >= m.sess.MaxMistakes:
		// The backend is authoritative on mistakes; reaching the limit here
		// means the game is over regardless of local bookkeeping.
		m.transition(eventLose)
		m.sess.CompletedAt = time.Now()
		m.dropStoredSessionLocked()
		out.Lost = true
	case allRevealed(m.sess.Display, m.cfg.Game.Placeholder):
		m.transition(eventLocalWin)
		out.PendingVerification = true
		m.scheduleVerificationLocked(gen)
	}
	return out
}

func (m *Machine) commitWinLocked(wd *api.WinData) {
	m.transition(eventConfirmWin)
	m.sess.CompletedAt = time.Now()
	m.sess.WinData = wd
	m.dropStoredSessionLocked()
	score := 0
	if wd != nil {
		score = wd.Score
	}
	log.Info().Str("gameId", m.sess.GameID).Int("score", score).Msg("win confirmed")
}

// mergeDisplayLocked adopts the server's display, re-filtering it when the
// server sent the unfiltered text for a hardcore session. A display whose
// length cannot be reconciled is discarded to preserve the length invariant.
func (m *Machine) mergeDisplayLocked(display string) {
	if display == "" {
		return
	}
	if m.sess.Hardcore {
		dl := len([]rune(display))
		if dl == len([]rune(m.sess.RawCiphertext)) && dl != len([]rune(m.sess.Ciphertext)) {
			_, display = FilterHardcore(m.sess.RawCiphertext, display)
		}
	}
	if len([]rune(display)) != len([]rune(m.sess.Ciphertext)) {
		log.Warn().Int("got", len([]rune(display))).Int("want", len([]rune(m.sess.Ciphertext))).
			Msg("discarding display of mismatched length")
		return
	}
	m.sess.Display = display
}

// mergeGuessedLocked unions the server's correctly-guessed list into the
// session set and returns the newly added letters. The set only grows.
func (m *Machine) mergeGuessedLocked(letters []string) []string {
	var newly []string
	for _, l := range letters {
		l = strings.ToUpper(l)
		if l != "" && !m.sess.Guessed[l] {
			m.sess.Guessed[l] = true
			newly = append(newly, l)
		}
	}
	return newly
}

// plainForCipherLocked finds the plaintext letter revealed for a ciphertext
// letter by scanning the display for a revealed position of that letter.
func (m *Machine) plainForCipherLocked(letter string) string {
	target := []rune(letter)[0]
	dr := []rune(m.sess.Display)
	for i, r := range []rune(m.sess.Ciphertext) {
		if r == target && i < len(dr) && dr[i] != m.cfg.Game.Placeholder {
			return string(dr[i])
		}
	}
	return ""
}

// markLastCorrectLocked sets the highlight and arms its clearing timer.
// Cancelling any previous timer guarantees exactly one highlight at a time.
func (m *Machine) markLastCorrectLocked(letter string, gen uint64) {
	m.clearHighlightLocked()
	m.sess.LastCorrect = letter
	m.highlight = time.AfterFunc(m.cfg.Game.HighlightClearDelay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.generation == gen && m.sess != nil && m.sess.LastCorrect == letter {
			m.sess.LastCorrect = ""
		}
	})
}

func (m *Machine) clearHighlightLocked() {
	if m.highlight != nil {
		m.highlight.Stop()
		m.highlight = nil
	}
}

// adoptReplacementID records a server-issued replacement game id after a
// session expiry. The dead session's fields are left untouched; the caller
// restarts via StartGame.
func (m *Machine) adoptReplacementID(gen uint64, newID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		return
	}
	if newID == "" {
		if err := m.store.Delete(kvstore.KeyGameID); err != nil {
			log.Warn().Err(err).Msg("discard stale game id")
		}
		return
	}
	if err := m.store.Set(kvstore.KeyGameID, newID); err != nil {
		log.Warn().Err(err).Msg("adopt replacement game id")
	}
	log.Info().Str("gameId", newID).Msg("session expired, adopted replacement game id")
}

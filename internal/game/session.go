// internal/game/session.go
//
// Canonical in-memory representation of an active cryptogram puzzle.
// Defines:
//   - Session: all per-puzzle state (ciphertext, display, guesses, mapping).
//   - Phase: the session lifecycle states driven by the fsm in machine.go.
//   - Text helpers: hardcore filtering, letter frequency, win detection.

package game

import (
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/uncryptgame/uncrypt-client/internal/api"
	"github.com/uncryptgame/uncrypt-client/internal/config"
)

// Phase is the session lifecycle state.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseActive     Phase = "active"
	// PhasePendingVerification: the display contains no placeholders but the
	// win has not been confirmed by the server yet.
	PhasePendingVerification Phase = "pending_verification"
	PhaseWon                 Phase = "won"
	PhaseLost                Phase = "lost"
)

// Session is the canonical puzzle state. Exactly one session is current at a
// time; starting a new one invalidates the previous.
type Session struct {
	GameID string

	// Ciphertext is immutable once the session starts. In hardcore mode it is
	// the filtered (letters-only) text; RawCiphertext keeps the unfiltered
	// original so later server responses can be re-filtered in lockstep.
	Ciphertext    string
	RawCiphertext string

	// Display mirrors Ciphertext position-for-position; unguessed positions
	// hold the placeholder sentinel.
	Display string

	Mistakes    int
	MaxMistakes int

	// Guessed is the set of ciphertext letters already revealed.
	Guessed map[string]bool
	// Mapping is the partial cipher→plain letter mapping; only letters in
	// Guessed are populated.
	Mapping map[string]string
	// Frequency counts each letter's occurrences in Ciphertext; computed once
	// at session start, read-only thereafter.
	Frequency map[string]int

	// Selected is the transient UI selection; not persisted across reload.
	Selected string
	// LastCorrect is the transient highlight for the most recent reveal.
	LastCorrect string

	Hardcore   bool
	Difficulty config.Difficulty
	Daily      bool
	DailyDate  string

	StartedAt   time.Time
	CompletedAt time.Time
	WinData     *api.WinData
}

// GuessedLetters returns the revealed ciphertext letters in sorted order.
func (s *Session) GuessedLetters() []string {
	out := lo.Keys(s.Guessed)
	sort.Strings(out)
	return out
}

// ------------------------------ text helpers -------------------------------

// FilterHardcore strips every position whose ciphertext rune is not an
// uppercase letter from both texts in lockstep, preserving the length
// invariant. Filtering an already-filtered pair produces no further change.
func FilterHardcore(cipher, display string) (string, string) {
	cr := []rune(cipher)
	dr := []rune(display)
	fc := make([]rune, 0, len(cr))
	fd := make([]rune, 0, len(dr))
	for i, r := range cr {
		if r < 'A' || r > 'Z' {
			continue
		}
		fc = append(fc, r)
		if i < len(dr) {
			fd = append(fd, dr[i])
		}
	}
	return string(fc), string(fd)
}

// LetterFrequency counts occurrences of each letter A–Z in the ciphertext.
func LetterFrequency(cipher string) map[string]int {
	freq := make(map[string]int, 26)
	for _, r := range cipher {
		if r >= 'A' && r <= 'Z' {
			freq[string(r)]++
		}
	}
	return freq
}

// allRevealed reports whether the display contains no placeholder sentinels.
// This is the local win heuristic; it must always be followed by server
// confirmation before the session commits to a win.
func allRevealed(display string, placeholder rune) bool {
	return !strings.ContainsRune(display, placeholder)
}

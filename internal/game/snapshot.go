// internal/game/snapshot.go
//
// Best-effort recovery snapshot of the active session, written to durable
// storage after every successful mutation so a restart does not lose an
// in-flight puzzle. Informational only: on next load the server-confirmed
// session (via the continuation coordinator) remains authoritative.

package game

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/uncryptgame/uncrypt-client/internal/config"
	"github.com/uncryptgame/uncrypt-client/internal/kvstore"
)

type snapshot struct {
	GameID           string            `json:"game_id"`
	Ciphertext       string            `json:"ciphertext"`
	RawCiphertext    string            `json:"raw_ciphertext,omitempty"`
	Display          string            `json:"display"`
	Mistakes         int               `json:"mistakes"`
	MaxMistakes      int               `json:"max_mistakes"`
	CorrectlyGuessed []string          `json:"correctly_guessed"`
	Mapping          map[string]string `json:"mapping"`
	Frequency        map[string]int    `json:"frequency"`
	StartedAt        time.Time         `json:"started_at"`
	Hardcore         bool              `json:"hardcore_mode"`
	Difficulty       string            `json:"difficulty"`
	Daily            bool              `json:"is_daily"`
	DailyDate        string            `json:"daily_date,omitempty"`
}

// writeSnapshot persists the current session under the fixed session key.
// Failures are logged, never propagated: losing a snapshot must not fail a
// game action.
func (m *Machine) writeSnapshot() {
	if m.sess == nil {
		return
	}
	snap := snapshot{
		GameID:           m.sess.GameID,
		Ciphertext:       m.sess.Ciphertext,
		RawCiphertext:    m.sess.RawCiphertext,
		Display:          m.sess.Display,
		Mistakes:         m.sess.Mistakes,
		MaxMistakes:      m.sess.MaxMistakes,
		CorrectlyGuessed: m.sess.GuessedLetters(),
		Mapping:          m.sess.Mapping,
		Frequency:        m.sess.Frequency,
		StartedAt:        m.sess.StartedAt,
		Hardcore:         m.sess.Hardcore,
		Difficulty:       string(m.sess.Difficulty),
		Daily:            m.sess.Daily,
		DailyDate:        m.sess.DailyDate,
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		log.Warn().Err(err).Msg("encode recovery snapshot")
		return
	}
	if err := m.store.Set(kvstore.KeySnapshot, string(raw)); err != nil {
		log.Warn().Err(err).Str("gameId", m.sess.GameID).Msg("persist recovery snapshot")
	}
}

// clearSnapshot drops the persisted snapshot once the session is resolved.
func (m *Machine) clearSnapshot() {
	if err := m.store.Delete(kvstore.KeySnapshot); err != nil {
		log.Warn().Err(err).Msg("clear recovery snapshot")
	}
}

// LoadSnapshot reads the persisted recovery snapshot, if any. Exposed for a
// front end that wants to show "found an unfinished puzzle" before the
// coordinator has confirmed anything with the server.
func LoadSnapshot(store kvstore.Store) (*Session, bool) {
	raw, ok, err := store.Get(kvstore.KeySnapshot)
	if err != nil || !ok || raw == "" {
		return nil, false
	}
	var snap snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		log.Warn().Err(err).Msg("discarding unreadable snapshot")
		return nil, false
	}
	guessed := make(map[string]bool, len(snap.CorrectlyGuessed))
	for _, l := range snap.CorrectlyGuessed {
		guessed[l] = true
	}
	return &Session{
		GameID:        snap.GameID,
		Ciphertext:    snap.Ciphertext,
		RawCiphertext: snap.RawCiphertext,
		Display:       snap.Display,
		Mistakes:      snap.Mistakes,
		MaxMistakes:   snap.MaxMistakes,
		Guessed:       guessed,
		Mapping:       snap.Mapping,
		Frequency:     snap.Frequency,
		StartedAt:     snap.StartedAt,
		Hardcore:      snap.Hardcore,
		Difficulty:    config.DifficultyFromString(snap.Difficulty),
		Daily:         snap.Daily,
		DailyDate:     snap.DailyDate,
	}, true
}

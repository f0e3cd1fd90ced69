// internal/game/viewmodel.go
//
// Derived read model consumed by a front end. Everything here is computed
// from the session; nothing is stored.

package game

import (
	"github.com/samber/lo"

	"github.com/uncryptgame/uncrypt-client/internal/api"
)

// ViewModel is a point-in-time projection of the active session.
type ViewModel struct {
	Phase             Phase             `json:"phase"`
	Ciphertext        string            `json:"ciphertext"`
	Display           string            `json:"display"`
	Mistakes          int               `json:"mistakes"`
	MaxMistakes       int               `json:"maxMistakes"`
	MistakesRemaining int               `json:"mistakesRemaining"`
	Selected          string            `json:"selected,omitempty"`
	SelectedCount     int               `json:"selectedCount"`
	LastCorrect       string            `json:"lastCorrect,omitempty"`
	GuessedLetters    []string          `json:"guessedLetters"`
	Mapping           map[string]string `json:"mapping"`
	Frequency         map[string]int    `json:"frequency"`
	Hardcore          bool              `json:"hardcoreMode"`
	Daily             bool              `json:"isDailyChallenge"`
	WinData           *api.WinData      `json:"winData,omitempty"`
}

// ViewModel projects the current session. A zero ViewModel (phase
// not_started) is returned when no session is active.
func (m *Machine) ViewModel() ViewModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return ViewModel{Phase: m.phaseLocked()}
	}
	remaining := m.sess.MaxMistakes - m.sess.Mistakes
	if remaining < 0 {
		remaining = 0
	}
	return ViewModel{
		Phase:             m.phaseLocked(),
		Ciphertext:        m.sess.Ciphertext,
		Display:           m.sess.Display,
		Mistakes:          m.sess.Mistakes,
		MaxMistakes:       m.sess.MaxMistakes,
		MistakesRemaining: remaining,
		Selected:          m.sess.Selected,
		SelectedCount:     m.sess.Frequency[m.sess.Selected],
		LastCorrect:       m.sess.LastCorrect,
		GuessedLetters:    m.sess.GuessedLetters(),
		Mapping:           lo.Assign(map[string]string{}, m.sess.Mapping),
		Frequency:         lo.Assign(map[string]int{}, m.sess.Frequency),
		Hardcore:          m.sess.Hardcore,
		Daily:             m.sess.Daily,
		WinData:           m.sess.WinData,
	}
}

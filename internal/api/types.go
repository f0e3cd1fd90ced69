// internal/api/types.go
//
// Wire types for the Uncrypt backend contract.
// Response shapes mirror the backend's JSON field names (snake_case); the
// backend owns puzzle generation and scoring, the client only consumes these.

package api

import "github.com/uncryptgame/uncrypt-client/internal/config"

// StartOptions configures a new standard game.
type StartOptions struct {
	LongText     bool
	Difficulty   config.Difficulty
	HardcoreMode bool
}

// GameData is the full session payload returned by start, daily start and
// continue-game. Not every field is present on every endpoint: reverse_mapping
// and time_spent only appear on continue-game, already_completed only on the
// daily variant.
type GameData struct {
	GameID             string            `json:"game_id"`
	EncryptedParagraph string            `json:"encrypted_paragraph"`
	Display            string            `json:"display"`
	Mistakes           int               `json:"mistakes"`
	OriginalLetters    []string          `json:"original_letters"`
	MaxMistakes        int               `json:"max_mistakes,omitempty"`
	Difficulty         string            `json:"difficulty,omitempty"`
	HardcoreMode       bool              `json:"hardcore_mode,omitempty"`
	CorrectlyGuessed   []string          `json:"correctly_guessed,omitempty"`
	ReverseMapping     map[string]string `json:"reverse_mapping,omitempty"`
	TimeSpentSeconds   int               `json:"time_spent,omitempty"`
	AlreadyCompleted   bool              `json:"already_completed,omitempty"`
	DailyDate          string            `json:"daily_date,omitempty"`
	Error              string            `json:"error,omitempty"`
}

// GuessResponse is returned by both guess and hint. The hint variant never
// carries a score; game_won may appear on either when the move finished the
// puzzle server-side.
type GuessResponse struct {
	Display          string   `json:"display"`
	Mistakes         int      `json:"mistakes"`
	CorrectlyGuessed []string `json:"correctly_guessed"`
	GameWon          bool     `json:"game_won,omitempty"`
	Score            *int     `json:"score,omitempty"`
	GameID           string   `json:"game_id,omitempty"` // replacement id on session expiry
	Error            string   `json:"error,omitempty"`
}

// WinData is the server-confirmed completion record attached on a won game.
type WinData struct {
	Score            int    `json:"score"`
	GameTimeSeconds  int    `json:"game_time_seconds"`
	Mistakes         int    `json:"mistakes"`
	Rating           string `json:"rating,omitempty"`
	MajorAttribution string `json:"major_attribution,omitempty"`
	MinorAttribution string `json:"minor_attribution,omitempty"`
}

// StatusResponse is returned by game-status.
type StatusResponse struct {
	HasActiveGame bool     `json:"hasActiveGame"`
	HasWon        bool     `json:"hasWon"`
	WinData       *WinData `json:"winData,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// GameStats summarizes an in-progress game for the resume prompt.
type GameStats struct {
	Difficulty        string  `json:"difficulty"`
	Mistakes          int     `json:"mistakes"`
	MaxMistakes       int     `json:"max_mistakes"`
	CompletionPercent float64 `json:"completion_percentage"`
	TimeSpentSeconds  int     `json:"time_spent"`
}

// ActiveGameCheck is returned by check-active-game.
type ActiveGameCheck struct {
	HasActiveGame bool       `json:"has_active_game"`
	GameStats     *GameStats `json:"game_stats,omitempty"`
}

// UserData is returned by the auth endpoints.
type UserData struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Token    string `json:"token"`
	Error    string `json:"error,omitempty"`
}

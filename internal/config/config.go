// internal/config/config.go
//
// Environment-driven configuration for the Uncrypt client.
// Responsibilities:
//   - One sub-struct per concern (API transport, storage, game rules, daily mode).
//   - Load() reads everything from the environment with sensible defaults.
//   - Validation of cross-field consistency (ruleset names, timeouts).
//
// The mistake-limit tables are deliberately configuration rather than constants:
// the backend has shipped two rulesets over time and the client must be able to
// match whichever one the server enforces.

package config

import (
	"fmt"
	"time"
)

// Ruleset names for the difficulty → max-mistakes tables.
const (
	RulesetClassic = "classic" // easy=8, normal=5, hard=3
	RulesetStrict  = "strict"  // easy=7, normal=4, hard=2
)

// Difficulty levels accepted by the backend.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

// DifficultyFromString maps a wire value to a Difficulty, defaulting to
// normal for anything unrecognized.
func DifficultyFromString(s string) Difficulty {
	switch Difficulty(s) {
	case DifficultyEasy, DifficultyNormal, DifficultyHard:
		return Difficulty(s)
	default:
		return DifficultyNormal
	}
}

type Config struct {
	API     APIConfig
	Storage StorageConfig
	Game    GameConfig
	Daily   DailyConfig
	Logging LoggingConfig
}

type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type StorageConfig struct {
	// Path of the SQLite file backing durable storage. Only used when
	// RememberMe is true; otherwise storage is session-scoped (in memory).
	Path       string
	RememberMe bool
}

type GameConfig struct {
	Ruleset string
	// Placeholder is the sentinel rune shown for unguessed positions.
	Placeholder rune
	// HighlightClearDelay is how long the "last correct guess" marker stays set.
	HighlightClearDelay time.Duration
	// CommitAnonymousWins controls whether an anonymous session may commit to a
	// win on an in-band game_won response. Anonymous sessions are never verified
	// via the status endpoint either way.
	CommitAnonymousWins bool
}

type DailyConfig struct {
	// ResumeOnCompleted: when today's challenge is already done, look for an
	// abandoned standard game to resume instead of reporting completion only.
	ResumeOnCompleted bool
	// Marker is the substring in a game id that tags it as a daily session.
	Marker string
}

type LoggingConfig struct {
	Level string
}

// Load builds a Config from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		API: APIConfig{
			BaseURL: getEnvString("UNCRYPT_API_URL", "http://localhost:5050"),
			Timeout: getEnvDuration("UNCRYPT_API_TIMEOUT", 10*time.Second),
		},
		Storage: StorageConfig{
			Path:       getEnvString("UNCRYPT_STORE_PATH", "./data/uncrypt.db"),
			RememberMe: getEnvBool("UNCRYPT_REMEMBER_ME", true),
		},
		Game: GameConfig{
			Ruleset:             getEnvString("UNCRYPT_RULESET", RulesetClassic),
			Placeholder:         []rune(getEnvString("UNCRYPT_PLACEHOLDER", "█"))[0],
			HighlightClearDelay: getEnvDuration("UNCRYPT_HIGHLIGHT_DELAY", 500*time.Millisecond),
			CommitAnonymousWins: getEnvBool("UNCRYPT_COMMIT_ANON_WINS", true),
		},
		Daily: DailyConfig{
			ResumeOnCompleted: getEnvBool("UNCRYPT_DAILY_RESUME", true),
			Marker:            getEnvString("UNCRYPT_DAILY_MARKER", "-daily-"),
		},
		Logging: LoggingConfig{
			Level: getEnvString("LOG_LEVEL", "info"),
		},
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// MistakeLimits returns the difficulty table for the configured ruleset.
func (c *Config) MistakeLimits() map[Difficulty]int {
	if c.Game.Ruleset == RulesetStrict {
		return map[Difficulty]int{
			DifficultyEasy:   7,
			DifficultyNormal: 4,
			DifficultyHard:   2,
		}
	}
	return map[Difficulty]int{
		DifficultyEasy:   8,
		DifficultyNormal: 5,
		DifficultyHard:   3,
	}
}

func validate(c *Config) error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("API base URL must not be empty")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("API timeout must be positive, got %v", c.API.Timeout)
	}
	switch c.Game.Ruleset {
	case RulesetClassic, RulesetStrict:
	default:
		return fmt.Errorf("unknown ruleset %q", c.Game.Ruleset)
	}
	if c.Daily.Marker == "" {
		return fmt.Errorf("daily marker must not be empty")
	}
	return nil
}

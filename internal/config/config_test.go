package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5050", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, RulesetClassic, cfg.Game.Ruleset)
	assert.Equal(t, '█', cfg.Game.Placeholder)
	assert.True(t, cfg.Game.CommitAnonymousWins)
	assert.True(t, cfg.Daily.ResumeOnCompleted)
	assert.Equal(t, "-daily-", cfg.Daily.Marker)
	assert.True(t, cfg.Storage.RememberMe)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("UNCRYPT_API_URL", "https://uncrypt.example.com")
	t.Setenv("UNCRYPT_API_TIMEOUT", "3s")
	t.Setenv("UNCRYPT_RULESET", "strict")
	t.Setenv("UNCRYPT_PLACEHOLDER", "?")
	t.Setenv("UNCRYPT_REMEMBER_ME", "false")
	t.Setenv("UNCRYPT_COMMIT_ANON_WINS", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://uncrypt.example.com", cfg.API.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, RulesetStrict, cfg.Game.Ruleset)
	assert.Equal(t, '?', cfg.Game.Placeholder)
	assert.False(t, cfg.Storage.RememberMe)
	assert.False(t, cfg.Game.CommitAnonymousWins)
}

func TestLoadRejectsUnknownRuleset(t *testing.T) {
	t.Setenv("UNCRYPT_RULESET", "extreme")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ruleset")
}

func TestMistakeLimits(t *testing.T) {
	tests := []struct {
		ruleset string
		want    map[Difficulty]int
	}{
		{RulesetClassic, map[Difficulty]int{DifficultyEasy: 8, DifficultyNormal: 5, DifficultyHard: 3}},
		{RulesetStrict, map[Difficulty]int{DifficultyEasy: 7, DifficultyNormal: 4, DifficultyHard: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.ruleset, func(t *testing.T) {
			cfg := &Config{Game: GameConfig{Ruleset: tt.ruleset}}
			assert.Equal(t, tt.want, cfg.MistakeLimits())
		})
	}
}

func TestDifficultyFromString(t *testing.T) {
	assert.Equal(t, DifficultyEasy, DifficultyFromString("easy"))
	assert.Equal(t, DifficultyHard, DifficultyFromString("hard"))
	assert.Equal(t, DifficultyNormal, DifficultyFromString(""))
	assert.Equal(t, DifficultyNormal, DifficultyFromString("nightmare"))
}

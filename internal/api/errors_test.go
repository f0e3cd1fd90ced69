package api

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSessionExpiredMessage(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"Session expired - please start a new game", true},
		{"session not found", true},
		{"Game not found", true},
		{"GAME NOT FOUND", true},
		{"invalid letter", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, isSessionExpiredMessage(tt.msg))
		})
	}
}

func TestIsSessionExpiredUnwraps(t *testing.T) {
	inner := &SessionExpiredError{NewGameID: "g2"}
	wrapped := fmt.Errorf("submit guess: %w", inner)

	se, ok := IsSessionExpired(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "g2", se.NewGameID)

	_, ok = IsSessionExpired(fmt.Errorf("plain failure"))
	assert.False(t, ok)
}

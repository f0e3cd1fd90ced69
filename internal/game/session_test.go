package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterHardcore(t *testing.T) {
	tests := []struct {
		name        string
		cipher      string
		display     string
		wantCipher  string
		wantDisplay string
	}{
		{
			name:        "spaces removed in lockstep",
			cipher:      "XYZ XY",
			display:     "███ ██",
			wantCipher:  "XYZXY",
			wantDisplay: "█████",
		},
		{
			name:        "punctuation removed",
			cipher:      "AB, CD!",
			display:     "██, ██!",
			wantCipher:  "ABCD",
			wantDisplay: "████",
		},
		{
			name:        "partially revealed display follows its cipher position",
			cipher:      "AB CD",
			display:     "E█ █F",
			wantCipher:  "ABCD",
			wantDisplay: "E██F",
		},
		{
			name:        "letters only is unchanged",
			cipher:      "ABCDE",
			display:     "█████",
			wantCipher:  "ABCDE",
			wantDisplay: "█████",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, d := FilterHardcore(tt.cipher, tt.display)
			assert.Equal(t, tt.wantCipher, c)
			assert.Equal(t, tt.wantDisplay, d)

			// Filtering must be idempotent.
			c2, d2 := FilterHardcore(c, d)
			assert.Equal(t, c, c2)
			assert.Equal(t, d, d2)
		})
	}
}

func TestLetterFrequency(t *testing.T) {
	freq := LetterFrequency("XYZ XY!")
	assert.Equal(t, map[string]int{"X": 2, "Y": 2, "Z": 1}, freq)
	assert.Empty(t, LetterFrequency("123 ..."))
}

func TestAllRevealed(t *testing.T) {
	assert.False(t, allRevealed("HE██O", '█'))
	assert.True(t, allRevealed("HELLO WORLD!", '█'))
	assert.True(t, allRevealed("", '█'))
}

func TestGuessedLettersSorted(t *testing.T) {
	s := &Session{Guessed: map[string]bool{"Q": true, "A": true, "M": true}}
	assert.Equal(t, []string{"A", "M", "Q"}, s.GuessedLetters())
}

// internal/backendtest/engine.go
//
// Puzzle engine for the fake backend: deterministic-enough substitution
// ciphers over a small embedded quote list. Only what the client contract
// needs; scoring is a toy formula.

package backendtest

import (
	"bufio"
	"crypto/rand"
	_ "embed"
	"encoding/hex"
	"math/big"
	"strings"
	"time"
)

//go:embed quotes.txt
var embeddedQuotes string

const placeholder = '█'

// fakeGame is one server-side puzzle session.
type fakeGame struct {
	ID          string
	Plain       string        // uppercase plaintext
	Cipher      string        // substitution-encoded text
	mapping     map[rune]rune // cipher letter → plain letter
	display     []rune
	mistakes    int
	maxMistakes int
	correctly   []string
	difficulty  string
	hardcore    bool
	dailyDate   string
	started     time.Time
	won         bool
	abandoned   bool
}

func quotes() []string {
	var out []string
	sc := bufio.NewScanner(strings.NewReader(embeddedQuotes))
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, strings.ToUpper(s))
	}
	return out
}

// newFakeGame encrypts a quote (or the supplied plaintext) with a random
// substitution alphabet.
func newFakeGame(idPrefix, plain, difficulty string, maxMistakes int, hardcore bool, dailyDate string) *fakeGame {
	if plain == "" {
		qs := quotes()
		plain = qs[randInt(len(qs))]
	}
	plain = strings.ToUpper(plain)

	key := shuffledAlphabet()
	toCipher := make(map[rune]rune, 26)
	toPlain := make(map[rune]rune, 26)
	for i := 0; i < 26; i++ {
		p := rune('A' + i)
		c := key[i]
		toCipher[p] = c
		toPlain[c] = p
	}

	var cipher, display []rune
	for _, r := range plain {
		if r >= 'A' && r <= 'Z' {
			cipher = append(cipher, toCipher[r])
			display = append(display, placeholder)
		} else {
			cipher = append(cipher, r)
			display = append(display, r)
		}
	}

	return &fakeGame{
		ID:          idPrefix + randomID(),
		Plain:       plain,
		Cipher:      string(cipher),
		mapping:     toPlain,
		display:     display,
		maxMistakes: maxMistakes,
		difficulty:  difficulty,
		hardcore:    hardcore,
		dailyDate:   dailyDate,
		started:     time.Now(),
	}
}

// applyGuess checks one cipher→plain guess, revealing every occurrence on a
// hit and counting a mistake on a miss.
func (g *fakeGame) applyGuess(cipherLetter, plainLetter string) {
	c := []rune(strings.ToUpper(cipherLetter))[0]
	p := []rune(strings.ToUpper(plainLetter))[0]
	if g.mapping[c] == p {
		g.reveal(c)
		return
	}
	g.mistakes++
}

// applyHint reveals the first still-hidden cipher letter at the cost of a
// mistake.
func (g *fakeGame) applyHint() {
	cr := []rune(g.Cipher)
	for i := range cr {
		if g.display[i] == placeholder {
			g.reveal(cr[i])
			g.mistakes++
			return
		}
	}
}

func (g *fakeGame) reveal(cipherLetter rune) {
	for i, r := range []rune(g.Cipher) {
		if r == cipherLetter {
			g.display[i] = g.mapping[cipherLetter]
		}
	}
	g.correctly = append(g.correctly, string(cipherLetter))
	if g.solved() {
		g.won = true
	}
}

func (g *fakeGame) solved() bool {
	for _, r := range g.display {
		if r == placeholder {
			return false
		}
	}
	return true
}

func (g *fakeGame) displayText() string { return string(g.display) }

// reverseMapping returns plain → cipher for continue-game payloads.
func (g *fakeGame) reverseMapping() map[string]string {
	out := make(map[string]string, len(g.mapping))
	for c, p := range g.mapping {
		out[string(p)] = string(c)
	}
	return out
}

func (g *fakeGame) score() int {
	s := 2500 - 250*g.mistakes - int(time.Since(g.started).Seconds())
	if s < 0 {
		s = 0
	}
	return s
}

func (g *fakeGame) completionPercent() float64 {
	letters, revealed := 0, 0
	for i, r := range []rune(g.Cipher) {
		if r >= 'A' && r <= 'Z' {
			letters++
			if g.display[i] != placeholder {
				revealed++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return 100 * float64(revealed) / float64(letters)
}

// ------------------------------- randomness --------------------------------

func shuffledAlphabet() []rune {
	key := []rune("ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	for i := len(key) - 1; i > 0; i-- {
		j := randInt(i + 1)
		key[i], key[j] = key[j], key[i]
	}
	return key
}

func randInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

// randomID returns a compact 16-hex-char identifier.
func randomID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

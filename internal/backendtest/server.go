// internal/backendtest/server.go
//
// In-process fake of the Uncrypt backend contract, used by package tests
// across the module. Implements the endpoints the client depends on:
//   - POST /api/start, /api/longstart, /api/daily
//   - POST /api/guess, /api/hint, /api/abandon-game
//   - GET  /api/game-status, /api/continue-game, /api/check-active-game
//   - POST /api/login, /api/signup, /api/logout
//
// Knobs (ExpireNextMove, FailAuth, DailyCompleted, NextPlain) let tests
// script the failure modes the real backend exhibits. Correlation headers
// (X-Game-Id, X-Session-ID) are reissued on start and continue responses,
// matching the real backend's behavior of not reissuing them elsewhere.

package backendtest

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

const (
	headerGameID    = "X-Game-Id"
	headerSessionID = "X-Session-ID"
)

type authUser struct {
	ID       string
	Username string
}

type ctxUserKey struct{}

// Server is the scripted fake backend.
type Server struct {
	r      *chi.Mux
	secret []byte

	mu           sync.Mutex
	games        map[string]*fakeGame
	activeByUser map[string]string // user key → active game id
	lastGameID   string

	// Knobs, set by tests before issuing requests.
	Difficulty      string
	MaxMistakes     int
	NextPlain       string
	DailyCompleted  bool
	ExpireNextMove  bool
	SuppressWinFlag bool
	ReplacementID   string
	FailAuth        bool
	WinRating       string
	Attribution     string
}

// New constructs a fake backend with default settings.
func New() *Server {
	s := &Server{
		r:            chi.NewRouter(),
		secret:       []byte("backendtest_secret"),
		games:        make(map[string]*fakeGame),
		activeByUser: make(map[string]string),
		Difficulty:   "normal",
		MaxMistakes:  5,
	}

	s.r.Use(s.withOptionalAuth)

	s.r.Post("/api/start", s.handleStart)
	s.r.Post("/api/longstart", s.handleStart)
	s.r.Post("/api/daily", s.handleDaily)
	s.r.Post("/api/guess", s.handleGuess)
	s.r.Post("/api/hint", s.handleHint)
	s.r.Get("/api/game-status", s.handleStatus)
	s.r.Get("/api/continue-game", s.handleContinue)
	s.r.Post("/api/abandon-game", s.handleAbandon)
	s.r.Get("/api/check-active-game", s.handleCheckActive)
	s.r.Post("/api/login", s.handleLogin)
	s.r.Post("/api/signup", s.handleLogin)
	s.r.Post("/api/logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true})
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.r.ServeHTTP(w, r) }

// MintToken signs a JWT the way the real backend does, valid for an hour.
func (s *Server) MintToken(id, username string) string {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       id,
		"username": username,
		"exp":      time.Now().Add(time.Hour).Unix(),
		"iat":      time.Now().Unix(),
	})
	ss, _ := t.SignedString(s.secret)
	return ss
}

// LastGameID returns the id of the most recently created game.
func (s *Server) LastGameID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastGameID
}

// Solution exposes the cipher→plain mapping of a game for assertions.
func (s *Server) Solution(gameID string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(g.mapping))
	for c, p := range g.mapping {
		out[string(c)] = string(p)
	}
	return out
}

// --------------------------------- auth ------------------------------------

// withOptionalAuth decorates requests with user context when a valid token is
// present; it never 401s on its own so guests can play.
func (s *Server) withOptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
			tok := strings.TrimSpace(a[7:])
			claims := jwt.MapClaims{}
			if t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
				return s.secret, nil
			}); err == nil && t.Valid {
				id, _ := claims["id"].(string)
				username, _ := claims["username"].(string)
				if id != "" {
					ctx := context.WithValue(r.Context(), ctxUserKey{}, &authUser{ID: id, Username: username})
					r = r.WithContext(ctx)
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// userKey identifies the caller: user id when authenticated, otherwise the
// session correlation header (assigned on first start).
func (s *Server) userKey(r *http.Request) string {
	if u, _ := r.Context().Value(ctxUserKey{}).(*authUser); u != nil {
		return u.ID
	}
	if sid := r.Header.Get(headerSessionID); sid != "" {
		return sid
	}
	return "anon"
}

func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (*authUser, bool) {
	if s.FailAuth {
		http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
		return nil, false
	}
	u, _ := r.Context().Value(ctxUserKey{}).(*authUser)
	if u == nil {
		http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
		return nil, false
	}
	return u, true
}

// -------------------------------- handlers ---------------------------------

type startReq struct {
	Difficulty   string `json:"difficulty"`
	HardcoreMode bool   `json:"hardcore_mode"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startReq
	_ = json.NewDecoder(r.Body).Decode(&req)
	diff := req.Difficulty
	if diff == "" {
		diff = s.Difficulty
	}

	s.mu.Lock()
	g := newFakeGame("", s.NextPlain, diff, s.MaxMistakes, req.HardcoreMode, "")
	s.games[g.ID] = g
	s.activeByUser[s.userKey(r)] = g.ID
	s.lastGameID = g.ID
	sid := r.Header.Get(headerSessionID)
	if sid == "" {
		sid = "sess-" + randomID()
	}
	s.mu.Unlock()

	w.Header().Set(headerGameID, g.ID)
	w.Header().Set(headerSessionID, sid)
	writeJSON(w, s.gamePayload(g, false))
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}
	if u, _ := r.Context().Value(ctxUserKey{}).(*authUser); u != nil && s.DailyCompleted {
		writeJSON(w, map[string]any{"already_completed": true, "daily_date": date})
		return
	}

	var req startReq
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	g := newFakeGame(date+"-daily-", s.NextPlain, "easy", s.MaxMistakes, req.HardcoreMode, date)
	s.games[g.ID] = g
	s.activeByUser[s.userKey(r)] = g.ID
	s.lastGameID = g.ID
	s.mu.Unlock()

	w.Header().Set(headerGameID, g.ID)
	writeJSON(w, s.gamePayload(g, false))
}

type moveReq struct {
	GameID          string `json:"game_id"`
	EncryptedLetter string `json:"encrypted_letter"`
	GuessedLetter   string `json:"guessed_letter"`
}

func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	var req moveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ExpireNextMove {
		s.ExpireNextMove = false
		writeJSON(w, map[string]any{
			"error":   "Session expired - please start a new game",
			"game_id": s.ReplacementID,
		})
		return
	}
	g, ok := s.games[s.moveGameID(r, req.GameID)]
	if !ok || g.abandoned {
		writeJSON(w, map[string]any{"error": "Game not found"})
		return
	}
	g.applyGuess(req.EncryptedLetter, req.GuessedLetter)
	writeJSON(w, s.movePayload(g))
}

func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	var req moveReq
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ExpireNextMove {
		s.ExpireNextMove = false
		writeJSON(w, map[string]any{
			"error":   "Session expired - please start a new game",
			"game_id": s.ReplacementID,
		})
		return
	}
	g, ok := s.games[s.moveGameID(r, req.GameID)]
	if !ok || g.abandoned {
		writeJSON(w, map[string]any{"error": "Game not found"})
		return
	}
	g.applyHint()
	writeJSON(w, s.movePayload(g))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	u, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id, active := s.activeByUser[u.ID]
	g := s.games[id]
	if !active || g == nil || g.abandoned {
		writeJSON(w, map[string]any{"hasActiveGame": false, "hasWon": false})
		return
	}
	out := map[string]any{"hasActiveGame": true, "hasWon": g.won}
	if g.won {
		out["winData"] = map[string]any{
			"score":             g.score(),
			"game_time_seconds": int(time.Since(g.started).Seconds()),
			"mistakes":          g.mistakes,
			"rating":            s.WinRating,
			"major_attribution": s.Attribution,
		}
	}
	writeJSON(w, out)
}

func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request) {
	u, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id, active := s.activeByUser[u.ID]
	g := s.games[id]
	if !active || g == nil || g.abandoned {
		writeJSON(w, map[string]any{"error": "Game not found"})
		return
	}
	w.Header().Set(headerGameID, g.ID)
	writeJSON(w, s.gamePayload(g, true))
}

func (s *Server) handleAbandon(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.userKey(r)
	if id, ok := s.activeByUser[key]; ok {
		if g := s.games[id]; g != nil {
			g.abandoned = true
		}
		delete(s.activeByUser, key)
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (s *Server) handleCheckActive(w http.ResponseWriter, r *http.Request) {
	u, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id, active := s.activeByUser[u.ID]
	g := s.games[id]
	if !active || g == nil || g.abandoned || g.won {
		writeJSON(w, map[string]any{"has_active_game": false})
		return
	}
	writeJSON(w, map[string]any{
		"has_active_game": true,
		"game_stats": map[string]any{
			"difficulty":            g.difficulty,
			"mistakes":              g.mistakes,
			"max_mistakes":          g.maxMistakes,
			"completion_percentage": g.completionPercent(),
			"time_spent":            int(time.Since(g.started).Seconds()),
		},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Username == "" {
		writeJSON(w, map[string]any{"error": "invalid credentials"})
		return
	}
	id := "user-" + body.Username
	writeJSON(w, map[string]any{
		"id":       id,
		"username": body.Username,
		"token":    s.MintToken(id, body.Username),
	})
}

// -------------------------------- payloads ---------------------------------

// moveGameID resolves the game a guess/hint addresses: explicit body id first,
// header correlation second.
func (s *Server) moveGameID(r *http.Request, bodyID string) string {
	if bodyID != "" {
		return bodyID
	}
	return r.Header.Get(headerGameID)
}

// gamePayload renders the full session shape used by start/daily/continue.
func (s *Server) gamePayload(g *fakeGame, withSnapshot bool) map[string]any {
	letters := map[string]bool{}
	for _, r := range g.Plain {
		if r >= 'A' && r <= 'Z' {
			letters[string(r)] = true
		}
	}
	original := make([]string, 0, len(letters))
	for l := range letters {
		original = append(original, l)
	}

	out := map[string]any{
		"game_id":             g.ID,
		"encrypted_paragraph": g.Cipher,
		"display":             g.displayText(),
		"mistakes":            g.mistakes,
		"original_letters":    original,
		"max_mistakes":        g.maxMistakes,
		"difficulty":          g.difficulty,
		"hardcore_mode":       g.hardcore,
	}
	if g.dailyDate != "" {
		out["daily_date"] = g.dailyDate
	}
	if withSnapshot {
		out["reverse_mapping"] = g.reverseMapping()
		out["correctly_guessed"] = g.correctly
		out["time_spent"] = int(time.Since(g.started).Seconds())
	}
	return out
}

// movePayload renders the guess/hint response shape.
func (s *Server) movePayload(g *fakeGame) map[string]any {
	out := map[string]any{
		"display":           g.displayText(),
		"mistakes":          g.mistakes,
		"correctly_guessed": g.correctly,
	}
	if g.won && !s.SuppressWinFlag {
		out["game_won"] = true
		out["score"] = g.score()
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}

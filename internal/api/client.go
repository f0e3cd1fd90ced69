// internal/api/client.go
//
// Typed HTTP client for the Uncrypt backend.
// Responsibilities:
//   - One method per backend capability (start, guess, hint, status,
//     continue, abandon, check-active, daily start, auth passthroughs).
//   - Identification headers on every request: bearer token when present,
//     stored game/session correlation ids, and a fresh request id.
//   - Header round-trip: X-Game-Id / X-Session-ID returned by the server are
//     persisted for subsequent requests. This is the only session-continuity
//     mechanism between independent HTTP calls.
//   - Error normalization per errors.go. No retries live here; retry policy
//     belongs to the caller.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/uncryptgame/uncrypt-client/internal/config"
	"github.com/uncryptgame/uncrypt-client/internal/identity"
	"github.com/uncryptgame/uncrypt-client/internal/kvstore"
)

// Correlation headers exchanged with the backend.
const (
	headerGameID    = "X-Game-Id"
	headerSessionID = "X-Session-ID"
	headerRequestID = "X-Request-ID"
)

// Client wraps the backend's puzzle endpoints.
type Client struct {
	http  *http.Client
	base  string
	store kvstore.Store
	ids   *identity.Resolver
}

// New constructs a Client. The store is shared with the rest of the client
// app; correlation ids written here are read by the strategies and machine.
func New(cfg config.APIConfig, store kvstore.Store, ids *identity.Resolver) *Client {
	return &Client{
		http:  &http.Client{Timeout: cfg.Timeout},
		base:  cfg.BaseURL,
		store: store,
		ids:   ids,
	}
}

// Start begins a new standard game.
func (c *Client) Start(ctx context.Context, opts StartOptions) (*GameData, error) {
	path := "/api/start"
	if opts.LongText {
		path = "/api/longstart"
	}
	body := map[string]any{
		"difficulty":    string(opts.Difficulty),
		"hardcore_mode": opts.HardcoreMode,
	}
	var out GameData
	if err := c.doJSON(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	if err := c.normalizeError(out.Error, out.GameID); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartDaily begins (or reports completion of) the daily challenge for date
// ("YYYY-MM-DD").
func (c *Client) StartDaily(ctx context.Context, date string, hardcore bool) (*GameData, error) {
	path := "/api/daily?date=" + url.QueryEscape(date)
	body := map[string]any{"hardcore_mode": hardcore}
	var out GameData
	if err := c.doJSON(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	if err := c.normalizeError(out.Error, out.GameID); err != nil {
		return nil, err
	}
	return &out, nil
}

// Guess submits a single letter guess for the given game.
func (c *Client) Guess(ctx context.Context, gameID, cipherLetter, plainLetter string) (*GuessResponse, error) {
	body := map[string]any{
		"encrypted_letter": cipherLetter,
		"guessed_letter":   plainLetter,
		"game_id":          gameID,
	}
	var out GuessResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/guess", body, &out); err != nil {
		return nil, err
	}
	if err := c.normalizeError(out.Error, out.GameID); err != nil {
		return nil, err
	}
	return &out, nil
}

// Hint asks the server to reveal a letter of its choosing. Costs a mistake,
// enforced server-side.
func (c *Client) Hint(ctx context.Context, gameID string) (*GuessResponse, error) {
	body := map[string]any{"game_id": gameID}
	var out GuessResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/hint", body, &out); err != nil {
		return nil, err
	}
	if err := c.normalizeError(out.Error, out.GameID); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status fetches the win/active state of the current session. Unlike the
// other endpoints an in-band error here is returned verbatim inside the
// response: the caller treats it as inconclusive, not as expiry.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/game-status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Continue fetches the full snapshot of an in-progress game.
func (c *Client) Continue(ctx context.Context) (*GameData, error) {
	var out GameData
	if err := c.doJSON(ctx, http.MethodGet, "/api/continue-game", nil, &out); err != nil {
		return nil, err
	}
	if err := c.normalizeError(out.Error, out.GameID); err != nil {
		return nil, err
	}
	return &out, nil
}

// Abandon tells the server to drop the current game and clears the local
// game id.
func (c *Client) Abandon(ctx context.Context) error {
	var out struct {
		Error string `json:"error,omitempty"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/abandon-game", nil, &out); err != nil {
		return err
	}
	return c.store.Delete(kvstore.KeyGameID)
}

// CheckActive asks whether the authenticated user has an in-progress game.
func (c *Client) CheckActive(ctx context.Context) (*ActiveGameCheck, error) {
	var out ActiveGameCheck
	if err := c.doJSON(ctx, http.MethodGet, "/api/check-active-game", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ----------------------------- auth passthroughs ---------------------------

// Login authenticates and persists the returned credential.
func (c *Client) Login(ctx context.Context, username, password string) (*UserData, error) {
	var out UserData
	body := map[string]string{"username": username, "password": password}
	if err := c.doJSON(ctx, http.MethodPost, "/api/login", body, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, fmt.Errorf("api: login failed: %s", out.Error)
	}
	if err := c.ids.SaveCredential(identity.Credential{
		Token: out.Token, UserID: out.ID, Username: out.Username,
	}); err != nil {
		return nil, err
	}
	return &out, nil
}

// Signup registers a new account and persists the returned credential.
func (c *Client) Signup(ctx context.Context, username, password string) (*UserData, error) {
	var out UserData
	body := map[string]string{"username": username, "password": password}
	if err := c.doJSON(ctx, http.MethodPost, "/api/signup", body, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, fmt.Errorf("api: signup failed: %s", out.Error)
	}
	if err := c.ids.SaveCredential(identity.Credential{
		Token: out.Token, UserID: out.ID, Username: out.Username,
	}); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout clears the persisted credential. Best effort server-side.
func (c *Client) Logout(ctx context.Context) error {
	var out struct {
		Error string `json:"error,omitempty"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/logout", nil, &out); err != nil {
		log.Warn().Err(err).Msg("logout request failed, clearing credential anyway")
	}
	return c.ids.ClearCredential()
}

// ------------------------------- internals ---------------------------------

// normalizeError maps an in-band error field to a typed error. A replacement
// game id accompanying an expiry is propagated on the error, not persisted:
// adopting it is the caller's decision.
func (c *Client) normalizeError(msg, newGameID string) error {
	if msg == "" {
		return nil
	}
	if isSessionExpiredMessage(msg) {
		return &SessionExpiredError{NewGameID: newGameID}
	}
	return fmt.Errorf("api: backend error: %s", msg)
}

// doJSON performs one request/response cycle: marshal body, attach headers,
// execute, map status codes, decode JSON, capture correlation headers.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerRequestID, uuid.NewString())

	sentGameID := c.attachCorrelation(req)

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized {
		return ErrAuthRequired
	}
	if res.StatusCode >= 500 {
		return fmt.Errorf("api: %s %s: server returned %d", method, path, res.StatusCode)
	}

	c.captureCorrelation(res, sentGameID)

	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("api: decode response: %w", err)
		}
	}
	return nil
}

// attachCorrelation sets auth and correlation headers from persisted state and
// returns the game id the request was issued with.
func (c *Client) attachCorrelation(req *http.Request) string {
	if cred, ok := c.ids.Credential(); ok {
		req.Header.Set("Authorization", "Bearer "+cred.Token)
	}
	gameID, _, _ := c.store.Get(kvstore.KeyGameID)
	if gameID != "" {
		req.Header.Set(headerGameID, gameID)
	}
	if sessionID, _, _ := c.store.Get(kvstore.KeySessionID); sessionID != "" {
		req.Header.Set(headerSessionID, sessionID)
	}
	return gameID
}

// captureCorrelation persists any reissued correlation ids. Absence of these
// headers is normal; not every endpoint reissues them. The game id is only
// overwritten if the stored value still matches what this request was issued
// with, so a late response from an abandoned session cannot clobber the id of
// a freshly started one.
func (c *Client) captureCorrelation(res *http.Response, sentGameID string) {
	if v := res.Header.Get(headerSessionID); v != "" {
		if err := c.store.Set(kvstore.KeySessionID, v); err != nil {
			log.Warn().Err(err).Msg("persist session id")
		}
	}
	v := res.Header.Get(headerGameID)
	if v == "" {
		return
	}
	current, _, _ := c.store.Get(kvstore.KeyGameID)
	if current != sentGameID {
		log.Debug().Str("stale", v).Str("current", current).Msg("discarding game id from superseded session")
		return
	}
	if err := c.store.Set(kvstore.KeyGameID, v); err != nil {
		log.Warn().Err(err).Msg("persist game id")
	}
}

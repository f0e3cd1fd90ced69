// internal/identity/identity.go
//
// Session identity resolution for the Uncrypt client.
// Responsibilities:
//   - Decide whether the current user is anonymous or authenticated by
//     inspecting the persisted credential.
//   - Treat expired tokens as absent (anonymous), not as errors.
//   - Store/clear the credential on login/logout.
//
// The resolver knows nothing about game content; absence of a credential is a
// valid state, not a failure.

package identity

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/uncryptgame/uncrypt-client/internal/kvstore"
)

// Credential is the persisted auth state for a logged-in user.
type Credential struct {
	Token    string `json:"token"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Resolver reads and writes the credential through the injected store.
type Resolver struct {
	store kvstore.Store
}

func NewResolver(store kvstore.Store) *Resolver {
	return &Resolver{store: store}
}

// IsAuthenticated reports whether a usable credential is present.
func (r *Resolver) IsAuthenticated() bool {
	_, ok := r.Credential()
	return ok
}

// Credential returns the persisted credential, or false when the user is
// anonymous. A credential whose token has expired counts as anonymous.
func (r *Resolver) Credential() (*Credential, bool) {
	raw, ok, err := r.store.Get(kvstore.KeyCredential)
	if err != nil || !ok || raw == "" {
		return nil, false
	}
	var c Credential
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		log.Warn().Err(err).Msg("discarding unreadable credential")
		return nil, false
	}
	if c.Token == "" || c.UserID == "" {
		return nil, false
	}
	if tokenExpired(c.Token) {
		log.Debug().Str("user", c.UserID).Msg("stored token expired, treating as anonymous")
		return nil, false
	}
	return &c, true
}

// SaveCredential persists the credential for subsequent sessions.
func (r *Resolver) SaveCredential(c Credential) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return r.store.Set(kvstore.KeyCredential, string(raw))
}

// ClearCredential removes the persisted credential (logout).
func (r *Resolver) ClearCredential() error {
	return r.store.Delete(kvstore.KeyCredential)
}

// tokenExpired inspects the token's exp claim without verifying the signature.
// The client has no signing secret; verification belongs to the backend. A
// token that cannot be parsed at all is treated as expired.
func tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		// No exp claim: assume the backend issued a non-expiring token.
		return false
	}
	return exp.Before(time.Now())
}

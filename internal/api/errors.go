// internal/api/errors.go
//
// Error taxonomy for the transport layer:
//   - transport errors: wrapped network/decoding failures, state unchanged.
//   - ErrAuthRequired: HTTP 401, caller falls back to anonymous behavior.
//   - SessionExpiredError: the backend reported the session dead via its
//     textual error field; carries any replacement game id.

package api

import (
	"errors"
	"strings"
)

// ErrAuthRequired is returned when the backend rejects the credential (401).
var ErrAuthRequired = errors.New("api: authentication required")

// SessionExpiredError indicates the current game id is no longer valid
// server-side. The caller must discard the old id and restart rather than
// continue a dead session.
type SessionExpiredError struct {
	// NewGameID is the replacement id the server issued, if any.
	NewGameID string
}

func (e *SessionExpiredError) Error() string {
	return "api: session expired"
}

// IsSessionExpired reports whether err is a SessionExpiredError.
func IsSessionExpired(err error) (*SessionExpiredError, bool) {
	var se *SessionExpiredError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Session expiry arrives as a textual error field rather than a distinct HTTP
// status. Pattern-matching on the message is fragile but is the de facto
// backend contract and must be preserved.
var sessionExpiredPhrases = []string{
	"session expired",
	"session not found",
	"game not found",
}

func isSessionExpiredMessage(msg string) bool {
	m := strings.ToLower(msg)
	for _, p := range sessionExpiredPhrases {
		if strings.Contains(m, p) {
			return true
		}
	}
	return false
}

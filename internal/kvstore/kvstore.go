// internal/kvstore/kvstore.go
//
// Persistent key-value storage for the Uncrypt client.
// This is the single injected storage capability the rest of the module depends
// on; nothing else touches disk or ambient globals. Two implementations:
//   - Memory: session-scoped storage ("remember me" off) and tests.
//   - SQLite: durable storage surviving restarts ("remember me" on).
//
// Well-known keys are centralized here so the api client, the game machine and
// the identity resolver agree on where shared values live.

package kvstore

import "sync"

// Well-known storage keys.
const (
	// KeyGameID holds the backend-issued id of the current game.
	KeyGameID = "uncrypt_game_id"
	// KeySessionID holds the backend-issued session correlation id.
	KeySessionID = "uncrypt_session_id"
	// KeyCredential holds the JSON-encoded auth credential.
	KeyCredential = "uncrypt_credential"
	// KeySnapshot holds the JSON-encoded recovery snapshot of the active game.
	KeySnapshot = "uncrypt_game_snapshot"
)

// Store is the persistence interface for client state.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)

	// Set stores or replaces the value for key.
	Set(key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error

	// Clear removes every key.
	Clear() error
}

// memory is a map-backed Store implementation.
type memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory constructs an in-memory Store.
func NewMemory() Store {
	return &memory{values: make(map[string]string)}
}

func (m *memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string]string)
	return nil
}

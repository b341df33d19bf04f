// Package session holds the client's authentication state: the session
// token and the identity it was verified for. It is the single source of
// truth for "is this client authenticated".
package session

import (
	"encoding/json"
	"errors"
	"sync"

	evbus "github.com/asaskevich/EventBus"

	"plexman/storage"
)

const (
	// storageBucket and storageKey locate the persisted session record in
	// durable client storage. The token is the only secret persisted
	// client-side.
	storageBucket = "session"
	storageKey    = "authToken"

	// TopicChanged is published on the store's event bus whenever the
	// session is set or cleared. Subscribers receive the new Snapshot.
	TopicChanged = "session:changed"
)

// Snapshot is a point-in-time view of the session.
type Snapshot struct {
	Token    string
	Username string
}

// IsAuthenticated reports whether the client holds a verified session:
// a token alone (e.g. freshly rehydrated, not yet verified) is not enough.
func (s Snapshot) IsAuthenticated() bool {
	return s.Token != "" && s.Username != ""
}

// persistedSession is the durable form of the session. Token and username
// are written and removed together so the stored record can never hold one
// without the other.
type persistedSession struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Store is an observable session container. All mutation goes through Set
// and Clear, which persist and notify atomically with respect to Get.
type Store struct {
	mu       sync.RWMutex
	repo     storage.Repository
	bus      evbus.Bus
	token    string
	username string
}

// New creates a Store persisting through repo. Nothing is loaded until
// Hydrate is called.
func New(repo storage.Repository) *Store {
	return &Store{
		repo: repo,
		bus:  evbus.New(),
	}
}

// Hydrate loads a previously persisted session token, if any. Only the token
// is exposed; the username stays absent until the token has been verified
// against the backend, so a stale record can never present as authenticated.
func (s *Store) Hydrate() error {
	data, err := s.repo.Get(storageBucket, storageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	var persisted persistedSession
	if err := json.Unmarshal(data, &persisted); err != nil {
		// Unreadable record: treat as logged out and drop it.
		_ = s.repo.Delete(storageBucket, storageKey)
		return nil
	}

	s.mu.Lock()
	s.token = persisted.Token
	s.username = ""
	s.mu.Unlock()
	return nil
}

// Get returns the current session snapshot.
func (s *Store) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Token: s.token, Username: s.username}
}

// Set stores token and username as one unit, persists them, and notifies
// subscribers. Both fields must be non-empty.
func (s *Store) Set(token, username string) error {
	if token == "" || username == "" {
		return errors.New("session requires both token and username")
	}
	data, err := json.Marshal(persistedSession{Token: token, Username: username})
	if err != nil {
		return err
	}
	if err := s.repo.Put(storageBucket, storageKey, data); err != nil {
		return err
	}

	s.mu.Lock()
	s.token = token
	s.username = username
	snapshot := Snapshot{Token: s.token, Username: s.username}
	s.mu.Unlock()

	s.bus.Publish(TopicChanged, snapshot)
	return nil
}

// Clear removes the session from memory and durable storage and notifies
// subscribers. Clearing an already-empty store is a no-op that still
// removes any persisted record.
func (s *Store) Clear() error {
	if err := s.repo.Delete(storageBucket, storageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	s.mu.Lock()
	s.token = ""
	s.username = ""
	s.mu.Unlock()

	s.bus.Publish(TopicChanged, Snapshot{})
	return nil
}

// Subscribe registers fn to run synchronously whenever the session changes.
func (s *Store) Subscribe(fn func(Snapshot)) error {
	return s.bus.Subscribe(TopicChanged, fn)
}

// Unsubscribe removes a previously registered handler.
func (s *Store) Unsubscribe(fn func(Snapshot)) error {
	return s.bus.Unsubscribe(TopicChanged, fn)
}

package session

import (
	"sync"
	"time"

	"github.com/okalas/relay/providers/observability"
)

const (
	// DefaultRetention is how long an idle session survives before the sweep
	// reaps it.
	DefaultRetention = 24 * time.Hour

	// DefaultSweepInterval is the minimum spacing between two sweeps; lookups
	// inside the window never pay the sweep cost.
	DefaultSweepInterval = time.Hour
)

// Store is a concurrent in-memory session registry with lazy expiry sweeping.
// Sessions are reaped when idle longer than the retention window; the sweep
// runs opportunistically on lookups, at most once per sweep interval.
type Store struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	lastSweep time.Time

	retention     time.Duration
	sweepInterval time.Duration
	defaults      Settings
	observer      observability.Observer
}

// StoreOption customizes a Store at construction time.
type StoreOption func(*Store)

// WithRetention overrides the idle-session retention window.
func WithRetention(retention time.Duration) StoreOption {
	return func(store *Store) { store.retention = retention }
}

// WithSweepInterval overrides the minimum interval between sweeps.
func WithSweepInterval(interval time.Duration) StoreOption {
	return func(store *Store) { store.sweepInterval = interval }
}

// WithObserver sets the structured logger used to report sweeps.
func WithObserver(observer observability.Observer) StoreOption {
	return func(store *Store) { store.observer = observer }
}

// NewStore builds a Store whose new sessions start from defaults.
func NewStore(defaults Settings, opts ...StoreOption) *Store {
	store := &Store{
		sessions:      make(map[string]*Session),
		lastSweep:     time.Now(),
		retention:     DefaultRetention,
		sweepInterval: DefaultSweepInterval,
		defaults:      defaults,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// GetOrCreate returns the session with the given id, refreshing its activity
// timestamp, or registers a new one seeded from the store defaults. An empty
// id always creates a session with a generated id.
func (store *Store) GetOrCreate(id, userID string) *Session {
	return store.create(id, userID, store.defaults)
}

// Create registers a new session with the store defaults overlaid by the
// given overrides; nil fields keep the default, so an explicit zero (a
// temperature of 0, say) is honored. If a session with the id already exists
// it is returned unchanged.
func (store *Store) Create(id, userID string, overrides SettingsUpdate) (*Session, error) {
	if err := overrides.Validate(); err != nil {
		return nil, err
	}

	settings := store.defaults
	if overrides.Model != nil {
		settings.Model = *overrides.Model
	}
	if overrides.Temperature != nil {
		settings.Temperature = *overrides.Temperature
	}
	if overrides.MaxTokens != nil {
		settings.MaxTokens = *overrides.MaxTokens
	}
	if overrides.SystemPrompt != nil {
		settings.SystemPrompt = *overrides.SystemPrompt
	}
	if overrides.MaxHistory != nil {
		settings.MaxHistory = *overrides.MaxHistory
	}
	return store.create(id, userID, settings), nil
}

func (store *Store) create(id, userID string, settings Settings) *Session {
	now := time.Now()

	store.mu.Lock()
	store.sweepLocked(now)

	if id != "" {
		if existing, ok := store.sessions[id]; ok {
			store.mu.Unlock()
			existing.Touch()
			return existing
		}
	}

	s := newSession(id, userID, settings, now)
	store.sessions[s.ID] = s
	store.mu.Unlock()

	return s
}

// Get returns the session with the given id, refreshing its activity
// timestamp. Absent ids report ok=false.
func (store *Store) Get(id string) (*Session, bool) {
	store.mu.Lock()
	store.sweepLocked(time.Now())
	s, ok := store.sessions[id]
	store.mu.Unlock()

	if ok {
		s.Touch()
	}
	return s, ok
}

// Delete removes the session with the given id and reports whether it existed.
func (store *Store) Delete(id string) bool {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, ok := store.sessions[id]; !ok {
		return false
	}
	delete(store.sessions, id)
	return true
}

// Count returns the number of live sessions.
func (store *Store) Count() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.sessions)
}

// All returns a snapshot of the live sessions.
func (store *Store) All() []*Session {
	store.mu.Lock()
	defer store.mu.Unlock()

	out := make([]*Session, 0, len(store.sessions))
	for _, s := range store.sessions {
		out = append(out, s)
	}
	return out
}

// sweepLocked reaps sessions idle past the retention window. It is throttled
// to at most one pass per sweep interval. Callers must hold store.mu.
func (store *Store) sweepLocked(now time.Time) {
	if now.Sub(store.lastSweep) < store.sweepInterval {
		return
	}
	store.lastSweep = now

	reaped := 0
	for id, s := range store.sessions {
		if now.Sub(s.LastActivity()) > store.retention {
			delete(store.sessions, id)
			reaped++
		}
	}

	if reaped > 0 && store.observer != nil {
		store.observer.Info(observability.EventStoreSweep,
			observability.Int(observability.AttrSessionReaped, reaped),
			observability.Int("store.remaining", len(store.sessions)),
		)
	}
}

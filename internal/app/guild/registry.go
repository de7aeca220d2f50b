// Package guild provides the registry of per-guild playback state.
package guild

import (
	"sync"

	"github.com/akira-bot/deejay/internal/app/setlist"
	"github.com/akira-bot/deejay/internal/domain/voice"
)

// State is the independently lockable state of one guild.
// Every field except ID must be accessed with the lock held.
type State struct {
	mu     sync.Mutex
	joinMu sync.Mutex // Serializes connect and idle disconnect; acquired before mu

	ID      string
	Setlist *setlist.Setlist
	Player  voice.Player // nil while not connected

	generation uint64      // Incremented on every play attempt; tags completion callbacks
	idleTimer  func() bool // Stops the pending idle check, if any
}

// Lock acquires the guild lock.
func (s *State) Lock() { s.mu.Lock() }

// Unlock releases the guild lock.
func (s *State) Unlock() { s.mu.Unlock() }

// LockJoin acquires the connection lock. It must not be acquired while holding the guild lock.
func (s *State) LockJoin() { s.joinMu.Lock() }

// UnlockJoin releases the connection lock.
func (s *State) UnlockJoin() { s.joinMu.Unlock() }

// NextGeneration starts a new play attempt and returns its tag.
func (s *State) NextGeneration() uint64 {
	s.generation++
	return s.generation
}

// Generation returns the tag of the latest play attempt.
func (s *State) Generation() uint64 {
	return s.generation
}

// ArmIdleTimer replaces the pending idle check.
func (s *State) ArmIdleTimer(stop func() bool) {
	s.StopIdleTimer()
	s.idleTimer = stop
}

// StopIdleTimer stops the pending idle check. Stale checks that already fired must still
// re-validate the setlist themselves.
func (s *State) StopIdleTimer() {
	if s.idleTimer != nil {
		s.idleTimer()
		s.idleTimer = nil
	}
}

// Registry maps guild IDs to their state with thread-safe access.
type Registry struct {
	mu     sync.RWMutex
	guilds map[string]*State
}

// NewRegistry creates a new guild registry.
func NewRegistry() *Registry {
	return &Registry{
		guilds: make(map[string]*State),
	}
}

// Get returns the state for guildID, creating it on first use.
func (r *Registry) Get(guildID string) *State {
	r.mu.RLock()
	s, ok := r.guilds[guildID]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if s, ok := r.guilds[guildID]; ok {
		return s
	}
	s = &State{
		ID:      guildID,
		Setlist: setlist.New(),
	}
	r.guilds[guildID] = s
	return s
}

// Lookup returns the state for guildID without creating it.
func (r *Registry) Lookup(guildID string) (*State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.guilds[guildID]
	return s, ok
}

// Remove forgets a guild. The caller is responsible for disconnecting its player.
func (r *Registry) Remove(guildID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.guilds, guildID)
}

// All returns every known guild state.
func (r *Registry) All() []*State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*State, 0, len(r.guilds))
	for _, s := range r.guilds {
		result = append(result, s)
	}
	return result
}

// Count returns the number of known guilds.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.guilds)
}

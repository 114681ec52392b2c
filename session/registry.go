package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/freepay/freepay/logger"
)

// DefaultIdleTimeout is how long a session may sit with no activity before
// it self-transitions to Failed.
const DefaultIdleTimeout = 30 * time.Second

// Registry owns all live sessions. Lookups and transitions may race (a
// command response against a timeout), so access goes through a lock and
// terminal transitions are resolved inside the Machine itself.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Machine

	idleTimeout time.Duration
	log         logger.Logger
}

// NewRegistry creates a session registry. A zero idleTimeout selects
// DefaultIdleTimeout.
func NewRegistry(idleTimeout time.Duration, log logger.Logger) *Registry {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Registry{
		sessions:    make(map[string]*Machine),
		idleTimeout: idleTimeout,
		log:         log,
	}
}

// New starts a fresh Idle session. Sessions are never reused; every tap
// begins here.
func (r *Registry) New(provider AddressProvider, launcher WalletLauncher) *Machine {
	m := &Machine{
		id:          uuid.NewString(),
		provider:    provider,
		launcher:    launcher,
		log:         r.log,
		state:       Idle,
		startedAt:   time.Now(),
		idleTimeout: r.idleTimeout,
	}
	m.timer = time.AfterFunc(r.idleTimeout, func() {
		m.expire()
		r.Remove(m.id)
	})

	r.mu.Lock()
	r.sessions[m.id] = m
	r.mu.Unlock()

	r.log.Debug("session started", map[string]any{"session": m.id})
	return m
}

// Get returns a live session by id.
func (r *Registry) Get(id string) (*Machine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.sessions[id]
	return m, ok
}

// Remove drops a session from the registry and releases its timer. The
// machine keeps its terminal state for any caller still holding it.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	m, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		m.mu.Lock()
		m.stopTimerLocked()
		m.mu.Unlock()
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

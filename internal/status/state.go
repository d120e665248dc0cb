package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/dmelo/parley/internal/bus"
)

// State represents the session axis of the client.
type State string

const (
	// Anonymous means no accepted credential is held.
	Anonymous State = "ANONYMOUS"
	// Authenticating means a login request is in flight.
	Authenticating State = "AUTHENTICATING"
	// Authenticated means the server accepted the held token at least once.
	Authenticated State = "AUTHENTICATED"
)

// validTransitions defines allowed state transitions. A failed login returns
// to Anonymous; logout and session expiry drop Authenticated to Anonymous.
var validTransitions = map[State][]State{
	Anonymous:      {Authenticating},
	Authenticating: {Authenticated, Anonymous},
	Authenticated:  {Anonymous},
}

// StatusChange is the payload published on every transition.
type StatusChange struct {
	From State
	To   State
}

// Machine tracks and enforces session state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Anonymous state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Anonymous,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Emit(bus.KindStatusChanged, StatusChange{From: from, To: to})
	}
	return nil
}

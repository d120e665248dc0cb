package status

import (
	"testing"

	"github.com/dmelo/parley/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Anonymous {
		t.Errorf("initial state = %s, want ANONYMOUS", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Anonymous, Authenticating},
		{Authenticating, Authenticated},
		{Authenticating, Anonymous},
		{Authenticated, Anonymous},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Authenticated); err == nil {
		t.Error("Transition(ANONYMOUS -> AUTHENTICATED) should fail")
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Authenticating); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.KindStatusChanged {
		t.Errorf("event kind = %q, want %q", evt.Kind, bus.KindStatusChanged)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Anonymous || change.To != Authenticating {
		t.Errorf("change = %+v, want Anonymous -> Authenticating", change)
	}
}

// walkTo drives the machine from Anonymous to the requested state.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	switch target {
	case Anonymous:
	case Authenticating:
		mustTransition(t, m, Authenticating)
	case Authenticated:
		mustTransition(t, m, Authenticating)
		mustTransition(t, m, Authenticated)
	}
}

func mustTransition(t *testing.T, m *Machine, to State) {
	t.Helper()
	if err := m.Transition(to); err != nil {
		t.Fatal(err)
	}
}

package checkout

import (
	"fmt"
	"sync"

	"github.com/nikolayk812/restaurant-checkout/internal/domain"
)

// Machine owns the submission state of one checkout session.
// Every transition is a compare-and-set under the lock.
type Machine struct {
	mu       sync.Mutex
	state    domain.SubmissionState
	reason   string
	onChange func(domain.SubmissionState)
}

func NewMachine(onChange func(domain.SubmissionState)) *Machine {
	return &Machine{
		state:    domain.SubmissionIdle,
		onChange: onChange,
	}
}

func (m *Machine) State() domain.SubmissionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// FailureReason is set while the state is Failed.
func (m *Machine) FailureReason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reason
}

// Begin starts a submission; it is the only way into Validating.
func (m *Machine) Begin() error {
	m.mu.Lock()
	if m.state.InFlight() || m.state == domain.SubmissionSucceeded {
		m.mu.Unlock()
		return ErrSubmissionInFlight
	}
	m.state = domain.SubmissionValidating
	m.reason = ""
	m.mu.Unlock()

	m.notify(domain.SubmissionValidating)
	return nil
}

func (m *Machine) Transition(from, to domain.SubmissionState) error {
	m.mu.Lock()
	if m.state != from || !domain.CanTransitionTo(from, to) {
		current := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s (current %s)", ErrIllegalTransition, from, to, current)
	}
	m.state = to
	m.mu.Unlock()

	m.notify(to)
	return nil
}

func (m *Machine) Fail(reason string) {
	m.mu.Lock()
	if !domain.CanTransitionTo(m.state, domain.SubmissionFailed) {
		m.mu.Unlock()
		return
	}
	m.state = domain.SubmissionFailed
	m.reason = reason
	m.mu.Unlock()

	m.notify(domain.SubmissionFailed)
}

// Reset returns to Idle from any state that allows it.
func (m *Machine) Reset() bool {
	m.mu.Lock()
	if m.state == domain.SubmissionIdle || !domain.CanTransitionTo(m.state, domain.SubmissionIdle) {
		m.mu.Unlock()
		return false
	}
	m.state = domain.SubmissionIdle
	m.reason = ""
	m.mu.Unlock()

	m.notify(domain.SubmissionIdle)
	return true
}

func (m *Machine) notify(state domain.SubmissionState) {
	if m.onChange != nil {
		m.onChange(state)
	}
}

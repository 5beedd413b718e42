// Package monitor implements the client side of the license check: a polling
// loop that asks the registry for one project's status and turns the answers
// into an operational decision for the host application.
package monitor

import (
	"fmt"
	"sync"
	"time"

	"licensehub.dev/internal/license"
)

// State is the monitor's derived operating state.
type State string

const (
	StateUnknown              State = "UNKNOWN"
	StateActive               State = "ACTIVE"
	StateFullyLicensed        State = "FULLY_LICENSED"
	StateDisabledPaymentDue   State = "DISABLED_PAYMENT_DUE"
	StateDisabledGraceExpired State = "DISABLED_GRACE_EXPIRED"
)

// States lists every state in a stable order.
var States = []State{
	StateUnknown,
	StateActive,
	StateFullyLicensed,
	StateDisabledPaymentDue,
	StateDisabledGraceExpired,
}

// Allowed reports whether the host may operate while in s.
func (s State) Allowed() bool {
	return s == StateActive || s == StateFullyLicensed
}

// DefaultGraceFailures is the number of consecutive failed checks tolerated
// before the monitor disables the host.
const DefaultGraceFailures = 3

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	State      State     `json:"state"`
	Allowed    bool      `json:"allowed"`
	LastStatus string    `json:"last_status"`
	Failures   int       `json:"consecutive_failures"`
	LastCheck  time.Time `json:"last_check"`
	LastError  string    `json:"last_error,omitempty"`
}

// Transition describes the effect of one poll result.
type Transition struct {
	From State
	To   State
}

// Changed reports whether the state moved.
func (t Transition) Changed() bool { return t.From != t.To }

// Machine holds the monitor session. It is safe for concurrent use.
type Machine struct {
	mu        sync.Mutex
	threshold int
	now       func() time.Time

	state     State
	last      license.Status
	failures  int
	lastCheck time.Time
	lastErr   string
}

// NewMachine creates a session in StateUnknown. A threshold below one falls
// back to DefaultGraceFailures.
func NewMachine(threshold int) *Machine {
	if threshold < 1 {
		threshold = DefaultGraceFailures
	}
	return &Machine{
		threshold: threshold,
		state:     StateUnknown,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Observe applies a successful check. FULLY_LICENSED is terminal. A status
// outside the enum counts as a malformed response.
func (m *Machine) Observe(status license.Status) Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !status.Valid() {
		return m.fail(fmt.Errorf("%w: unknown status %q", ErrMalformedResponse, status))
	}
	from := m.state
	m.lastCheck = m.now()
	if from == StateFullyLicensed {
		return Transition{From: from, To: from}
	}
	m.last = status
	m.failures = 0
	m.lastErr = ""
	switch status {
	case license.StatusFullyPaid:
		m.state = StateFullyLicensed
	case license.StatusPartiallyPaid:
		m.state = StateActive
	case license.StatusNotPaid:
		m.state = StateDisabledPaymentDue
	}
	return Transition{From: from, To: m.state}
}

// Fail records a check that produced no usable status.
func (m *Machine) Fail(err error) Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fail(err)
}

func (m *Machine) fail(err error) Transition {
	from := m.state
	m.lastCheck = m.now()
	if from == StateFullyLicensed {
		return Transition{From: from, To: from}
	}
	m.failures++
	if err != nil {
		m.lastErr = err.Error()
	}
	if m.failures >= m.threshold {
		m.state = StateDisabledGraceExpired
	}
	return Transition{From: from, To: m.state}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Allowed reports whether the host may operate.
func (m *Machine) Allowed() bool {
	return m.State().Allowed()
}

// Latched reports whether the machine reached its terminal state.
func (m *Machine) Latched() bool {
	return m.State() == StateFullyLicensed
}

// Snapshot copies the session.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	last := "unknown"
	if m.last != "" {
		last = string(m.last)
	}
	return Snapshot{
		State:      m.state,
		Allowed:    m.state.Allowed(),
		LastStatus: last,
		Failures:   m.failures,
		LastCheck:  m.lastCheck,
		LastError:  m.lastErr,
	}
}

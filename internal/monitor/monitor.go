package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"licensehub.dev/internal/obs"
)

const (
	DefaultInterval = time.Hour
	DefaultTimeout  = 10 * time.Second
)

// ChangeFunc is called after a poll moves the state.
type ChangeFunc func(t Transition, s Snapshot)

// Monitor polls the registry for one project on a fixed interval.
type Monitor struct {
	checker    Checker
	identifier string
	machine    *Machine
	interval   time.Duration
	timeout    time.Duration
	graceLimit int
	logger     *slog.Logger
	onChange   []ChangeFunc
	metrics    *metrics

	pollMu sync.Mutex
}

// Option configures Monitor.
type Option func(*Monitor)

// WithInterval sets the delay between polls.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) { m.interval = d }
}

// WithTimeout bounds each check. It must be shorter than the interval.
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) { m.timeout = d }
}

// WithGraceFailures sets the consecutive failure threshold.
func WithGraceFailures(n int) Option {
	return func(m *Monitor) { m.graceLimit = n }
}

// WithLogger overrides the shared logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithOnChange registers a state change hook. Hooks run on the polling
// goroutine and must not block.
func WithOnChange(fn ChangeFunc) Option {
	return func(m *Monitor) {
		if fn != nil {
			m.onChange = append(m.onChange, fn)
		}
	}
}

// WithMetrics registers monitor gauges and counters with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(m *Monitor) {
		if reg != nil {
			m.metrics = newMetrics(reg)
		}
	}
}

// New builds a Monitor for identifier.
func New(checker Checker, identifier string, opts ...Option) (*Monitor, error) {
	m := &Monitor{
		checker:    checker,
		identifier: strings.TrimSpace(identifier),
		interval:   DefaultInterval,
		timeout:    DefaultTimeout,
		graceLimit: DefaultGraceFailures,
		logger:     obs.Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	switch {
	case checker == nil:
		return nil, errors.New("monitor: checker is required")
	case m.identifier == "":
		return nil, errors.New("monitor: project identifier is required")
	case m.interval <= 0:
		return nil, errors.New("monitor: interval must be positive")
	case m.timeout <= 0 || m.timeout >= m.interval:
		return nil, errors.New("monitor: timeout must be positive and shorter than the interval")
	case m.graceLimit < 1:
		return nil, errors.New("monitor: grace failures must be at least 1")
	}
	m.machine = NewMachine(m.graceLimit)
	return m, nil
}

// Allowed reports whether the host may operate.
func (m *Monitor) Allowed() bool { return m.machine.Allowed() }

// Snapshot returns the current session.
func (m *Monitor) Snapshot() Snapshot { return m.machine.Snapshot() }

// Run polls immediately and then every interval until ctx is done or the
// project becomes fully licensed.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("license monitor started",
		"project_identifier", m.identifier,
		"interval", m.interval.String(),
		"grace_failures", m.graceLimit)

	if m.CheckNow(ctx); m.machine.Latched() {
		m.logger.Info("license monitor stopped", "reason", "fully_licensed")
		return
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("license monitor stopped", "reason", "shutdown")
			return
		case <-ticker.C:
			if m.CheckNow(ctx); m.machine.Latched() {
				m.logger.Info("license monitor stopped", "reason", "fully_licensed")
				return
			}
		}
	}
}

// CheckNow performs one poll. Concurrent callers are serialised so there is
// never more than one outstanding request.
func (m *Monitor) CheckNow(ctx context.Context) Transition {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()

	if m.machine.Latched() {
		s := m.machine.State()
		return Transition{From: s, To: s}
	}
	if ctx.Err() != nil {
		// Shutdown is not a registry failure.
		s := m.machine.State()
		return Transition{From: s, To: s}
	}

	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	status, err := m.checker.Check(cctx, m.identifier)
	cancel()

	if err != nil && ctx.Err() != nil {
		m.logger.Debug("license check interrupted by shutdown", "project_identifier", m.identifier)
		s := m.machine.State()
		return Transition{From: s, To: s}
	}
	if err == nil && !status.Valid() {
		err = fmt.Errorf("%w: unknown status %q", ErrMalformedResponse, status)
	}

	var t Transition
	if err != nil {
		t = m.machine.Fail(err)
	} else {
		t = m.machine.Observe(status)
	}
	snap := m.machine.Snapshot()
	m.metrics.observe(snap, err == nil)

	if err != nil {
		m.logger.Warn("license check failed",
			"project_identifier", m.identifier,
			"consecutive_failures", snap.Failures,
			"state", string(snap.State),
			"error", err.Error())
	} else {
		m.logger.Debug("license check", "project_identifier", m.identifier, "status", string(status))
	}
	if t.Changed() {
		m.logger.Info("license state changed",
			"project_identifier", m.identifier,
			"from", string(t.From),
			"to", string(t.To),
			"allowed", snap.Allowed)
		for _, fn := range m.onChange {
			fn(t, snap)
		}
	}
	return t
}

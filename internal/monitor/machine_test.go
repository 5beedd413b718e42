package monitor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensehub.dev/internal/license"
)

var errDown = errors.New("connection refused")

func TestMachineStartsUnknownAndDisallowed(t *testing.T) {
	m := NewMachine(3)
	snap := m.Snapshot()
	assert.Equal(t, StateUnknown, snap.State)
	assert.False(t, snap.Allowed)
	assert.Equal(t, "unknown", snap.LastStatus)
	assert.True(t, snap.LastCheck.IsZero())
}

func TestMachineObserve(t *testing.T) {
	cases := []struct {
		from   State
		status license.Status
		want   State
	}{
		{StateUnknown, license.StatusNotPaid, StateDisabledPaymentDue},
		{StateUnknown, license.StatusPartiallyPaid, StateActive},
		{StateUnknown, license.StatusFullyPaid, StateFullyLicensed},
		{StateActive, license.StatusNotPaid, StateDisabledPaymentDue},
		{StateDisabledPaymentDue, license.StatusPartiallyPaid, StateActive},
		{StateDisabledGraceExpired, license.StatusPartiallyPaid, StateActive},
		{StateDisabledGraceExpired, license.StatusFullyPaid, StateFullyLicensed},
		{StateFullyLicensed, license.StatusNotPaid, StateFullyLicensed},
		{StateFullyLicensed, license.StatusPartiallyPaid, StateFullyLicensed},
		{StateActive, license.Status("PAID"), StateActive},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"/"+string(tc.status), func(t *testing.T) {
			m := NewMachine(3)
			m.state = tc.from
			tr := m.Observe(tc.status)
			assert.Equal(t, tc.from, tr.From)
			assert.Equal(t, tc.want, tr.To)
			assert.Equal(t, tc.want, m.State())
		})
	}
}

func TestMachineUnknownStatusCountsAsFailure(t *testing.T) {
	m := NewMachine(3)
	m.Fail(errDown)
	m.Fail(errDown)

	tr := m.Observe(license.Status("BOGUS"))
	assert.Equal(t, StateDisabledGraceExpired, tr.To)
	snap := m.Snapshot()
	assert.Equal(t, 3, snap.Failures)
	assert.Equal(t, "unknown", snap.LastStatus)
	assert.Contains(t, snap.LastError, ErrMalformedResponse.Error())
}

func TestMachineAllowed(t *testing.T) {
	for _, s := range States {
		want := s == StateActive || s == StateFullyLicensed
		assert.Equal(t, want, s.Allowed(), s)
	}
}

func TestMachineGracePeriod(t *testing.T) {
	m := NewMachine(3)
	m.Observe(license.StatusPartiallyPaid)

	require.Equal(t, StateActive, m.Fail(errDown).To)
	require.Equal(t, StateActive, m.Fail(errDown).To)
	assert.True(t, m.Allowed(), "still inside the grace period")

	tr := m.Fail(errDown)
	assert.Equal(t, StateDisabledGraceExpired, tr.To)
	assert.True(t, tr.Changed())
	snap := m.Snapshot()
	assert.Equal(t, 3, snap.Failures)
	assert.Equal(t, errDown.Error(), snap.LastError)
	assert.False(t, snap.Allowed)
}

func TestMachineFailureLeavesPaymentDueUnchanged(t *testing.T) {
	m := NewMachine(2)
	m.Observe(license.StatusNotPaid)
	assert.Equal(t, StateDisabledPaymentDue, m.Fail(errDown).To)
	assert.Equal(t, StateDisabledGraceExpired, m.Fail(errDown).To)
}

func TestMachineSuccessResetsFailures(t *testing.T) {
	m := NewMachine(3)
	m.Fail(errDown)
	m.Fail(errDown)
	m.Observe(license.StatusPartiallyPaid)
	snap := m.Snapshot()
	assert.Zero(t, snap.Failures)
	assert.Empty(t, snap.LastError)
	assert.Equal(t, "PARTIALLY_PAID", snap.LastStatus)

	m.Fail(errDown)
	m.Fail(errDown)
	assert.Equal(t, StateActive, m.State(), "counter restarted after success")
}

func TestMachineRecoversFromGraceExpired(t *testing.T) {
	m := NewMachine(1)
	m.Fail(errDown)
	require.Equal(t, StateDisabledGraceExpired, m.State())
	m.Observe(license.StatusPartiallyPaid)
	assert.Equal(t, StateActive, m.State())
}

func TestMachineFullyLicensedIsTerminal(t *testing.T) {
	m := NewMachine(1)
	m.Observe(license.StatusFullyPaid)
	for i := 0; i < 5; i++ {
		tr := m.Fail(errDown)
		assert.False(t, tr.Changed())
	}
	m.Observe(license.StatusNotPaid)
	snap := m.Snapshot()
	assert.Equal(t, StateFullyLicensed, snap.State)
	assert.Zero(t, snap.Failures)
	assert.True(t, snap.Allowed)
	assert.True(t, m.Latched())
}

func TestNewMachineThresholdFallback(t *testing.T) {
	m := NewMachine(0)
	m.Fail(errDown)
	m.Fail(errDown)
	assert.Equal(t, StateUnknown, m.State())
	m.Fail(errDown)
	assert.Equal(t, StateDisabledGraceExpired, m.State())
}

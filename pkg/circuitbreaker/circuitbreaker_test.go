package circuitbreaker

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTripsOpenAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 2, Timeout: time.Minute})

	boom := func() error { return fmt.Errorf("boom") }
	require.Error(t, cb.Execute(boom))
	require.Error(t, cb.Execute(boom))

	calls := 0
	err := cb.Execute(func() error {
		calls++
		return nil
	})
	assert.Error(t, err)
	assert.Zero(t, calls)
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 2, Timeout: time.Minute})

	require.Error(t, cb.Execute(func() error { return fmt.Errorf("boom") }))
	require.NoError(t, cb.Execute(func() error { return nil }))
	require.Error(t, cb.Execute(func() error { return fmt.Errorf("boom") }))

	// still closed: the success in between reset the streak
	assert.NoError(t, cb.Execute(func() error { return nil }))
}

func TestHalfOpenProbeAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 1, Timeout: 20 * time.Millisecond})

	require.Error(t, cb.Execute(func() error { return fmt.Errorf("boom") }))
	require.Error(t, cb.Execute(func() error { return nil }), "open breaker rejects before the timeout")

	time.Sleep(30 * time.Millisecond)
	assert.NoError(t, cb.Execute(func() error { return nil }))
}

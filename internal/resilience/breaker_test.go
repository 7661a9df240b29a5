// SPDX-License-Identifier: MIT

package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend down")

func fail() error    { return errBackend }
func succeed() error { return nil }

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	cb := NewCircuitBreaker("test", 3, 10*time.Second, WithClock(clk.now))

	require.ErrorIs(t, cb.Execute(fail), errBackend)
	require.ErrorIs(t, cb.Execute(fail), errBackend)
	assert.Equal(t, StateClosed, cb.State())

	require.ErrorIs(t, cb.Execute(fail), errBackend)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	assert.ErrorIs(t, cb.Execute(func() error { called = true; return nil }), ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessBreaksTheStreak(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, time.Second)

	_ = cb.Execute(fail)
	require.NoError(t, cb.Execute(succeed))
	_ = cb.Execute(fail)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_ProbeAfterCooldown(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	cb := NewCircuitBreaker("test", 1, 10*time.Second, WithClock(clk.now))

	_ = cb.Execute(fail)
	require.Equal(t, StateOpen, cb.State())

	clk.advance(11 * time.Second)
	assert.ErrorIs(t, cb.Execute(fail), errBackend)
	assert.Equal(t, StateOpen, cb.State(), "failed probe reopens")
	assert.ErrorIs(t, cb.Execute(succeed), ErrCircuitOpen)

	clk.advance(11 * time.Second)
	require.NoError(t, cb.Execute(succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_OneProbeAtATime(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	cb := NewCircuitBreaker("test", 1, time.Second, WithClock(clk.now))
	_ = cb.Execute(fail)
	clk.advance(2 * time.Second)

	err := cb.Execute(func() error {
		assert.ErrorIs(t, cb.Execute(succeed), ErrCircuitOpen)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_PanicCountsAsFailure(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, time.Minute)

	assert.Panics(t, func() {
		_ = cb.Execute(func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_ReportsTransitions(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	var seen []string
	cb := NewCircuitBreaker("backend", 1, time.Second,
		WithClock(clk.now),
		WithTransitionFunc(func(name string, from, to State) {
			seen = append(seen, name+":"+string(from)+">"+string(to))
		}))

	_ = cb.Execute(fail)
	clk.advance(2 * time.Second)
	_ = cb.Execute(succeed)

	assert.Equal(t, []string{
		"backend:>closed",
		"backend:closed>open",
		"backend:open>half-open",
		"backend:half-open>closed",
	}, seen)
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker("test", 0, 0)
	assert.Equal(t, defaultThreshold, cb.threshold)
	assert.Equal(t, defaultCooldown, cb.cooldown)
}

// Package testutil holds helpers shared by the asynchronous pipeline tests.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	// DefaultTestTimeout bounds most waits on the consumer goroutine.
	DefaultTestTimeout = 5 * time.Second

	// ShortTestTimeout is used when asserting that something does not happen.
	ShortTestTimeout = 100 * time.Millisecond
)

// WaitForChannel waits for ch to be signaled or closed, failing the test after timeout.
func WaitForChannel(t *testing.T, ch <-chan struct{}, timeout time.Duration, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		require.Fail(t, msg)
	}
}

// Receive returns the next value from ch, failing the test after timeout.
func Receive[T any](t *testing.T, ch <-chan T, timeout time.Duration) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		require.Fail(t, "timed out waiting for value")
	}
	var zero T
	return zero
}

// AssertNoSignal fails the test if ch delivers within ShortTestTimeout.
func AssertNoSignal[T any](t *testing.T, ch <-chan T, msg string) {
	t.Helper()
	select {
	case <-ch:
		require.Fail(t, msg)
	case <-time.After(ShortTestTimeout):
	}
}

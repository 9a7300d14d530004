// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidTransition(t *testing.T) {
	tests := []struct {
		name string
		from ConnectionState
		to   ConnectionState
		want bool
	}{
		{"connect to version", StateConnecting, StateNegotiatingVersion, true},
		{"version to security", StateNegotiatingVersion, StateNegotiatingSecurity, true},
		{"security to auth", StateNegotiatingSecurity, StateAuthenticating, true},
		{"auth to init", StateAuthenticating, StateInitializing, true},
		{"init to active", StateInitializing, StateActive, true},
		{"active self loop", StateActive, StateActive, true},
		{"skip ahead", StateConnecting, StateAuthenticating, false},
		{"backwards", StateAuthenticating, StateNegotiatingVersion, false},
		{"any to closed", StateNegotiatingSecurity, StateClosed, true},
		{"any to failed", StateConnecting, StateFailed, true},
		{"active to closed", StateActive, StateClosed, true},
		{"closed is terminal", StateClosed, StateActive, false},
		{"closed to failed", StateClosed, StateFailed, false},
		{"failed is terminal", StateFailed, StateConnecting, false},
		{"failed to closed", StateFailed, StateClosed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, validTransition(tt.from, tt.to))
		})
	}
}

func TestConnectionStateTerminal(t *testing.T) {
	assert.True(t, StateClosed.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateConnecting.Terminal())
	assert.False(t, StateActive.Terminal())
}

func TestConnectionStateString(t *testing.T) {
	states := []ConnectionState{
		StateConnecting, StateNegotiatingVersion, StateNegotiatingSecurity,
		StateAuthenticating, StateInitializing, StateActive, StateClosed, StateFailed,
	}
	seen := map[string]bool{}
	for _, s := range states {
		str := s.String()
		assert.NotEmpty(t, str)
		assert.False(t, seen[str], "duplicate state name %q", str)
		seen[str] = true
	}
}
